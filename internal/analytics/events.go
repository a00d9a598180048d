package analytics

import "time"

type EventType string

const (
	EventAnalysis EventType = "analysis"
	EventJob      EventType = "job"
)

// AnalysisEvent describes one finished (or failed) analysis.
type AnalysisEvent struct {
	Type            EventType `json:"type"`
	Source          string    `json:"source"`
	Kind            string    `json:"kind"`
	TopK            int       `json:"top_k"`
	Segments        int       `json:"segments"`
	DistinctPhrases int       `json:"distinct_phrases"`
	TopPhrases      []string  `json:"top_phrases,omitempty"`
	LatencyMs       int64     `json:"latency_ms"`
	CacheHit        bool      `json:"cache_hit"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id,omitempty"`
}

// Failed reports whether the analysis ended in an error.
func (e AnalysisEvent) Failed() bool {
	return e.Error != ""
}

// Tracker accepts analysis events. Collector forwards them to Kafka;
// Aggregator records them in process.
type Tracker interface {
	Track(event AnalysisEvent)
}
