package density

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/phrase"
)

// Source kinds recorded on reports and metrics.
const (
	KindURL  = "url"
	KindHTML = "html"
	KindText = "text"
)

// Report is the outcome of one analysis.
type Report struct {
	ID              string                `json:"id,omitempty"`
	Source          string                `json:"source"`
	Kind            string                `json:"kind"`
	TopK            int                   `json:"top_k"`
	Phrases         []phrase.RankedPhrase `json:"phrases"`
	Segments        int                   `json:"segments"`
	Tokens          int                   `json:"tokens"`
	DistinctPhrases int                   `json:"distinct_phrases"`
	ElapsedMs       int64                 `json:"elapsed_ms"`
	CreatedAt       time.Time             `json:"created_at"`
}

// Topics returns the ranked phrase strings, best first.
func (r *Report) Topics() []string {
	return phrase.Phrases(r.Phrases)
}

// AnalyzeRequest is the job message consumed by the worker.
type AnalyzeRequest struct {
	JobID       string    `json:"job_id"`
	URL         string    `json:"url"`
	TopK        int       `json:"top_k"`
	RequestID   string    `json:"request_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// ReportEvent is published once a job finishes, successfully or not.
type ReportEvent struct {
	JobID       string    `json:"job_id"`
	URL         string    `json:"url"`
	Report      *Report   `json:"report,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
