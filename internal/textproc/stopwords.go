package textproc

// StopWords decides whether a normalized word carries no topical signal.
type StopWords interface {
	IsStopWord(word string) bool
}

// StopWordSet is a StopWords backed by a set of lower-case words.
type StopWordSet map[string]struct{}

// NewStopWords builds a StopWordSet from words.
func NewStopWords(words ...string) StopWordSet {
	set := make(StopWordSet, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopWord implements StopWords.
func (s StopWordSet) IsStopWord(word string) bool {
	_, ok := s[word]
	return ok
}

var commonStopWords = NewStopWords(
	"a", "about", "above", "after", "again", "against", "all", "also", "am",
	"an", "and", "any", "are", "as", "at", "be", "because", "been", "before",
	"being", "below", "between", "both", "but", "by", "can", "could", "did",
	"do", "does", "doing", "down", "during", "each", "every", "few", "for",
	"from", "further", "had", "has", "have", "having", "he", "her", "here",
	"hers", "herself", "him", "himself", "his", "how", "i", "if", "in",
	"into", "is", "it", "its", "itself", "just", "me", "might", "more",
	"most", "must", "my", "myself", "no", "nor", "not", "of", "off", "on",
	"once", "only", "or", "other", "our", "ours", "ourselves", "out", "over",
	"own", "same", "shall", "she", "should", "so", "some", "such", "than",
	"that", "the", "their", "theirs", "them", "themselves", "then", "there",
	"these", "they", "this", "those", "through", "to", "too", "under",
	"until", "up", "us", "very", "was", "we", "were", "what", "when",
	"where", "which", "while", "who", "whom", "whose", "why", "will", "with",
	"would", "you", "your", "yours", "yourself", "yourselves",
)

// CommonStopWords returns the default English stop-word list. The returned
// set is shared and must not be modified.
func CommonStopWords() StopWordSet {
	return commonStopWords
}
