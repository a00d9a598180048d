// Package textproc turns visible document text into phrase segments. It
// splits on whitespace, closes a segment at clause punctuation, strips
// non-word characters, lower-cases, drops stop words, and stems what
// remains.
package textproc

import "strings"

// Segmenter produces segments: runs of normalized, non-stop-word tokens
// between punctuation boundaries. A Segmenter is safe for concurrent use if
// its StopWords and Stemmer are.
type Segmenter struct {
	stopWords StopWords
	stemmer   Stemmer
}

// New returns a Segmenter. A nil stopWords uses CommonStopWords and a nil
// stemmer uses SnowballStemmer.
func New(stopWords StopWords, stemmer Stemmer) *Segmenter {
	if stopWords == nil {
		stopWords = CommonStopWords()
	}
	if stemmer == nil {
		stemmer = SnowballStemmer{}
	}
	return &Segmenter{
		stopWords: stopWords,
		stemmer:   stemmer,
	}
}

// Segments returns every non-empty segment of text in document order.
func (s *Segmenter) Segments(text string) [][]string {
	var segments [][]string
	s.Each(text, func(segment []string) {
		segments = append(segments, segment)
	})
	return segments
}

// Each calls fn with each non-empty segment of text in document order. fn
// owns the slice it receives.
//
// A word starting with punctuation ends the current segment before it; a
// word ending with punctuation ends the segment after it. Stop words are
// dropped without ending the segment.
func (s *Segmenter) Each(text string, fn func(segment []string)) {
	var current []string
	flush := func() {
		if len(current) > 0 {
			fn(current)
			current = nil
		}
	}
	for _, word := range strings.Fields(text) {
		if isPunctuation(word[0]) {
			flush()
			word = strings.TrimLeft(word, punctuation)
			if word == "" {
				continue
			}
		}
		endsSegment := isPunctuation(word[len(word)-1])
		if token, ok := s.Token(word); ok {
			current = append(current, token)
		}
		if endsSegment {
			flush()
		}
	}
	flush()
}

// Token normalizes a single raw word. It reports false when nothing is left
// or the word is a stop word.
func (s *Segmenter) Token(word string) (string, bool) {
	word = strings.ToLower(strings.TrimSpace(clean(word)))
	if word == "" || s.stopWords.IsStopWord(word) {
		return "", false
	}
	stemmed := s.stemmer.Stem(word)
	if stemmed == "" {
		return "", false
	}
	return stemmed, true
}

// punctuation holds the characters that mark a segment boundary.
const punctuation = `,.?!'":;()<>`

func isPunctuation(c byte) bool {
	return strings.IndexByte(punctuation, c) >= 0
}

// clean keeps ASCII letters, digits, underscore, '/' and '*'.
func clean(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for i := 0; i < len(word); i++ {
		c := word[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '_', c == '/', c == '*':
			b.WriteByte(c)
		}
	}
	return b.String()
}
