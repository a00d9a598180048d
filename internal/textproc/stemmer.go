package textproc

import "github.com/kljensen/snowball/english"

// Stemmer reduces a normalized word to its stem, e.g. "interesting" to
// "interest".
type Stemmer interface {
	Stem(word string) string
}

// SnowballStemmer stems English words with the Snowball (Porter2)
// algorithm.
type SnowballStemmer struct{}

// Stem implements Stemmer.
func (SnowballStemmer) Stem(word string) string {
	return english.Stem(word, false)
}

// IdentityStemmer returns words unchanged.
type IdentityStemmer struct{}

// Stem implements Stemmer.
func (IdentityStemmer) Stem(word string) string {
	return word
}
