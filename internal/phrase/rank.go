package phrase

// RankedPhrase is a phrase and the number of times it occurred.
type RankedPhrase struct {
	Phrase    string `json:"phrase"`
	Frequency uint64 `json:"frequency"`
	Tokens    int    `json:"tokens"`
}

// Less reports whether a ranks ahead of b: higher frequency first, then more
// tokens, then lexical order of the phrase so that rankings are total.
func Less(a, b RankedPhrase) bool {
	if a.Frequency != b.Frequency {
		return a.Frequency > b.Frequency
	}
	if a.Tokens != b.Tokens {
		return a.Tokens > b.Tokens
	}
	return a.Phrase < b.Phrase
}

// Phrases returns just the phrase strings of ranked, preserving order.
func Phrases(ranked []RankedPhrase) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Phrase
	}
	return out
}
