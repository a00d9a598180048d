// Package phrase counts every contiguous word-phrase of a stream of text
// segments and ranks the most frequent ones.
//
// The Index is a trie keyed by token. Each root-to-node path is a phrase and
// each node counts how many times exactly that phrase occurred as a
// contiguous run inside an ingested segment. Phrases never span segment
// boundaries.
//
// An Index is not safe for concurrent use. To build one in parallel, give
// each worker its own Index and combine them with Merge (see BuildSharded).
package phrase

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/topk"
)

type node struct {
	children map[string]*node
	count    uint64
}

func (n *node) child(token string) *node {
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	next, ok := n.children[token]
	if !ok {
		next = &node{}
		n.children[token] = next
	}
	return next
}

func (n *node) sortedTokens() []string {
	tokens := make([]string, 0, len(n.children))
	for token := range n.children {
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)
	return tokens
}

// Index is an append-only phrase-frequency trie.
type Index struct {
	root     *node
	segments int
	distinct int
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{root: &node{}}
}

// Ingest counts every contiguous subphrase of segment. For each start
// position i the path segment[i:] is walked from the root and every node on
// it is incremented, so a segment of length L contributes to all L*(L+1)/2
// of its subphrases. Tokens are treated as opaque strings. An empty segment
// is a no-op.
func (ix *Index) Ingest(segment []string) {
	if len(segment) == 0 {
		return
	}
	ix.segments++
	for i := range segment {
		cur := ix.root
		for _, token := range segment[i:] {
			cur = cur.child(token)
			if cur.count == 0 {
				ix.distinct++
			}
			cur.count++
		}
	}
}

// Count returns the number of times the exact phrase formed by tokens has
// been seen. Phrases that never occurred, including non-contiguous ones,
// return zero.
func (ix *Index) Count(tokens ...string) uint64 {
	if len(tokens) == 0 {
		return 0
	}
	cur := ix.root
	for _, token := range tokens {
		next, ok := cur.children[token]
		if !ok {
			return 0
		}
		cur = next
	}
	return cur.count
}

// Len returns the number of distinct phrases with a non-zero count.
func (ix *Index) Len() int {
	return ix.distinct
}

// Segments returns the number of non-empty segments ingested, including
// those absorbed through Merge.
func (ix *Index) Segments() int {
	return ix.segments
}

// TopPhrases returns at most k phrases ranked by Less, best first. Every
// phrase with a non-zero count is a candidate, not only maximal ones. The
// index is left unchanged, so repeated calls return identical results.
func (ix *Index) TopPhrases(k int) []RankedPhrase {
	if k <= 0 {
		return []RankedPhrase{}
	}
	sel := topk.New(k, Less)
	ix.walk(func(n *node, path []string) bool {
		if worst, ok := sel.Peek(); ok && sel.Len() == sel.Cap() {
			// Skip the join for candidates that cannot displace the worst
			// retained phrase on frequency and length alone.
			if n.count < worst.Frequency || (n.count == worst.Frequency && len(path) < worst.Tokens) {
				return true
			}
		}
		sel.Offer(newRanked(path, n.count))
		return true
	})
	return sel.Drain()
}

// Walk calls fn for every phrase with a non-zero count in depth-first
// pre-order, visiting sibling tokens in lexical order. Walk stops early when
// fn returns false.
func (ix *Index) Walk(fn func(RankedPhrase) bool) {
	ix.walk(func(n *node, path []string) bool {
		return fn(newRanked(path, n.count))
	})
}

// Merge adds every count of other into ix, summing counts at matching
// paths. other is not modified.
func (ix *Index) Merge(other *Index) {
	if other == nil {
		return
	}
	type pair struct {
		dst, src *node
	}
	stack := []pair{{ix.root, other.root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for token, src := range p.src.children {
			dst := p.dst.child(token)
			if dst.count == 0 && src.count > 0 {
				ix.distinct++
			}
			dst.count += src.count
			if len(src.children) > 0 {
				stack = append(stack, pair{dst, src})
			}
		}
	}
	ix.segments += other.segments
}

type frame struct {
	n     *node
	token string
	depth int
}

// walk is an explicit-stack pre-order traversal so that a very long segment
// cannot exhaust the goroutine stack. path is reused between calls and must
// not be retained by fn.
func (ix *Index) walk(fn func(n *node, path []string) bool) {
	path := make([]string, 0, 16)
	stack := make([]frame, 0, len(ix.root.children))
	push := func(n *node, depth int) {
		tokens := n.sortedTokens()
		for i := len(tokens) - 1; i >= 0; i-- {
			stack = append(stack, frame{n: n.children[tokens[i]], token: tokens[i], depth: depth})
		}
	}
	push(ix.root, 1)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		path = append(path[:f.depth-1], f.token)
		if f.n.count > 0 && !fn(f.n, path) {
			return
		}
		push(f.n, f.depth+1)
	}
}

func newRanked(path []string, count uint64) RankedPhrase {
	return RankedPhrase{
		Phrase:    strings.Join(path, " "),
		Frequency: count,
		Tokens:    len(path),
	}
}
