package topk

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intLess(a, b int) bool { return a < b }

func TestSelector_KeepsSmallestInOrder(t *testing.T) {
	s := New(3, intLess)
	for _, v := range []int{5, 3, 1, 4, 2} {
		s.Offer(v)
	}
	assert.Equal(t, []int{1, 2, 3}, s.Drain())
}

func TestSelector_FewerThanCapacity(t *testing.T) {
	s := New(10, intLess)
	for _, v := range []int{7, 2, 9} {
		s.Offer(v)
	}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []int{2, 7, 9}, s.Drain())
}

func TestSelector_ZeroCapacity(t *testing.T) {
	for _, k := range []int{0, -3} {
		s := New(k, intLess)
		s.Offer(1)
		s.Offer(2)
		assert.Equal(t, 0, s.Len())
		assert.Equal(t, 0, s.Cap())
		assert.Empty(t, s.Drain())
		_, ok := s.Peek()
		assert.False(t, ok)
	}
}

func TestSelector_DrainEmpties(t *testing.T) {
	s := New(2, intLess)
	s.Offer(4)
	s.Offer(1)
	require.Equal(t, []int{1, 4}, s.Drain())
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Drain())

	s.Offer(9)
	assert.Equal(t, []int{9}, s.Drain())
}

func TestSelector_PeekIsWorstRetained(t *testing.T) {
	s := New(3, intLess)
	for _, v := range []int{10, 30, 20} {
		s.Offer(v)
	}
	worst, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, 30, worst)

	s.Offer(15)
	worst, _ = s.Peek()
	assert.Equal(t, 20, worst)

	s.Offer(99)
	worst, _ = s.Peek()
	assert.Equal(t, 20, worst)
}

func TestSelector_EqualItemDoesNotEvict(t *testing.T) {
	type tagged struct {
		rank int
		tag  string
	}
	less := func(a, b tagged) bool { return a.rank < b.rank }
	s := New(2, less)
	s.Offer(tagged{1, "a"})
	s.Offer(tagged{2, "first"})
	s.Offer(tagged{2, "second"})

	got := s.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].tag)
	assert.Equal(t, "first", got[1].tag)
}

func TestSelector_MatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, k := range []int{1, 2, 5, 17, 100, 1000} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			input := make([]int, 500)
			for i := range input {
				input[i] = rng.Intn(200)
			}
			s := New(k, intLess)
			for _, v := range input {
				s.Offer(v)
			}
			sorted := slices.Clone(input)
			slices.Sort(sorted)
			if len(sorted) > k {
				sorted = sorted[:k]
			}
			assert.Equal(t, sorted, s.Drain())
		})
	}
}

func TestSelector_DescendingOrder(t *testing.T) {
	s := New(2, func(a, b int) bool { return a > b })
	for _, v := range []int{1, 8, 3, 9, 2} {
		s.Offer(v)
	}
	assert.Equal(t, []int{9, 8}, s.Drain())
}

func BenchmarkSelectorOffer(b *testing.B) {
	for _, k := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("k_%d", k), func(b *testing.B) {
			rng := rand.New(rand.NewSource(1))
			values := make([]int, 10000)
			for i := range values {
				values[i] = rng.Int()
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				s := New(k, intLess)
				for _, v := range values {
					s.Offer(v)
				}
				_ = s.Drain()
			}
		})
	}
}
