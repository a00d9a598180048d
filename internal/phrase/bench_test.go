package phrase

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
)

// BenchmarkIngest measures per-segment insert throughput at various segment
// lengths. Cost grows quadratically with length.
func BenchmarkIngest(b *testing.B) {
	for _, length := range []int{4, 16, 64} {
		b.Run(fmt.Sprintf("len_%d", length), func(b *testing.B) {
			rng := rand.New(rand.NewSource(1))
			segment := make([]string, length)
			for i := range segment {
				segment[i] = vocabulary[rng.Intn(len(vocabulary))]
			}
			ix := NewIndex()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ix.Ingest(segment)
			}
		})
	}
}

// BenchmarkTopPhrases measures extraction over an index built from 10 000
// random segments.
func BenchmarkTopPhrases(b *testing.B) {
	ix := randomIndex(rand.New(rand.NewSource(2)), 10000)
	for _, k := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("k_%d", k), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = ix.TopPhrases(k)
			}
		})
	}
}

// BenchmarkBuildSharded compares worker counts for the shard-then-merge
// build.
func BenchmarkBuildSharded(b *testing.B) {
	segments := randomSegments(rand.New(rand.NewSource(3)), 20000)
	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := BuildSharded(context.Background(), segments, workers); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
