package phrase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// cancelCheckInterval is how many segments a builder ingests between
// context checks.
const cancelCheckInterval = 256

// BuildSharded ingests segments using up to workers goroutines. Each worker
// builds an independent Index over an interleaved share of the segments and
// the shards are merged afterwards, so no locking is needed while counting.
// Counting is commutative across segments, so the result equals sequential
// ingestion. A cancelled ctx aborts the whole build.
func BuildSharded(ctx context.Context, segments [][]string, workers int) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("building phrase index: %w", err)
	}
	if workers > len(segments) {
		workers = len(segments)
	}
	if workers <= 1 {
		ix := NewIndex()
		if err := ingestStride(ctx, ix, segments, 0, 1); err != nil {
			return nil, fmt.Errorf("building phrase index: %w", err)
		}
		return ix, nil
	}

	shards := make([]*Index, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			ix := NewIndex()
			if err := ingestStride(gctx, ix, segments, w, workers); err != nil {
				return fmt.Errorf("shard %d: %w", w, err)
			}
			shards[w] = ix
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building phrase index: %w", err)
	}

	merged := shards[0]
	for _, shard := range shards[1:] {
		merged.Merge(shard)
	}
	return merged, nil
}

func ingestStride(ctx context.Context, ix *Index, segments [][]string, start, stride int) error {
	n := 0
	for i := start; i < len(segments); i += stride {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		ix.Ingest(segments[i])
		n++
	}
	return nil
}
