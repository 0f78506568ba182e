package kdtree

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// KClosestPairsBatch runs KClosestPairs for every query against idx and
// returns the pairs per query in ascending distance order, with QueryIndex
// set to the query's position. Queries are split into contiguous chunks
// processed by up to workers goroutines; workers <= 0 means GOMAXPROCS.
// Each query runs on a single goroutine, so the per-query results are
// identical to the sequential calls.
//
// idx must not be rebuilt while the batch is running. The only error is a
// cancelled ctx.
func KClosestPairsBatch(ctx context.Context, idx SpatialIndex, queries []r3.Vec, k int, maxDistance float64, workers int) ([][]NeighborPair, error) {
	out := make([][]NeighborPair, len(queries))
	err := forEachChunk(ctx, len(queries), workers, func(start, end int) error {
		arr := NewBoundedSortedArray[NeighborPair](k)
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			arr.Clear()
			idx.KClosestPairs(queries[i], arr, maxDistance)
			pairs := arr.Values()
			for j := range pairs {
				pairs[j].QueryIndex = i
			}
			out[i] = pairs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClosestElementsBatch runs ClosestPair for every query and returns one pair
// per query (invalid pairs for queries with no element within
// distanceBound).
func ClosestElementsBatch(ctx context.Context, idx SpatialIndex, queries []r3.Vec, distanceBound float64, workers int) ([]NeighborPair, error) {
	out := make([]NeighborPair, len(queries))
	err := forEachChunk(ctx, len(queries), workers, func(start, end int) error {
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			pair := idx.ClosestPair(queries[i], distanceBound, true)
			pair.QueryIndex = i
			out[i] = pair
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// forEachChunk splits [0, n) into contiguous ranges and runs fn on each.
// Ranges don't overlap, so fn may write its own output slots without
// synchronization. Falls back to a single call when workers <= 1.
func forEachChunk(ctx context.Context, n, workers int, fn func(start, end int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers <= 1 || n <= 1 {
		return fn(0, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	perWorker := (n + workers - 1) / workers
	for start := 0; start < n; start += perWorker {
		end := min(start+perWorker, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(start, end)
		})
	}
	return g.Wait()
}
