package billing

import (
	"context"
	"sync"
)

// BatchResult pairs a request index with its computation outcome.
type BatchResult struct {
	Index       int
	Computation *Computation
	Err         error
}

// ComputeAll runs independent bill computations across a pool of workers.
// Requests may share a tariff/holiday snapshot: Compute never mutates its
// inputs, so no synchronisation is needed on the shared data. Results are
// returned indexed by request, regardless of completion order.
func ComputeAll(ctx context.Context, reqs []Request, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	results := make([]BatchResult, len(reqs))
	indices := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				comp, err := Compute(ctx, reqs[i])
				results[i] = BatchResult{Index: i, Computation: comp, Err: err}
			}
		}()
	}

	for i := range reqs {
		select {
		case indices <- i:
		case <-ctx.Done():
			// mark the remaining requests cancelled without running them
			for j := i; j < len(reqs); j++ {
				results[j] = BatchResult{Index: j, Err: ErrCancelled}
			}
			close(indices)
			wg.Wait()
			return results
		}
	}
	close(indices)
	wg.Wait()
	return results
}
