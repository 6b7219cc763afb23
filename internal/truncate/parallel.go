package truncate

import (
	"runtime"
	"sync"
)

// WorkItem holds one unit of work: a transcript block or a row chunk.
type WorkItem[T any] struct {
	Seq   int
	Value T
}

// WorkResult holds the output for a single work item.
type WorkResult[R any] struct {
	Seq   int
	Value R
}

// Parallel processes work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func Parallel[T, R any](items <-chan WorkItem[T], workers int, fn func(T) R) <-chan WorkResult[R] {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult[R], 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range items {
				results <- WorkResult[R]{Seq: item.Seq, Value: fn(item.Value)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect[R any](results <-chan WorkResult[R], fn func(WorkResult[R]) error) error {
	pending := make(map[int]WorkResult[R])
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// feed sends values on a channel as sequence-numbered work items.
func feed[T any](values []T) <-chan WorkItem[T] {
	items := make(chan WorkItem[T], len(values))
	for i, v := range values {
		items <- WorkItem[T]{Seq: i, Value: v}
	}
	close(items)
	return items
}
