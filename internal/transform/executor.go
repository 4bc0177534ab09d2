package transform

import (
	"runtime"
	"sync"

	"classpath-cache/internal/keys"
	"classpath-cache/internal/store"
)

// resolution is the three-state outcome of resolving one input: absent (no
// output slot at all), an immediate value, or a pending computation to run
// on the worker pool. Absent and "immediate zero value" are distinct states
// and must not be conflated.
type resolution[U any] struct {
	state   resolveState
	value   U
	compute func() (U, error)
}

type resolveState int

const (
	stateAbsent resolveState = iota
	stateValue
	statePending
)

func absent[U any]() resolution[U] {
	return resolution[U]{state: stateAbsent}
}

func immediate[U any](v U) resolution[U] {
	return resolution[U]{state: stateValue, value: v}
}

func deferred[U any](compute func() (U, error)) resolution[U] {
	return resolution[U]{state: statePending, compute: compute}
}

// seenSet tracks content hashes resolved within a single batch. It is
// mutated only by the goroutine driving dispatch, before any worker starts,
// so it needs no synchronization.
type seenSet struct {
	hashes map[keys.Digest]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{hashes: make(map[keys.Digest]struct{})}
}

// Add records the digest and reports whether it was newly seen.
func (s *seenSet) Add(d keys.Digest) bool {
	if _, ok := s.hashes[d]; ok {
		return false
	}
	s.hashes[d] = struct{}{}
	return true
}

// transformAll resolves every input in order, then runs all pending
// computations concurrently on a bounded worker pool, inside the cache's
// exclusive scope.
//
// Output slots are reserved eagerly during the synchronous resolve pass, so
// the result list preserves the relative input order of every non-absent
// entry no matter which computations finish first. Workers fill disjoint
// slots and are never cancelled; if any fail, the first failure in
// submission order is returned after all of them have finished.
func transformAll[T, U any](cache *store.Cache, workers int, inputs []T, resolve func(T, *seenSet) (resolution[U], error)) ([]U, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	var results []U
	err := cache.UseCache(func() error {
		results = make([]U, 0, len(inputs))
		type pendingJob struct {
			slot    int
			compute func() (U, error)
		}
		var jobs []pendingJob
		seen := newSeenSet()
		for _, input := range inputs {
			res, err := resolve(input, seen)
			if err != nil {
				return err
			}
			switch res.state {
			case stateAbsent:
				// No slot reserved; duplicates and missing entries collapse.
			case stateValue:
				results = append(results, res.value)
			case statePending:
				slot := len(results)
				var zero U
				results = append(results, zero)
				jobs = append(jobs, pendingJob{slot: slot, compute: res.compute})
			}
		}
		if len(jobs) == 0 {
			return nil
		}

		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		if workers > len(jobs) {
			workers = len(jobs)
		}
		failures := make([]error, len(jobs))
		jobCh := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for idx := range jobCh {
					v, err := jobs[idx].compute()
					if err != nil {
						failures[idx] = err
						continue
					}
					results[jobs[idx].slot] = v
				}
			}()
		}
		for idx := range jobs {
			jobCh <- idx
		}
		close(jobCh)
		wg.Wait()

		for _, err := range failures {
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
