// Package broadcast publishes a signed event to a set of independent relays
// and resolves on the first acknowledgment.
package broadcast

import (
	"context"
	"fmt"
	"strings"
)

// AllFailedError aggregates exactly one error per operation when none
// succeeded. Errs is indexed like the input operation slice.
type AllFailedError struct {
	Errs []error
}

func (e *AllFailedError) Error() string {
	if len(e.Errs) == 0 {
		return "no operations to run"
	}

	parts := make([]string, 0, len(e.Errs))
	for i, err := range e.Errs {
		parts = append(parts, fmt.Sprintf("[%d] %v", i, err))
	}
	return fmt.Sprintf("all %d operations failed: %s", len(e.Errs), strings.Join(parts, "; "))
}

// First runs the given operations concurrently and returns the value and
// index of the first one to succeed. The remaining in-flight operations are
// abandoned, not awaited: their eventual results drain into a buffered channel
// and are ignored, so no goroutine leaks.
//
// If every operation fails, First returns an *AllFailedError carrying one
// error per operation. There is no partial result: the contract is strictly
// first success or total failure.
func First[T any](ctx context.Context, ops []func(context.Context) (T, error)) (T, int, error) {
	var zero T

	if len(ops) == 0 {
		return zero, -1, &AllFailedError{}
	}

	type result struct {
		idx int
		val T
		err error
	}

	results := make(chan result, len(ops))
	for i, op := range ops {
		i, op := i, op
		go func() {
			val, err := op(ctx)
			results <- result{idx: i, val: val, err: err}
		}()
	}

	errs := make([]error, len(ops))
	for range ops {
		r := <-results
		if r.err == nil {
			return r.val, r.idx, nil
		}
		errs[r.idx] = r.err
	}

	return zero, -1, &AllFailedError{Errs: errs}
}
