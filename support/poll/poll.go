// Package poll provides the bounded-retry primitive used to wait for
// asynchronous infrastructure state changes: a fixed number of predicate
// evaluations at a fixed interval, with a definitive success/timeout result.
package poll

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	// DefaultAttempts and DefaultInterval bound readiness waits to five
	// minutes, matching observed controller deployment propagation delay.
	DefaultAttempts = 20
	DefaultInterval = 15 * time.Second
)

// Predicate reports whether the awaited condition holds, along with the
// observation the decision was based on. Predicates must be side-effect free
// beyond the reads they perform.
type Predicate[T any] func(ctx context.Context) (bool, T, error)

// Result is the outcome of one bounded poll. Attempts counts predicate
// evaluations actually performed. Last carries the most recent observation
// and LastErr the most recent predicate error, both for diagnostics; a
// predicate error counts as a false evaluation and is never propagated.
type Result[T any] struct {
	Succeeded bool
	Attempts  int
	Last      T
	LastErr   error
}

// WaitUntil evaluates predicate up to attempts times, interval apart,
// returning as soon as it reports true. The first evaluation happens
// immediately, so a poll that succeeds on the k-th evaluation sleeps k-1
// intervals. The interval is fixed: the workloads polled converge on a
// roughly constant schedule, so exponential backoff buys nothing here.
// Cancelling ctx ends the poll early with Succeeded false.
func WaitUntil[T any](ctx context.Context, attempts int, interval time.Duration, predicate Predicate[T]) Result[T] {
	var res Result[T]
	if attempts <= 0 {
		return res
	}
	backoff := wait.Backoff{
		Steps:    attempts,
		Duration: interval,
		Factor:   1.0,
	}
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		ok, observed, err := predicate(ctx)
		res.Attempts++
		res.Last = observed
		res.LastErr = err
		return ok && err == nil, nil
	})
	res.Succeeded = err == nil
	return res
}
