// Package idempotency ensures a logical notification produces its state
// effect at most once, even under concurrent or repeated delivery.
package idempotency

import (
	"context"
	"errors"

	"github.com/lumacart/order-gateway/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ErrInFlight is returned when another process holds the key and has not
// completed yet. Callers surface this as a retryable failure so the gateway
// redelivers once the in-flight attempt settles.
var ErrInFlight = errors.New("notification is already being processed")

// Result is the recorded effect of one guarded execution.
type Result struct {
	Status  domain.OrderStatus `json:"status"`
	Outcome domain.Outcome     `json:"outcome"`
}

// Store is the shared record of in-flight and completed keys. It must be
// safe for concurrent use from multiple units of work.
type Store interface {
	// Begin marks the key in-flight. It returns (nil, false, nil) when the
	// caller won the key, (cached, true, nil) when the key already
	// completed, and (nil, true, nil) when the key is held by an attempt
	// that has not completed.
	Begin(ctx context.Context, key string) (*Result, bool, error)
	// Complete records the result and releases the key.
	Complete(ctx context.Context, key string, result Result) error
	// Abort releases a key whose execution failed so a later retry can run.
	Abort(ctx context.Context, key string) error
}

// Guard serializes executions per key. Concurrent same-process callers are
// collapsed by singleflight and all observe the one execution's result;
// cross-process duplicates are screened by the Store.
type Guard struct {
	store Store
	group singleflight.Group
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Do runs fn at most once for the key. Duplicate calls receive the recorded
// result of the first execution without re-running fn.
func (g *Guard) Do(ctx context.Context, key string, fn func(ctx context.Context) (Result, error)) (Result, error) {
	v, err, _ := g.group.Do(key, func() (interface{}, error) {
		cached, duplicate, err := g.store.Begin(ctx, key)
		if err != nil {
			return Result{}, err
		}
		if duplicate {
			if cached != nil {
				return *cached, nil
			}
			return Result{}, ErrInFlight
		}

		result, err := fn(ctx)
		if err != nil {
			if abortErr := g.store.Abort(ctx, key); abortErr != nil {
				return Result{}, errors.Join(err, abortErr)
			}
			return Result{}, err
		}

		if err := g.store.Complete(ctx, key, result); err != nil {
			return Result{}, err
		}
		return result, nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}
