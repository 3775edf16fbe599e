package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/lumacart/order-gateway/internal/domain"
)

// EventPayload carries event-specific data into the transition action.
type EventPayload struct {
	TransactionID string
	RefundID      string
	ReportedState string
}

// Action runs the domain bookkeeping for one edge. It may mutate only the
// order it receives and must be safe to re-invoke for the same attempt.
type Action func(ctx context.Context, order *domain.Order, payload EventPayload) error

// Engine applies lifecycle events to orders. It keeps no per-call state:
// every invocation is a pure function of (order status, event), so callers
// may share one instance across goroutines as long as they do not share the
// order. Cross-call coordination lives in the idempotency guard.
type Engine struct {
	actions map[transition]Action
	logger  *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	e := &Engine{
		actions: make(map[transition]Action),
		logger:  logger,
	}
	e.registerDefaultActions()
	return e
}

// Register installs the action for a legal edge. Registering an edge absent
// from the transition table is a programming error and panics at wiring time.
func (e *Engine) Register(from domain.OrderStatus, event domain.LifecycleEvent, action Action) {
	key := transition{From: from, Event: event}
	if _, ok := transitions[key]; !ok {
		panic("lifecycle: action registered for unknown transition " + string(from) + "/" + string(event))
	}
	e.actions[key] = action
}

// Apply validates the event against the transition table and, on a legal
// edge, runs the registered action and advances the order status. The edge
// is atomic: the status advances only if the action succeeds. An illegal
// pair leaves the order untouched and reports a not-applicable outcome.
func (e *Engine) Apply(ctx context.Context, order *domain.Order, event domain.LifecycleEvent, payload EventPayload) domain.Outcome {
	key := transition{From: order.Status, Event: event}

	target, ok := transitions[key]
	if !ok {
		e.logger.Info("event not applicable",
			"order_no", order.OrderNo,
			"status", order.Status,
			"event", event,
		)
		return domain.NotApplicable(order.Status, event)
	}

	// Run the action against a scratch copy so a failing action cannot
	// leave half-applied mutations on the caller's order.
	scratch := *order
	if action, registered := e.actions[key]; registered {
		if err := action(ctx, &scratch, payload); err != nil {
			e.logger.Error("transition action failed",
				"order_no", order.OrderNo,
				"status", order.Status,
				"event", event,
				"error", err,
			)
			return domain.ActionFailed(err)
		}
	}

	scratch.Status = target
	scratch.UpdatedAt = time.Now()
	*order = scratch

	e.logger.Info("transition applied",
		"order_no", order.OrderNo,
		"from", key.From,
		"to", target,
		"event", event,
	)
	return domain.Applied()
}
