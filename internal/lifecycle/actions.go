package lifecycle

import (
	"context"
	"errors"

	"github.com/lumacart/order-gateway/internal/domain"
)

// registerDefaultActions wires the bookkeeping each edge requires. Actions
// record gateway identifiers on the order; persistence happens afterwards in
// the caller, so re-running an action after a transient failure is harmless.
func (e *Engine) registerDefaultActions() {
	e.Register(domain.StatusAwaitingPayment, domain.EventPay, payAction)
	e.Register(domain.StatusAwaitingPayment, domain.EventCancel, noopAction)
	e.Register(domain.StatusAwaitingFulfillment, domain.EventFulfill, noopAction)
	e.Register(domain.StatusAwaitingFulfillment, domain.EventOpenDispute, noopAction)
	e.Register(domain.StatusInDispute, domain.EventCloseDispute, noopAction)
	e.Register(domain.StatusInDispute, domain.EventRefundSucceeded, refundSucceededAction)
	e.Register(domain.StatusInDispute, domain.EventRefundFailed, refundFailedAction)
}

// payAction records the gateway transaction that confirmed payment.
func payAction(ctx context.Context, order *domain.Order, payload EventPayload) error {
	if payload.TransactionID == "" {
		return errors.New("payment confirmation is missing a transaction id")
	}
	order.TransactionID = &payload.TransactionID
	return nil
}

// refundSucceededAction records the gateway refund identifier. A refund
// confirmation for an order that never initiated a refund is a protocol
// violation and fails the edge.
func refundSucceededAction(ctx context.Context, order *domain.Order, payload EventPayload) error {
	if order.RefundNo == nil {
		return errors.New("refund confirmation for order without an initiated refund")
	}
	if payload.RefundID == "" {
		return errors.New("refund confirmation is missing a refund id")
	}
	order.RefundID = &payload.RefundID
	return nil
}

func refundFailedAction(ctx context.Context, order *domain.Order, payload EventPayload) error {
	if order.RefundNo == nil {
		return errors.New("refund confirmation for order without an initiated refund")
	}
	if payload.RefundID != "" {
		order.RefundID = &payload.RefundID
	}
	return nil
}

// noopAction is used for edges whose only effect is the status change.
func noopAction(ctx context.Context, order *domain.Order, payload EventPayload) error {
	return nil
}
