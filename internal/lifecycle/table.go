// Package lifecycle validates and executes order status transitions.
package lifecycle

import "github.com/lumacart/order-gateway/internal/domain"

// transition is a (source status, event) edge. Using a struct key keeps
// identity structural instead of string concatenation.
type transition struct {
	From  domain.OrderStatus
	Event domain.LifecycleEvent
}

// transitions is the full set of legal edges. Any pair absent from this map
// is not applicable; Cancelled, Completed, RefundSucceeded and RefundFailed
// have no outgoing edges.
var transitions = map[transition]domain.OrderStatus{
	{domain.StatusAwaitingPayment, domain.EventPay}:    domain.StatusAwaitingFulfillment,
	{domain.StatusAwaitingPayment, domain.EventCancel}: domain.StatusCancelled,

	{domain.StatusAwaitingFulfillment, domain.EventFulfill}:     domain.StatusCompleted,
	{domain.StatusAwaitingFulfillment, domain.EventOpenDispute}: domain.StatusInDispute,

	{domain.StatusInDispute, domain.EventCloseDispute}:    domain.StatusAwaitingFulfillment,
	{domain.StatusInDispute, domain.EventRefundSucceeded}: domain.StatusRefundSucceeded,
	{domain.StatusInDispute, domain.EventRefundFailed}:    domain.StatusRefundFailed,
}

// Target returns the status a legal (status, event) pair leads to.
func Target(from domain.OrderStatus, event domain.LifecycleEvent) (domain.OrderStatus, bool) {
	to, ok := transitions[transition{From: from, Event: event}]
	return to, ok
}
