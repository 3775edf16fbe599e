// Package domain encodes the order entity and the closed sets that drive
// its lifecycle.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the current state of an order in its lifecycle
type OrderStatus string

const (
	StatusAwaitingPayment     OrderStatus = "AWAITING_PAYMENT"
	StatusCancelled           OrderStatus = "CANCELLED"
	StatusAwaitingFulfillment OrderStatus = "AWAITING_FULFILLMENT"
	StatusInDispute           OrderStatus = "IN_DISPUTE"
	StatusCompleted           OrderStatus = "COMPLETED"
	StatusRefundSucceeded     OrderStatus = "REFUND_SUCCEEDED"
	StatusRefundFailed        OrderStatus = "REFUND_FAILED"
)

// LifecycleEvent is a trigger that may move an order between statuses.
type LifecycleEvent string

const (
	EventPay             LifecycleEvent = "PAY"
	EventCancel          LifecycleEvent = "CANCEL"
	EventFulfill         LifecycleEvent = "FULFILL"
	EventOpenDispute     LifecycleEvent = "OPEN_DISPUTE"
	EventCloseDispute    LifecycleEvent = "CLOSE_DISPUTE"
	EventRefundSucceeded LifecycleEvent = "REFUND_SUCCEEDED"
	EventRefundFailed    LifecycleEvent = "REFUND_FAILED"
)

type Order struct {
	ID          uuid.UUID
	OrderNo     string
	ProductName string
	AmountCents int64
	Status      OrderStatus

	// RefundNo is assigned when a refund is initiated, nil before that.
	RefundNo *string

	// Identifiers reported back by the payment gateway.
	TransactionID *string
	RefundID      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewOrder(orderNo, productName string, amountCents int64) (*Order, error) {
	if orderNo == "" {
		return nil, errors.New("order number is required")
	}
	if amountCents <= 0 {
		return nil, NewInvalidAmountError(amountCents)
	}

	now := time.Now()
	return &Order{
		ID:          uuid.New(),
		OrderNo:     orderNo,
		ProductName: productName,
		AmountCents: amountCents,
		Status:      StatusAwaitingPayment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsTerminal reports whether the order has reached a status with no
// outgoing transitions.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusCancelled, StatusCompleted, StatusRefundSucceeded, StatusRefundFailed:
		return true
	default:
		return false
	}
}

// Reconstitute - Special constructor for loading from DB
func Reconstitute(
	id uuid.UUID, orderNo, productName string,
	amountCents int64,
	status OrderStatus,
	refundNo, transactionID, refundID *string,
	createdAt, updatedAt time.Time,
) *Order {
	return &Order{
		ID:            id,
		OrderNo:       orderNo,
		ProductName:   productName,
		AmountCents:   amountCents,
		Status:        status,
		RefundNo:      refundNo,
		TransactionID: transactionID,
		RefundID:      refundID,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}
