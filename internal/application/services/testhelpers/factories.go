package testhelpers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/domain"
	"github.com/stretchr/testify/require"
)

// NewOrderNo returns a unique order number for a test case.
func NewOrderNo() string {
	return "ORD-" + uuid.New().String()
}

// CreateOrder inserts a fresh order in AWAITING_PAYMENT.
func CreateOrder(t *testing.T, ctx context.Context, repo application.OrderRepository) *domain.Order {
	t.Helper()

	order, err := domain.NewOrder(NewOrderNo(), "会员季卡", 9900)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, order))
	return order
}

// CreateOrderWithStatus inserts an order and advances its stored status.
func CreateOrderWithStatus(t *testing.T, ctx context.Context, repo application.OrderRepository, status domain.OrderStatus) *domain.Order {
	t.Helper()

	order := CreateOrder(t, ctx, repo)
	if status == domain.StatusAwaitingPayment {
		return order
	}

	prior := order.Status
	order.Status = status
	if status != domain.StatusAwaitingPayment && status != domain.StatusCancelled {
		txn := "wx-txn-" + uuid.New().String()
		order.TransactionID = &txn
	}
	require.NoError(t, repo.UpdateStatus(ctx, order, prior))
	return order
}
