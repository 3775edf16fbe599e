package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/domain"
	"github.com/lumacart/order-gateway/internal/idempotency"
	"github.com/lumacart/order-gateway/internal/lifecycle"
	"github.com/lumacart/order-gateway/internal/metrics"
)

// OrderService handles direct lifecycle events (cancel, fulfill, dispute
// handling) and the outbound gateway operations: payment creation, order
// close, refund initiation and queries.
type OrderService struct {
	orders  application.OrderRepository
	gateway application.GatewayClient
	engine  *lifecycle.Engine
	locks   *idempotency.OrderLocks
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewOrderService(
	orders application.OrderRepository,
	gateway application.GatewayClient,
	engine *lifecycle.Engine,
	locks *idempotency.OrderLocks,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:  orders,
		gateway: gateway,
		engine:  engine,
		locks:   locks,
		metrics: m,
		logger:  logger,
	}
}

type PlaceOrderCommand struct {
	OrderNo     string
	ProductName string
	AmountCents int64
}

// PlaceOrder records a new order in AwaitingPayment. Order placement proper
// lives upstream; this entry point exists so the lifecycle has something to
// operate on.
func (s *OrderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error) {
	order, err := domain.NewOrder(cmd.OrderNo, cmd.ProductName, cmd.AmountCents)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, application.NewInternalError(err)
	}
	return order, nil
}

// CreatePayment asks the gateway for a prepay handle for an unpaid order.
func (s *OrderService) CreatePayment(ctx context.Context, orderNo, payerID string) (*application.PrepayHandle, error) {
	order, err := s.getOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.StatusAwaitingPayment {
		return nil, application.NewInvalidStateError(fmt.Errorf("order %s is %s, payment requires %s",
			orderNo, order.Status, domain.StatusAwaitingPayment))
	}

	handle, err := s.gateway.CreatePayment(ctx, application.CreatePaymentRequest{
		OrderNo:     order.OrderNo,
		Description: "商品：" + order.ProductName,
		AmountCents: order.AmountCents,
		PayerID:     payerID,
	})
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return handle, nil
}

// Cancel applies the Cancel event and closes the gateway-side order so a
// late payment attempt is refused upstream.
func (s *OrderService) Cancel(ctx context.Context, orderNo string) (*domain.Order, error) {
	order, err := s.applyDirect(ctx, orderNo, domain.EventCancel, lifecycle.EventPayload{})
	if err != nil {
		return nil, err
	}

	if err := s.gateway.CloseOrder(ctx, orderNo); err != nil {
		// Local state is already CANCELLED; the reconciler will observe the
		// still-open gateway order on its next pass.
		s.logger.Warn("failed to close gateway order after cancel",
			"order_no", orderNo,
			"error", err,
		)
	}
	return order, nil
}

func (s *OrderService) Fulfill(ctx context.Context, orderNo string) (*domain.Order, error) {
	return s.applyDirect(ctx, orderNo, domain.EventFulfill, lifecycle.EventPayload{})
}

func (s *OrderService) OpenDispute(ctx context.Context, orderNo string) (*domain.Order, error) {
	return s.applyDirect(ctx, orderNo, domain.EventOpenDispute, lifecycle.EventPayload{})
}

func (s *OrderService) CloseDispute(ctx context.Context, orderNo string) (*domain.Order, error) {
	return s.applyDirect(ctx, orderNo, domain.EventCloseDispute, lifecycle.EventPayload{})
}

// ConfirmPayment applies the Pay event outside the webhook path, e.g. from
// the reconciler after a positive gateway query.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderNo, transactionID string) (*domain.Order, error) {
	return s.applyDirect(ctx, orderNo, domain.EventPay, lifecycle.EventPayload{
		TransactionID: transactionID,
	})
}

// InitiateRefund allocates a refund number and submits the refund to the
// gateway. The order stays InDispute until a refund confirmation arrives.
func (s *OrderService) InitiateRefund(ctx context.Context, orderNo string) (*domain.Order, application.RefundStatus, error) {
	unlock := s.locks.Lock(orderNo)
	defer unlock()

	order, err := s.getOrder(ctx, orderNo)
	if err != nil {
		return nil, "", err
	}
	if order.Status != domain.StatusInDispute {
		return nil, "", application.NewInvalidStateError(fmt.Errorf("order %s is %s, refund requires %s",
			orderNo, order.Status, domain.StatusInDispute))
	}
	if order.RefundNo != nil {
		return nil, "", application.NewInvalidStateError(domain.NewRefundAlreadyStartedError(orderNo))
	}

	refundNo := "R" + uuid.New().String()
	order.RefundNo = &refundNo
	if err := s.orders.SetRefundNo(ctx, order); err != nil {
		return nil, "", application.NewInternalError(err)
	}

	status, err := s.gateway.CreateRefund(ctx, application.CreateRefundRequest{
		OrderNo:     order.OrderNo,
		RefundNo:    refundNo,
		AmountCents: order.AmountCents,
	})
	if err != nil {
		return nil, "", application.NewInternalError(err)
	}

	s.logger.Info("refund initiated",
		"order_no", orderNo,
		"refund_no", refundNo,
		"status", status,
	)
	return order, status, nil
}

func (s *OrderService) QueryPayment(ctx context.Context, orderNo string) (*application.OrderQueryResponse, error) {
	if _, err := s.getOrder(ctx, orderNo); err != nil {
		return nil, err
	}

	resp, err := s.gateway.QueryByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return resp, nil
}

func (s *OrderService) QueryRefund(ctx context.Context, refundNo string) (*application.RefundQueryResponse, error) {
	if _, err := s.orders.GetByRefundNo(ctx, refundNo); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}

	resp, err := s.gateway.QueryRefund(ctx, refundNo)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return resp, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderNo string) (*domain.Order, error) {
	return s.getOrder(ctx, orderNo)
}

// applyDirect serializes against other units touching the same order, runs
// the engine, and persists optimistically. Unlike webhook deliveries there
// is no notification identity, so no completed-key record is kept: retrying
// a direct event is naturally idempotent because the second attempt is not
// applicable from the new status.
func (s *OrderService) applyDirect(ctx context.Context, orderNo string, event domain.LifecycleEvent, payload lifecycle.EventPayload) (*domain.Order, error) {
	unlock := s.locks.Lock(orderNo)
	defer unlock()

	order, err := s.getOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}

	prior := order.Status
	outcome := s.engine.Apply(ctx, order, event, payload)
	s.metrics.ObserveTransition(event, outcome.Code)

	switch outcome.Code {
	case domain.OutcomeNotApplicable:
		return nil, application.NewInvalidStateError(errors.New(outcome.Detail))
	case domain.OutcomeActionFailed:
		return nil, application.NewTransitionFailedError(errors.New(outcome.Detail))
	}

	if err := s.orders.UpdateStatus(ctx, order, prior); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return nil, application.NewContentionError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return order, nil
}

func (s *OrderService) getOrder(ctx context.Context, orderNo string) (*domain.Order, error) {
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return order, nil
}
