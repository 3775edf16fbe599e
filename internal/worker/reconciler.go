// Package worker runs the background reconciler that settles orders whose
// notifications never arrived.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/domain"
)

// OrderSettler is the slice of the order service the reconciler drives.
type OrderSettler interface {
	ConfirmPayment(ctx context.Context, orderNo, transactionID string) (*domain.Order, error)
	Cancel(ctx context.Context, orderNo string) (*domain.Order, error)
}

// Reconciler periodically sweeps orders stuck in AWAITING_PAYMENT and asks
// the gateway for their authoritative state. A paid order is confirmed, a
// dead one cancelled; everything else waits for the next pass.
type Reconciler struct {
	repo       application.OrderRepository
	gateway    application.GatewayClient
	settler    OrderSettler
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	logger     *slog.Logger
}

func NewReconciler(
	repo application.OrderRepository,
	gateway application.GatewayClient,
	settler OrderSettler,
	interval time.Duration,
	staleAfter time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		repo:       repo,
		gateway:    gateway,
		settler:    settler,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		logger:     logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting background reconciler",
		"interval", r.interval,
		"stale_after", r.staleAfter,
		"batch_size", r.batchSize,
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping background reconciler")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) {
	cutoff := time.Now().Add(-r.staleAfter)
	stale, err := r.repo.FindStaleAwaitingPayment(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch stale orders", "error", err)
		return
	}

	if len(stale) == 0 {
		return
	}

	r.logger.Info("reconciling stale orders", "count", len(stale))

	for _, order := range stale {
		r.reconcileOrder(ctx, order)
	}
}

func (r *Reconciler) reconcileOrder(ctx context.Context, order *domain.Order) {
	resp, err := r.gateway.QueryByOrderNo(ctx, order.OrderNo)
	if err != nil {
		r.logger.Error("failed to query gateway state",
			"order_no", order.OrderNo,
			"error", err,
		)
		return
	}

	switch resp.TradeState {
	case application.TradeStateSuccess:
		// Payment went through but the notification never landed.
		if _, err := r.settler.ConfirmPayment(ctx, order.OrderNo, resp.TransactionID); err != nil {
			r.logAlreadySettled(order.OrderNo, resp.TradeState, err)
			return
		}
		r.logger.Info("reconciled paid order", "order_no", order.OrderNo)

	case application.TradeStateClosed, application.TradeStateRevoked, application.TradeStatePayError, application.TradeStateNotPay:
		// NOTPAY past the stale window means the payment deadline passed.
		if _, err := r.settler.Cancel(ctx, order.OrderNo); err != nil {
			r.logAlreadySettled(order.OrderNo, resp.TradeState, err)
			return
		}
		r.logger.Info("reconciled dead order", "order_no", order.OrderNo, "trade_state", resp.TradeState)

	default:
		// USERPAYING: the payer may still complete; check again next pass.
	}
}

// logAlreadySettled downgrades expected races to info: a webhook may land
// between the stale query and the settle attempt.
func (r *Reconciler) logAlreadySettled(orderNo string, state application.TradeState, err error) {
	if svcErr, ok := application.IsServiceError(err); ok {
		switch svcErr.Code {
		case application.ErrCodeInvalidState, application.ErrCodeContention:
			r.logger.Info("order settled before reconciliation",
				"order_no", orderNo,
				"trade_state", state,
			)
			return
		}
	}
	r.logger.Error("failed to settle order",
		"order_no", orderNo,
		"trade_state", state,
		"error", err,
	)
}
