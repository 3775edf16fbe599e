package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/domain"
	"github.com/lumacart/order-gateway/internal/idempotency"
	"github.com/lumacart/order-gateway/internal/lifecycle"
	"github.com/lumacart/order-gateway/internal/metrics"
)

// WebhookService runs the notification ingestion pipeline: authenticate,
// decrypt, map to a lifecycle event, and drive the engine through the
// idempotency guard.
type WebhookService struct {
	orders  application.OrderRepository
	crypto  application.CryptoProvider
	engine  *lifecycle.Engine
	guard   *idempotency.Guard
	locks   *idempotency.OrderLocks
	metrics *metrics.Metrics
	skew    time.Duration
	logger  *slog.Logger
}

func NewWebhookService(
	orders application.OrderRepository,
	crypto application.CryptoProvider,
	engine *lifecycle.Engine,
	guard *idempotency.Guard,
	locks *idempotency.OrderLocks,
	m *metrics.Metrics,
	skew time.Duration,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		orders:  orders,
		crypto:  crypto,
		engine:  engine,
		guard:   guard,
		locks:   locks,
		metrics: m,
		skew:    skew,
		logger:  logger,
	}
}

// HandlePaymentNotification processes one payment confirmation delivery.
// A nil return means the delivery was consumed and must be acknowledged as
// accepted, even when the mapped event was not applicable.
func (s *WebhookService) HandlePaymentNotification(ctx context.Context, rawBody []byte, sig domain.SignatureHeaders) error {
	envelope, err := s.authenticate(ctx, rawBody, sig)
	if err != nil {
		s.metrics.ObserveWebhook("payment", "rejected")
		return err
	}

	plaintext, err := s.decrypt(envelope, domain.ConfirmationPayment)
	if err != nil {
		s.metrics.ObserveWebhook("payment", "rejected")
		return err
	}

	var confirmation domain.PaymentConfirmation
	if err := json.Unmarshal(plaintext, &confirmation); err != nil {
		s.metrics.ObserveWebhook("payment", "rejected")
		return application.NewDecryptionError(fmt.Errorf("decode payment confirmation: %w", err))
	}
	if confirmation.OrderNo == "" {
		s.metrics.ObserveWebhook("payment", "rejected")
		return application.NewDecryptionError(errors.New("payment confirmation has no order number"))
	}

	event, ok := mapTradeState(application.TradeState(confirmation.TradeState))
	if !ok {
		// States like USERPAYING carry no effect; the delivery is still
		// logically consumed.
		s.logger.Info("payment notification without state effect",
			"order_no", confirmation.OrderNo,
			"trade_state", confirmation.TradeState,
		)
		s.metrics.ObserveWebhook("payment", "no_effect")
		return nil
	}

	payload := lifecycle.EventPayload{
		TransactionID: confirmation.TransactionID,
		ReportedState: confirmation.TradeState,
	}

	result, err := s.applyGuarded(ctx, s.notificationKey(envelope, confirmation.OrderNo, event), confirmation.OrderNo, event, payload)
	if err != nil {
		s.metrics.ObserveWebhook("payment", "failed")
		return err
	}

	s.metrics.ObserveWebhook("payment", "accepted")
	s.metrics.ObserveTransition(event, result.Outcome.Code)
	return nil
}

// HandleRefundNotification processes one refund confirmation delivery.
func (s *WebhookService) HandleRefundNotification(ctx context.Context, rawBody []byte, sig domain.SignatureHeaders) error {
	envelope, err := s.authenticate(ctx, rawBody, sig)
	if err != nil {
		s.metrics.ObserveWebhook("refund", "rejected")
		return err
	}

	plaintext, err := s.decrypt(envelope, domain.ConfirmationRefund)
	if err != nil {
		s.metrics.ObserveWebhook("refund", "rejected")
		return err
	}

	var confirmation domain.RefundConfirmation
	if err := json.Unmarshal(plaintext, &confirmation); err != nil {
		s.metrics.ObserveWebhook("refund", "rejected")
		return application.NewDecryptionError(fmt.Errorf("decode refund confirmation: %w", err))
	}
	if confirmation.OrderNo == "" {
		s.metrics.ObserveWebhook("refund", "rejected")
		return application.NewDecryptionError(errors.New("refund confirmation has no order number"))
	}

	event, ok := mapRefundStatus(application.RefundStatus(confirmation.RefundStatus))
	if !ok {
		s.logger.Info("refund notification without state effect",
			"order_no", confirmation.OrderNo,
			"refund_status", confirmation.RefundStatus,
		)
		s.metrics.ObserveWebhook("refund", "no_effect")
		return nil
	}

	payload := lifecycle.EventPayload{
		RefundID:      confirmation.RefundID,
		ReportedState: confirmation.RefundStatus,
	}

	result, err := s.applyGuarded(ctx, s.notificationKey(envelope, confirmation.OrderNo, event), confirmation.OrderNo, event, payload)
	if err != nil {
		s.metrics.ObserveWebhook("refund", "failed")
		return err
	}

	s.metrics.ObserveWebhook("refund", "accepted")
	s.metrics.ObserveTransition(event, result.Outcome.Code)
	return nil
}

// authenticate checks the timestamp window and the signature over the
// verbatim body, then decodes the envelope. Anything failing here is
// rejected before decryption is attempted.
func (s *WebhookService) authenticate(ctx context.Context, rawBody []byte, sig domain.SignatureHeaders) (*domain.NotificationEnvelope, error) {
	ts, err := strconv.ParseInt(sig.Timestamp, 10, 64)
	if err != nil {
		return nil, application.NewAuthenticationError(fmt.Errorf("parse timestamp %q: %w", sig.Timestamp, err))
	}
	if drift := time.Since(time.Unix(ts, 0)); drift > s.skew || drift < -s.skew {
		return nil, application.NewAuthenticationError(fmt.Errorf("timestamp outside allowed window: %s", drift))
	}

	if err := s.crypto.VerifySignature(sig.Timestamp, sig.Nonce, rawBody, sig.Serial, sig.Signature); err != nil {
		return nil, application.NewAuthenticationError(err)
	}

	var envelope domain.NotificationEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, application.NewMalformedNotificationError(err)
	}
	envelope.RawBody = rawBody
	return &envelope, nil
}

// decrypt opens the resource block with the associated data the endpoint's
// kind dictates. The envelope's self-declared template must agree: a refund
// resource delivered to the payment endpoint is a decryption failure, not a
// confirmation to interpret.
func (s *WebhookService) decrypt(envelope *domain.NotificationEnvelope, kind domain.ConfirmationKind) ([]byte, error) {
	if aad := envelope.Resource.AssociatedData; aad != kind.AssociatedData() {
		return nil, application.NewDecryptionError(fmt.Errorf(
			"associated data %q does not match expected %q", aad, kind.AssociatedData()))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Resource.Ciphertext)
	if err != nil {
		return nil, application.NewDecryptionError(fmt.Errorf("decode ciphertext: %w", err))
	}

	plaintext, err := s.crypto.DecryptResource(
		ciphertext,
		[]byte(envelope.Resource.Nonce),
		[]byte(kind.AssociatedData()),
	)
	if err != nil {
		return nil, application.NewDecryptionError(err)
	}
	return plaintext, nil
}

// notificationKey prefers the gateway's notification identity; a missing id
// falls back to a structured (order, event) key.
func (s *WebhookService) notificationKey(envelope *domain.NotificationEnvelope, orderNo string, event domain.LifecycleEvent) string {
	if envelope.ID != "" {
		return "notify/" + envelope.ID
	}
	return "order/" + orderNo + "/" + string(event)
}

// applyGuarded runs load → engine → optimistic persist exactly once per key.
// The per-order lock keeps deliveries with different keys from interleaving
// on the same order.
func (s *WebhookService) applyGuarded(ctx context.Context, key, orderNo string, event domain.LifecycleEvent, payload lifecycle.EventPayload) (idempotency.Result, error) {
	return s.guard.Do(ctx, key, func(ctx context.Context) (idempotency.Result, error) {
		unlock := s.locks.Lock(orderNo)
		defer unlock()

		order, err := s.orders.GetByOrderNo(ctx, orderNo)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				return idempotency.Result{}, application.NewNotFoundError(err)
			}
			return idempotency.Result{}, application.NewInternalError(err)
		}

		prior := order.Status
		outcome := s.engine.Apply(ctx, order, event, payload)

		if outcome.Code == domain.OutcomeActionFailed {
			// Leave the key open: the gateway's redelivery retries the
			// attempt once the underlying fault clears.
			return idempotency.Result{}, application.NewTransitionFailedError(errors.New(outcome.Detail))
		}

		if outcome.Success {
			if err := s.orders.UpdateStatus(ctx, order, prior); err != nil {
				if errors.Is(err, domain.ErrConcurrentModification) {
					return idempotency.Result{}, application.NewContentionError(err)
				}
				return idempotency.Result{}, application.NewInternalError(err)
			}
		}

		return idempotency.Result{Status: order.Status, Outcome: outcome}, nil
	})
}

// mapTradeState maps a gateway-reported payment state to the lifecycle
// event it implies, if any.
func mapTradeState(state application.TradeState) (domain.LifecycleEvent, bool) {
	switch state {
	case application.TradeStateSuccess:
		return domain.EventPay, true
	case application.TradeStateClosed, application.TradeStateRevoked, application.TradeStatePayError:
		return domain.EventCancel, true
	default:
		// NOTPAY, USERPAYING and REFUND carry no lifecycle effect here;
		// refund progress arrives through refund notifications.
		return "", false
	}
}

func mapRefundStatus(status application.RefundStatus) (domain.LifecycleEvent, bool) {
	switch status {
	case application.RefundStatusSuccess:
		return domain.EventRefundSucceeded, true
	case application.RefundStatusClosed, application.RefundStatusAbnormal:
		return domain.EventRefundFailed, true
	default:
		// PROCESSING means the gateway will notify again.
		return "", false
	}
}
