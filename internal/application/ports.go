// Package application defines the ports the services depend on and the
// error categories the REST boundary maps from.
package application

import (
	"context"
	"time"

	"github.com/lumacart/order-gateway/internal/domain"
)

// TradeState is the gateway's payment status enumeration.
type TradeState string

const (
	TradeStateSuccess    TradeState = "SUCCESS"
	TradeStateRefund     TradeState = "REFUND"
	TradeStateNotPay     TradeState = "NOTPAY"
	TradeStateClosed     TradeState = "CLOSED"
	TradeStateRevoked    TradeState = "REVOKED"
	TradeStateUserPaying TradeState = "USERPAYING"
	TradeStatePayError   TradeState = "PAYERROR"
)

// RefundStatus is the gateway's refund status enumeration.
type RefundStatus string

const (
	RefundStatusSuccess    RefundStatus = "SUCCESS"
	RefundStatusClosed     RefundStatus = "CLOSED"
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusAbnormal   RefundStatus = "ABNORMAL"
)

// OrderRepository loads and persists order state.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error)
	GetByRefundNo(ctx context.Context, refundNo string) (*domain.Order, error)
	// UpdateStatus persists the order optimistically: it fails with
	// domain.ErrConcurrentModification when the stored status no longer
	// matches expectedPrior.
	UpdateStatus(ctx context.Context, order *domain.Order, expectedPrior domain.OrderStatus) error
	// SetRefundNo records an initiated refund without touching the status.
	SetRefundNo(ctx context.Context, order *domain.Order) error
	FindStaleAwaitingPayment(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error)
}

type CreatePaymentRequest struct {
	OrderNo     string
	Description string
	AmountCents int64
	PayerID     string
}

// PrepayHandle is what the storefront needs to invoke the gateway's payment
// sheet: the prepay id plus the client-side signature block.
type PrepayHandle struct {
	PrepayID  string
	AppID     string
	TimeStamp string
	NonceStr  string
	Package   string
	SignType  string
	PaySign   string
}

// OrderQueryResponse is the gateway's authoritative view of a payment.
type OrderQueryResponse struct {
	TradeState    TradeState
	TransactionID string
}

type CreateRefundRequest struct {
	OrderNo     string
	RefundNo    string
	AmountCents int64
}

type RefundQueryResponse struct {
	Status           RefundStatus
	Channel          string
	ExternalRefundID string
}

// GatewayClient issues payment and refund calls to the payment gateway.
type GatewayClient interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PrepayHandle, error)
	QueryByOrderNo(ctx context.Context, orderNo string) (*OrderQueryResponse, error)
	CloseOrder(ctx context.Context, orderNo string) error
	CreateRefund(ctx context.Context, req CreateRefundRequest) (RefundStatus, error)
	QueryRefund(ctx context.Context, refundNo string) (*RefundQueryResponse, error)
}

// CryptoProvider verifies and decrypts inbound gateway notifications.
type CryptoProvider interface {
	// VerifySignature checks the gateway signature over the verbatim body
	// using the verification key identified by serial.
	VerifySignature(timestamp, nonce string, body []byte, serial, signature string) error
	// DecryptResource opens the AEAD resource block with the merchant's
	// shared key and the envelope's nonce and associated data.
	DecryptResource(ciphertext, nonce, associatedData []byte) ([]byte, error)
}
