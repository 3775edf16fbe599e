package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/application/services"
	"github.com/lumacart/order-gateway/internal/domain"
	"github.com/lumacart/order-gateway/internal/idempotency"
	"github.com/lumacart/order-gateway/internal/interfaces/rest/handlers"
	"github.com/lumacart/order-gateway/internal/lifecycle"
	"github.com/lumacart/order-gateway/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func (r *memoryRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.OrderNo]; exists {
		return errors.New("order already exists")
	}
	clone := *order
	r.orders[order.OrderNo] = &clone
	return nil
}

func (r *memoryRepo) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[orderNo]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	clone := *stored
	return &clone, nil
}

func (r *memoryRepo) GetByRefundNo(ctx context.Context, refundNo string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.orders {
		if stored.RefundNo != nil && *stored.RefundNo == refundNo {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, order *domain.Order, expectedPrior domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.OrderNo]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if stored.Status != expectedPrior {
		return domain.ErrConcurrentModification
	}
	clone := *order
	if clone.RefundNo == nil {
		clone.RefundNo = stored.RefundNo
	}
	if clone.TransactionID == nil {
		clone.TransactionID = stored.TransactionID
	}
	if clone.RefundID == nil {
		clone.RefundID = stored.RefundID
	}
	r.orders[order.OrderNo] = &clone
	return nil
}

func (r *memoryRepo) SetRefundNo(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.OrderNo]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if stored.RefundNo != nil {
		return domain.ErrConcurrentModification
	}
	stored.RefundNo = order.RefundNo
	return nil
}

func (r *memoryRepo) FindStaleAwaitingPayment(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	return nil, nil
}

type stubGateway struct {
	application.GatewayClient
}

func (g *stubGateway) CreatePayment(ctx context.Context, req application.CreatePaymentRequest) (*application.PrepayHandle, error) {
	return &application.PrepayHandle{PrepayID: "wx-prepay-1", SignType: "RSA"}, nil
}

func (g *stubGateway) CloseOrder(ctx context.Context, orderNo string) error {
	return nil
}

type stubCrypto struct {
	plaintext []byte
}

func (c *stubCrypto) VerifySignature(timestamp, nonce string, body []byte, serial, signature string) error {
	if signature != "valid-signature" {
		return errors.New("signature mismatch")
	}
	return nil
}

func (c *stubCrypto) DecryptResource(ciphertext, nonce, associatedData []byte) ([]byte, error) {
	return c.plaintext, nil
}

func newTestMux(t *testing.T, repo *memoryRepo, crypto *stubCrypto) *http.ServeMux {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	engine := lifecycle.NewEngine(logger)
	locks := idempotency.NewOrderLocks()
	m := metrics.New(prometheus.NewRegistry())

	orderService := services.NewOrderService(repo, &stubGateway{}, engine, locks, m, logger)
	webhookService := services.NewWebhookService(
		repo, crypto, engine,
		idempotency.NewGuard(idempotency.NewMemoryStore()),
		locks, m, 5*time.Minute, logger,
	)

	mux := http.NewServeMux()
	handlers.NewHandlers(orderService, webhookService, logger).RegisterRoutes(mux)
	return mux
}

func seedOrder(t *testing.T, repo *memoryRepo, status domain.OrderStatus) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("ORD-"+strconv.Itoa(len(repo.orders)+1), "会员季卡", 9900)
	require.NoError(t, err)
	order.Status = status
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestHandlePlaceOrder(t *testing.T) {
	repo := &memoryRepo{orders: make(map[string]*domain.Order)}
	mux := newTestMux(t, repo, &stubCrypto{})

	body, _ := json.Marshal(handlers.PlaceOrderRequest{
		OrderNo:     "ORD-1",
		ProductName: "会员季卡",
		AmountCents: 9900,
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			OrderNo string `json:"order_no"`
			Status  string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ORD-1", resp.Data.OrderNo)
	assert.Equal(t, string(domain.StatusAwaitingPayment), resp.Data.Status)
}

func TestHandlePlaceOrder_RejectsInvalidBody(t *testing.T) {
	repo := &memoryRepo{orders: make(map[string]*domain.Order)}
	mux := newTestMux(t, repo, &stubCrypto{})

	body := []byte(`{"order_no":"ORD-1","product_name":"会员季卡","amount_cents":0}`)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetOrder_NotFound(t *testing.T) {
	repo := &memoryRepo{orders: make(map[string]*domain.Order)}
	mux := newTestMux(t, repo, &stubCrypto{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancel_Conflict(t *testing.T) {
	repo := &memoryRepo{orders: make(map[string]*domain.Order)}
	mux := newTestMux(t, repo, &stubCrypto{})
	order := seedOrder(t, repo, domain.StatusCompleted)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/"+order.OrderNo+"/cancel", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func notifyRequest(t *testing.T, signature string) *http.Request {
	t.Helper()

	body, err := json.Marshal(domain.NotificationEnvelope{
		ID:           "evt-1",
		ResourceType: "encrypt-resource",
		Resource: domain.EncryptedResource{
			Algorithm:      "AEAD_AES_256_GCM",
			Ciphertext:     base64.StdEncoding.EncodeToString([]byte("blob")),
			Nonce:          "0123456789ab",
			AssociatedData: "transaction",
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/notify/payment", bytes.NewReader(body))
	req.Header.Set("Wechatpay-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("Wechatpay-Nonce", "nonce-1")
	req.Header.Set("Wechatpay-Signature", signature)
	req.Header.Set("Wechatpay-Serial", "TESTSERIAL")
	return req
}

func TestHandlePaymentNotify_AcksSuccess(t *testing.T) {
	repo := &memoryRepo{orders: make(map[string]*domain.Order)}
	order := seedOrder(t, repo, domain.StatusAwaitingPayment)

	plaintext, err := json.Marshal(domain.PaymentConfirmation{
		OrderNo:       order.OrderNo,
		TransactionID: "wx-txn-1",
		TradeState:    "SUCCESS",
	})
	require.NoError(t, err)
	mux := newTestMux(t, repo, &stubCrypto{plaintext: plaintext})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, notifyRequest(t, "valid-signature"))

	assert.Equal(t, http.StatusOK, rec.Code)

	var ack struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "SUCCESS", ack.Code)
	assert.Equal(t, "成功", ack.Message)

	stored, err := repo.GetByOrderNo(context.Background(), order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingFulfillment, stored.Status)
}

func TestHandlePaymentNotify_AcksFailureOnBadSignature(t *testing.T) {
	repo := &memoryRepo{orders: make(map[string]*domain.Order)}
	order := seedOrder(t, repo, domain.StatusAwaitingPayment)
	mux := newTestMux(t, repo, &stubCrypto{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, notifyRequest(t, "forged"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var ack struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "FAIL", ack.Code)
	assert.Equal(t, "失败", ack.Message)

	stored, err := repo.GetByOrderNo(context.Background(), order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingPayment, stored.Status)
}
