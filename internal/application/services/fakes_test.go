package services_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/domain"
)

// fakeOrderRepository is an in-memory OrderRepository with the same
// optimistic-update semantics as the postgres implementation.
type fakeOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newFakeOrderRepository() *fakeOrderRepository {
	return &fakeOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *fakeOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.OrderNo]; exists {
		return errors.New("order already exists")
	}
	clone := *order
	r.orders[order.OrderNo] = &clone
	return nil
}

func (r *fakeOrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[orderNo]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeOrderRepository) GetByRefundNo(ctx context.Context, refundNo string) (*domain.Order, error) {
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

func (r *fakeOrderRepository) UpdateStatus(ctx context.Context, order *domain.Order, expectedPrior domain.OrderStatus) error {
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
	// Write-once identifiers survive a stale snapshot, as in the postgres
	// implementation's COALESCE.
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

func (r *fakeOrderRepository) SetRefundNo(ctx context.Context, order *domain.Order) error {
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

func (r *fakeOrderRepository) FindStaleAwaitingPayment(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var results []*domain.Order
	for _, stored := range r.orders {
		if stored.Status == domain.StatusAwaitingPayment && stored.UpdatedAt.Before(olderThan) {
			clone := *stored
			results = append(results, &clone)
			if len(results) == limit {
				break
			}
		}
	}
	return results, nil
}

// status reads the stored status directly, bypassing the repository API.
func (r *fakeOrderRepository) status(orderNo string) domain.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[orderNo].Status
}

// fakeCrypto accepts a single well-known signature and resolves ciphertexts
// from a registered table.
type fakeCrypto struct {
	verifyErr  error
	plaintexts map[string][]byte
}

func newFakeCrypto() *fakeCrypto {
	return &fakeCrypto{plaintexts: make(map[string][]byte)}
}

func (c *fakeCrypto) VerifySignature(timestamp, nonce string, body []byte, serial, signature string) error {
	if signature != "valid-signature" {
		return errors.New("signature mismatch")
	}
	return c.verifyErr
}

func (c *fakeCrypto) DecryptResource(ciphertext, nonce, associatedData []byte) ([]byte, error) {
	plaintext, ok := c.plaintexts[string(ciphertext)]
	if !ok {
		return nil, errors.New("message authentication failed")
	}
	return plaintext, nil
}

func (c *fakeCrypto) register(blob string, plaintext []byte) {
	c.plaintexts[blob] = plaintext
}

// scriptedGateway returns canned answers and records the calls it saw.
type scriptedGateway struct {
	mu sync.Mutex

	handle    *application.PrepayHandle
	handleErr error

	queryResp *application.OrderQueryResponse
	queryErr  error

	closeErr    error
	closedOrder []string

	refundStatus application.RefundStatus
	refundErr    error
	refundReqs   []application.CreateRefundRequest

	refundQueryResp *application.RefundQueryResponse
	refundQueryErr  error
}

func (g *scriptedGateway) CreatePayment(ctx context.Context, req application.CreatePaymentRequest) (*application.PrepayHandle, error) {
	if g.handleErr != nil {
		return nil, g.handleErr
	}
	return g.handle, nil
}

func (g *scriptedGateway) QueryByOrderNo(ctx context.Context, orderNo string) (*application.OrderQueryResponse, error) {
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	return g.queryResp, nil
}

func (g *scriptedGateway) CloseOrder(ctx context.Context, orderNo string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closeErr != nil {
		return g.closeErr
	}
	g.closedOrder = append(g.closedOrder, orderNo)
	return nil
}

func (g *scriptedGateway) CreateRefund(ctx context.Context, req application.CreateRefundRequest) (application.RefundStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refundReqs = append(g.refundReqs, req)
	return g.refundStatus, nil
}

func (g *scriptedGateway) QueryRefund(ctx context.Context, refundNo string) (*application.RefundQueryResponse, error) {
	if g.refundQueryErr != nil {
		return nil, g.refundQueryErr
	}
	return g.refundQueryResp, nil
}
