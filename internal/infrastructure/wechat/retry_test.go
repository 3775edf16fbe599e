package wechat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/config"
	"github.com/lumacart/order-gateway/internal/infrastructure/wechat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway counts calls and replays a scripted sequence of errors
// before succeeding.
type fakeGateway struct {
	calls    int
	failures []error
	handle   *application.PrepayHandle
	state    application.TradeState
}

func (f *fakeGateway) next() error {
	f.calls++
	if f.calls <= len(f.failures) {
		return f.failures[f.calls-1]
	}
	return nil
}

func (f *fakeGateway) CreatePayment(ctx context.Context, req application.CreatePaymentRequest) (*application.PrepayHandle, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return f.handle, nil
}

func (f *fakeGateway) QueryByOrderNo(ctx context.Context, orderNo string) (*application.OrderQueryResponse, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return &application.OrderQueryResponse{TradeState: f.state}, nil
}

func (f *fakeGateway) CloseOrder(ctx context.Context, orderNo string) error {
	return f.next()
}

func (f *fakeGateway) CreateRefund(ctx context.Context, req application.CreateRefundRequest) (application.RefundStatus, error) {
	if err := f.next(); err != nil {
		return "", err
	}
	return application.RefundStatusProcessing, nil
}

func (f *fakeGateway) QueryRefund(ctx context.Context, refundNo string) (*application.RefundQueryResponse, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return &application.RefundQueryResponse{Status: application.RefundStatusSuccess}, nil
}

func serverError() *wechat.GatewayError {
	return &wechat.GatewayError{Code: "SYSTEM_ERROR", Message: "system error", StatusCode: 500}
}

func TestRetryClient_CreatePayment_Success(t *testing.T) {
	fake := &fakeGateway{handle: &application.PrepayHandle{PrepayID: "wx-prepay-1"}}
	client := wechat.NewRetryClient(fake, config.RetryConfig{BaseDelay: 1, MaxRetries: 3})

	resp, err := client.CreatePayment(context.Background(), application.CreatePaymentRequest{OrderNo: "ORD-1"})

	require.NoError(t, err)
	assert.Equal(t, "wx-prepay-1", resp.PrepayID)
	assert.Equal(t, 1, fake.calls)
}

func TestRetryClient_RetriesOn5xx(t *testing.T) {
	fake := &fakeGateway{
		failures: []error{serverError(), serverError()},
		state:    application.TradeStateSuccess,
	}
	client := wechat.NewRetryClient(fake, config.RetryConfig{BaseDelay: 1, MaxRetries: 3})

	resp, err := client.QueryByOrderNo(context.Background(), "ORD-1")

	require.NoError(t, err)
	assert.Equal(t, application.TradeStateSuccess, resp.TradeState)
	assert.Equal(t, 3, fake.calls)
}

func TestRetryClient_DoesNotRetryOn4xx(t *testing.T) {
	orderNotExists := &wechat.GatewayError{Code: "ORDER_NOT_EXISTS", Message: "order does not exist", StatusCode: 404}
	fake := &fakeGateway{failures: []error{orderNotExists, orderNotExists, orderNotExists}}
	client := wechat.NewRetryClient(fake, config.RetryConfig{BaseDelay: 1, MaxRetries: 3})

	_, err := client.QueryByOrderNo(context.Background(), "ORD-missing")

	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)

	var gwErr *wechat.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "ORDER_NOT_EXISTS", gwErr.Code)
}

func TestRetryClient_ExhaustsRetries(t *testing.T) {
	fake := &fakeGateway{failures: []error{serverError(), serverError(), serverError()}}
	client := wechat.NewRetryClient(fake, config.RetryConfig{BaseDelay: 1, MaxRetries: 3})

	err := client.CloseOrder(context.Background(), "ORD-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum retries exceeded")
	assert.Equal(t, 3, fake.calls)
}

func TestRetryClient_RespectsContextCancellation(t *testing.T) {
	fake := &fakeGateway{
		failures: []error{serverError(), serverError(), serverError(), serverError()},
	}
	client := wechat.NewRetryClient(fake, config.RetryConfig{BaseDelay: 1, MaxRetries: 10})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.CreateRefund(ctx, application.CreateRefundRequest{OrderNo: "ORD-1", RefundNo: "R-1"})

	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}
