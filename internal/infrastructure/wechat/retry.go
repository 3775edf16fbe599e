package wechat

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/config"
)

// RetryClient decorates a GatewayClient with exponential backoff and jitter.
type RetryClient struct {
	inner      application.GatewayClient
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryClient(inner application.GatewayClient, cfg config.RetryConfig) application.GatewayClient {
	return &RetryClient{
		inner:      inner,
		baseDelay:  time.Duration(cfg.BaseDelay) * time.Second,
		maxRetries: int(cfg.MaxRetries),
	}
}

func (r *RetryClient) CreatePayment(ctx context.Context, req application.CreatePaymentRequest) (*application.PrepayHandle, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.PrepayHandle, error) {
			return r.inner.CreatePayment(ctx, req)
		},
	)
}

func (r *RetryClient) QueryByOrderNo(ctx context.Context, orderNo string) (*application.OrderQueryResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.OrderQueryResponse, error) {
			return r.inner.QueryByOrderNo(ctx, orderNo)
		},
	)
}

func (r *RetryClient) CloseOrder(ctx context.Context, orderNo string) error {
	_, err := retry(
		r,
		ctx,
		func(ctx context.Context) (*struct{}, error) {
			return &struct{}{}, r.inner.CloseOrder(ctx, orderNo)
		},
	)
	return err
}

func (r *RetryClient) CreateRefund(ctx context.Context, req application.CreateRefundRequest) (application.RefundStatus, error) {
	status, err := retry(
		r,
		ctx,
		func(ctx context.Context) (*application.RefundStatus, error) {
			s, err := r.inner.CreateRefund(ctx, req)
			if err != nil {
				return nil, err
			}
			return &s, nil
		},
	)
	if err != nil {
		return "", err
	}
	return *status, nil
}

func (r *RetryClient) QueryRefund(ctx context.Context, refundNo string) (*application.RefundQueryResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.RefundQueryResponse, error) {
			return r.inner.QueryRefund(ctx, refundNo)
		},
	)
}

// Generic retry helper
func retry[T any](r *RetryClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			time.Sleep(r.backoff(attempt))
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

// Helper: to check retryable errors
func isRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.IsRetryable()
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return true
}

// Backoff calculation with exponential delay and jitter
func (r *RetryClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond

	return base + jitter
}
