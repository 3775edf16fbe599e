package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidTransition      = "INVALID_TRANSITION"
	ErrCodeOrderNotFound          = "ORDER_NOT_FOUND"
	ErrCodeInvalidAmount          = "INVALID_AMOUNT"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodeRefundAlreadyStarted   = "REFUND_ALREADY_STARTED"
)

var (
	ErrOrderNotFound = &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: "order not found",
	}

	// ErrConcurrentModification signals that an optimistic update found a
	// status other than the one the transition started from.
	ErrConcurrentModification = &DomainError{
		Code:    ErrCodeConcurrentModification,
		Message: "order was modified concurrently",
	}
)

func NewInvalidAmountError(amountCents int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amountCents),
	}
}

func NewRefundAlreadyStartedError(orderNo string) *DomainError {
	return &DomainError{
		Code:    ErrCodeRefundAlreadyStarted,
		Message: fmt.Sprintf("refund already initiated for order %s", orderNo),
	}
}

func IsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	ok := errors.As(err, &de)
	return de, ok
}
