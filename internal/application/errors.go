package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeAuthentication = "AUTHENTICATION_FAILED"
	ErrCodeDecryption     = "DECRYPTION_FAILED"
	ErrCodeMalformed      = "MALFORMED_NOTIFICATION"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeInvalidState   = "INVALID_STATE"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeContention     = "CONCURRENT_MODIFICATION"
	ErrCodeTransition     = "TRANSITION_FAILED"
)

// NewTransitionFailedError wraps a transition action failure. The state was
// left unchanged; the attempt may be retried.
func NewTransitionFailedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeTransition,
		Message:    "transition action failed, state unchanged",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewAuthenticationError covers bad or missing signatures and expired
// timestamps. Fail-closed: the gateway is told to retry, no state changes.
func NewAuthenticationError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeAuthentication,
		Message:    "notification signature verification failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewDecryptionError covers malformed ciphertext and wrong discriminators.
func NewDecryptionError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeDecryption,
		Message:    "notification resource decryption failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewMalformedNotificationError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeMalformed,
		Message:    "notification body could not be parsed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "an internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInvalidStateError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidState,
		Message:    "order state does not allow this operation",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewNotFoundError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    "order not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

// NewContentionError signals an optimistic update rejected by the
// repository. The attempt may be retried from a fresh read.
func NewContentionError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeContention,
		Message:    "order was modified concurrently, retry from a fresh read",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
