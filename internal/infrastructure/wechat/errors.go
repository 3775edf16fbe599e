package wechat

import (
	"errors"
	"fmt"
)

type GatewayError struct {
	Code       string
	Message    string
	StatusCode int
}

type gatewayErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

func (e *GatewayError) IsRetryable() bool {
	return e.StatusCode >= 500
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}
