// Package rest holds the response shapes and error mapping shared by the
// HTTP handlers.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/lumacart/order-gateway/internal/application"
)

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError maps application errors to HTTP responses
func WriteError(w http.ResponseWriter, err error) {
	code := application.ErrCodeInternal
	status := http.StatusInternalServerError
	message := "an internal error occurred"

	if svcErr, ok := application.IsServiceError(err); ok {
		code = svcErr.Code
		status = svcErr.HTTPStatus
		message = svcErr.Message
	}

	response := ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
