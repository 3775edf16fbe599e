package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lumacart/order-gateway/internal/interfaces/rest"
)

// Timeout cancels the request context at the deadline and answers with the
// standard error envelope. Notification endpoints sit behind this too; a
// timed-out delivery is a failed ack, so the gateway redelivers.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	body, _ := json.Marshal(rest.ErrorResponse{
		Error: rest.ErrorDetail{
			Code:    "TIMEOUT",
			Message: "request timed out",
		},
	})

	return func(next http.Handler) http.Handler {
		wrapped := http.TimeoutHandler(next, timeout, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			wrapped.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
