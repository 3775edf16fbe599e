// Package handlers wires the HTTP surface: order lifecycle endpoints and
// the gateway notification receivers.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/lumacart/order-gateway/internal/application/services"
)

type Handlers struct {
	orderService   *services.OrderService
	webhookService *services.WebhookService
	validate       *validator.Validate
	logger         *slog.Logger
}

func NewHandlers(
	orderService *services.OrderService,
	webhookService *services.WebhookService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		orderService:   orderService,
		webhookService: webhookService,
		validate:       validator.New(),
		logger:         logger,
	}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.HandlePlaceOrder)
	mux.HandleFunc("GET /orders/{orderNo}", h.HandleGetOrder)
	mux.HandleFunc("POST /orders/{orderNo}/payment", h.HandleCreatePayment)
	mux.HandleFunc("GET /orders/{orderNo}/payment", h.HandleQueryPayment)
	mux.HandleFunc("POST /orders/{orderNo}/cancel", h.HandleCancel)
	mux.HandleFunc("POST /orders/{orderNo}/fulfill", h.HandleFulfill)
	mux.HandleFunc("POST /orders/{orderNo}/dispute", h.HandleOpenDispute)
	mux.HandleFunc("POST /orders/{orderNo}/dispute/close", h.HandleCloseDispute)
	mux.HandleFunc("POST /orders/{orderNo}/refund", h.HandleInitiateRefund)
	mux.HandleFunc("GET /refunds/{refundNo}", h.HandleQueryRefund)
	mux.HandleFunc("POST /notify/payment", h.HandlePaymentNotify)
	mux.HandleFunc("POST /notify/refund", h.HandleRefundNotify)
}
