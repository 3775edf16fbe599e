package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/application/services"
	"github.com/lumacart/order-gateway/internal/domain"
	"github.com/lumacart/order-gateway/internal/interfaces/rest"
)

type PlaceOrderRequest struct {
	OrderNo     string `json:"order_no" validate:"required"`
	ProductName string `json:"product_name" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
}

type CreatePaymentRequest struct {
	PayerID string `json:"payer_id" validate:"required"`
}

func (h *Handlers) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err))
		return
	}

	order, err := h.orderService.PlaceOrder(r.Context(), services.PlaceOrderCommand{
		OrderNo:     req.OrderNo,
		ProductName: req.ProductName,
		AmountCents: req.AmountCents,
	})
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.ToOrderView(order))
}

func (h *Handlers) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), r.PathValue("orderNo"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToOrderView(order))
}

func (h *Handlers) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err))
		return
	}

	handle, err := h.orderService.CreatePayment(r.Context(), r.PathValue("orderNo"), req.PayerID)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, handle)
}

func (h *Handlers) HandleQueryPayment(w http.ResponseWriter, r *http.Request) {
	resp, err := h.orderService.QueryPayment(r.Context(), r.PathValue("orderNo"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, map[string]string{
		"trade_state":    string(resp.TradeState),
		"transaction_id": resp.TransactionID,
	})
}

func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.applyEvent(w, r, h.orderService.Cancel)
}

func (h *Handlers) HandleFulfill(w http.ResponseWriter, r *http.Request) {
	h.applyEvent(w, r, h.orderService.Fulfill)
}

func (h *Handlers) HandleOpenDispute(w http.ResponseWriter, r *http.Request) {
	h.applyEvent(w, r, h.orderService.OpenDispute)
}

func (h *Handlers) HandleCloseDispute(w http.ResponseWriter, r *http.Request) {
	h.applyEvent(w, r, h.orderService.CloseDispute)
}

func (h *Handlers) HandleInitiateRefund(w http.ResponseWriter, r *http.Request) {
	order, status, err := h.orderService.InitiateRefund(r.Context(), r.PathValue("orderNo"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"order":         rest.ToOrderView(order),
		"refund_status": string(status),
	})
}

func (h *Handlers) HandleQueryRefund(w http.ResponseWriter, r *http.Request) {
	resp, err := h.orderService.QueryRefund(r.Context(), r.PathValue("refundNo"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, map[string]string{
		"status":             string(resp.Status),
		"channel":            resp.Channel,
		"external_refund_id": resp.ExternalRefundID,
	})
}

func (h *Handlers) applyEvent(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, orderNo string) (*domain.Order, error)) {
	orderNo := r.PathValue("orderNo")
	if orderNo == "" {
		rest.WriteError(w, application.NewInvalidInputError(errors.New("order number is required")))
		return
	}

	order, err := apply(r.Context(), orderNo)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToOrderView(order))
}
