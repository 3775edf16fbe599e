package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/lumacart/order-gateway/internal/domain"
)

// Acknowledgement bodies the payment gateway expects. Anything other than a
// 2xx with the success body triggers redelivery on the gateway's schedule.
type notifyAck struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	ackSuccess = notifyAck{Code: "SUCCESS", Message: "成功"}
	ackFailure = notifyAck{Code: "FAIL", Message: "失败"}
)

func (h *Handlers) HandlePaymentNotify(w http.ResponseWriter, r *http.Request) {
	h.handleNotify(w, r, h.webhookService.HandlePaymentNotification)
}

func (h *Handlers) HandleRefundNotify(w http.ResponseWriter, r *http.Request) {
	h.handleNotify(w, r, h.webhookService.HandleRefundNotification)
}

func (h *Handlers) handleNotify(
	w http.ResponseWriter,
	r *http.Request,
	process func(ctx context.Context, rawBody []byte, sig domain.SignatureHeaders) error,
) {
	// The signature covers the verbatim body; it must be read raw before any
	// decoding.
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read notification body", "error", err)
		writeAck(w, http.StatusInternalServerError, ackFailure)
		return
	}

	sig := domain.SignatureHeaders{
		Timestamp: r.Header.Get("Wechatpay-Timestamp"),
		Nonce:     r.Header.Get("Wechatpay-Nonce"),
		Signature: r.Header.Get("Wechatpay-Signature"),
		Serial:    r.Header.Get("Wechatpay-Serial"),
	}

	if err := process(r.Context(), rawBody, sig); err != nil {
		h.logger.Warn("notification not consumed",
			"path", r.URL.Path,
			"error", err,
		)
		writeAck(w, http.StatusInternalServerError, ackFailure)
		return
	}

	writeAck(w, http.StatusOK, ackSuccess)
}

func writeAck(w http.ResponseWriter, status int, ack notifyAck) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ack)
}
