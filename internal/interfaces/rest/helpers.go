package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lumacart/order-gateway/internal/domain"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// OrderView is the outward shape of an order.
type OrderView struct {
	ID            string    `json:"id"`
	OrderNo       string    `json:"order_no"`
	ProductName   string    `json:"product_name"`
	AmountCents   int64     `json:"amount_cents"`
	Status        string    `json:"status"`
	RefundNo      string    `json:"refund_no,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	RefundID      string    `json:"refund_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func ToOrderView(o *domain.Order) OrderView {
	view := OrderView{
		ID:          o.ID.String(),
		OrderNo:     o.OrderNo,
		ProductName: o.ProductName,
		AmountCents: o.AmountCents,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}

	if o.RefundNo != nil {
		view.RefundNo = *o.RefundNo
	}
	if o.TransactionID != nil {
		view.TransactionID = *o.TransactionID
	}
	if o.RefundID != nil {
		view.RefundID = *o.RefundID
	}

	return view
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}
