package wechat

// Request and response shapes for the v3 JSON API. Field names follow the
// gateway's wire format.

type amount struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type refundAmount struct {
	Refund   int64  `json:"refund"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type payer struct {
	OpenID string `json:"openid"`
}

type createPaymentRequest struct {
	AppID       string `json:"appid"`
	MchID       string `json:"mchid"`
	Description string `json:"description"`
	OrderNo     string `json:"out_trade_no"`
	NotifyURL   string `json:"notify_url"`
	Amount      amount `json:"amount"`
	Payer       payer  `json:"payer"`
}

type createPaymentResponse struct {
	PrepayID string `json:"prepay_id"`
}

type queryOrderResponse struct {
	OrderNo       string `json:"out_trade_no"`
	TransactionID string `json:"transaction_id"`
	TradeState    string `json:"trade_state"`
}

type closeOrderRequest struct {
	MchID string `json:"mchid"`
}

type createRefundRequest struct {
	OrderNo   string       `json:"out_trade_no"`
	RefundNo  string       `json:"out_refund_no"`
	Reason    string       `json:"reason,omitempty"`
	NotifyURL string       `json:"notify_url"`
	Amount    refundAmount `json:"amount"`
}

type createRefundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

type queryRefundResponse struct {
	RefundID    string `json:"refund_id"`
	RefundNo    string `json:"out_refund_no"`
	Status      string `json:"status"`
	Channel     string `json:"channel"`
	SuccessTime string `json:"success_time"`
}
