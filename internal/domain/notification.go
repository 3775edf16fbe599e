package domain

// ConfirmationKind discriminates which associated-data template the gateway
// used when encrypting the resource block.
type ConfirmationKind int

const (
	ConfirmationPayment ConfirmationKind = 1
	ConfirmationRefund  ConfirmationKind = 2
)

// AssociatedData returns the template the gateway binds into the AEAD for
// this kind of confirmation. A resource encrypted under one template cannot
// be opened as the other.
func (k ConfirmationKind) AssociatedData() string {
	if k == ConfirmationRefund {
		return "refund"
	}
	return "transaction"
}

// SignatureHeaders carries the signature material the gateway sends in
// request headers alongside a notification body.
type SignatureHeaders struct {
	Timestamp string
	Nonce     string
	Signature string
	Serial    string
}

// EncryptedResource is the encrypted block inside a notification envelope.
type EncryptedResource struct {
	Algorithm      string `json:"algorithm"`
	Ciphertext     string `json:"ciphertext"`
	Nonce          string `json:"nonce"`
	AssociatedData string `json:"associated_data"`
	OriginalType   string `json:"original_type"`
}

// NotificationEnvelope is the decoded webhook body. It is ephemeral, scoped
// to a single delivery; RawBody stays byte-identical to what was signed.
type NotificationEnvelope struct {
	ID           string            `json:"id"`
	CreateTime   string            `json:"create_time"`
	EventType    string            `json:"event_type"`
	ResourceType string            `json:"resource_type"`
	Resource     EncryptedResource `json:"resource"`
	Summary      string            `json:"summary"`

	RawBody []byte `json:"-"`
}

// PaymentConfirmation is the decrypted resource of a payment notification.
type PaymentConfirmation struct {
	OrderNo       string `json:"out_trade_no"`
	TransactionID string `json:"transaction_id"`
	TradeState    string `json:"trade_state"`
}

// RefundConfirmation is the decrypted resource of a refund notification.
type RefundConfirmation struct {
	OrderNo      string `json:"out_trade_no"`
	RefundNo     string `json:"out_refund_no"`
	RefundID     string `json:"refund_id"`
	RefundStatus string `json:"refund_status"`
}
