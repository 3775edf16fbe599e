package postgres

import (
	"time"

	"github.com/google/uuid"
)

type OrderModel struct {
	ID            uuid.UUID
	OrderNo       string
	ProductName   string
	AmountCents   int64
	Status        string
	RefundNo      *string
	TransactionID *string
	RefundID      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NotificationKey enforces at-most-once processing via unique constraint
// on key. CompletedAt distinguishes finished keys from in-flight ones so a
// crashed attempt does not block redelivery forever.
type NotificationKey struct {
	Key         string
	Result      *[]byte
	LockedAt    time.Time
	CompletedAt *time.Time
}
