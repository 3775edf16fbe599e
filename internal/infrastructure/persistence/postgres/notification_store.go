package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lumacart/order-gateway/internal/idempotency"
	"github.com/lumacart/order-gateway/internal/infrastructure/persistence"
)

// DefaultLockTTL bounds how long an unfinished key blocks redelivery. An
// attempt that crashed between Begin and Complete leaves its row locked;
// once the lock ages past the TTL the next delivery may take it over.
const DefaultLockTTL = 5 * time.Minute

type NotificationStore struct {
	exec    persistence.Executor
	lockTTL time.Duration
}

func NewNotificationStore(db *persistence.DB) idempotency.Store {
	return &NotificationStore{exec: db.Pool, lockTTL: DefaultLockTTL}
}

func (s *NotificationStore) Begin(ctx context.Context, key string) (*idempotency.Result, bool, error) {
	query := `
		INSERT INTO notification_keys (key, locked_at)
		VALUES ($1, $2)
	`

	_, err := s.exec.Exec(ctx, query, key, time.Now())
	if err == nil {
		return nil, false, nil
	}
	if !persistence.IsUniqueViolation(err) {
		return nil, false, fmt.Errorf("failed to acquire notification key: %w", err)
	}

	// Key exists: either a completed result or an in-flight attempt.
	var m NotificationKey
	checkQuery := `SELECT key, result, locked_at, completed_at FROM notification_keys WHERE key = $1`
	err = s.exec.QueryRow(ctx, checkQuery, key).Scan(&m.Key, &m.Result, &m.LockedAt, &m.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row vanished between INSERT and SELECT; treat as in-flight
			// and let redelivery retry.
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("failed to check notification key: %w", err)
	}

	if m.CompletedAt != nil {
		var result idempotency.Result
		if m.Result == nil {
			return nil, false, fmt.Errorf("notification key %s completed without a result", key)
		}
		if err := json.Unmarshal(*m.Result, &result); err != nil {
			return nil, false, fmt.Errorf("failed to decode cached result: %w", err)
		}
		return &result, true, nil
	}

	// Unfinished lock: reclaim it if the holder is past the TTL.
	if time.Since(m.LockedAt) > s.lockTTL {
		takeover := `
			UPDATE notification_keys
			SET locked_at = $1
			WHERE key = $2 AND completed_at IS NULL AND locked_at = $3
		`
		tag, err := s.exec.Exec(ctx, takeover, time.Now(), key, m.LockedAt)
		if err != nil {
			return nil, false, fmt.Errorf("failed to reclaim notification key: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil, false, nil
		}
	}

	return nil, true, nil
}

func (s *NotificationStore) Complete(ctx context.Context, key string, result idempotency.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	query := `
		UPDATE notification_keys
		SET result = $1, completed_at = $2
		WHERE key = $3
	`

	_, err = s.exec.Exec(ctx, query, payload, time.Now(), key)
	if err != nil {
		return fmt.Errorf("failed to complete notification key: %w", err)
	}

	return nil
}

// Abort removes an unfinished key so the gateway's redelivery can run the
// work again.
func (s *NotificationStore) Abort(ctx context.Context, key string) error {
	query := `DELETE FROM notification_keys WHERE key = $1 AND completed_at IS NULL`

	_, err := s.exec.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("failed to release notification key: %w", err)
	}

	return nil
}
