package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lumacart/order-gateway/internal/application"
	"github.com/lumacart/order-gateway/internal/domain"
	"github.com/lumacart/order-gateway/internal/infrastructure/persistence"
)

type OrderRepository struct {
	exec persistence.Executor
}

func NewOrderRepository(db *persistence.DB) application.OrderRepository {
	return &OrderRepository{exec: db.Pool}
}

// NewOrderRepositoryWithExecutor binds the repository to a specific
// executor, typically an open transaction.
func NewOrderRepositoryWithExecutor(exec persistence.Executor) application.OrderRepository {
	return &OrderRepository{exec: exec}
}

const orderColumns = `id, order_no, product_name, amount_cents, status,
	       refund_no, transaction_id, refund_id, created_at, updated_at`

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
            id, order_no, product_name, amount_cents, status,
            refund_no, transaction_id, refund_id, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	m := toDBModel(order)
	_, err := r.exec.Exec(ctx, query,
		m.ID,
		m.OrderNo,
		m.ProductName,
		m.AmountCents,
		m.Status,
		m.RefundNo,
		m.TransactionID,
		m.RefundID,
		m.CreatedAt,
		m.UpdatedAt,
	)

	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return fmt.Errorf("order %s already exists: %w", order.OrderNo, err)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_no = $1`

	row := r.exec.QueryRow(ctx, query, orderNo)
	return scanOrder(row)
}

func (r *OrderRepository) GetByRefundNo(ctx context.Context, refundNo string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE refund_no = $1`

	row := r.exec.QueryRow(ctx, query, refundNo)
	return scanOrder(row)
}

// UpdateStatus persists the mutated order only when the stored status still
// matches expectedPrior. A zero row count means a concurrent writer moved
// the order first. The identifier columns are write-once, so COALESCE keeps
// a value another writer recorded after this caller's snapshot was loaded.
func (r *OrderRepository) UpdateStatus(ctx context.Context, order *domain.Order, expectedPrior domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1,
			refund_no = COALESCE($2, refund_no),
			transaction_id = COALESCE($3, transaction_id),
			refund_id = COALESCE($4, refund_id),
			updated_at = $5
		WHERE id = $6 AND status = $7
	`

	m := toDBModel(order)
	result, err := r.exec.Exec(ctx, query,
		m.Status,
		m.RefundNo,
		m.TransactionID,
		m.RefundID,
		m.UpdatedAt,
		m.ID,
		string(expectedPrior),
	)

	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrConcurrentModification
	}

	return nil
}

func (r *OrderRepository) SetRefundNo(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET refund_no = $1, updated_at = $2
		WHERE id = $3 AND refund_no IS NULL
	`

	result, err := r.exec.Exec(ctx, query, order.RefundNo, time.Now(), order.ID)
	if err != nil {
		return fmt.Errorf("failed to set refund number: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrConcurrentModification
	}

	return nil
}

// FindStaleAwaitingPayment lists orders still awaiting payment whose last
// update predates the cutoff, oldest first.
func (r *OrderRepository) FindStaleAwaitingPayment(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'AWAITING_PAYMENT'
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.exec.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale orders: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		var m OrderModel
		err := row.Scan(
			&m.ID, &m.OrderNo, &m.ProductName, &m.AmountCents, &m.Status,
			&m.RefundNo, &m.TransactionID, &m.RefundID, &m.CreatedAt, &m.UpdatedAt,
		)
		return toDomainModel(m), err
	})

	if err != nil {
		return nil, fmt.Errorf("scan stale orders: %w", err)
	}

	return results, nil
}

// scanOrder converts a database row into a domain Order.
// Returns domain.ErrOrderNotFound if the row doesn't exist.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var m OrderModel
	err := row.Scan(
		&m.ID, &m.OrderNo, &m.ProductName, &m.AmountCents, &m.Status,
		&m.RefundNo, &m.TransactionID, &m.RefundID, &m.CreatedAt, &m.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return toDomainModel(m), nil
}
