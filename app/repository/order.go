package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
)

// OrderRepository is the adapter over the host platform's order tables.
type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, order_key, order_number, status, total_cents, currency,
	billing_first_name, billing_last_name, billing_email, billing_phone,
	billing_address_1, billing_address_2, billing_city, billing_postcode, billing_country, billing_state,
	cart_emptied_at, stock_restored_at, created_at, updated_at
`

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	meta, err := r.loadMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Meta = meta
	return order, nil
}

// UpdateStatus moves the order to `to` only while it is in one of `from`.
// It reports whether a row changed, which makes repeated transitions no-ops.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint64, from []entity.OrderStatus, to entity.OrderStatus, now time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	args := make([]interface{}, 0, len(from)+3)
	args = append(args, to, now, id)
	for _, status := range from {
		args = append(args, status)
	}

	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *OrderRepository) SetMeta(ctx context.Context, orderID uint64, key, value string) error {
	query := `
		INSERT INTO order_meta (order_id, meta_key, meta_value)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE meta_value = VALUES(meta_value)
	`
	_, err := r.db.ExecContext(ctx, query, orderID, key, value)
	return err
}

func (r *OrderRepository) AddNote(ctx context.Context, note *entity.OrderNote) error {
	query := `INSERT INTO order_notes (order_id, content, for_customer, created_at) VALUES (?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, note.OrderID, note.Content, note.ForCustomer, note.CreatedAt)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	note.ID = uint64(id)
	return nil
}

func (r *OrderRepository) HasNote(ctx context.Context, orderID uint64, content string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM order_notes WHERE order_id = ? AND TRIM(content) = TRIM(?) LIMIT 1`,
		orderID, content,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkCartEmptied records the cart clearing once; later calls report false.
func (r *OrderRepository) MarkCartEmptied(ctx context.Context, orderID uint64, now time.Time) (bool, error) {
	return r.markOnce(ctx, `UPDATE orders SET cart_emptied_at = ? WHERE id = ? AND cart_emptied_at IS NULL`, orderID, now)
}

func (r *OrderRepository) MarkStockRestored(ctx context.Context, orderID uint64, now time.Time) (bool, error) {
	return r.markOnce(ctx, `UPDATE orders SET stock_restored_at = ? WHERE id = ? AND stock_restored_at IS NULL`, orderID, now)
}

func (r *OrderRepository) markOnce(ctx context.Context, query string, orderID uint64, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, now, orderID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListPendingBefore returns pending orders routed through this gateway that
// were created at or before cutoff.
func (r *OrderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = ?
		  AND created_at <= ?
		  AND EXISTS (
			SELECT 1 FROM order_meta m
			WHERE m.order_id = orders.id AND m.meta_key = ? AND m.meta_value = ?
		  )
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.OrderStatusPending, cutoff, entity.OrderMetaOrigin, entity.OrderMetaOriginGateway, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		meta, err := r.loadMeta(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Meta = meta
	}
	return orders, nil
}

func (r *OrderRepository) loadMeta(ctx context.Context, orderID uint64) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT meta_key, meta_value FROM order_meta WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		meta[key] = value
	}
	return meta, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*entity.Order, error) {
	var (
		order         entity.Order
		status        string
		cartEmptiedAt sql.NullTime
		stockRestored sql.NullTime
	)
	err := row.Scan(
		&order.ID,
		&order.OrderKey,
		&order.OrderNumber,
		&status,
		&order.TotalCents,
		&order.Currency,
		&order.Billing.FirstName,
		&order.Billing.LastName,
		&order.Billing.Email,
		&order.Billing.Phone,
		&order.Billing.Address1,
		&order.Billing.Address2,
		&order.Billing.City,
		&order.Billing.Postcode,
		&order.Billing.Country,
		&order.Billing.State,
		&cartEmptiedAt,
		&stockRestored,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Status = entity.OrderStatus(status)
	order.CartEmptiedAt = timePtrFromNull(cartEmptiedAt)
	order.StockRestoredAt = timePtrFromNull(stockRestored)
	return &order, nil
}
