package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
)

var ErrPaymentLinkExists = errors.New("payment link already recorded")

type PaymentLinkRepository struct {
	db DBTX
}

func NewPaymentLinkRepository(db DBTX) *PaymentLinkRepository {
	return &PaymentLinkRepository{db: db}
}

func (r *PaymentLinkRepository) Create(ctx context.Context, link *entity.PaymentLink) error {
	query := `INSERT INTO order_payment_links (order_id, uuid, created_at, updated_at) VALUES (?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, link.OrderID, link.UUID, link.CreatedAt, link.UpdatedAt)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentLinkExists
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	link.ID = uint64(id)
	return nil
}

// FindLatestByOrderID returns the current link of an order, or nil.
func (r *PaymentLinkRepository) FindLatestByOrderID(ctx context.Context, orderID uint64) (*entity.PaymentLink, error) {
	query := `
		SELECT id, order_id, uuid, created_at, updated_at
		FROM order_payment_links
		WHERE order_id = ?
		ORDER BY id DESC
		LIMIT 1
	`
	link := &entity.PaymentLink{}
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(&link.ID, &link.OrderID, &link.UUID, &link.CreatedAt, &link.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}
