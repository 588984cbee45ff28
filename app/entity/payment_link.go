package entity

import "time"

// PaymentLink ties an order to a remote pay session. Rows are append-only;
// the latest row for an order is the current link.
type PaymentLink struct {
	ID uint64

	OrderID uint64
	UUID    string

	CreatedAt time.Time
	UpdatedAt time.Time
}
