package entity

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusOnHold     OrderStatus = "on-hold"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusOnHold,
		OrderStatusFailed, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// Paid reports whether the status is success-equivalent.
func (s OrderStatus) Paid() bool {
	return s == OrderStatusProcessing || s == OrderStatusCompleted
}

const (
	OrderMetaPayID         = "_gateway_pay_id"
	OrderMetaAccount       = "_gateway_account"
	OrderMetaOrigin        = "_order_origin"
	OrderMetaTestOrder     = "_is_test_order"
	OrderMetaPendingSince  = "_pending_order_time"
	OrderMetaOriginGateway = "payments_router"
)

type BillingDetails struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address1  string
	Address2  string
	City      string
	Postcode  string
	Country   string
	State     string
}

type Order struct {
	ID          uint64
	OrderKey    string
	OrderNumber string

	Status OrderStatus

	TotalCents int64
	Currency   string

	Billing BillingDetails
	Meta    map[string]string

	CartEmptiedAt   *time.Time
	StockRestoredAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) MetaValue(key string) string {
	if o.Meta == nil {
		return ""
	}
	return o.Meta[key]
}

type OrderNote struct {
	ID uint64

	OrderID     uint64
	Content     string
	ForCustomer bool

	CreatedAt time.Time
}
