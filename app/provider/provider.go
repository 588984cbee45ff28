package provider

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
)

var (
	// ErrTransport covers network failures and unreadable responses.
	ErrTransport = errors.New("payment gateway unreachable")
	// ErrUnauthorized is returned when the gateway rejects the bearer key.
	ErrUnauthorized = errors.New("payment gateway rejected credentials")
)

type BillingAddress struct {
	Address1 string
	Address2 string
	City     string
	Postcode string
	Country  string
	State    string
}

type PaymentInput struct {
	OrderID     uint64
	OrderNumber string
	AmountCents int64
	FirstName   string
	LastName    string
	RequestFor  string
	RedirectURL string
	IPAddress   string
	Billing     BillingAddress
	Sandbox     bool
}

type PaymentResult struct {
	Success     bool
	PaymentLink string
	PayID       string
	Message     string
}

type LimitResult struct {
	Limited bool
	Message string
}

type AccountKey struct {
	AccountName string      `json:"account_name"`
	PublicKey   string      `json:"public_key"`
	SecretKey   string      `json:"secret_key"`
	Mode        entity.Mode `json:"mode"`
}

type AccountStatus struct {
	Mode      entity.Mode `json:"mode"`
	PublicKey string      `json:"public_key"`
	Status    string      `json:"status"`
}

type SwitchEmailInput struct {
	OldTitle string
	OldKeys  entity.Credentials
	NewTitle string
	Sandbox  bool
	Message  string
}

// Gateway is the remote payment API. Every call is authenticated with the
// public key of the account it acts for, except status sync and link
// cancellation which the API accepts unauthenticated.
type Gateway interface {
	RequestPayment(ctx context.Context, creds entity.Credentials, input *PaymentInput) (*PaymentResult, error)
	CheckDailyLimit(ctx context.Context, creds entity.Credentials, input *PaymentInput) (*LimitResult, error)
	TransactionStatus(ctx context.Context, bearer string, orderID uint64, payID string) (string, error)
	CancelPaymentLink(ctx context.Context, orderID uint64, payID string) error
	SyncAccountStatus(ctx context.Context, keys []AccountKey) ([]AccountStatus, error)
	SendAccountSwitchEmail(ctx context.Context, input *SwitchEmailInput) error
}
