package types

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type CheckoutRequest struct {
	OrderID  uint64            `json:"-"`
	OrderKey string            `json:"order_key"`
	Consent  string            `json:"consent"`
	Fields   map[string]string `json:"fields"`
	ClientIP string            `json:"-"`
}

func NewCheckoutRequestFromContext(ctx echo.Context) (*CheckoutRequest, error) {
	id, err := parseOrderIDParam(ctx)
	if err != nil {
		return nil, err
	}

	var body CheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.OrderID = id
	body.OrderKey = strings.TrimSpace(body.OrderKey)
	body.Consent = strings.ToLower(strings.TrimSpace(body.Consent))
	body.ClientIP = ClientIPFromContext(ctx)
	return &body, nil
}

func (r *CheckoutRequest) Validate() error {
	if r.OrderID == 0 {
		return errors.New("invalid order id")
	}
	if r.OrderKey == "" {
		return errors.New("order_key is required")
	}
	return nil
}

func (r *CheckoutRequest) GetOrderID() uint64 {
	return r.OrderID
}

func (r *CheckoutRequest) GetOrderKey() string {
	return r.OrderKey
}

func (r *CheckoutRequest) GetClientIP() string {
	return r.ClientIP
}

func (r *CheckoutRequest) GetFields() map[string]string {
	return r.Fields
}

func (r *CheckoutRequest) GetConsent() bool {
	switch r.Consent {
	case "on", "yes", "true", "1":
		return true
	default:
		return false
	}
}

type CheckoutResponse struct {
	Result        string   `json:"result"`
	PaymentLink   string   `json:"payment_link,omitempty"`
	SecurityToken string   `json:"security_token,omitempty"`
	Error         string   `json:"error,omitempty"`
	Messages      []string `json:"messages,omitempty"`
}

type AvailabilityRequest struct {
	AmountCents int64
}

// NewAvailabilityRequestFromContext reads the cart total as a decimal amount
// in the store currency.
func NewAvailabilityRequestFromContext(ctx echo.Context) (*AvailabilityRequest, error) {
	raw := strings.TrimSpace(ctx.QueryParam("amount"))
	if raw == "" {
		return &AvailabilityRequest{}, nil
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, errors.New("invalid amount")
	}
	return &AvailabilityRequest{AmountCents: int64(math.Round(amount * 100))}, nil
}

func (r *AvailabilityRequest) Validate() error {
	if r.AmountCents < 0 {
		return errors.New("amount must be >= 0")
	}
	return nil
}

func (r *AvailabilityRequest) GetAmountCents() int64 {
	return r.AmountCents
}

type AvailabilityResponse struct {
	Available bool `json:"available"`
}
