package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

// WebhookRequest is the status report the gateway posts to the return URL.
// The single-use token travels in the URL query.
type WebhookRequest struct {
	Nonce       string  `json:"nonce" form:"nonce"`
	OrderID     OrderID `json:"order_id" form:"order_id"`
	OrderStatus string  `json:"order_status" form:"order_status"`
	PayID       string  `json:"pay_id" form:"pay_id"`
	Token       string  `json:"token" form:"token"`
}

func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	var body WebhookRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Nonce = strings.TrimSpace(body.Nonce)
	body.OrderStatus = strings.ToLower(strings.TrimSpace(body.OrderStatus))
	body.PayID = strings.TrimSpace(body.PayID)
	body.Token = strings.TrimSpace(body.Token)
	if body.Token == "" {
		body.Token = strings.TrimSpace(ctx.QueryParam("token"))
	}
	if body.OrderID == 0 {
		if err := body.OrderID.UnmarshalParam(ctx.QueryParam("order_id")); err != nil {
			return nil, err
		}
	}
	return &body, nil
}

func (r *WebhookRequest) Validate() error {
	if r.OrderID == 0 {
		return errors.New("invalid data (order id missing or invalid)")
	}
	if r.Nonce == "" {
		return errors.New("nonce is required")
	}
	return nil
}

func (r *WebhookRequest) GetNonce() string {
	return r.Nonce
}

func (r *WebhookRequest) GetOrderID() uint64 {
	return uint64(r.OrderID)
}

func (r *WebhookRequest) GetOrderStatus() string {
	return r.OrderStatus
}

func (r *WebhookRequest) GetPayID() string {
	return r.PayID
}

func (r *WebhookRequest) GetToken() string {
	return r.Token
}

type WebhookResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	PaymentReturnURL string `json:"payment_return_url,omitempty"`
}

// OrderSignalRequest is a browser status poll or popup-close signal. It is
// authorized by the security token handed out at checkout.
type OrderSignalRequest struct {
	OrderID  uint64 `json:"-"`
	Security string `json:"security" form:"security"`
}

func NewOrderSignalRequestFromContext(ctx echo.Context) (*OrderSignalRequest, error) {
	id, err := parseOrderIDParam(ctx)
	if err != nil {
		return nil, err
	}

	var body OrderSignalRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.OrderID = id
	body.Security = strings.TrimSpace(body.Security)
	if body.Security == "" {
		body.Security = strings.TrimSpace(ctx.Request().Header.Get("X-Security-Token"))
	}
	return &body, nil
}

func (r *OrderSignalRequest) Validate() error {
	if r.OrderID == 0 {
		return errors.New("order id is missing")
	}
	if r.Security == "" {
		return errors.New("security token is required")
	}
	return nil
}

func (r *OrderSignalRequest) GetOrderID() uint64 {
	return r.OrderID
}

func (r *OrderSignalRequest) GetToken() string {
	return r.Security
}

type StatusResponse struct {
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url"`
}

type PopupResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	OrderID     uint64 `json:"order_id,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}
