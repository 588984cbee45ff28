package controller

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-payments-router/app/cache"
	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/provider"
	"github.com/vibast-solutions/ms-go-payments-router/app/service"
	"github.com/vibast-solutions/ms-go-payments-router/app/token"
	"github.com/vibast-solutions/ms-go-payments-router/config"
)

type controllerAccountRepo struct {
	accounts []*entity.Account
}

func (r *controllerAccountRepo) List(context.Context) ([]*entity.Account, error) {
	out := make([]*entity.Account, 0, len(r.accounts))
	for _, item := range r.accounts {
		copyItem := *item
		out = append(out, &copyItem)
	}
	return out, nil
}

func (r *controllerAccountRepo) Save(_ context.Context, accounts []*entity.Account) error {
	r.accounts = accounts
	return nil
}

func (r *controllerAccountRepo) Migrate(context.Context) (bool, error) {
	return false, nil
}

type controllerOrderRepo struct {
	orders map[uint64]*entity.Order
}

func (r *controllerOrderRepo) FindByID(_ context.Context, id uint64) (*entity.Order, error) {
	item, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *controllerOrderRepo) UpdateStatus(_ context.Context, id uint64, from []entity.OrderStatus, to entity.OrderStatus, _ time.Time) (bool, error) {
	item := r.orders[id]
	for _, status := range from {
		if item != nil && item.Status == status {
			item.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r *controllerOrderRepo) SetMeta(_ context.Context, orderID uint64, key, value string) error {
	r.orders[orderID].Meta[key] = value
	return nil
}

func (r *controllerOrderRepo) AddNote(context.Context, *entity.OrderNote) error {
	return nil
}

func (r *controllerOrderRepo) HasNote(context.Context, uint64, string) (bool, error) {
	return false, nil
}

func (r *controllerOrderRepo) MarkCartEmptied(context.Context, uint64, time.Time) (bool, error) {
	return true, nil
}

func (r *controllerOrderRepo) MarkStockRestored(context.Context, uint64, time.Time) (bool, error) {
	return true, nil
}

func (r *controllerOrderRepo) ListPendingBefore(context.Context, time.Time, int32) ([]*entity.Order, error) {
	return nil, nil
}

type controllerLinkRepo struct{}

func (r *controllerLinkRepo) Create(context.Context, *entity.PaymentLink) error {
	return nil
}

func (r *controllerLinkRepo) FindLatestByOrderID(context.Context, uint64) (*entity.PaymentLink, error) {
	return nil, nil
}

type controllerGateway struct {
	limited   bool
	syncErr   error
	txnStatus string
}

func (g *controllerGateway) RequestPayment(_ context.Context, creds entity.Credentials, _ *provider.PaymentInput) (*provider.PaymentResult, error) {
	return &provider.PaymentResult{Success: true, PaymentLink: "https://pay.example.com/x", PayID: "pay-1"}, nil
}

func (g *controllerGateway) CheckDailyLimit(context.Context, entity.Credentials, *provider.PaymentInput) (*provider.LimitResult, error) {
	return &provider.LimitResult{Limited: g.limited, Message: "limit"}, nil
}

func (g *controllerGateway) TransactionStatus(context.Context, string, uint64, string) (string, error) {
	return g.txnStatus, nil
}

func (g *controllerGateway) CancelPaymentLink(context.Context, uint64, string) error {
	return nil
}

func (g *controllerGateway) SyncAccountStatus(context.Context, []provider.AccountKey) ([]provider.AccountStatus, error) {
	return nil, g.syncErr
}

func (g *controllerGateway) SendAccountSwitchEmail(context.Context, *provider.SwitchEmailInput) error {
	return nil
}

type controllerLocks struct{}

func (controllerLocks) Acquire(context.Context, string) bool { return true }
func (controllerLocks) Release(context.Context, string)      {}

type controllerLimiter struct{ deny bool }

func (l controllerLimiter) Allow(context.Context, string) bool { return !l.deny }

type controllerFixture struct {
	svc     *service.GatewayService
	orders  *controllerOrderRepo
	gateway *controllerGateway
	tokens  *token.Issuer
}

func newControllerFixture(denyRate bool) *controllerFixture {
	store := cache.NewMemoryStore()
	order := &entity.Order{
		ID:       10,
		OrderKey: "wc_key",
		Status:   entity.OrderStatusPending,
		Meta:     map[string]string{entity.OrderMetaPayID: "pay-1", entity.OrderMetaAccount: "Main"},
	}
	f := &controllerFixture{
		orders:  &controllerOrderRepo{orders: map[uint64]*entity.Order{10: order}},
		gateway: &controllerGateway{},
		tokens:  token.NewIssuer("secret", time.Hour, store, nil),
	}
	f.svc = service.NewGatewayService(service.Dependencies{
		Accounts: &controllerAccountRepo{accounts: []*entity.Account{{
			Title:    "Main",
			Priority: 1,
			Live:     entity.Credentials{PublicKey: "pk_main", SecretKey: "sk_main_secret", Status: entity.AccountStatusActive},
		}}},
		Orders:     f.orders,
		Links:      &controllerLinkRepo{},
		Gateway:    f.gateway,
		Locks:      controllerLocks{},
		Limiter:    controllerLimiter{deny: denyRate},
		Tokens:     f.tokens,
		Cache:      store,
		GatewayCfg: config.GatewayConfig{ShopBaseURL: "https://shop.example.com"},
	})
	return f
}

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestCheckoutPaySuccess(t *testing.T) {
	f := newControllerFixture(false)
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/orders/10/pay", `{"order_key":"wc_key","fields":{"billing_first_name":"Jane"}}`)
	ctx.SetParamNames("id")
	ctx.SetParamValues("10")

	if err := NewCheckoutController(f.svc).Pay(ctx); err != nil {
		t.Fatalf("Pay() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if payload["result"] != "success" || payload["payment_link"] != "https://pay.example.com/x" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestCheckoutPayErrors(t *testing.T) {
	cases := []struct {
		name    string
		deny    bool
		limited bool
		body    string
		code    int
	}{
		{"rate limited", true, false, `{"order_key":"wc_key"}`, http.StatusTooManyRequests},
		{"missing key", false, false, `{}`, http.StatusBadRequest},
		{"suspicious", false, false, `{"order_key":"wc_key","fields":{"billing_city":"DROP TABLE"}}`, http.StatusBadRequest},
		{"exhausted", false, true, `{"order_key":"wc_key"}`, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newControllerFixture(tc.deny)
			f.gateway.limited = tc.limited
			ctx, rec := newJSONContext(http.MethodPost, "/checkout/orders/10/pay", tc.body)
			ctx.SetParamNames("id")
			ctx.SetParamValues("10")

			if err := NewCheckoutController(f.svc).Pay(ctx); err != nil {
				t.Fatalf("Pay() error = %v", err)
			}
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
			if decodeBody(t, rec)["result"] != "fail" {
				t.Fatalf("expected fail result, got %s", rec.Body.String())
			}
		})
	}
}

func TestCheckoutAvailability(t *testing.T) {
	f := newControllerFixture(false)
	ctx, rec := newJSONContext(http.MethodGet, "/checkout/availability?amount=10.00", "")

	if err := NewCheckoutController(f.svc).Availability(ctx); err != nil {
		t.Fatalf("Availability() error = %v", err)
	}
	if rec.Code != http.StatusOK || decodeBody(t, rec)["available"] != true {
		t.Fatalf("expected available, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookResponses(t *testing.T) {
	nonce := base64.StdEncoding.EncodeToString([]byte("pk_main"))
	cases := []struct {
		name string
		body string
		code int
	}{
		{"unknown caller", `{"nonce":"` + base64.StdEncoding.EncodeToString([]byte("pk_x")) + `","order_id":10,"order_status":"completed","pay_id":"pay-1"}`, http.StatusUnauthorized},
		{"missing order", `{"nonce":"` + nonce + `","order_id":99,"order_status":"completed","pay_id":"pay-1"}`, http.StatusNotFound},
		{"pay id mismatch", `{"nonce":"` + nonce + `","order_id":10,"order_status":"completed","pay_id":"pay-2"}`, http.StatusBadRequest},
		{"no order id", `{"nonce":"` + nonce + `"}`, http.StatusBadRequest},
		{"paid", `{"nonce":"` + nonce + `","order_id":"10","order_status":"completed","pay_id":"pay-1"}`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newControllerFixture(false)
			ctx, rec := newJSONContext(http.MethodPost, "/gateway/v1/data", tc.body)

			if err := NewOrderController(f.svc).Webhook(ctx); err != nil {
				t.Fatalf("Webhook() error = %v", err)
			}
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestWebhookPaidResponseBody(t *testing.T) {
	f := newControllerFixture(false)
	nonce := base64.StdEncoding.EncodeToString([]byte("pk_main"))
	ctx, rec := newJSONContext(http.MethodPost, "/gateway/v1/data", `{"nonce":"`+nonce+`","order_id":10,"order_status":"completed","pay_id":"pay-1"}`)

	if err := NewOrderController(f.svc).Webhook(ctx); err != nil {
		t.Fatalf("Webhook() error = %v", err)
	}
	payload := decodeBody(t, rec)
	if payload["success"] != true || payload["payment_return_url"] != "https://shop.example.com/checkout/order-received/10/?key=wc_key" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if f.orders.orders[10].Status != entity.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", f.orders.orders[10].Status)
	}
}

func TestOrderStatusAndPopup(t *testing.T) {
	f := newControllerFixture(false)
	f.gateway.txnStatus = "failed"
	security, _ := f.tokens.Issue(10, token.PurposeStatus)
	controller := NewOrderController(f.svc)

	ctx, rec := newJSONContext(http.MethodPost, "/checkout/orders/10/status", `{"security":"`+security+`"}`)
	ctx.SetParamNames("id")
	ctx.SetParamValues("10")
	if err := controller.Status(ctx); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "pending" {
		t.Fatalf("unexpected status response %d: %s", rec.Code, rec.Body.String())
	}

	ctx, rec = newJSONContext(http.MethodPost, "/checkout/orders/10/popup-closed", `{"security":"`+security+`"}`)
	ctx.SetParamNames("id")
	ctx.SetParamValues("10")
	if err := controller.PopupClosed(ctx); err != nil {
		t.Fatalf("PopupClosed() error = %v", err)
	}
	payload := decodeBody(t, rec)
	if rec.Code != http.StatusOK || payload["message"] != "Order status updated to failed." {
		t.Fatalf("unexpected popup response %d: %s", rec.Code, rec.Body.String())
	}

	ctx, rec = newJSONContext(http.MethodPost, "/checkout/orders/10/status", `{"security":"forged"}`)
	ctx.SetParamNames("id")
	ctx.SetParamValues("10")
	if err := controller.Status(ctx); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for forged token, got %d", rec.Code)
	}
}

func TestAdminAccounts(t *testing.T) {
	f := newControllerFixture(false)
	controller := NewAdminController(f.svc)

	ctx, rec := newJSONContext(http.MethodGet, "/admin/accounts", "")
	if err := controller.ListAccounts(ctx); err != nil {
		t.Fatalf("ListAccounts() error = %v", err)
	}
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "sk_main_secret") {
		t.Fatalf("expected masked account list, got %d: %s", rec.Code, rec.Body.String())
	}

	ctx, rec = newJSONContext(http.MethodPut, "/admin/accounts", `{"accounts":[{"title":"A","live_public_key":"k","live_secret_key":"k"}]}`)
	if err := controller.SaveAccounts(ctx); err != nil {
		t.Fatalf("SaveAccounts() error = %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if messages, ok := decodeBody(t, rec)["messages"].([]interface{}); !ok || len(messages) != 1 {
		t.Fatalf("expected itemized messages, got %s", rec.Body.String())
	}

	ctx, rec = newJSONContext(http.MethodPut, "/admin/accounts", `{"accounts":[{"title":"B","priority":2,"live_public_key":"pk_b","live_secret_key":"sk_b"}]}`)
	if err := controller.SaveAccounts(ctx); err != nil {
		t.Fatalf("SaveAccounts() error = %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"title":"B"`) {
		t.Fatalf("unexpected save response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSyncAccounts(t *testing.T) {
	f := newControllerFixture(false)
	controller := NewAdminController(f.svc)

	ctx, rec := newJSONContext(http.MethodPost, "/admin/accounts/sync", "")
	if err := controller.SyncAccounts(ctx); err != nil {
		t.Fatalf("SyncAccounts() error = %v", err)
	}
	if rec.Code != http.StatusOK || decodeBody(t, rec)["message"] != "Accounts synchronized successfully." {
		t.Fatalf("unexpected sync response %d: %s", rec.Code, rec.Body.String())
	}

	f.gateway.syncErr = provider.ErrTransport
	ctx, rec = newJSONContext(http.MethodPost, "/admin/accounts/sync", "")
	if err := controller.SyncAccounts(ctx); err != nil {
		t.Fatalf("SyncAccounts() error = %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}
