package types

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewCheckoutRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/checkout/orders/42/pay", bytes.NewBufferString(`{"order_key":" wc_key ","consent":"ON","fields":{"billing_first_name":"Jane"}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXForwardedFor, "198.51.100.4, 10.0.0.1")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("42")

	parsed, err := NewCheckoutRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if parsed.GetOrderID() != 42 || parsed.GetOrderKey() != "wc_key" {
		t.Fatalf("unexpected order: %+v", parsed)
	}
	if !parsed.GetConsent() {
		t.Fatal("expected consent")
	}
	if parsed.GetClientIP() != "198.51.100.4" {
		t.Fatalf("expected forwarded client ip, got %q", parsed.GetClientIP())
	}
	if parsed.GetFields()["billing_first_name"] != "Jane" {
		t.Fatalf("unexpected fields: %v", parsed.GetFields())
	}
}

func TestCheckoutRequestValidate(t *testing.T) {
	if err := (&CheckoutRequest{}).Validate(); err == nil {
		t.Fatal("expected order id validation error")
	}
	if err := (&CheckoutRequest{OrderID: 1}).Validate(); err == nil {
		t.Fatal("expected order_key validation error")
	}
}

func TestClientIPFromContext(t *testing.T) {
	e := echo.New()
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"client ip header", map[string]string{"Client-IP": "203.0.113.9", echo.HeaderXForwardedFor: "198.51.100.4"}, "192.0.2.1:1234", "203.0.113.9"},
		{"forwarded", map[string]string{echo.HeaderXForwardedFor: "198.51.100.4"}, "192.0.2.1:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"invalid", map[string]string{"Client-IP": "not-an-ip"}, "192.0.2.1:1234", "0.0.0.0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			ctx := e.NewContext(req, httptest.NewRecorder())
			if got := ClientIPFromContext(ctx); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNewAvailabilityRequestFromContext(t *testing.T) {
	e := echo.New()
	ctx := e.NewContext(httptest.NewRequest("GET", "/checkout/availability?amount=10.05", nil), httptest.NewRecorder())
	parsed, err := NewAvailabilityRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetAmountCents() != 1005 {
		t.Fatalf("expected 1005 cents, got %d", parsed.GetAmountCents())
	}

	ctx = e.NewContext(httptest.NewRequest("GET", "/checkout/availability?amount=abc", nil), httptest.NewRecorder())
	if _, err := NewAvailabilityRequestFromContext(ctx); err == nil {
		t.Fatal("expected invalid amount error")
	}
	if err := (&AvailabilityRequest{AmountCents: -1}).Validate(); err == nil {
		t.Fatal("expected negative amount error")
	}
}

func TestNewWebhookRequestFromContextAcceptsStringOrderID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/gateway/v1/data?token=tok-1", bytes.NewBufferString(`{"nonce":"cGtfQQ==","order_id":"42","order_status":"Completed","pay_id":" pay-1 "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())

	parsed, err := NewWebhookRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if parsed.GetOrderID() != 42 || parsed.GetOrderStatus() != "completed" || parsed.GetPayID() != "pay-1" {
		t.Fatalf("unexpected webhook: %+v", parsed)
	}
	if parsed.GetToken() != "tok-1" {
		t.Fatalf("expected token from query, got %q", parsed.GetToken())
	}
}

func TestWebhookRequestValidate(t *testing.T) {
	if err := (&WebhookRequest{Nonce: "x"}).Validate(); err == nil {
		t.Fatal("expected order id validation error")
	}
	if err := (&WebhookRequest{OrderID: 1}).Validate(); err == nil {
		t.Fatal("expected nonce validation error")
	}
}

func TestNewOrderSignalRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/checkout/orders/7/status", bytes.NewBufferString(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Security-Token", "sec-1")
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("7")

	parsed, err := NewOrderSignalRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetOrderID() != 7 || parsed.GetToken() != "sec-1" {
		t.Fatalf("unexpected signal: %+v", parsed)
	}
	if err := (&OrderSignalRequest{OrderID: 7}).Validate(); err == nil {
		t.Fatal("expected security validation error")
	}
}

func TestSaveAccountsRequestValidate(t *testing.T) {
	if err := (&SaveAccountsRequest{}).Validate(); err == nil {
		t.Fatal("expected accounts validation error")
	}
	if err := (&SaveAccountsRequest{Accounts: []AccountInput{}}).Validate(); err != nil {
		t.Fatalf("empty list is decided by the service, got %v", err)
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey("pk_live_1234567890"); got != "pk_l**********7890" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := MaskKey("short"); got != "*****" {
		t.Fatalf("unexpected mask %q", got)
	}
}
