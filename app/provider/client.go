package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/metrics"
)

const (
	pathRequestPayment = "/api/request-payment"
	pathDailyLimit     = "/api/dailylimit"
	pathTxnStatus      = "/api/update-txn-status"
	pathCancelLink     = "/api/cancel-order-link"
	pathSyncStatus     = "/api/sync-account-status"
	pathSwitchEmail    = "/api/switch-account-email"
)

type ClientConfig struct {
	BaseURL           string
	HTTPTimeout       time.Duration
	StatusHTTPTimeout time.Duration
}

type Client struct {
	cfg    ClientConfig
	client *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.StatusHTTPTimeout <= 0 {
		cfg.StatusHTTPTimeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

func (c *Client) RequestPayment(ctx context.Context, creds entity.Credentials, input *PaymentInput) (*PaymentResult, error) {
	_, body, err := c.postForm(ctx, pathRequestPayment, creds.PublicKey, paymentValues(creds, input))
	if err != nil && (IsTransport(err) || len(body) == 0) {
		return nil, err
	}

	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Error   string `json:"error"`
		Data    struct {
			PaymentLink string      `json:"payment_link"`
			PayID       interface{} `json:"pay_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid payment response: %v", ErrTransport, err)
	}

	result := &PaymentResult{
		PaymentLink: strings.TrimSpace(payload.Data.PaymentLink),
		PayID:       stringish(payload.Data.PayID),
		Message:     firstNonEmpty(payload.Message, payload.Error),
	}
	result.Success = payload.Status == "success" && result.PaymentLink != ""
	if !result.Success && result.Message == "" {
		result.Message = "payment request was not accepted"
	}
	return result, nil
}

// CheckDailyLimit posts the same payload as a payment request. Only an
// explicit error field counts as a limit; an unreadable body does not.
func (c *Client) CheckDailyLimit(ctx context.Context, creds entity.Credentials, input *PaymentInput) (*LimitResult, error) {
	_, body, err := c.postForm(ctx, pathDailyLimit, creds.PublicKey, paymentValues(creds, input))
	if err != nil && (IsTransport(err) || len(body) == 0) {
		return nil, err
	}

	var payload struct {
		Error interface{} `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil || payload.Error == nil {
		return &LimitResult{}, nil
	}
	message := stringish(payload.Error)
	if message == "" {
		message = "daily limit reached"
	}
	return &LimitResult{Limited: true, Message: message}, nil
}

func (c *Client) TransactionStatus(ctx context.Context, bearer string, orderID uint64, payID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatusHTTPTimeout)
	defer cancel()

	_, body, err := c.postJSON(ctx, pathTxnStatus, bearer, map[string]interface{}{
		"order_id":      orderID,
		"payment_token": payID,
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		TransactionStatus *string `json:"transaction_status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.TransactionStatus == nil {
		return "", fmt.Errorf("%w: invalid transaction status response", ErrTransport)
	}
	return strings.ToLower(strings.TrimSpace(*payload.TransactionStatus)), nil
}

func (c *Client) CancelPaymentLink(ctx context.Context, orderID uint64, payID string) error {
	_, _, err := c.postJSON(ctx, pathCancelLink, "", map[string]interface{}{
		"order_id":   orderID,
		"order_uuid": payID,
		"status":     "canceled",
	})
	return err
}

func (c *Client) SyncAccountStatus(ctx context.Context, keys []AccountKey) ([]AccountStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatusHTTPTimeout)
	defer cancel()

	_, body, err := c.postJSON(ctx, pathSyncStatus, "", map[string]interface{}{"accounts": keys})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Statuses []AccountStatus `json:"statuses"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid sync response: %v", ErrTransport, err)
	}

	statuses := make([]AccountStatus, 0, len(payload.Statuses))
	for _, item := range payload.Statuses {
		if item.Mode == "" || item.PublicKey == "" || item.Status == "" {
			continue
		}
		statuses = append(statuses, item)
	}
	return statuses, nil
}

func (c *Client) SendAccountSwitchEmail(ctx context.Context, input *SwitchEmailInput) error {
	message := input.Message
	if message == "" {
		message = "Payment processing account has been switched. Please review the details."
	}
	status, body, err := c.postJSON(ctx, pathSwitchEmail, input.OldKeys.PublicKey, map[string]interface{}{
		"old_account": map[string]string{
			"title":      input.OldTitle,
			"secret_key": input.OldKeys.SecretKey,
		},
		"new_account": map[string]string{
			"title": input.NewTitle,
		},
		"message":    message,
		"is_sandbox": input.Sandbox,
	})
	if err != nil && status == 0 {
		return err
	}

	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	if status == http.StatusUnauthorized || status == http.StatusForbidden || strings.Contains(payload.Error, "invalid credentials") {
		return ErrUnauthorized
	}
	if payload.Error != "" {
		return fmt.Errorf("switch email rejected: %s", payload.Error)
	}
	return err
}

func (c *Client) postForm(ctx context.Context, path, bearer string, values url.Values) (int, []byte, error) {
	return c.do(ctx, path, bearer, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
}

func (c *Client) postJSON(ctx context.Context, path, bearer string, payload interface{}) (int, []byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	return c.do(ctx, path, bearer, "application/json", bytes.NewReader(encoded))
}

// do returns the body for any response the gateway answered. A status of
// 400 or above is reported as an error alongside the status and body.
func (c *Client) do(ctx context.Context, path, bearer, contentType string, body io.Reader) (int, []byte, error) {
	start := time.Now()
	defer func() {
		metrics.RemoteCallDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode >= 500 {
		return resp.StatusCode, respBody, fmt.Errorf("%w: path=%s status=%d", ErrTransport, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, respBody, fmt.Errorf("gateway request failed: path=%s status=%d", path, resp.StatusCode)
	}
	return resp.StatusCode, respBody, nil
}

func paymentValues(creds entity.Credentials, input *PaymentInput) url.Values {
	amount := formatAmount(input.AmountCents)
	orderID := strconv.FormatUint(input.OrderID, 10)

	values := url.Values{}
	values.Set("api_secret", creds.SecretKey)
	values.Set("api_public_key", creds.PublicKey)
	values.Set("first_name", input.FirstName)
	values.Set("last_name", input.LastName)
	values.Set("request_for", input.RequestFor)
	values.Set("amount", amount)
	values.Set("redirect_url", input.RedirectURL)
	values.Set("redirect_time", "3")
	values.Set("ip_address", input.IPAddress)
	values.Set("source", "wordpress")
	values.Set("meta_data[order_id]", orderID)
	values.Set("meta_data[amount]", amount)
	values.Set("meta_data[source]", "woocommerce")
	values.Set("remarks", "Order "+input.OrderNumber)
	values.Set("billing_address_1", input.Billing.Address1)
	values.Set("billing_address_2", input.Billing.Address2)
	values.Set("billing_city", input.Billing.City)
	values.Set("billing_postcode", input.Billing.Postcode)
	values.Set("billing_country", input.Billing.Country)
	values.Set("billing_state", input.Billing.State)
	values.Set("is_sandbox", strconv.FormatBool(input.Sandbox))
	return values
}

func formatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func stringish(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return ""
	case map[string]interface{}:
		if raw, ok := t["message"]; ok {
			return stringish(raw)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// IsTransport reports whether err means the gateway could not be reached.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
