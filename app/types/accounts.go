package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

// AccountInput is one account as submitted by an operator, over HTTP or in
// an import file.
type AccountInput struct {
	Title            string `json:"title" yaml:"title"`
	Priority         int    `json:"priority" yaml:"priority"`
	LivePublicKey    string `json:"live_public_key" yaml:"live_public_key"`
	LiveSecretKey    string `json:"live_secret_key" yaml:"live_secret_key"`
	SandboxPublicKey string `json:"sandbox_public_key" yaml:"sandbox_public_key"`
	SandboxSecretKey string `json:"sandbox_secret_key" yaml:"sandbox_secret_key"`
}

type SaveAccountsRequest struct {
	Accounts []AccountInput `json:"accounts" yaml:"accounts"`
}

func NewSaveAccountsRequestFromContext(ctx echo.Context) (*SaveAccountsRequest, error) {
	var body SaveAccountsRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *SaveAccountsRequest) Validate() error {
	if r.Accounts == nil {
		return errors.New("accounts is required")
	}
	return nil
}

func (r *SaveAccountsRequest) GetAccounts() []AccountInput {
	return r.Accounts
}

type CredentialsView struct {
	PublicKey string `json:"public_key"`
	SecretKey string `json:"secret_key"`
	Status    string `json:"status"`
}

type AccountView struct {
	Title      string           `json:"title"`
	Priority   int              `json:"priority"`
	Live       CredentialsView  `json:"live"`
	Sandbox    *CredentialsView `json:"sandbox,omitempty"`
	HasSandbox bool             `json:"has_sandbox"`
}

type ListAccountsResponse struct {
	Accounts []AccountView `json:"accounts"`
}

type SyncAccountsResponse struct {
	Message   string              `json:"message"`
	Timestamp string              `json:"timestamp"`
	Statuses  []AccountStatusView `json:"statuses"`
}

type AccountStatusView struct {
	Title  string `json:"title"`
	Mode   string `json:"mode"`
	Status string `json:"status"`
}

// MaskKey keeps the first and last four characters of a key.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
