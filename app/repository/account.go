package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
)

const (
	AccountsSettingName = "gateway_accounts"
	// LegacySettingName holds the single key-pair configuration that
	// predates account pools.
	LegacySettingName = "gateway_settings"

	defaultAccountTitle = "Default Account"
)

type settingsStore interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, value string) error
}

// AccountRepository persists the account pool as one JSON document in the
// settings table.
type AccountRepository struct {
	settings settingsStore
}

func NewAccountRepository(settings settingsStore) *AccountRepository {
	return &AccountRepository{settings: settings}
}

// List never fails on absent or malformed data; it returns an empty pool.
// Records missing status, priority or title get their defaults.
func (r *AccountRepository) List(ctx context.Context) ([]*entity.Account, error) {
	raw, ok, err := r.settings.Get(ctx, AccountsSettingName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*entity.Account{}, nil
	}
	return decodeAccounts(raw), nil
}

func (r *AccountRepository) Save(ctx context.Context, accounts []*entity.Account) error {
	records := make([]accountRecord, 0, len(accounts))
	for _, account := range accounts {
		if account == nil {
			continue
		}
		records = append(records, toRecord(account))
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return r.settings.Set(ctx, AccountsSettingName, string(payload))
}

// Migrate normalizes a stored pool in place, or builds a one-account pool
// from the legacy single-key settings. It reports whether anything was
// written.
func (r *AccountRepository) Migrate(ctx context.Context) (bool, error) {
	raw, ok, err := r.settings.Get(ctx, AccountsSettingName)
	if err != nil {
		return false, err
	}
	if ok {
		accounts := decodeAccounts(raw)
		if len(accounts) > 0 {
			return true, r.Save(ctx, accounts)
		}
	}

	legacyRaw, ok, err := r.settings.Get(ctx, LegacySettingName)
	if err != nil || !ok {
		return false, err
	}
	var legacy struct {
		PublicKey        string `json:"public_key"`
		SecretKey        string `json:"secret_key"`
		SandboxPublicKey string `json:"sandbox_public_key"`
		SandboxSecretKey string `json:"sandbox_secret_key"`
		Sandbox          string `json:"sandbox"`
	}
	if json.Unmarshal([]byte(legacyRaw), &legacy) != nil {
		return false, nil
	}
	if legacy.PublicKey == "" && legacy.SecretKey == "" && legacy.SandboxPublicKey == "" && legacy.SandboxSecretKey == "" {
		return false, nil
	}

	sandboxStatus := entity.AccountStatusInactive
	if strings.EqualFold(legacy.Sandbox, "yes") {
		sandboxStatus = entity.AccountStatusActive
	}
	account := &entity.Account{
		Title:    defaultAccountTitle,
		Priority: 1,
		Live: entity.Credentials{
			PublicKey: strings.TrimSpace(legacy.PublicKey),
			SecretKey: strings.TrimSpace(legacy.SecretKey),
			Status:    entity.AccountStatusActive,
		},
		Sandbox: entity.Credentials{
			PublicKey: strings.TrimSpace(legacy.SandboxPublicKey),
			SecretKey: strings.TrimSpace(legacy.SandboxSecretKey),
			Status:    sandboxStatus,
		},
	}
	account.HasSandbox = account.Sandbox.Complete()
	return true, r.Save(ctx, []*entity.Account{account})
}

type accountRecord struct {
	Title            string   `json:"title"`
	Priority         flexInt  `json:"priority"`
	LivePublicKey    string   `json:"live_public_key"`
	LiveSecretKey    string   `json:"live_secret_key"`
	SandboxPublicKey string   `json:"sandbox_public_key"`
	SandboxSecretKey string   `json:"sandbox_secret_key"`
	HasSandbox       flexBool `json:"has_sandbox"`
	LiveStatus       *string  `json:"live_status,omitempty"`
	SandboxStatus    *string  `json:"sandbox_status,omitempty"`
}

func decodeAccounts(raw string) []*entity.Account {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []*entity.Account{}
	}

	var records []accountRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil && len(records) == 0 {
		var keyed map[string]accountRecord
		if json.Unmarshal([]byte(raw), &keyed) != nil {
			return []*entity.Account{}
		}
		keys := make([]int, 0, len(keyed))
		for k := range keyed {
			n, err := strconv.Atoi(k)
			if err != nil {
				return []*entity.Account{}
			}
			keys = append(keys, n)
		}
		sort.Ints(keys)
		for _, k := range keys {
			records = append(records, keyed[strconv.Itoa(k)])
		}
	}

	accounts := make([]*entity.Account, 0, len(records))
	for _, record := range records {
		accounts = append(accounts, fromRecord(record))
	}
	return accounts
}

func fromRecord(record accountRecord) *entity.Account {
	account := &entity.Account{
		Title:    strings.TrimSpace(record.Title),
		Priority: int(record.Priority),
		Live: entity.Credentials{
			PublicKey: strings.TrimSpace(record.LivePublicKey),
			SecretKey: strings.TrimSpace(record.LiveSecretKey),
			Status:    statusOrActive(record.LiveStatus),
		},
		Sandbox: entity.Credentials{
			PublicKey: strings.TrimSpace(record.SandboxPublicKey),
			SecretKey: strings.TrimSpace(record.SandboxSecretKey),
			Status:    statusOrActive(record.SandboxStatus),
		},
	}
	if account.Title == "" {
		account.Title = defaultAccountTitle
	}
	if account.Priority <= 0 {
		account.Priority = 1
	}
	account.HasSandbox = account.Sandbox.Complete()
	return account
}

func toRecord(account *entity.Account) accountRecord {
	liveStatus := string(account.Live.Status)
	sandboxStatus := string(account.Sandbox.Status)
	return accountRecord{
		Title:            account.Title,
		Priority:         flexInt(account.Priority),
		LivePublicKey:    account.Live.PublicKey,
		LiveSecretKey:    account.Live.SecretKey,
		SandboxPublicKey: account.Sandbox.PublicKey,
		SandboxSecretKey: account.Sandbox.SecretKey,
		HasSandbox:       flexBool(account.HasSandbox),
		LiveStatus:       &liveStatus,
		SandboxStatus:    &sandboxStatus,
	}
}

func statusOrActive(raw *string) entity.AccountStatus {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return entity.AccountStatusActive
	}
	return entity.ParseAccountStatus(*raw)
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if v, err := strconv.Atoi(n.String()); err == nil {
			*f = flexInt(v)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*f = flexInt(v)
		}
	}
	return nil
}

// flexBool accepts a JSON bool or one of "on", "yes", "1", "true".
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on", "yes", "1", "true":
			*f = true
		default:
			*f = false
		}
	}
	return nil
}

func (f flexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(f))
}
