package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/types"
)

type saveAccountsRequest interface {
	GetAccounts() []types.AccountInput
}

// ListAccounts returns copies of the stored pool. Reads are served from a
// short-lived in-process copy that saves and syncs invalidate.
func (s *GatewayService) ListAccounts(ctx context.Context) ([]*entity.Account, error) {
	s.accountsMu.RLock()
	if s.accountsCache != nil && s.now().Sub(s.accountsCachedAt) < accountsCacheTTL {
		accounts := cloneAccounts(s.accountsCache)
		s.accountsMu.RUnlock()
		return accounts, nil
	}
	s.accountsMu.RUnlock()

	accounts, err := s.accountRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	s.accountsMu.Lock()
	s.accountsCache = accounts
	s.accountsCachedAt = s.now()
	s.accountsMu.Unlock()

	return cloneAccounts(accounts), nil
}

func (s *GatewayService) invalidateAccounts() {
	s.accountsMu.Lock()
	s.accountsCache = nil
	s.accountsMu.Unlock()
}

// SaveAccounts validates the whole candidate list and persists it only when
// every entry is valid. A successful save triggers an account sync.
func (s *GatewayService) SaveAccounts(ctx context.Context, req saveAccountsRequest) ([]*entity.Account, error) {
	existing, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	accounts, messages := validateAccounts(req.GetAccounts(), existing)
	if len(messages) > 0 {
		return nil, &ValidationError{Err: ErrAccountValidation, Messages: messages}
	}

	if err := s.accountRepo.Save(ctx, accounts); err != nil {
		return nil, err
	}
	s.invalidateAccounts()
	s.logger.WithField("accounts", len(accounts)).Info("Accounts saved")

	if _, err := s.SyncAccounts(ctx); err != nil {
		s.logger.WithError(err).Warn("Account sync after save failed")
	}
	return s.ListAccounts(ctx)
}

// MigrateAccounts normalizes legacy account data and syncs when anything
// was rewritten.
func (s *GatewayService) MigrateAccounts(ctx context.Context) (bool, error) {
	migrated, err := s.accountRepo.Migrate(ctx)
	if err != nil || !migrated {
		return migrated, err
	}
	s.invalidateAccounts()
	s.logger.Info("Account settings migrated")

	if _, err := s.SyncAccounts(ctx); err != nil {
		s.logger.WithError(err).Warn("Account sync after migration failed")
	}
	return true, nil
}

func validateAccounts(inputs []types.AccountInput, existing []*entity.Account) ([]*entity.Account, []string) {
	previous := make(map[string]*entity.Account, len(existing))
	for _, account := range existing {
		previous[normalizeTitle(account.Title)] = account
	}

	var (
		messages []string
		accounts = make([]*entity.Account, 0, len(inputs))
		titles   = map[string]string{}
		keys     = map[string]string{}
	)

	for _, input := range inputs {
		title := strings.TrimSpace(input.Title)
		live := entity.Credentials{
			PublicKey: strings.TrimSpace(input.LivePublicKey),
			SecretKey: strings.TrimSpace(input.LiveSecretKey),
		}
		sandbox := entity.Credentials{
			PublicKey: strings.TrimSpace(input.SandboxPublicKey),
			SecretKey: strings.TrimSpace(input.SandboxSecretKey),
		}

		if title == "" && live.PublicKey == "" && live.SecretKey == "" && sandbox.PublicKey == "" && sandbox.SecretKey == "" {
			continue
		}
		if title == "" || !live.Complete() {
			messages = append(messages, fmt.Sprintf("Account %q: Title, Live Public Key, and Live Secret Key are required.", title))
			continue
		}

		normalized := normalizeTitle(title)
		if other, ok := titles[normalized]; ok {
			messages = append(messages, fmt.Sprintf("Account %q: Title must be unique (conflicts with %q).", title, other))
			continue
		}
		titles[normalized] = title

		priority := input.Priority
		if priority == 0 {
			priority = 1
		}
		if priority < 0 {
			messages = append(messages, fmt.Sprintf("Account %q: Priority must be a positive number.", title))
			continue
		}

		if live.PublicKey == live.SecretKey {
			messages = append(messages, fmt.Sprintf("Account %q: Live Public Key and Live Secret Key must be different.", title))
			continue
		}

		hasSandbox := sandbox.PublicKey != "" || sandbox.SecretKey != ""
		if hasSandbox {
			if !sandbox.Complete() {
				messages = append(messages, fmt.Sprintf("Account %q: Sandbox Public Key and Sandbox Secret Key are both required.", title))
				continue
			}
			if sandbox.PublicKey == sandbox.SecretKey {
				messages = append(messages, fmt.Sprintf("Account %q: Sandbox Public Key and Sandbox Secret Key must be different.", title))
				continue
			}
		}

		candidateKeys := []string{live.PublicKey, live.SecretKey}
		if hasSandbox {
			candidateKeys = append(candidateKeys, sandbox.PublicKey, sandbox.SecretKey)
		}
		if hasSandbox && reusesOwnKey(candidateKeys) {
			messages = append(messages, fmt.Sprintf("Account %q: Live and Sandbox keys must all be different.", title))
			continue
		}
		duplicate := ""
		for _, key := range candidateKeys {
			if owner, ok := keys[key]; ok {
				duplicate = owner
				break
			}
		}
		if duplicate != "" {
			messages = append(messages, fmt.Sprintf("Account %q: keys must be unique across all accounts (already used by %q).", title, duplicate))
			continue
		}
		for _, key := range candidateKeys {
			keys[key] = title
		}

		live.Status = entity.AccountStatusActive
		sandbox.Status = entity.AccountStatusActive
		if prev, ok := previous[normalized]; ok {
			if prev.Live.PublicKey == live.PublicKey && prev.Live.Status != "" {
				live.Status = prev.Live.Status
			}
			if prev.Sandbox.PublicKey == sandbox.PublicKey && prev.Sandbox.Status != "" {
				sandbox.Status = prev.Sandbox.Status
			}
		}

		accounts = append(accounts, &entity.Account{
			Title:      title,
			Priority:   priority,
			Live:       live,
			Sandbox:    sandbox,
			HasSandbox: hasSandbox,
		})
	}

	if len(accounts) == 0 && len(messages) == 0 {
		messages = append(messages, "You cannot delete all accounts. At least one valid payment account must be configured.")
	}
	return accounts, messages
}

func cloneAccounts(accounts []*entity.Account) []*entity.Account {
	out := make([]*entity.Account, 0, len(accounts))
	for _, account := range accounts {
		if account == nil {
			continue
		}
		copied := *account
		out = append(out, &copied)
	}
	return out
}

func findAccountByTitle(accounts []*entity.Account, title string) *entity.Account {
	normalized := normalizeTitle(title)
	for _, account := range accounts {
		if normalizeTitle(account.Title) == normalized {
			return account
		}
	}
	return nil
}

func reusesOwnKey(keys []string) bool {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}
