package service

import (
	"context"
	"sort"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
)

// eligibleAccounts filters the pool for mode and orders it by ascending
// priority, keeping stored order for ties.
func eligibleAccounts(accounts []*entity.Account, excluded map[string]bool, mode entity.Mode) []*entity.Account {
	eligible := make([]*entity.Account, 0, len(accounts))
	for _, account := range accounts {
		if account == nil || excluded[account.Title] || !account.Eligible(mode) {
			continue
		}
		eligible = append(eligible, account)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Priority < eligible[j].Priority
	})
	return eligible
}

// selectAccount returns the first eligible account whose lock it could take,
// or nil. The caller owns the lock of the returned account.
func (s *GatewayService) selectAccount(ctx context.Context, excluded map[string]bool, mode entity.Mode) (*entity.Account, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	for _, account := range eligibleAccounts(accounts, excluded, mode) {
		if s.locks.Acquire(ctx, account.LockKey()) {
			return account, nil
		}
		s.logger.WithField("account", account.Title).Debug("Account busy, trying next")
	}
	return nil, nil
}
