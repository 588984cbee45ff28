package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/vibast-solutions/ms-go-payments-router/app/cache"
	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/metrics"
	"github.com/vibast-solutions/ms-go-payments-router/app/provider"
)

type cachedLimit struct {
	Limited bool   `json:"limited"`
	Message string `json:"message,omitempty"`
}

func dailyLimitCacheKey(publicKey string, amountCents int64) string {
	sum := sha256.Sum256([]byte(publicKey + "|" + strconv.FormatInt(amountCents, 10)))
	return "daily_limit_" + hex.EncodeToString(sum[:])
}

// checkDailyLimit asks the gateway whether the account can take amount.
// Fresh results are written to the cache; only useCache callers read it.
func (s *GatewayService) checkDailyLimit(ctx context.Context, creds entity.Credentials, input *provider.PaymentInput, useCache bool) (*provider.LimitResult, error) {
	key := dailyLimitCacheKey(creds.PublicKey, input.AmountCents)

	if useCache && s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		if err == nil {
			var cached cachedLimit
			if json.Unmarshal([]byte(raw), &cached) == nil {
				metrics.LimitChecks.WithLabelValues(limitLabel(cached.Limited), "true").Inc()
				return &provider.LimitResult{Limited: cached.Limited, Message: cached.Message}, nil
			}
		} else if !errors.Is(err, cache.ErrNotFound) {
			s.logger.WithError(err).Warn("Unable to read daily limit cache")
		}
	}

	result, err := s.gateway.CheckDailyLimit(ctx, creds, input)
	if err != nil {
		metrics.LimitChecks.WithLabelValues("error", "false").Inc()
		return nil, err
	}
	metrics.LimitChecks.WithLabelValues(limitLabel(result.Limited), "false").Inc()

	if s.cache != nil {
		encoded, _ := json.Marshal(cachedLimit{Limited: result.Limited, Message: result.Message})
		if err := s.cache.Set(ctx, key, string(encoded), s.routingCfg.DailyLimitCacheTTL); err != nil {
			s.logger.WithError(err).Warn("Unable to cache daily limit result")
		}
	}
	return result, nil
}

// Availability reports whether any eligible account can currently accept a
// payment of amountCents. It decides whether checkout offers this gateway.
func (s *GatewayService) Availability(ctx context.Context, amountCents int64) (bool, error) {
	if amountCents < 0 {
		return false, ErrInvalidRequest
	}
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return false, err
	}

	mode := s.mode()
	for _, account := range eligibleAccounts(accounts, nil, mode) {
		creds := account.Credentials(mode)
		input := &provider.PaymentInput{AmountCents: amountCents, Sandbox: s.gatewayCfg.Sandbox}

		result, err := s.checkDailyLimit(ctx, creds, input, true)
		if err != nil {
			s.logger.WithError(err).WithField("account", account.Title).Warn("Daily limit check failed")
			continue
		}
		if !result.Limited {
			return true, nil
		}
	}
	return false, nil
}

func limitLabel(limited bool) string {
	if limited {
		return "limited"
	}
	return "ok"
}
