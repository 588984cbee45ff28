package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payments-router/app/cache"
	"github.com/vibast-solutions/ms-go-payments-router/app/factory"
)

const (
	DefaultWindow      = 30 * time.Second
	DefaultMaxRequests = 100
)

// Limiter counts requests per client over a trailing window. The window is
// stored as a JSON array of unix millisecond timestamps under a key that
// expires together with the window.
type Limiter struct {
	store       cache.Store
	window      time.Duration
	maxRequests int
	now         func() time.Time
	logger      logrus.FieldLogger
}

func NewLimiter(store cache.Store, window time.Duration, maxRequests int, now func() time.Time) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		store:       store,
		window:      window,
		maxRequests: maxRequests,
		now:         now,
		logger:      factory.NewModuleLogger("rate-limiter"),
	}
}

// Allow records a request for clientID and reports whether it fits in the
// window. Store failures fail open.
func (l *Limiter) Allow(ctx context.Context, clientID string) bool {
	key := "rate_limit_" + clientID + "_timestamps"
	now := l.now().UnixMilli()
	cutoff := now - l.window.Milliseconds()

	var stamps []int64
	raw, err := l.store.Get(ctx, key)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal([]byte(raw), &stamps); jsonErr != nil {
			stamps = nil
		}
	case errors.Is(err, cache.ErrNotFound):
	default:
		l.logger.WithError(err).WithField("client", clientID).Warn("Unable to read rate window")
		return true
	}

	kept := stamps[:0]
	for _, ts := range stamps {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.maxRequests {
		l.logger.WithField("client", clientID).Warn("Rate limit exceeded")
		return false
	}

	kept = append(kept, now)
	encoded, _ := json.Marshal(kept)
	if err := l.store.Set(ctx, key, string(encoded), l.window+time.Second); err != nil {
		l.logger.WithError(err).WithField("client", clientID).Warn("Unable to store rate window")
	}
	return true
}
