package lock

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payments-router/app/cache"
	"github.com/vibast-solutions/ms-go-payments-router/app/factory"
	"github.com/vibast-solutions/ms-go-payments-router/app/metrics"
)

const DefaultTimeout = 10 * time.Second

// Manager is a try-once mutex keyed by name. The record value is the expiry
// as unix milliseconds and carries no owner; a record past its expiry is
// free for the next caller even if it was never released.
//
// Against Redis the first write is an atomic SET NX PX. Taking over a stale
// record is a plain overwrite, so two callers racing on the same stale record
// may both succeed. A duplicate attempt is resolved by the remote gateway,
// which is idempotent per order.
type Manager struct {
	store   cache.Store
	timeout time.Duration
	now     func() time.Time
	logger  logrus.FieldLogger
}

func NewManager(store cache.Store, timeout time.Duration, now func() time.Time) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:   store,
		timeout: timeout,
		now:     now,
		logger:  factory.NewModuleLogger("lock-manager"),
	}
}

func (m *Manager) Acquire(ctx context.Context, key string) bool {
	now := m.now()
	value := strconv.FormatInt(now.Add(m.timeout).UnixMilli(), 10)

	ok, err := m.store.SetNX(ctx, key, value, m.timeout)
	if err != nil {
		metrics.LockAcquisitions.WithLabelValues("error").Inc()
		m.logger.WithError(err).WithField("lock", key).Error("Unable to acquire lock")
		return false
	}
	if ok {
		metrics.LockAcquisitions.WithLabelValues("acquired").Inc()
		m.logger.WithField("lock", key).Debug("Lock acquired")
		return true
	}

	current, err := m.store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		ok, err = m.store.SetNX(ctx, key, value, m.timeout)
		if err == nil && ok {
			metrics.LockAcquisitions.WithLabelValues("acquired").Inc()
			return true
		}
		metrics.LockAcquisitions.WithLabelValues("contended").Inc()
		return false
	}
	if err != nil {
		metrics.LockAcquisitions.WithLabelValues("error").Inc()
		m.logger.WithError(err).WithField("lock", key).Error("Unable to read lock")
		return false
	}

	expiresAt, parseErr := strconv.ParseInt(current, 10, 64)
	if parseErr == nil && now.UnixMilli() < expiresAt {
		metrics.LockAcquisitions.WithLabelValues("contended").Inc()
		return false
	}

	if err := m.store.Set(ctx, key, value, m.timeout); err != nil {
		metrics.LockAcquisitions.WithLabelValues("error").Inc()
		m.logger.WithError(err).WithField("lock", key).Error("Unable to take over stale lock")
		return false
	}
	metrics.LockAcquisitions.WithLabelValues("stale_takeover").Inc()
	m.logger.WithField("lock", key).Info("Stale lock taken over")
	return true
}

func (m *Manager) Release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := m.store.Delete(ctx, key); err != nil {
		m.logger.WithError(err).WithField("lock", key).Warn("Unable to release lock")
		return
	}
	m.logger.WithField("lock", key).Debug("Lock released")
}
