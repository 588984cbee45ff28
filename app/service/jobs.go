package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/metrics"
	"github.com/vibast-solutions/ms-go-payments-router/app/provider"
)

const unpaidCancelNote = "Order automatically cancelled due to unpaid timeout."

type SyncedStatus struct {
	Title  string
	Mode   entity.Mode
	Status entity.AccountStatus
}

type SyncSummary struct {
	Timestamp time.Time
	Statuses  []SyncedStatus
}

// SyncAccounts pulls the remote status of every configured key in one call
// and stores it on the matching accounts. Statuses are left untouched when
// the remote call fails.
func (s *GatewayService) SyncAccounts(ctx context.Context) (*SyncSummary, error) {
	accounts, err := s.accountRepo.List(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	summary := &SyncSummary{Timestamp: s.now().UTC()}
	keys := syncKeys(accounts)
	if len(keys) == 0 {
		metrics.SyncRuns.WithLabelValues("empty").Inc()
		return summary, nil
	}

	statuses, err := s.gateway.SyncAccountStatus(ctx, keys)
	if err != nil {
		s.logger.WithError(err).Error("Account status sync failed")
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrPaymentTransport, err)
	}

	changed := false
	for _, item := range statuses {
		mode, ok := entity.ParseMode(string(item.Mode))
		if !ok {
			continue
		}
		status := entity.ParseAccountStatus(item.Status)
		for _, account := range accounts {
			creds := account.Credentials(mode)
			if creds.PublicKey == "" || creds.PublicKey != item.PublicKey {
				continue
			}
			if creds.Status != status {
				account.SetStatus(mode, status)
				changed = true
			}
			summary.Statuses = append(summary.Statuses, SyncedStatus{Title: account.Title, Mode: mode, Status: status})
		}
	}

	if changed {
		if err := s.accountRepo.Save(ctx, accounts); err != nil {
			metrics.SyncRuns.WithLabelValues("error").Inc()
			return nil, err
		}
	}
	s.invalidateAccounts()

	for _, item := range summary.Statuses {
		s.logger.WithField("account", item.Title).WithField("mode", item.Mode).WithField("status", item.Status).Info("Account status synced")
	}
	metrics.SyncRuns.WithLabelValues("ok").Inc()
	return summary, nil
}

func syncKeys(accounts []*entity.Account) []provider.AccountKey {
	keys := make([]provider.AccountKey, 0, len(accounts)*2)
	for _, account := range accounts {
		if account.Live.PublicKey != "" {
			keys = append(keys, provider.AccountKey{
				AccountName: account.Title,
				PublicKey:   account.Live.PublicKey,
				SecretKey:   account.Live.SecretKey,
				Mode:        entity.ModeLive,
			})
		}
		if account.HasSandbox && account.Sandbox.PublicKey != "" {
			keys = append(keys, provider.AccountKey{
				AccountName: account.Title,
				PublicKey:   account.Sandbox.PublicKey,
				SecretKey:   account.Sandbox.SecretKey,
				Mode:        entity.ModeSandbox,
			})
		}
	}
	return keys
}

// RunExpireUnpaidBatch cancels gateway orders left pending longer than the
// unpaid timeout, restores their stock and cancels their remote pay session.
func (s *GatewayService) RunExpireUnpaidBatch(ctx context.Context) error {
	now := s.now().UTC()
	cutoff := now.Add(-s.unpaidTimeout())
	orders, err := s.orderRepo.ListPendingBefore(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range orders {
		if order == nil {
			continue
		}
		if err := s.expireUnpaid(ctx, order, cutoff, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}
	return firstErr
}

func (s *GatewayService) expireUnpaid(ctx context.Context, order *entity.Order, cutoff, now time.Time) error {
	l := s.logger.WithField("order_id", order.ID).WithField("channel", channelSweep)

	// The pending timestamp written at checkout wins over the creation time.
	if raw := order.MetaValue(entity.OrderMetaPendingSince); raw != "" {
		if since, err := strconv.ParseInt(raw, 10, 64); err == nil && time.Unix(since, 0).After(cutoff) {
			l.Debug("Order still within unpaid window")
			return nil
		}
	}

	changed, err := s.orderRepo.UpdateStatus(ctx, order.ID, []entity.OrderStatus{entity.OrderStatusPending}, entity.OrderStatusCancelled, now)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.restoreStock(ctx, order.ID)
	s.addNote(ctx, order.ID, unpaidCancelNote, false)
	metrics.StatusSignals.WithLabelValues(channelSweep, "cancelled").Inc()

	return s.cancelLatestLink(ctx, l, order.ID)
}

// cancelLatestLink cancels the most recent payment link of a cancelled
// order at the gateway. Only the link lookup error is returned.
func (s *GatewayService) cancelLatestLink(ctx context.Context, l logrus.FieldLogger, orderID uint64) error {
	link, err := s.linkRepo.FindLatestByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if link == nil || link.UUID == "" {
		l.Warn("No payment link recorded for cancelled order")
		return nil
	}
	if err := s.gateway.CancelPaymentLink(ctx, orderID, link.UUID); err != nil {
		l.WithError(err).Warn("Unable to cancel payment link of cancelled order")
		return nil
	}
	l.WithField("uuid", link.UUID).Info("Payment link cancelled")
	return nil
}

func (s *GatewayService) unpaidTimeout() time.Duration {
	if s.jobsCfg.UnpaidTimeout > 0 {
		return s.jobsCfg.UnpaidTimeout
	}
	return 30 * time.Minute
}
