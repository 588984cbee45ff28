package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/metrics"
	"github.com/vibast-solutions/ms-go-payments-router/app/token"
)

const (
	channelWebhook = "webhook"
	channelPoll    = "poll"
	channelPopup   = "popup"
	channelSweep   = "sweep"
)

type webhookRequest interface {
	GetNonce() string
	GetOrderID() uint64
	GetOrderStatus() string
	GetPayID() string
	GetToken() string
}

type orderSignalRequest interface {
	GetOrderID() uint64
	GetToken() string
}

type WebhookResult struct {
	Message          string
	PaymentReturnURL string
}

type StatusResult struct {
	Status      string
	RedirectURL string
}

type PopupResult struct {
	Message     string
	OrderID     uint64
	RedirectURL string
}

// HandleWebhook applies a status report posted by the gateway. The caller is
// identified by the base64 encoded public key in the nonce and the report
// must name the pay session stored on the order. Replays after the order is
// paid are acknowledged without side effects.
func (s *GatewayService) HandleWebhook(ctx context.Context, req webhookRequest) (*WebhookResult, error) {
	l := s.logger.WithField("order_id", req.GetOrderID()).WithField("channel", channelWebhook)

	authorized, err := s.knownPublicKey(ctx, req.GetNonce())
	if err != nil {
		return nil, err
	}
	if !authorized {
		l.Warn("Webhook rejected: unknown caller key")
		metrics.StatusSignals.WithLabelValues(channelWebhook, "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	order, err := s.loadOrder(ctx, req.GetOrderID())
	if err != nil {
		return nil, err
	}

	storedPayID := order.MetaValue(entity.OrderMetaPayID)
	if storedPayID == "" || !secureEqual(storedPayID, strings.TrimSpace(req.GetPayID())) {
		l.Warn("Webhook rejected: pay id mismatch")
		metrics.StatusSignals.WithLabelValues(channelWebhook, "pay_id_mismatch").Inc()
		return nil, ErrPayIDMismatch
	}

	result := &WebhookResult{PaymentReturnURL: s.OrderReceivedURL(order)}

	if !successEquivalent(req.GetOrderStatus()) {
		result.Message = "Request received, no status change performed based on API status"
		metrics.StatusSignals.WithLabelValues(channelWebhook, "ignored").Inc()
		return result, nil
	}
	if order.Status.Paid() {
		result.Message = "Order status already updated or no change required"
		metrics.StatusSignals.WithLabelValues(channelWebhook, "duplicate").Inc()
		return result, nil
	}

	var claims *token.Claims
	if raw := strings.TrimSpace(req.GetToken()); raw != "" {
		claims, err = s.tokens.Verify(raw, order.ID, token.PurposeReturn)
		if err != nil {
			metrics.StatusSignals.WithLabelValues(channelWebhook, "invalid_token").Inc()
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		if err := s.tokens.Consume(ctx, claims); err != nil {
			if errors.Is(err, token.ErrTokenUsed) && s.paidSinceLoad(ctx, order.ID) {
				result.Message = "Order status already updated or no change required"
				metrics.StatusSignals.WithLabelValues(channelWebhook, "duplicate").Inc()
				return result, nil
			}
			metrics.StatusSignals.WithLabelValues(channelWebhook, "invalid_token").Inc()
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
	}

	now := s.now().UTC()
	changed, err := s.orderRepo.UpdateStatus(ctx, order.ID, []entity.OrderStatus{
		entity.OrderStatusPending, entity.OrderStatusFailed,
	}, s.successStatus(), now)
	if err != nil {
		if claims != nil {
			if releaseErr := s.tokens.Release(ctx, claims); releaseErr != nil {
				l.WithError(releaseErr).Warn("Failed to release return token")
			}
		}
		return nil, err
	}
	if !changed {
		result.Message = "Order status already updated or no change required"
		metrics.StatusSignals.WithLabelValues(channelWebhook, "duplicate").Inc()
		return result, nil
	}

	s.emptyCart(ctx, order.ID)
	s.addNote(ctx, order.ID, fmt.Sprintf("Payment confirmed by gateway (pay id %s).", storedPayID), false)

	l.WithField("status", s.successStatus()).Info("Order paid")
	metrics.StatusSignals.WithLabelValues(channelWebhook, "updated").Inc()
	result.Message = "Order status processed successfully"
	return result, nil
}

// CheckPaymentStatus maps the stored order status for the checkout page.
// It never changes the order.
func (s *GatewayService) CheckPaymentStatus(ctx context.Context, req orderSignalRequest) (*StatusResult, error) {
	order, err := s.authorizedOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	status := pollStatus(order.Status)
	metrics.StatusSignals.WithLabelValues(channelPoll, status).Inc()
	return &StatusResult{Status: status, RedirectURL: s.OrderReceivedURL(order)}, nil
}

// HandlePopupClosed asks the gateway for the transaction status of a pending
// order once the customer closes the payment popup.
func (s *GatewayService) HandlePopupClosed(ctx context.Context, req orderSignalRequest) (*PopupResult, error) {
	order, err := s.authorizedOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	l := s.logger.WithField("order_id", order.ID).WithField("channel", channelPopup)

	if order.Status != entity.OrderStatusPending {
		metrics.StatusSignals.WithLabelValues(channelPopup, "ignored").Inc()
		return &PopupResult{Message: "No update required as the order status is not pending.", OrderID: order.ID}, nil
	}

	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	account := findAccountByTitle(accounts, order.MetaValue(entity.OrderMetaAccount))
	if account == nil {
		l.Error("Payment account of order is no longer configured")
		return nil, fmt.Errorf("%w: payment account of order is not configured", ErrNoAccountsAvailable)
	}

	txnStatus, err := s.gateway.TransactionStatus(ctx, account.Credentials(s.mode()).PublicKey, order.ID, order.MetaValue(entity.OrderMetaPayID))
	if err != nil {
		l.WithError(err).WithField("account", account.Title).Error("Transaction status lookup failed")
		metrics.StatusSignals.WithLabelValues(channelPopup, "transport_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrPaymentTransport, err)
	}

	result := &PopupResult{OrderID: order.ID, RedirectURL: s.OrderReceivedURL(order)}
	now := s.now().UTC()
	pending := []entity.OrderStatus{entity.OrderStatusPending}

	switch txnStatus {
	case "success", "paid", "processing":
		changed, err := s.orderRepo.UpdateStatus(ctx, order.ID, pending, s.successStatus(), now)
		if err != nil {
			return nil, err
		}
		if changed {
			s.emptyCart(ctx, order.ID)
		}
		result.Message = "Order status updated successfully."
	case "failed":
		if _, err := s.orderRepo.UpdateStatus(ctx, order.ID, pending, entity.OrderStatusFailed, now); err != nil {
			return nil, err
		}
		result.Message = "Order status updated to failed."
	case "canceled", "cancelled", "expired":
		changed, err := s.orderRepo.UpdateStatus(ctx, order.ID, pending, entity.OrderStatusCancelled, now)
		if err != nil {
			return nil, err
		}
		if changed {
			s.restoreStock(ctx, order.ID)
			if err := s.cancelLatestLink(ctx, l, order.ID); err != nil {
				l.WithError(err).Warn("Payment link lookup failed")
			}
		}
		result.Message = "Order status updated to canceled."
	default:
		l.WithField("txn_status", txnStatus).Warn("Unknown transaction status received")
		metrics.StatusSignals.WithLabelValues(channelPopup, "unknown").Inc()
		return nil, ErrUnknownTxnStatus
	}

	l.WithField("txn_status", txnStatus).Info("Order reconciled after popup close")
	metrics.StatusSignals.WithLabelValues(channelPopup, "updated").Inc()
	return result, nil
}

func (s *GatewayService) authorizedOrder(ctx context.Context, req orderSignalRequest) (*entity.Order, error) {
	if _, err := s.tokens.Verify(req.GetToken(), req.GetOrderID(), token.PurposeStatus); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return s.loadOrder(ctx, req.GetOrderID())
}

// knownPublicKey reports whether nonce decodes to the public key of any
// account in the current mode.
func (s *GatewayService) knownPublicKey(ctx context.Context, nonce string) (bool, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(nonce))
	if err != nil || len(decoded) == 0 {
		return false, nil
	}
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return false, err
	}

	mode := s.mode()
	found := false
	for _, account := range accounts {
		key := account.Credentials(mode).PublicKey
		if key != "" && secureEqual(key, string(decoded)) {
			found = true
		}
	}
	return found, nil
}

func (s *GatewayService) emptyCart(ctx context.Context, orderID uint64) {
	if _, err := s.orderRepo.MarkCartEmptied(ctx, orderID, s.now().UTC()); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("Unable to empty cart")
	}
}

func (s *GatewayService) restoreStock(ctx context.Context, orderID uint64) {
	if _, err := s.orderRepo.MarkStockRestored(ctx, orderID, s.now().UTC()); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("Unable to restore stock")
	}
}

func successEquivalent(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "success", "paid":
		return true
	default:
		return false
	}
}

func pollStatus(status entity.OrderStatus) string {
	switch {
	case status.Paid():
		return "success"
	case status == entity.OrderStatusFailed:
		return "failed"
	case status == entity.OrderStatusPending, status == entity.OrderStatusOnHold:
		return "pending"
	case status == entity.OrderStatusCancelled:
		return "canceled"
	case status == entity.OrderStatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// paidSinceLoad re-reads the order after a concurrent delivery consumed the
// return token first.
func (s *GatewayService) paidSinceLoad(ctx context.Context, orderID uint64) bool {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil || order == nil {
		return false
	}
	return order.Status.Paid()
}
