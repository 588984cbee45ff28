package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/metrics"
	"github.com/vibast-solutions/ms-go-payments-router/app/provider"
	"github.com/vibast-solutions/ms-go-payments-router/app/repository"
	"github.com/vibast-solutions/ms-go-payments-router/app/token"
)

const consentMessage = "You must consent to the collection of your data to process this payment."

type processPaymentRequest interface {
	GetOrderID() uint64
	GetOrderKey() string
	GetClientIP() string
	GetFields() map[string]string
	GetConsent() bool
}

// PaymentOutcome is a started remote pay session for an order.
type PaymentOutcome struct {
	OrderID       uint64
	PaymentLink   string
	PayID         string
	Account       string
	SecurityToken string
}

// ProcessPayment routes a checkout through the account pool. Accounts that
// report a daily limit are excluded and the next eligible one is tried; any
// other failure ends the attempt.
func (s *GatewayService) ProcessPayment(ctx context.Context, req processPaymentRequest) (*PaymentOutcome, error) {
	mode := s.mode()
	clientIP := req.GetClientIP()

	if !s.limiter.Allow(ctx, clientIP) {
		metrics.PaymentAttempts.WithLabelValues(string(mode), "rate_limited").Inc()
		return nil, ErrRateLimited
	}

	if messages := suspiciousFields(req.GetFields()); len(messages) > 0 {
		s.logger.WithField("ip", clientIP).WithField("order_id", req.GetOrderID()).Warn("Suspicious checkout input rejected")
		metrics.PaymentAttempts.WithLabelValues(string(mode), "rejected").Inc()
		return nil, &ValidationError{Err: ErrSuspiciousInput, Messages: messages}
	}
	if s.gatewayCfg.ConsentRequired && !req.GetConsent() {
		return nil, &ValidationError{Err: ErrInvalidRequest, Messages: []string{consentMessage}}
	}

	order, err := s.loadOrder(ctx, req.GetOrderID())
	if err != nil {
		return nil, err
	}
	if !secureEqual(order.OrderKey, req.GetOrderKey()) {
		return nil, ErrOrderNotFound
	}
	if order.Status.Paid() || order.Status == entity.OrderStatusRefunded || order.Status == entity.OrderStatusCancelled {
		return nil, ErrInvalidStatus
	}

	excluded := map[string]bool{}
	var lastFailed *entity.Account

	for {
		account, err := s.selectAccount(ctx, excluded, mode)
		if err != nil {
			return nil, err
		}
		if account == nil {
			if lastFailed != nil {
				s.notifyAccountSwitch(ctx, lastFailed, nil)
			}
			metrics.PaymentAttempts.WithLabelValues(string(mode), "exhausted").Inc()
			s.logger.WithField("order_id", order.ID).WithField("mode", mode).Error("No payment account available")
			if lastFailed != nil {
				return nil, fmt.Errorf("%w: %w", ErrNoAccountsAvailable, ErrAccountsExhausted)
			}
			return nil, ErrNoAccountsAvailable
		}

		outcome, limited, err := s.attemptWithAccount(ctx, order, account, clientIP)
		if err != nil {
			return nil, err
		}
		if limited {
			excluded[account.Title] = true
			lastFailed = account
			metrics.Failovers.WithLabelValues(string(mode)).Inc()
			continue
		}

		if lastFailed != nil {
			s.notifyAccountSwitch(ctx, lastFailed, account)
		}
		metrics.PaymentAttempts.WithLabelValues(string(mode), "success").Inc()
		return outcome, nil
	}
}

// attemptWithAccount runs the limit check and the charge on a locked account.
// The lock is released on every path.
func (s *GatewayService) attemptWithAccount(ctx context.Context, order *entity.Order, account *entity.Account, clientIP string) (*PaymentOutcome, bool, error) {
	defer s.locks.Release(ctx, account.LockKey())

	mode := s.mode()
	creds := account.Credentials(mode)
	l := s.logger.WithField("order_id", order.ID).WithField("account", account.Title).WithField("mode", mode)

	s.addNote(ctx, order.ID, "Processing Payment Via: "+account.Title, false)

	returnToken, err := s.tokens.Issue(order.ID, token.PurposeReturn)
	if err != nil {
		return nil, false, err
	}
	input := s.paymentInput(order, clientIP, returnToken)

	limit, err := s.checkDailyLimit(ctx, creds, input, false)
	if err != nil {
		l.WithError(err).Error("Daily limit check failed")
		metrics.PaymentAttempts.WithLabelValues(string(mode), "transport_error").Inc()
		return nil, false, fmt.Errorf("%w: %w", ErrPaymentTransport, err)
	}
	if limit.Limited {
		l.WithField("reason", limit.Message).Warn("Account reached its daily limit, switching")
		s.addNote(ctx, order.ID, fmt.Sprintf("Account %s reached its transaction limit: %s", account.Title, limit.Message), false)
		return nil, true, nil
	}

	if err := s.orderRepo.SetMeta(ctx, order.ID, entity.OrderMetaOrigin, entity.OrderMetaOriginGateway); err != nil {
		return nil, false, err
	}

	result, err := s.gateway.RequestPayment(ctx, creds, input)
	if err != nil {
		l.WithError(err).Error("Payment request failed")
		metrics.PaymentAttempts.WithLabelValues(string(mode), "transport_error").Inc()
		return nil, false, fmt.Errorf("%w: %w", ErrPaymentTransport, err)
	}
	if !result.Success {
		l.WithField("reason", result.Message).Warn("Payment request declined")
		s.addNote(ctx, order.ID, fmt.Sprintf("Payment failed via %s: %s", account.Title, result.Message), false)
		metrics.PaymentAttempts.WithLabelValues(string(mode), "declined").Inc()
		return nil, false, &DeclinedError{Account: account.Title, Message: result.Message}
	}

	if err := s.replacePaymentLink(ctx, order.ID, result.PayID); err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	meta := [][2]string{
		{entity.OrderMetaPayID, result.PayID},
		{entity.OrderMetaAccount, account.Title},
		{entity.OrderMetaPendingSince, strconv.FormatInt(now.Unix(), 10)},
	}
	for _, kv := range meta {
		if err := s.orderRepo.SetMeta(ctx, order.ID, kv[0], kv[1]); err != nil {
			return nil, false, err
		}
	}

	if _, err := s.orderRepo.UpdateStatus(ctx, order.ID, []entity.OrderStatus{
		entity.OrderStatusPending, entity.OrderStatusFailed, entity.OrderStatusOnHold,
	}, entity.OrderStatusPending, now); err != nil {
		return nil, false, err
	}
	s.addNote(ctx, order.ID, fmt.Sprintf("Payment initiated via gateway. Awaiting your completion ( %s )", account.Title), true)

	if mode == entity.ModeSandbox {
		if err := s.orderRepo.SetMeta(ctx, order.ID, entity.OrderMetaTestOrder, "yes"); err != nil {
			l.WithError(err).Warn("Unable to flag test order")
		}
		s.addNote(ctx, order.ID, testOrderNote, false)
	}

	securityToken, err := s.tokens.Issue(order.ID, token.PurposeStatus)
	if err != nil {
		return nil, false, err
	}

	l.WithField("pay_id", result.PayID).Info("Payment link created")
	return &PaymentOutcome{
		OrderID:       order.ID,
		PaymentLink:   result.PaymentLink,
		PayID:         result.PayID,
		Account:       account.Title,
		SecurityToken: securityToken,
	}, false, nil
}

// replacePaymentLink records payID as the current link of the order and
// cancels the superseded remote session.
func (s *GatewayService) replacePaymentLink(ctx context.Context, orderID uint64, payID string) error {
	previous, err := s.linkRepo.FindLatestByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if previous != nil && previous.UUID != payID {
		if err := s.gateway.CancelPaymentLink(ctx, orderID, previous.UUID); err != nil {
			s.logger.WithError(err).WithField("order_id", orderID).Warn("Unable to cancel previous payment link")
		}
	}
	if previous != nil && previous.UUID == payID {
		return nil
	}

	now := s.now().UTC()
	err = s.linkRepo.Create(ctx, &entity.PaymentLink{
		OrderID:   orderID,
		UUID:      payID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil && !errors.Is(err, repository.ErrPaymentLinkExists) {
		return err
	}
	return nil
}

func (s *GatewayService) paymentInput(order *entity.Order, clientIP, returnToken string) *provider.PaymentInput {
	requestFor := order.Billing.Email
	if requestFor == "" {
		requestFor = order.Billing.Phone
	}
	return &provider.PaymentInput{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		AmountCents: order.TotalCents,
		FirstName:   order.Billing.FirstName,
		LastName:    order.Billing.LastName,
		RequestFor:  requestFor,
		RedirectURL: s.returnURL(order, returnToken),
		IPAddress:   clientIP,
		Billing: provider.BillingAddress{
			Address1: order.Billing.Address1,
			Address2: order.Billing.Address2,
			City:     order.Billing.City,
			Postcode: order.Billing.Postcode,
			Country:  order.Billing.Country,
			State:    order.Billing.State,
		},
		Sandbox: s.gatewayCfg.Sandbox,
	}
}

// returnURL is the callback the gateway redirects to and posts status to.
func (s *GatewayService) returnURL(order *entity.Order, returnToken string) string {
	query := url.Values{}
	query.Set("order_id", strconv.FormatUint(order.ID, 10))
	query.Set("key", order.OrderKey)
	query.Set("token", returnToken)
	query.Set("mode", "wp")
	return s.gatewayCfg.PublicBaseURL + "/gateway/v1/data?" + query.Encode()
}
