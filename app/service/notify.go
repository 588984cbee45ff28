package service

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/provider"
)

// notifyAccountSwitch tells the owner of oldAccount that checkouts moved to
// newAccount. A nil newAccount means the pool ran out. Failures are logged
// only.
func (s *GatewayService) notifyAccountSwitch(ctx context.Context, oldAccount, newAccount *entity.Account) {
	if oldAccount == nil {
		return
	}
	newTitle := ""
	if newAccount != nil {
		newTitle = newAccount.Title
	}
	mode := s.mode()
	l := s.logger.WithField("account", oldAccount.Title).WithField("mode", mode)

	err := s.gateway.SendAccountSwitchEmail(ctx, &provider.SwitchEmailInput{
		OldTitle: oldAccount.Title,
		OldKeys:  oldAccount.Credentials(mode),
		NewTitle: newTitle,
		Sandbox:  mode == entity.ModeSandbox,
	})
	switch {
	case err == nil:
		l.Info("Account switch email sent")
	case errors.Is(err, provider.ErrUnauthorized):
		l.Error("Account switch email failed: authentication rejected for old account")
	default:
		l.WithError(err).Error("Account switch email failed")
	}
}
