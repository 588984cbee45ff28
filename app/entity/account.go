package entity

import "strings"

type Mode string

const (
	ModeLive    Mode = "live"
	ModeSandbox Mode = "sandbox"
)

func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeLive:
		return ModeLive, true
	case ModeSandbox:
		return ModeSandbox, true
	default:
		return "", false
	}
}

func ModeFor(sandbox bool) Mode {
	if sandbox {
		return ModeSandbox
	}
	return ModeLive
}

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
	AccountStatusUnknown  AccountStatus = "unknown"
	AccountStatusInvalid  AccountStatus = "invalid"
)

func ParseAccountStatus(raw string) AccountStatus {
	switch AccountStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case AccountStatusActive:
		return AccountStatusActive
	case AccountStatusInactive:
		return AccountStatusInactive
	case AccountStatusInvalid:
		return AccountStatusInvalid
	default:
		return AccountStatusUnknown
	}
}

// Credentials is the per-mode key pair of an account together with the
// status last reported for it by the remote gateway.
type Credentials struct {
	PublicKey string
	SecretKey string
	Status    AccountStatus
}

func (c Credentials) Complete() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

type Account struct {
	Title    string
	Priority int

	Live    Credentials
	Sandbox Credentials

	HasSandbox bool
}

func (a *Account) Credentials(mode Mode) Credentials {
	if mode == ModeSandbox {
		return a.Sandbox
	}
	return a.Live
}

func (a *Account) SetStatus(mode Mode, status AccountStatus) {
	if mode == ModeSandbox {
		a.Sandbox.Status = status
		return
	}
	a.Live.Status = status
}

// Eligible reports whether the account can service payments in the given mode.
func (a *Account) Eligible(mode Mode) bool {
	creds := a.Credentials(mode)
	return creds.Status == AccountStatusActive && creds.Complete()
}

// LockKey is the lock record name guarding concurrent use of the account.
func (a *Account) LockKey() string {
	return "lock_" + a.Title
}
