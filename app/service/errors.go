package service

import (
	"errors"
	"strings"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrRateLimited         = errors.New("too many requests")
	ErrNoAccountsAvailable = errors.New("no available payment accounts")
	ErrAccountsExhausted   = errors.New("all accounts have reached their transaction limit")
	ErrPaymentTransport    = errors.New("payment gateway unreachable")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPayIDMismatch       = errors.New("pay id mismatch")
	ErrInvalidToken        = errors.New("invalid token")
	ErrSuspiciousInput     = errors.New("suspicious input")
	ErrAccountValidation   = errors.New("account validation failed")
	ErrUnknownTxnStatus    = errors.New("unknown transaction status")
)

// ValidationError carries itemized messages for the caller. Err is the
// sentinel it matches with errors.Is.
type ValidationError struct {
	Err      error
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DeclinedError is a payment refused by the gateway for a reason other than
// the daily limit.
type DeclinedError struct {
	Account string
	Message string
}

func (e *DeclinedError) Error() string {
	return "payment declined: " + e.Message
}

func (e *DeclinedError) Unwrap() error {
	return ErrPaymentDeclined
}
