package services

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountLocked      = errors.New("account locked")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrOTPNotFound = errors.New("no active one-time code")
	ErrOTPExpired  = errors.New("one-time code expired")
	ErrOTPUsed     = errors.New("one-time code already used")
	ErrOTPMismatch = errors.New("one-time code mismatch")

	ErrInvalidSession = errors.New("invalid session")
	ErrInvalidToken   = errors.New("invalid token")

	ErrMissingNotificationAddress = errors.New("no notification address for account")
	// ErrNotificationDelivery is logged, never returned to callers of the core.
	ErrNotificationDelivery = errors.New("notification delivery failed")
)

// OTPMismatchError reports how many verification attempts remain. The count
// is advisory and goes negative once the ceiling is passed.
type OTPMismatchError struct {
	Remaining int
}

func (e *OTPMismatchError) Error() string {
	return fmt.Sprintf("%s: %d attempts remaining", ErrOTPMismatch, e.Remaining)
}

func (e *OTPMismatchError) Unwrap() error { return ErrOTPMismatch }

// authFailures abort an operation without undoing what it already persisted.
var authFailures = []error{
	ErrAccountNotFound,
	ErrAccountLocked,
	ErrInvalidCredentials,
	ErrOTPNotFound,
	ErrOTPExpired,
	ErrOTPUsed,
	ErrOTPMismatch,
	ErrInvalidSession,
	ErrInvalidToken,
	ErrMissingNotificationAddress,
}

// IsAuthFailure reports whether err is one of the client-visible failure kinds.
func IsAuthFailure(err error) bool {
	for _, target := range authFailures {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
