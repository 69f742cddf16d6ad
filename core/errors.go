package core

import (
	"errors"
	"fmt"
)

var (
	// Session layer
	ErrProviderUnavailable  = errors.New("wallet provider unavailable")
	ErrNoAccount            = errors.New("no account returned by wallet")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUserRejected         = errors.New("user rejected the request")
	ErrAccountMismatch      = errors.New("connected account does not match session")
	ErrSessionExpired       = errors.New("session has expired")
	ErrInvalidToken         = errors.New("invalid session token")
	ErrSuperseded           = errors.New("operation superseded by a newer session transition")

	// Attestation layer
	ErrIssuerUnavailable = errors.New("issuer signing key unavailable")
	ErrAttestationFailed = errors.New("attestation failed")

	// Mirror layer
	ErrReadFailed         = errors.New("ledger read failed")
	ErrEventDecodeSkipped = errors.New("ledger event skipped")

	// Authorization layer
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrMissingCapability = errors.New("missing capability")

	// Write boundary
	ErrSubmitRejected = errors.New("transaction signing rejected")
	ErrSubmitReverted = errors.New("transaction reverted")

	ErrInvalidAddress = errors.New("invalid ethereum address")
	ErrNotFound       = errors.New("not found")

	errNegativeAmount   = errors.New("amount must not be negative")
	errFractionalAmount = errors.New("amount has more than 18 decimal places")
	errAmountOverflow   = errors.New("amount does not fit in 256 bits")
)

// AuthError reports a failed login with a human-readable cause.
type AuthError struct {
	Cause string
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Cause)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// NewAuthError wraps err as an authentication failure.
func NewAuthError(err error) *AuthError {
	cause := "failed to connect wallet"
	if err != nil {
		cause = err.Error()
	}
	return &AuthError{Cause: cause, Err: err}
}

// RevertError is a ledger-level rejection. Reason is empty when the ledger did
// not return a structured reason.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return ErrSubmitReverted.Error()
	}
	return fmt.Sprintf("%s: %s", ErrSubmitReverted, e.Reason)
}

func (e *RevertError) Is(target error) bool {
	return target == ErrSubmitReverted
}

// GenericFailureMessage is shown when a failure carries no short reason.
const GenericFailureMessage = "Something went wrong. Please try again."

// UserMessage returns the short text to display for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var revert *RevertError
	if errors.As(err, &revert) {
		if revert.Reason != "" {
			return revert.Reason
		}
		return "Transaction reverted"
	}

	var auth *AuthError
	if errors.As(err, &auth) {
		return auth.Cause
	}

	switch {
	case errors.Is(err, ErrSubmitRejected):
		return "Transaction was rejected in the wallet"
	case errors.Is(err, ErrIssuerUnavailable):
		return "Identity provider is unavailable"
	case errors.Is(err, ErrNotAuthenticated):
		return "Please connect your wallet"
	case errors.Is(err, ErrMissingCapability):
		return "You are not allowed to perform this action"
	case errors.Is(err, ErrInvalidAddress):
		return "Invalid address"
	}

	return GenericFailureMessage
}
