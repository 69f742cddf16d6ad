package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SessionState is a state of the wallet session machine.
type SessionState string

const (
	StateAnonymous      SessionState = "anonymous"
	StateAuthenticating SessionState = "authenticating"
	StateAuthenticated  SessionState = "authenticated"
	StateExpired        SessionState = "expired"
)

// Session is the local record of wallet-authenticated state.
// Authenticated implies Address and ExpiresAt are set.
type Session struct {
	Address       *common.Address
	Authenticated bool
	ExpiresAt     *time.Time
}

// Live reports whether the session is authenticated and unexpired at now.
func (s Session) Live(now time.Time) bool {
	return s.Authenticated && s.Address != nil && s.ExpiresAt != nil && s.ExpiresAt.After(now)
}

// NewSession builds an authenticated session.
func NewSession(address common.Address, expiresAt time.Time) Session {
	return Session{
		Address:       &address,
		Authenticated: true,
		ExpiresAt:     &expiresAt,
	}
}

// SessionClaims is what gets persisted between restarts.
type SessionClaims struct {
	ID        string
	Address   common.Address
	IssuedAt  time.Time
	ExpiresAt time.Time
}
