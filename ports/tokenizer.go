package ports

import "github.com/layer-3/warden/core"

// Tokenizer converts persisted session claims to and from an opaque token
type Tokenizer interface {
	ClaimsToToken(claims core.SessionClaims) (string, error)
	// TokenToClaims returns core.ErrSessionExpired for an expired token and
	// core.ErrInvalidToken for anything else it cannot accept.
	TokenToClaims(token string) (core.SessionClaims, error)
}
