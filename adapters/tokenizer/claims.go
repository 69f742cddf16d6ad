package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the standard claims for a persisted wallet session.
// Subject is the wallet address, ExpiresAt the session expiry.
type SessionClaims struct {
	jwt.RegisteredClaims
}
