package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

const AudienceSession = "session:wallet"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	now     func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return NewJWTTokenizerWithClock(signKey, time.Now)
}

// NewJWTTokenizerWithClock creates a JWT tokenizer validating expiry against now.
func NewJWTTokenizerWithClock(signKey *ecdsa.PrivateKey, now func() time.Time) *JWTTokenizer {
	return &JWTTokenizer{signKey: signKey, now: now}
}

// ClaimsToToken converts session claims to a signed JWT
func (j *JWTTokenizer) ClaimsToToken(claims core.SessionClaims) (string, error) {
	c := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Address.Hex(),
			ID:        claims.ID,
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, c)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToClaims parses and validates a session JWT
func (j *JWTTokenizer) TokenToClaims(tokenStr string) (core.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(AudienceSession),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.SessionClaims{}, core.ErrSessionExpired
		}
		return core.SessionClaims{}, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return core.SessionClaims{}, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return core.SessionClaims{}, fmt.Errorf("%w: invalid claims type", core.ErrInvalidToken)
	}

	address, err := core.ParseAddress(claims.Subject)
	if err != nil {
		return core.SessionClaims{}, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	out := core.SessionClaims{
		ID:        claims.ID,
		Address:   address,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}

	return out, nil
}
