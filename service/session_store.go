package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

const (
	// SessionStorageKey holds the persisted session token. It does not
	// depend on the address.
	SessionStorageKey = "session"

	// DefaultSessionTTL is how long a login stays valid
	DefaultSessionTTL = 24 * time.Hour
)

// SessionStore owns the wallet session state machine. All transitions go
// through it; readers get copies.
type SessionStore struct {
	wallet    ports.WalletProvider
	store     ports.Store
	tokenizer ports.Tokenizer
	logger    watermill.LoggerAdapter
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	state   core.SessionState
	session core.Session
	// epoch advances on every logout/expiry so an in-flight login can tell
	// it was superseded
	epoch uint64
}

// SessionOption configures a SessionStore
type SessionOption func(*SessionStore)

// WithSessionTTL overrides DefaultSessionTTL
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionStore) { s.ttl = ttl }
}

// WithSessionClock overrides time.Now
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates a session store in the Anonymous state
func NewSessionStore(
	wallet ports.WalletProvider,
	store ports.Store,
	tokenizer ports.Tokenizer,
	logger watermill.LoggerAdapter,
	opts ...SessionOption,
) *SessionStore {
	s := &SessionStore{
		wallet:    wallet,
		store:     store,
		tokenizer: tokenizer,
		logger:    logger,
		ttl:       DefaultSessionTTL,
		now:       time.Now,
		state:     core.StateAnonymous,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state and session
func (s *SessionStore) Snapshot() (core.SessionState, core.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.session
}

// current returns the state and session along with the epoch they belong to
func (s *SessionStore) current() (core.SessionState, core.Session, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.session, s.epoch
}

// Login asks the wallet for an account and opens a session. Every failure is
// an *core.AuthError. A login whose ctx ends, or that is overtaken by a
// logout while waiting on the wallet, drops its result.
func (s *SessionStore) Login(ctx context.Context) (core.Session, error) {
	if s.wallet == nil {
		return core.Session{}, core.NewAuthError(core.ErrProviderUnavailable)
	}

	s.mu.Lock()
	if s.state == core.StateAuthenticated && s.session.Live(s.now()) {
		session := s.session
		s.mu.Unlock()
		return session, nil
	}
	if s.state == core.StateAuthenticated {
		if err := s.expire(ctx); err != nil {
			s.logger.Error("Failed to clear expired session", err, nil)
		}
	}
	epoch := s.epoch
	s.transition(core.StateAuthenticating)
	s.mu.Unlock()

	accounts, err := s.wallet.RequestAccounts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return core.Session{}, core.ErrSuperseded
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.transition(core.StateAnonymous)
		return core.Session{}, ctxErr
	}
	if err != nil {
		return core.Session{}, s.failLogin(err)
	}
	if len(accounts) == 0 {
		return core.Session{}, s.failLogin(core.ErrNoAccount)
	}

	now := s.now()
	claims := core.SessionClaims{
		ID:        uuid.New().String(),
		Address:   accounts[0],
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	token, err := s.tokenizer.ClaimsToToken(claims)
	if err != nil {
		return core.Session{}, s.failLogin(fmt.Errorf("failed to create session token: %w", err))
	}
	if err := s.store.Set(ctx, SessionStorageKey, token, s.ttl); err != nil {
		return core.Session{}, s.failLogin(fmt.Errorf("failed to persist session: %w", err))
	}

	s.session = core.NewSession(claims.Address, claims.ExpiresAt)
	s.transition(core.StateAuthenticated)
	s.logger.Info("Wallet session opened", watermill.LogFields{
		"address":    claims.Address.Hex(),
		"expires_at": claims.ExpiresAt,
	})

	return s.session, nil
}

// RestoreSession rebuilds the session from durable storage and the wallet's
// current connection. It runs at startup and on every wallet change, and is
// idempotent. A pending login is left alone.
func (s *SessionStore) RestoreSession(ctx context.Context) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == core.StateAuthenticating {
		return s.session, nil
	}

	token, err := s.store.Get(ctx, SessionStorageKey)
	if errors.Is(err, core.ErrNotFound) {
		s.clear()
		return s.session, nil
	}
	if err != nil {
		s.clear()
		return s.session, fmt.Errorf("failed to read persisted session: %w", err)
	}

	claims, err := s.tokenizer.TokenToClaims(token)
	if err == nil && !claims.ExpiresAt.After(s.now()) {
		err = core.ErrSessionExpired
	}
	if err != nil {
		s.logger.Info("Discarding persisted session", watermill.LogFields{"reason": err.Error()})
		return s.session, s.expire(ctx)
	}

	if s.wallet == nil {
		s.clear()
		return s.session, nil
	}
	connected, ok, err := s.wallet.ConnectedAddress(ctx)
	if err != nil && !errors.Is(err, core.ErrProviderUnavailable) {
		s.clear()
		return s.session, fmt.Errorf("failed to query wallet: %w", err)
	}
	if !ok {
		// The persisted expiry survives so a reconnect can restore it
		s.clear()
		return s.session, nil
	}
	if connected != claims.Address {
		s.logger.Info("Discarding persisted session", watermill.LogFields{
			"reason":    core.ErrAccountMismatch.Error(),
			"connected": connected.Hex(),
			"session":   claims.Address.Hex(),
		})
		return s.session, s.expire(ctx)
	}

	s.session = core.NewSession(connected, claims.ExpiresAt)
	s.transition(core.StateAuthenticated)
	return s.session, nil
}

// Check is the liveness probe: an authenticated session whose expiry passed,
// or whose wallet disconnected or switched account, goes Expired and then
// Anonymous. It reports whether that happened.
func (s *SessionStore) Check(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != core.StateAuthenticated {
		return false, nil
	}

	if !s.session.Live(s.now()) {
		return true, s.expire(ctx)
	}

	connected, ok, err := s.wallet.ConnectedAddress(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to query wallet: %w", err)
	}
	if !ok {
		s.transition(core.StateExpired)
		s.clear()
		return true, nil
	}
	if connected != *s.session.Address {
		return true, s.expire(ctx)
	}

	return false, nil
}

// Logout clears the persisted expiry, the in-memory session and the wallet
// connection. The in-memory session is cleared even if the others fail.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()

	var errs []error
	if err := s.store.Delete(ctx, SessionStorageKey); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear persisted session: %w", err))
	}
	if s.wallet != nil {
		if err := s.wallet.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect wallet: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *SessionStore) failLogin(err error) error {
	s.transition(core.StateAnonymous)
	authErr := core.NewAuthError(err)
	s.logger.Info("Wallet login failed", watermill.LogFields{"cause": authErr.Cause})
	return authErr
}

// expire passes through Expired to Anonymous and drops the persisted record.
// Caller holds s.mu.
func (s *SessionStore) expire(ctx context.Context) error {
	if s.state == core.StateAuthenticated {
		s.transition(core.StateExpired)
	}
	s.clear()
	if err := s.store.Delete(ctx, SessionStorageKey); err != nil {
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}
	return nil
}

// clear resets to Anonymous. Caller holds s.mu.
func (s *SessionStore) clear() {
	if s.state == core.StateAuthenticated || s.state == core.StateExpired || s.state == core.StateAuthenticating {
		s.epoch++
	}
	s.session = core.Session{}
	s.transition(core.StateAnonymous)
}

// transition records a state change. Caller holds s.mu.
func (s *SessionStore) transition(to core.SessionState) {
	if s.state == to {
		return
	}
	s.logger.Debug("Session state changed", watermill.LogFields{
		"from": string(s.state),
		"to":   string(to),
	})
	s.state = to
}
