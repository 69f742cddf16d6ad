package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// VerifyIdentityFunction is the ledger call that consumes an attestation
const VerifyIdentityFunction = "verificationData"

// ActionSpec describes a gated ledger action. Every action takes a target
// address; some also take a source address or an amount.
type ActionSpec struct {
	Requires   core.Capability
	WithSource bool
	WithAmount bool
}

// Actions lists the ledger calls that can be submitted through Submit
var Actions = map[string]ActionSpec{
	"mint":                   {Requires: core.CanMint, WithAmount: true},
	"transfer":               {Requires: core.CanTransferOrApprove, WithAmount: true},
	"approve":                {Requires: core.CanTransferOrApprove, WithAmount: true},
	"transferFrom":           {Requires: core.CanTransferOrApprove, WithSource: true, WithAmount: true},
	"blockAddress":           {Requires: core.CanManageAddresses},
	"unblockAddress":         {Requires: core.CanManageAddresses},
	"addVerifiedAddress":     {Requires: core.CanManageAddresses},
	"removeVerifiedAddress":  {Requires: core.CanManageAddresses},
	"setDailyTransferLimit":  {Requires: core.CanSetLimits, WithAmount: true},
	"addIdentityProvider":    {Requires: core.CanManageIdentityProviders},
	"removeIdentityProvider": {Requires: core.CanManageIdentityProviders},
	"voteMintingAdmin":       {Requires: core.CanVoteAdminMinting},
	"voteRestrAdmin":         {Requires: core.CanVoteAdminRestriction},
	"voteIDPAdmin":           {Requires: core.CanVoteAdminIdp},
}

// Action is one ledger call requested by the user
type Action struct {
	Function string
	From     common.Address
	Target   common.Address
	Amount   *uint256.Int
}

// ViewParameter is a ledger-wide value shown alongside a guarded view
type ViewParameter struct {
	Field string
	// Amount values are token amounts with 18 decimals; others are counts
	Amount bool
}

// ViewParameters lists the ledger values each guarded view shows
var ViewParameters = map[string][]ViewParameter{
	"/mint":                     {{Field: "maxDailyMint", Amount: true}},
	"/minting-admin-voting":     {{Field: "mintingAdminCount"}},
	"/restriction-admin-voting": {{Field: "restrAdminCount"}},
	"/idp-admin-voting":         {{Field: "idpAdminCount"}},
}

// View is what the UI renders from: the session, the mirrored record and the
// capabilities derived from it.
type View struct {
	State        core.SessionState
	Session      core.Session
	Record       core.CapabilityRecord
	Loaded       bool
	Version      uint64
	Capabilities core.CapabilitySet
}

// Overview is the dashboard summary of the connected address
type Overview struct {
	Address      common.Address
	Status       string
	Balance      string
	Unlimited    bool
	Limit        string
	SpentToday   string
	Remaining    string
	MintedToday  string
	Capabilities []core.Capability

	// VerificationExpiry is unset when the address was never verified or
	// the verification data could not be read
	VerificationExpiry  *time.Time
	VerificationExpired bool
}

// AuthService ties the wallet session to the capability mirror and gates
// navigation and ledger calls on the derived capabilities.
type AuthService struct {
	sessions *SessionStore
	mirror   *Mirror
	guard    *RouteGuard
	reader   ports.LedgerReader
	writer   ports.LedgerWriter
	attestor ports.Attestor
	logger   watermill.LoggerAdapter
}

// NewAuthService creates a new auth service
func NewAuthService(
	sessions *SessionStore,
	mirror *Mirror,
	guard *RouteGuard,
	reader ports.LedgerReader,
	writer ports.LedgerWriter,
	attestor ports.Attestor,
	logger watermill.LoggerAdapter,
) *AuthService {
	return &AuthService{
		sessions: sessions,
		mirror:   mirror,
		guard:    guard,
		reader:   reader,
		writer:   writer,
		attestor: attestor,
		logger:   logger,
	}
}

// Guard returns the route guard in use
func (s *AuthService) Guard() *RouteGuard {
	return s.guard
}

// Login connects the wallet and loads the capability record. A failed
// record read does not fail the login; the mirror just stays empty.
func (s *AuthService) Login(ctx context.Context) (core.Session, error) {
	session, err := s.sessions.Login(ctx)
	if err != nil {
		return core.Session{}, err
	}

	s.syncMirror(ctx, session)
	return session, nil
}

// Restore rebuilds the session from storage and the wallet, then syncs the
// mirror with the result.
func (s *AuthService) Restore(ctx context.Context) (core.Session, error) {
	session, err := s.sessions.RestoreSession(ctx)
	s.syncMirror(ctx, session)
	return session, err
}

// Logout ends the session and discards the mirror, along with any refresh
// still in flight for it.
func (s *AuthService) Logout(ctx context.Context) error {
	s.mirror.Reset()
	return s.sessions.Logout(ctx)
}

// WatchWallet restores the session on every wallet connection change until
// ctx is done.
func (s *AuthService) WatchWallet(ctx context.Context, wallet ports.WalletProvider) error {
	return wallet.Watch(ctx, func() {
		if _, err := s.Restore(ctx); err != nil {
			s.logger.Error("Failed to restore session after wallet change", err, nil)
		}
	})
}

// View runs the liveness check and returns the current view.
func (s *AuthService) View(ctx context.Context) View {
	if expired, err := s.sessions.Check(ctx); err != nil {
		s.logger.Error("Session liveness check failed", err, nil)
	} else if expired {
		s.mirror.Reset()
	}

	state, session := s.sessions.Snapshot()
	snapshot := s.mirror.Snapshot()
	if state != core.StateAuthenticated || session.Address == nil || snapshot.Address != *session.Address {
		snapshot = MirrorSnapshot{}
	}

	return View{
		State:        state,
		Session:      session,
		Record:       snapshot.Record,
		Loaded:       snapshot.Loaded,
		Version:      snapshot.Version,
		Capabilities: core.DeriveCapabilities(snapshot.Record),
	}
}

// Navigate guards navigation to path.
func (s *AuthService) Navigate(ctx context.Context, path string) Verdict {
	view := s.View(ctx)
	return s.guard.Evaluate(path, view.State, view.Record)
}

// Authorize evaluates a single capability for the current session.
func (s *AuthService) Authorize(ctx context.Context, required core.Capability) core.Decision {
	view := s.View(ctx)
	return core.Authorize(view.State, view.Record, required)
}

// Refresh re-reads the connected address's record on demand.
func (s *AuthService) Refresh(ctx context.Context) error {
	view := s.View(ctx)
	if view.State != core.StateAuthenticated {
		return core.ErrNotAuthenticated
	}
	return s.mirror.Refresh(ctx, *view.Session.Address)
}

// Overview builds the dashboard summary for the connected address.
func (s *AuthService) Overview(ctx context.Context) (Overview, error) {
	view := s.View(ctx)
	if view.State != core.StateAuthenticated {
		return Overview{}, core.ErrNotAuthenticated
	}

	r := view.Record
	out := Overview{
		Address:      *view.Session.Address,
		Status:       r.Status(),
		Unlimited:    r.Unlimited(),
		Limit:        core.FormatUnits(r.TransferLimit),
		SpentToday:   core.FormatUnits(r.DailyTransferred),
		MintedToday:  core.FormatUnits(r.DailyMinted),
		Capabilities: view.Capabilities.List(),
	}
	if !out.Unlimited {
		out.Remaining = core.FormatUnits(r.RemainingTransfer())
	}

	balance, err := s.readUint(ctx, out.Address, "balanceOf")
	if err != nil {
		s.logger.Error("Failed to read balance", err, watermill.LogFields{"address": out.Address.Hex()})
	} else if v, overflow := uint256.FromBig(balance); !overflow {
		out.Balance = core.FormatUnits(*v)
	}

	s.verificationExpiry(ctx, &out)
	return out, nil
}

// verificationExpiry sets when the address's verification lapses: the time
// it was verified plus the ledger's expiration window.
func (s *AuthService) verificationExpiry(ctx context.Context, out *Overview) {
	verifiedAt, err := s.readUint(ctx, out.Address, "verifiedAddresses")
	if err != nil {
		s.logger.Error("Failed to read verification time", err, watermill.LogFields{"address": out.Address.Hex()})
		return
	}
	if verifiedAt.Sign() == 0 {
		return
	}

	window, err := s.readUint(ctx, out.Address, "expirationTime")
	if err != nil {
		s.logger.Error("Failed to read verification window", err, nil)
		return
	}

	expiry := new(big.Int).Add(verifiedAt, window)
	if !expiry.IsInt64() {
		return
	}
	at := time.Unix(expiry.Int64(), 0).UTC()
	out.VerificationExpiry = &at
	out.VerificationExpired = at.Before(s.sessions.now())
}

// ViewDetails reads the ledger parameters shown on path. Values that fail to
// read are logged and left out.
func (s *AuthService) ViewDetails(ctx context.Context, path string, address common.Address) map[string]string {
	params := ViewParameters[path]
	if len(params) == 0 {
		return nil
	}

	out := make(map[string]string, len(params))
	for _, p := range params {
		v, err := s.readUint(ctx, address, p.Field)
		if err != nil {
			s.logger.Error("Failed to read view parameter", err, watermill.LogFields{"field": p.Field})
			continue
		}
		if !p.Amount {
			out[p.Field] = v.String()
			continue
		}
		if amount, overflow := uint256.FromBig(v); !overflow {
			out[p.Field] = core.FormatUnits(*amount)
		}
	}
	return out
}

func (s *AuthService) readUint(ctx context.Context, address common.Address, field string) (*big.Int, error) {
	v, err := s.reader.ReadField(ctx, address, field)
	if err != nil {
		return nil, err
	}
	n, ok := v.(*big.Int)
	if !ok || n == nil || n.Sign() < 0 {
		return nil, fmt.Errorf("%s: unexpected value %v", field, v)
	}
	return n, nil
}

// Submit sends a gated ledger action and waits for it to be mined. The
// capability check is advisory; the ledger still decides. Nothing is retried.
func (s *AuthService) Submit(ctx context.Context, action Action) (core.Receipt, error) {
	spec, ok := Actions[action.Function]
	if !ok {
		return core.Receipt{}, fmt.Errorf("unknown action %q", action.Function)
	}
	if action.Target == (common.Address{}) {
		return core.Receipt{}, fmt.Errorf("%w: missing target", core.ErrInvalidAddress)
	}

	var args []interface{}
	if spec.WithSource {
		if action.From == (common.Address{}) {
			return core.Receipt{}, fmt.Errorf("%w: missing source", core.ErrInvalidAddress)
		}
		args = append(args, action.From)
	}
	args = append(args, action.Target)
	if spec.WithAmount {
		if action.Amount == nil {
			return core.Receipt{}, fmt.Errorf("%s needs an amount", action.Function)
		}
		args = append(args, action.Amount.ToBig())
	}

	if err := s.Authorize(ctx, spec.Requires).Err(); err != nil {
		return core.Receipt{}, err
	}

	return s.send(ctx, action.Function, args...)
}

// VerifyIdentity obtains an attestation for the connected address and
// submits it to the ledger. The attestation is not kept. If the session ends
// or changes address while the attestor is working, the attestation is
// dropped and ErrSuperseded returned.
func (s *AuthService) VerifyIdentity(ctx context.Context) (core.Receipt, error) {
	view := s.View(ctx)
	decision := core.Authorize(view.State, view.Record, core.CanRequestVerification)
	if err := decision.Err(); err != nil {
		return core.Receipt{}, err
	}
	if s.attestor == nil {
		return core.Receipt{}, core.ErrIssuerUnavailable
	}

	_, _, epoch := s.sessions.current()
	subject := *view.Session.Address

	attestation, err := s.attestor.Attest(ctx, subject)
	if err != nil {
		return core.Receipt{}, err
	}

	state, session, now := s.sessions.current()
	if now != epoch || state != core.StateAuthenticated || session.Address == nil || *session.Address != subject {
		s.logger.Info("Dropping attestation for ended session", watermill.LogFields{"subject": subject.Hex()})
		return core.Receipt{}, core.ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		return core.Receipt{}, err
	}

	return s.send(ctx, VerifyIdentityFunction,
		new(big.Int).SetUint64(attestation.IssuedAt),
		[]byte(attestation.Signature),
	)
}

func (s *AuthService) send(ctx context.Context, function string, args ...interface{}) (core.Receipt, error) {
	if s.writer == nil {
		return core.Receipt{}, fmt.Errorf("%s: %w", function, core.ErrSubmitRejected)
	}

	handle, err := s.writer.Submit(ctx, function, args...)
	if err != nil {
		s.logger.Info("Ledger call not submitted", watermill.LogFields{
			"function": function,
			"reason":   err.Error(),
		})
		return core.Receipt{}, err
	}

	receipt, err := s.writer.WaitReceipt(ctx, handle)
	if err != nil {
		return receipt, err
	}

	if err := s.mirror.RefreshTracked(ctx); err != nil && !droppedRefresh(err) && !errors.Is(err, core.ErrReadFailed) {
		s.logger.Error("Post-submit refresh failed", err, nil)
	}

	return receipt, nil
}

func (s *AuthService) syncMirror(ctx context.Context, session core.Session) {
	if !session.Authenticated || session.Address == nil {
		s.mirror.Reset()
		return
	}

	snapshot := s.mirror.Snapshot()
	if snapshot.Tracking && snapshot.Loaded && snapshot.Address == *session.Address {
		return
	}

	err := s.mirror.Refresh(ctx, *session.Address)
	if err != nil && !droppedRefresh(err) && !errors.Is(err, core.ErrReadFailed) {
		s.logger.Error("Failed to load capability record", err, nil)
	}
}
