package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// Mirror keeps a local copy of the capability record of one address. It is
// the only writer of that copy; readers get value snapshots.
type Mirror struct {
	reader ports.LedgerReader
	logger watermill.LoggerAdapter

	mu       sync.RWMutex
	tracking bool
	address  common.Address
	record   core.CapabilityRecord
	loaded   bool
	version  uint64
	// generation advances on every reset or address switch; a refresh that
	// started under an older generation is dropped
	generation uint64
}

// MirrorSnapshot is a point-in-time copy of the mirror
type MirrorSnapshot struct {
	Address  common.Address
	Tracking bool
	Loaded   bool
	Record   core.CapabilityRecord
	Version  uint64
}

// NewMirror creates an empty mirror reading through reader
func NewMirror(reader ports.LedgerReader, logger watermill.LoggerAdapter) *Mirror {
	return &Mirror{
		reader: reader,
		logger: logger,
	}
}

// Snapshot returns a copy of the current state
func (m *Mirror) Snapshot() MirrorSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MirrorSnapshot{
		Address:  m.address,
		Tracking: m.tracking,
		Loaded:   m.loaded,
		Record:   m.record,
		Version:  m.version,
	}
}

// Record returns the mirrored record, zero when nothing is tracked
func (m *Mirror) Record() core.CapabilityRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.record
}

// Track points the mirror at address. Switching address discards the old
// record and any refresh still running for it.
func (m *Mirror) Track(address common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackLocked(address)
}

func (m *Mirror) trackLocked(address common.Address) {
	if m.tracking && m.address == address {
		return
	}
	m.tracking = true
	m.address = address
	m.record = core.CapabilityRecord{}
	m.loaded = false
	m.generation++
	m.version++
}

// Reset forgets the tracked address, on logout or teardown.
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tracking && !m.loaded {
		return
	}
	m.tracking = false
	m.address = common.Address{}
	m.record = core.CapabilityRecord{}
	m.loaded = false
	m.generation++
	m.version++
}

// Refresh re-reads the full record of address and replaces the mirror
// wholesale. On failure the previous record stays and core.ErrReadFailed is
// returned. A refresh overtaken by Reset or Track returns core.ErrSuperseded
// and changes nothing.
func (m *Mirror) Refresh(ctx context.Context, address common.Address) error {
	m.mu.Lock()
	m.trackLocked(address)
	generation := m.generation
	m.mu.Unlock()

	return m.read(ctx, address, generation)
}

// RefreshTracked re-reads the tracked address, if any.
func (m *Mirror) RefreshTracked(ctx context.Context) error {
	m.mu.RLock()
	tracking, address, generation := m.tracking, m.address, m.generation
	m.mu.RUnlock()

	if !tracking {
		return nil
	}
	return m.read(ctx, address, generation)
}

func (m *Mirror) read(ctx context.Context, address common.Address, generation uint64) error {
	record, err := m.reader.ReadAddressInfo(ctx, address)

	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation {
		return core.ErrSuperseded
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		m.logger.Error("Failed to read capability record", err, watermill.LogFields{
			"address": address.Hex(),
		})
		return fmt.Errorf("%w: %w", core.ErrReadFailed, err)
	}

	m.record = record
	m.loaded = true
	m.version++
	return nil
}

// ApplyEvent patches the fields named by event when it concerns the tracked
// address. Balance-moving events are not patched; they report that a full
// re-read is needed instead.
func (m *Mirror) ApplyEvent(event core.LedgerEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.tracking {
		return false, nil
	}

	switch event.Name {
	case core.EventTokensMinted:
		return event.Subject == m.address || m.record.IsMintingAdmin, nil
	case core.EventTokensTransferred:
		return event.Subject == m.address || event.Counterparty == m.address, nil
	}

	if event.Subject != m.address {
		if !isMirroredEvent(event.Name) {
			return false, unknownEvent(event.Name)
		}
		return false, nil
	}

	r := &m.record
	switch event.Name {
	case core.EventTransferLimitSet:
		r.TransferLimit = event.Amount
	case core.EventAddressVerified:
		r.IsVerified = true
	case core.EventVerificationRemoved:
		r.IsVerified = false
	case core.EventAddressBlocked:
		r.IsBlocked = true
	case core.EventAddressUnblocked:
		r.IsBlocked = false
	case core.EventIdentityProviderAdded:
		r.IsIdentityProvider = true
	case core.EventIdentityProviderRemoved:
		r.IsIdentityProvider = false
	case core.EventAdminStatusChanged:
		switch event.AdminKind {
		case core.AdminMinting:
			r.IsMintingAdmin = event.Status
		case core.AdminRestriction:
			r.IsRestrictionAdmin = event.Status
		case core.AdminIdp:
			r.IsIdpAdmin = event.Status
		default:
			return false, fmt.Errorf("%w: admin kind %d", core.ErrEventDecodeSkipped, event.AdminKind)
		}
	default:
		return false, unknownEvent(event.Name)
	}

	m.version++
	return false, nil
}

func isMirroredEvent(name core.EventName) bool {
	for _, n := range core.MirroredEvents {
		if n == name {
			return true
		}
	}
	return false
}

func unknownEvent(name core.EventName) error {
	return fmt.Errorf("%w: unknown event %q", core.ErrEventDecodeSkipped, name)
}

// droppedRefresh reports errors that mean the result was discarded rather
// than that the read failed
func droppedRefresh(err error) bool {
	return errors.Is(err, core.ErrSuperseded) || errors.Is(err, context.Canceled)
}
