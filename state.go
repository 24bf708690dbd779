package shrine

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StateStore persists one shrine's accounting state: the version counter,
// the ledger of every version, cumulative offered and claimed amounts, and
// champion claim-right owners. Every method is atomic; the engine relies on
// that for its all-or-nothing call semantics.
//
// Offered and claimed amounts behave like total maps: reading a key that was
// never written yields zero, not an error.
type StateStore interface {
	// Initialize atomically moves the version counter from 0 to 1, storing
	// the first ledger and the guardian. Fails with ErrAlreadyInitialized if
	// the counter is nonzero.
	Initialize(guardian common.Address, ledger Ledger) error

	// BumpLedger increments the version counter and stores the ledger under
	// the new version, returning it. Fails with ErrNotInitialized before
	// Initialize.
	BumpLedger(ledger Ledger) (Version, error)

	// CurrentVersion returns the version counter, 0 if uninitialized.
	CurrentVersion() (Version, error)

	// Guardian returns the guardian address, zero if uninitialized.
	Guardian() (common.Address, error)

	// LedgerOfVersion returns the ledger stored under a version, or
	// ErrVersionNotFound.
	LedgerOfVersion(v Version) (Ledger, error)

	// AddOffered credits amount to the cumulative deposits of (v, t) and
	// returns the new total.
	AddOffered(v Version, t Token, amount *uint256.Int) (*uint256.Int, error)

	// RollbackOffered reverses a prior AddOffered whose external transfer
	// failed. It must not be used for anything else; offered amounts are
	// otherwise monotone.
	RollbackOffered(v Version, t Token, amount *uint256.Int) error

	// Offered returns the cumulative deposits of (v, t).
	Offered(v Version, t Token) (*uint256.Int, error)

	// AddClaimed credits amount to the cumulative payouts of (v, t, c) and
	// returns the new total. A zero amount still records the key.
	AddClaimed(v Version, t Token, c Champion, amount *uint256.Int) (*uint256.Int, error)

	// RollbackClaimed reverses a prior AddClaimed whose external transfer
	// failed. It must not be used for anything else; claimed amounts are
	// otherwise monotone.
	RollbackClaimed(v Version, t Token, c Champion, amount *uint256.Int) error

	// Claimed returns the cumulative payouts of (v, t, c).
	Claimed(v Version, t Token, c Champion) (*uint256.Int, error)

	// SetClaimRightOwner stores the account authorized to claim for a
	// champion. The zero address resets the champion to self-claiming.
	SetClaimRightOwner(c Champion, owner common.Address) error

	// ClaimRightOwner returns the claim-right owner for a champion, zero if
	// unset.
	ClaimRightOwner(c Champion) (common.Address, error)

	// Close releases any resources held by the store.
	Close() error
}

type offeredKey struct {
	version Version
	token   Token
}

type claimedKey struct {
	version  Version
	token    Token
	champion Champion
}

// MemState is an in-memory StateStore, primarily for tests and ephemeral
// shrines. Safe for concurrent use.
type MemState struct {
	mu       sync.RWMutex
	version  Version
	guardian common.Address
	ledgers  map[Version]Ledger
	offered  map[offeredKey]*uint256.Int
	claimed  map[claimedKey]*uint256.Int
	rights   map[Champion]common.Address
}

// Compile-time interface check.
var _ StateStore = (*MemState)(nil)

// NewMemState creates an empty in-memory state store.
func NewMemState() *MemState {
	return &MemState{
		ledgers: make(map[Version]Ledger),
		offered: make(map[offeredKey]*uint256.Int),
		claimed: make(map[claimedKey]*uint256.Int),
		rights:  make(map[Champion]common.Address),
	}
}

// Initialize atomically moves the version counter from 0 to 1.
func (s *MemState) Initialize(guardian common.Address, ledger Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != 0 {
		return ErrAlreadyInitialized
	}
	s.version = 1
	s.guardian = guardian
	s.ledgers[1] = ledger
	return nil
}

// BumpLedger increments the version counter and stores the new ledger.
func (s *MemState) BumpLedger(ledger Ledger) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version == 0 {
		return 0, ErrNotInitialized
	}
	s.version++
	s.ledgers[s.version] = ledger
	return s.version, nil
}

// CurrentVersion returns the version counter.
func (s *MemState) CurrentVersion() (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

// Guardian returns the guardian address.
func (s *MemState) Guardian() (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.guardian, nil
}

// LedgerOfVersion returns the ledger stored under a version.
func (s *MemState) LedgerOfVersion(v Version) (Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger, ok := s.ledgers[v]
	if !ok {
		return Ledger{}, fmt.Errorf("%w: version %d", ErrVersionNotFound, v)
	}
	return ledger, nil
}

// AddOffered credits amount to the cumulative deposits of (v, t).
func (s *MemState) AddOffered(v Version, t Token, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return nil, ErrNilAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := offeredKey{v, t}
	total, overflow := addAmount(s.offered[key], amount)
	if overflow {
		return nil, fmt.Errorf("%w: offered total for version %d token %s", ErrAmountOverflow, v, t)
	}
	s.offered[key] = total
	return total.Clone(), nil
}

// RollbackOffered reverses a prior AddOffered.
func (s *MemState) RollbackOffered(v Version, t Token, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := offeredKey{v, t}
	total, underflow := subAmount(s.offered[key], amount)
	if underflow {
		return fmt.Errorf("%w: offered rollback below zero for version %d token %s", ErrAmountOverflow, v, t)
	}
	s.offered[key] = total
	return nil
}

// Offered returns the cumulative deposits of (v, t).
func (s *MemState) Offered(v Version, t Token) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOrZero(s.offered[offeredKey{v, t}]), nil
}

// AddClaimed credits amount to the cumulative payouts of (v, t, c).
func (s *MemState) AddClaimed(v Version, t Token, c Champion, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return nil, ErrNilAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := claimedKey{v, t, c}
	total, overflow := addAmount(s.claimed[key], amount)
	if overflow {
		return nil, fmt.Errorf("%w: claimed total for version %d token %s champion %s", ErrAmountOverflow, v, t, c)
	}
	s.claimed[key] = total
	return total.Clone(), nil
}

// RollbackClaimed reverses a prior AddClaimed.
func (s *MemState) RollbackClaimed(v Version, t Token, c Champion, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := claimedKey{v, t, c}
	total, underflow := subAmount(s.claimed[key], amount)
	if underflow {
		return fmt.Errorf("%w: claimed rollback below zero for version %d token %s champion %s", ErrAmountOverflow, v, t, c)
	}
	s.claimed[key] = total
	return nil
}

// Claimed returns the cumulative payouts of (v, t, c).
func (s *MemState) Claimed(v Version, t Token, c Champion) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOrZero(s.claimed[claimedKey{v, t, c}]), nil
}

// SetClaimRightOwner stores the claim-right owner for a champion.
func (s *MemState) SetClaimRightOwner(c Champion, owner common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rights[c] = owner
	return nil
}

// ClaimRightOwner returns the claim-right owner for a champion.
func (s *MemState) ClaimRightOwner(c Champion) (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rights[c], nil
}

// Close is a no-op for the in-memory store.
func (s *MemState) Close() error { return nil }

// addAmount returns cur+amount without aliasing either operand.
func addAmount(cur, amount *uint256.Int) (*uint256.Int, bool) {
	total := cloneOrZero(cur)
	_, overflow := total.AddOverflow(total, amount)
	return total, overflow
}

// subAmount returns cur-amount without aliasing either operand.
func subAmount(cur, amount *uint256.Int) (*uint256.Int, bool) {
	total := cloneOrZero(cur)
	_, underflow := total.SubOverflow(total, amount)
	return total, underflow
}

// cloneOrZero copies a stored amount, treating a missing entry as zero.
func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
