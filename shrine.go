package shrine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Shrine is one distribution instance: a guardian-managed sequence of
// ledgers, per-version deposit and payout accounting, and champion claim
// rights. All token movement goes through the configured Engine; all state
// through the configured StateStore.
//
// Methods are safe for concurrent use as long as the store and engine are.
type Shrine struct {
	addr     common.Address
	store    StateStore
	engine   Engine
	recorder Recorder
	log      *zap.Logger
	guard    reentrancyGuard
}

// Config assembles a shrine's collaborators.
type Config struct {
	// Address identifies this shrine to the engine: deposits are pulled into
	// it, payouts pushed out of it, and upstream shrines see it as the
	// claiming champion.
	Address common.Address

	// Store holds the shrine's accounting state.
	Store StateStore

	// Engine moves tokens between accounts.
	Engine Engine

	// Recorder receives journal records. Optional; defaults to NopRecorder.
	Recorder Recorder

	// Logger is used for operational logging. Optional; defaults to a nop
	// logger.
	Logger *zap.Logger
}

// Validate checks that the required collaborators are present.
func (c Config) Validate() error {
	if c.Address == (common.Address{}) {
		return fmt.Errorf("%w: shrine address", ErrZeroAddress)
	}
	if c.Store == nil {
		return ErrNilStore
	}
	if c.Engine == nil {
		return ErrNilEngine
	}
	return nil
}

// New creates a shrine from its configuration. The store may already hold
// state from a previous run; a fresh store starts uninitialized.
func New(cfg Config) (*Shrine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = NopRecorder{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Shrine{
		addr:     cfg.Address,
		store:    cfg.Store,
		engine:   cfg.Engine,
		recorder: recorder,
		log:      log.With(zap.String("shrine", cfg.Address.Hex())),
	}, nil
}

// Address returns the shrine's own account address.
func (s *Shrine) Address() common.Address { return s.addr }

// CurrentVersion returns the latest ledger version, 0 if uninitialized.
func (s *Shrine) CurrentVersion() (Version, error) {
	return s.store.CurrentVersion()
}

// Guardian returns the account allowed to update ledgers.
func (s *Shrine) Guardian() (common.Address, error) {
	return s.store.Guardian()
}

// LedgerOfVersion returns the ledger stored under a version, or
// ErrVersionNotFound.
func (s *Shrine) LedgerOfVersion(v Version) (Ledger, error) {
	return s.store.LedgerOfVersion(v)
}

// Offered returns the cumulative deposits of a token under a version.
func (s *Shrine) Offered(v Version, t Token) (*uint256.Int, error) {
	return s.store.Offered(v, t)
}

// Claimed returns the cumulative payouts to a champion for a token under a
// version.
func (s *Shrine) Claimed(v Version, t Token, c Champion) (*uint256.Int, error) {
	return s.store.Claimed(v, t, c)
}

// ClaimRightOwner returns the account holding a champion's claim right, zero
// if the champion claims for itself.
func (s *Shrine) ClaimRightOwner(c Champion) (common.Address, error) {
	return s.store.ClaimRightOwner(c)
}

// Close releases the underlying state store.
func (s *Shrine) Close() error {
	return s.store.Close()
}

// Initialize stores the guardian and the first ledger, moving the shrine to
// version 1, and announces the ledger's metadata pointer. It can succeed
// exactly once; later calls fail with ErrAlreadyInitialized regardless of
// arguments.
func (s *Shrine) Initialize(guardian common.Address, ledger Ledger, metadata string) error {
	if guardian == (common.Address{}) {
		return ErrZeroGuardian
	}
	if err := ledger.Validate(); err != nil {
		return err
	}

	if err := s.store.Initialize(guardian, ledger); err != nil {
		return err
	}

	s.log.Info("shrine initialized",
		zap.String("guardian", guardian.Hex()),
		zap.String("root", ledger.MerkleRoot.Hex()),
		zap.Uint64("total_shares", ledger.TotalShares))
	s.record(RecordLedgerUpdated{Shrine: s.addr, Version: 1, Ledger: ledger})
	s.record(RecordMetadataUpdated{Shrine: s.addr, Version: 1, Metadata: metadata})
	return nil
}

// UpdateLedger stores a new ledger under the next version and returns that
// version. Only the guardian may call it. Deposits made before the update
// stay claimable under their original version.
func (s *Shrine) UpdateLedger(caller common.Address, ledger Ledger) (Version, error) {
	if err := s.requireGuardian(caller); err != nil {
		return 0, err
	}
	if err := ledger.Validate(); err != nil {
		return 0, err
	}

	v, err := s.store.BumpLedger(ledger)
	if err != nil {
		return 0, err
	}

	s.log.Info("ledger updated",
		zap.Uint64("version", uint64(v)),
		zap.String("root", ledger.MerkleRoot.Hex()),
		zap.Uint64("total_shares", ledger.TotalShares))
	s.record(RecordLedgerUpdated{Shrine: s.addr, Version: v, Ledger: ledger})
	return v, nil
}

// UpdateLedgerMetadata announces a metadata pointer, typically a content
// hash of the champion list, for an existing version. The pointer goes to
// the journal only; it is never part of shrine state. Only the guardian may
// call it.
func (s *Shrine) UpdateLedgerMetadata(caller common.Address, v Version, metadata string) error {
	if err := s.requireGuardian(caller); err != nil {
		return err
	}
	if _, err := s.store.LedgerOfVersion(v); err != nil {
		return err
	}

	s.record(RecordMetadataUpdated{Shrine: s.addr, Version: v, Metadata: metadata})
	return nil
}

// TransferClaimRight hands a champion's claim right to newOwner. The caller
// must be the current effective owner: the champion itself while no right
// has been handed out, the owner afterwards. Setting the zero address
// returns the champion to claiming for itself.
func (s *Shrine) TransferClaimRight(caller common.Address, c Champion, newOwner common.Address) error {
	if _, err := s.authorizeChampionAction(caller, c); err != nil {
		return err
	}

	if err := s.store.SetClaimRightOwner(c, newOwner); err != nil {
		return err
	}

	s.log.Info("claim right transferred",
		zap.String("champion", c.String()),
		zap.String("owner", newOwner.Hex()))
	s.record(RecordClaimRightTransferred{Shrine: s.addr, Champion: c, Owner: newOwner})
	return nil
}

// requireGuardian rejects callers other than the stored guardian. Before
// Initialize there is no guardian, so nobody passes.
func (s *Shrine) requireGuardian(caller common.Address) error {
	g, err := s.store.Guardian()
	if err != nil {
		return err
	}
	if g == (common.Address{}) {
		return ErrNotInitialized
	}
	if caller != g {
		return fmt.Errorf("%w: caller %s is not the guardian", ErrNotAuthorized, caller.Hex())
	}
	return nil
}

// record hands a journal record to the recorder. Journal failures never
// undo the operation that produced the record; they are logged and dropped.
func (s *Shrine) record(r Record) {
	if err := s.recorder.Record(r); err != nil {
		s.log.Warn("journal record dropped",
			zap.String("kind", string(r.Kind())),
			zap.Error(err))
	}
}
