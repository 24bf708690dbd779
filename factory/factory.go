// Package factory provisions shrine instances from a shared blueprint. Each
// instance gets its own address, store, and state; what they share is the
// blueprint's collaborators and nothing else. Addresses are derived either
// sequentially or, given a salt, deterministically, so a coordinator can
// know an instance's address before it exists.
package factory

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Astrodrop/shrine"
	"github.com/Astrodrop/shrine/merkle"
)

// Blueprint is the template every instance of a factory is assembled from.
type Blueprint struct {
	// Name identifies the blueprint; it feeds deterministic address
	// derivation, so two blueprints with different names never collide on
	// the same salt.
	Name string

	// NewStore builds the state store for a new instance at addr.
	NewStore func(addr common.Address) (shrine.StateStore, error)

	// Engine moves tokens for every instance.
	Engine shrine.Engine

	// Recorder receives every instance's records. Optional.
	Recorder shrine.Recorder

	// Logger is handed to every instance. Optional.
	Logger *zap.Logger
}

// Validate checks the blueprint can produce instances.
func (b Blueprint) Validate() error {
	if b.Name == "" {
		return ErrUnnamedBlueprint
	}
	if b.NewStore == nil {
		return ErrNilStoreBuilder
	}
	if b.Engine == nil {
		return shrine.ErrNilEngine
	}
	return nil
}

// Factory creates and tracks shrine instances of one blueprint.
// Safe for concurrent use.
type Factory struct {
	deployer common.Address
	bp       Blueprint
	digest   common.Hash

	mu        sync.Mutex
	nonce     uint64
	instances map[common.Address]*shrine.Shrine
}

// New creates a factory owned by deployer. The deployer address salts all
// derived instance addresses, so two factories with the same blueprint but
// different deployers produce disjoint address spaces.
func New(deployer common.Address, bp Blueprint) (*Factory, error) {
	if deployer == (common.Address{}) {
		return nil, fmt.Errorf("%w: deployer", shrine.ErrZeroAddress)
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}

	return &Factory{
		deployer:  deployer,
		bp:        bp,
		digest:    merkle.Keccak256([]byte(bp.Name)),
		instances: make(map[common.Address]*shrine.Shrine),
	}, nil
}

// Create provisions a new shrine at the next sequential address and
// initializes it with the guardian, first ledger, and metadata pointer.
func (f *Factory) Create(guardian common.Address, ledger shrine.Ledger, metadata string) (*shrine.Shrine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := f.sequentialAddress(f.nonce)
	f.nonce++
	return f.provision(addr, guardian, ledger, metadata)
}

// CreateDeterministic provisions a new shrine at the address PredictAddress
// derives for salt. It fails with ErrAddressTaken if that address already
// hosts an instance.
func (f *Factory) CreateDeterministic(salt common.Hash, guardian common.Address, ledger shrine.Ledger, metadata string) (*shrine.Shrine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.provision(f.saltedAddress(salt), guardian, ledger, metadata)
}

// PredictAddress returns the address CreateDeterministic would use for salt,
// whether or not the instance exists yet.
func (f *Factory) PredictAddress(salt common.Hash) common.Address {
	return f.saltedAddress(salt)
}

// Instance returns the shrine created at addr, if any.
func (f *Factory) Instance(addr common.Address) (*shrine.Shrine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sh, ok := f.instances[addr]
	return sh, ok
}

// Addresses returns the addresses of all instances created so far.
func (f *Factory) Addresses() []common.Address {
	f.mu.Lock()
	defer f.mu.Unlock()

	addrs := make([]common.Address, 0, len(f.instances))
	for a := range f.instances {
		addrs = append(addrs, a)
	}
	return addrs
}

// Close closes every instance created by this factory and returns the first
// error encountered.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var first error
	for _, sh := range f.instances {
		if err := sh.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// provision assembles and initializes one instance. Caller holds the lock.
// A failed initialization releases the address again, so the same salt can
// be retried with valid arguments.
func (f *Factory) provision(addr common.Address, guardian common.Address, ledger shrine.Ledger, metadata string) (*shrine.Shrine, error) {
	if _, taken := f.instances[addr]; taken {
		return nil, fmt.Errorf("%w: %s", ErrAddressTaken, addr.Hex())
	}

	store, err := f.bp.NewStore(addr)
	if err != nil {
		return nil, fmt.Errorf("factory: build store: %w", err)
	}

	sh, err := shrine.New(shrine.Config{
		Address:  addr,
		Store:    store,
		Engine:   f.bp.Engine,
		Recorder: f.bp.Recorder,
		Logger:   f.bp.Logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if err := sh.Initialize(guardian, ledger, metadata); err != nil {
		_ = store.Close()
		return nil, err
	}

	f.instances[addr] = sh
	return sh, nil
}

// sequentialAddress derives the address for the n-th plain Create.
func (f *Factory) sequentialAddress(n uint64) common.Address {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], n)
	h := merkle.Keccak256(f.deployer.Bytes(), nonce[:])
	return common.BytesToAddress(h[12:])
}

// saltedAddress derives the deterministic address for a salt, binding it to
// the deployer and the blueprint so neither can be swapped out from under a
// predicted address.
func (f *Factory) saltedAddress(salt common.Hash) common.Address {
	h := merkle.Keccak256([]byte{0xff}, f.deployer.Bytes(), salt.Bytes(), f.digest.Bytes())
	return common.BytesToAddress(h[12:])
}
