package shrine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astrodrop/shrine/merkle"
)

// ---------------------------------------------------------------------------
// Test doubles and helpers shared by the package tests.
// ---------------------------------------------------------------------------

// captureRecorder keeps every record in memory for assertions.
type captureRecorder struct {
	mu      sync.Mutex
	records []Record
	err     error // returned by Record when set
}

func (c *captureRecorder) Record(r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.records = append(c.records, r)
	return nil
}

func (c *captureRecorder) all() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.records...)
}

func (c *captureRecorder) kinds() []RecordKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]RecordKind, len(c.records))
	for i, r := range c.records {
		kinds[i] = r.Kind()
	}
	return kinds
}

type engineKey struct {
	token  Token
	holder common.Address
}

var errEngineBalance = errors.New("test engine: insufficient balance")

// testEngine is a map-backed Engine with injectable failures. Pull ignores
// allowances; the shrine's behavior under test does not depend on them.
type testEngine struct {
	mu           sync.Mutex
	balances     map[engineKey]*uint256.Int
	pullErr      error // when set, Pull fails with it
	pushErr      error // when set, Push fails with it
	pushErrToken Token // when nonzero, pushErr only applies to this token
}

func newTestEngine() *testEngine {
	return &testEngine{balances: make(map[engineKey]*uint256.Int)}
}

func (e *testEngine) mint(token Token, holder common.Address, amount uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := engineKey{token, holder}
	cur := e.balances[key]
	if cur == nil {
		cur = new(uint256.Int)
	}
	e.balances[key] = new(uint256.Int).Add(cur, uint256.NewInt(amount))
}

func (e *testEngine) balance(token Token, holder common.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.balances[engineKey{token, holder}]
	if cur == nil {
		return new(uint256.Int)
	}
	return cur.Clone()
}

func (e *testEngine) transfer(token Token, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	fromKey := engineKey{token, from}
	bal := e.balances[fromKey]
	if bal == nil || bal.Cmp(amount) < 0 {
		return errEngineBalance
	}
	if from == to {
		return nil
	}
	toKey := engineKey{token, to}
	cur := e.balances[toKey]
	if cur == nil {
		cur = new(uint256.Int)
	}
	e.balances[fromKey] = new(uint256.Int).Sub(bal, amount)
	e.balances[toKey] = new(uint256.Int).Add(cur, amount)
	return nil
}

func (e *testEngine) Pull(_ context.Context, token Token, from, to common.Address, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pullErr != nil {
		return e.pullErr
	}
	return e.transfer(token, from, to, amount)
}

func (e *testEngine) Push(_ context.Context, token Token, from, to common.Address, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pushErr != nil && (e.pushErrToken == Token{} || e.pushErrToken == token) {
		return e.pushErr
	}
	return e.transfer(token, from, to, amount)
}

func (e *testEngine) BalanceOf(_ context.Context, token Token, holder common.Address) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.balances[engineKey{token, holder}]
	if cur == nil {
		return new(uint256.Int), nil
	}
	return cur.Clone(), nil
}

func testAddr(seed byte) common.Address {
	var a common.Address
	for i := range a {
		a[i] = seed
	}
	return a
}

func newTestShrine(t *testing.T, addr common.Address) (*Shrine, *testEngine, *captureRecorder) {
	t.Helper()
	eng := newTestEngine()
	fx := newTestShrineWithEngine(t, addr, eng)
	return fx.sh, eng, fx.rec
}

type shrineFixture struct {
	sh  *Shrine
	rec *captureRecorder
}

// newTestShrineWithEngine builds a shrine on a caller-supplied engine so
// several shrines can share one set of balances.
func newTestShrineWithEngine(t *testing.T, addr common.Address, eng *testEngine) shrineFixture {
	t.Helper()
	rec := &captureRecorder{}
	sh, err := New(Config{Address: addr, Store: NewMemState(), Engine: eng, Recorder: rec})
	require.NoError(t, err)
	return shrineFixture{sh: sh, rec: rec}
}

type member struct {
	champ  Champion
	shares uint64
}

// buildLedger commits members to a Merkle tree and returns the resulting
// ledger together with each member's inclusion proof.
func buildLedger(t *testing.T, members []member) (Ledger, map[Champion][]common.Hash) {
	t.Helper()

	leaves := make([]common.Hash, len(members))
	var total uint64
	for i, m := range members {
		leaves[i] = merkle.LeafHash(common.Address(m.champ), m.shares)
		total += m.shares
	}
	tree, err := merkle.NewTree(leaves)
	require.NoError(t, err)

	proofs := make(map[Champion][]common.Hash, len(members))
	for i, m := range members {
		proof, err := tree.Proof(i)
		require.NoError(t, err)
		proofs[m.champ] = proof
	}
	return Ledger{MerkleRoot: tree.Root(), TotalShares: total}, proofs
}

// ---------------------------------------------------------------------------
// Configuration and lifecycle
// ---------------------------------------------------------------------------

func TestConfigValidate(t *testing.T) {
	valid := Config{Address: testAddr(0x51), Store: NewMemState(), Engine: newTestEngine()}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero address", mutate: func(c *Config) { c.Address = common.Address{} }, wantErr: ErrZeroAddress},
		{name: "nil store", mutate: func(c *Config) { c.Store = nil }, wantErr: ErrNilStore},
		{name: "nil engine", mutate: func(c *Config) { c.Engine = nil }, wantErr: ErrNilEngine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewDefaultsOptionalCollaborators(t *testing.T) {
	sh, err := New(Config{Address: testAddr(0x51), Store: NewMemState(), Engine: newTestEngine()})
	require.NoError(t, err)

	// Recorder and logger default silently; operations must still work.
	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})
	require.NoError(t, sh.Initialize(testAddr(0x02), ledger, ""))
}

func TestShrineInitialize(t *testing.T) {
	sh, _, rec := newTestShrine(t, testAddr(0x51))
	guardian := testAddr(0x01)
	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 70}, {Champion(testAddr(2)), 30}})

	v, err := sh.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, Version(0), v)

	require.NoError(t, sh.Initialize(guardian, ledger, "ipfs://v1"))

	v, err = sh.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, Version(1), v)

	g, err := sh.Guardian()
	require.NoError(t, err)
	assert.Equal(t, guardian, g)

	got, err := sh.LedgerOfVersion(1)
	require.NoError(t, err)
	assert.Equal(t, ledger, got)

	assert.Equal(t, []RecordKind{KindLedgerUpdated, KindMetadataUpdated}, rec.kinds())
	meta := rec.all()[1].(RecordMetadataUpdated)
	assert.Equal(t, "ipfs://v1", meta.Metadata)
	assert.Equal(t, Version(1), meta.Version)

	// Exactly once.
	err = sh.Initialize(guardian, ledger, "again")
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestShrineInitializeRejectsBadArguments(t *testing.T) {
	sh, _, rec := newTestShrine(t, testAddr(0x51))
	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})

	err := sh.Initialize(common.Address{}, ledger, "")
	assert.ErrorIs(t, err, ErrZeroGuardian)

	err = sh.Initialize(testAddr(1), Ledger{MerkleRoot: common.Hash{}, TotalShares: 10}, "")
	assert.ErrorIs(t, err, ErrInvalidLedger)

	err = sh.Initialize(testAddr(1), Ledger{MerkleRoot: common.Hash{1}, TotalShares: 0}, "")
	assert.ErrorIs(t, err, ErrInvalidLedger)

	// Failed attempts leave the shrine untouched.
	v, err := sh.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, Version(0), v)
	assert.Empty(t, rec.all())
}

func TestShrineUpdateLedger(t *testing.T) {
	sh, _, rec := newTestShrine(t, testAddr(0x51))
	guardian := testAddr(0x01)
	first, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})
	second, _ := buildLedger(t, []member{{Champion(testAddr(1)), 60}, {Champion(testAddr(2)), 40}})

	// Before initialization nobody is guardian.
	_, err := sh.UpdateLedger(guardian, second)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, sh.Initialize(guardian, first, ""))

	_, err = sh.UpdateLedger(testAddr(0x99), second)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = sh.UpdateLedger(guardian, Ledger{MerkleRoot: common.Hash{1}, TotalShares: 0})
	assert.ErrorIs(t, err, ErrInvalidLedger)

	v, err := sh.UpdateLedger(guardian, second)
	require.NoError(t, err)
	assert.Equal(t, Version(2), v)

	// Both versions stay readable.
	got, err := sh.LedgerOfVersion(1)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got, err = sh.LedgerOfVersion(2)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	last := rec.all()[len(rec.all())-1].(RecordLedgerUpdated)
	assert.Equal(t, Version(2), last.Version)
	assert.Equal(t, second, last.Ledger)
}

func TestShrineUpdateLedgerMetadata(t *testing.T) {
	sh, _, rec := newTestShrine(t, testAddr(0x51))
	guardian := testAddr(0x01)
	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})
	require.NoError(t, sh.Initialize(guardian, ledger, "v1"))

	err := sh.UpdateLedgerMetadata(testAddr(0x99), 1, "nope")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	err = sh.UpdateLedgerMetadata(guardian, 7, "unknown version")
	assert.ErrorIs(t, err, ErrVersionNotFound)

	require.NoError(t, sh.UpdateLedgerMetadata(guardian, 1, "ipfs://revised"))

	last := rec.all()[len(rec.all())-1].(RecordMetadataUpdated)
	assert.Equal(t, Version(1), last.Version)
	assert.Equal(t, "ipfs://revised", last.Metadata)
}

func TestShrineTransferClaimRight(t *testing.T) {
	sh, _, rec := newTestShrine(t, testAddr(0x51))
	guardian := testAddr(0x01)
	champ := Champion(testAddr(2))
	delegate := testAddr(3)
	second := testAddr(4)

	ledger, _ := buildLedger(t, []member{{champ, 10}})
	require.NoError(t, sh.Initialize(guardian, ledger, ""))

	// A stranger cannot move the right.
	err := sh.TransferClaimRight(testAddr(0x99), champ, delegate)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// The champion hands the right to a delegate.
	require.NoError(t, sh.TransferClaimRight(common.Address(champ), champ, delegate))
	owner, err := sh.ClaimRightOwner(champ)
	require.NoError(t, err)
	assert.Equal(t, delegate, owner)

	// Once handed out, the champion itself is locked out.
	err = sh.TransferClaimRight(common.Address(champ), champ, second)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// The delegate can pass the right on.
	require.NoError(t, sh.TransferClaimRight(delegate, champ, second))
	owner, err = sh.ClaimRightOwner(champ)
	require.NoError(t, err)
	assert.Equal(t, second, owner)

	// Resetting to zero restores self-claiming.
	require.NoError(t, sh.TransferClaimRight(second, champ, common.Address{}))
	require.NoError(t, sh.TransferClaimRight(common.Address(champ), champ, delegate))

	kinds := rec.kinds()
	transfers := 0
	for _, k := range kinds {
		if k == KindClaimRightTransferred {
			transfers++
		}
	}
	assert.Equal(t, 4, transfers)
}

func TestShrineRecorderFailureDoesNotFailOperation(t *testing.T) {
	sh, _, rec := newTestShrine(t, testAddr(0x51))
	rec.err = errors.New("journal down")

	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})
	require.NoError(t, sh.Initialize(testAddr(1), ledger, ""))

	v, err := sh.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, Version(1), v)
	assert.Empty(t, rec.all())
}

func TestShrineClose(t *testing.T) {
	sh, _, _ := newTestShrine(t, testAddr(0x51))
	require.NoError(t, sh.Close())
}
