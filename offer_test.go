package shrine

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffer(t *testing.T) {
	sh, eng, rec := newTestShrine(t, testAddr(0x51))
	guardian := testAddr(0x01)
	sender := testAddr(0x10)
	token := Token(testAddr(0xaa))

	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})
	require.NoError(t, sh.Initialize(guardian, ledger, ""))
	eng.mint(token, sender, 1000)

	require.NoError(t, sh.Offer(context.Background(), sender, token, uint256.NewInt(400)))

	offered, err := sh.Offered(1, token)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(400), offered)

	// Tokens moved from the sender into the shrine's custody.
	assert.Equal(t, uint256.NewInt(600), eng.balance(token, sender))
	assert.Equal(t, uint256.NewInt(400), eng.balance(token, sh.Address()))

	last := rec.all()[len(rec.all())-1].(RecordOffered)
	assert.Equal(t, sender, last.Sender)
	assert.Equal(t, Version(1), last.Version)
	assert.Equal(t, token, last.Token)
	assert.Equal(t, *uint256.NewInt(400), last.Amount)
}

func TestOfferAccumulates(t *testing.T) {
	sh, eng, _ := newTestShrine(t, testAddr(0x51))
	sender := testAddr(0x10)
	token := Token(testAddr(0xaa))

	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})
	require.NoError(t, sh.Initialize(testAddr(1), ledger, ""))
	eng.mint(token, sender, 1000)

	require.NoError(t, sh.Offer(context.Background(), sender, token, uint256.NewInt(100)))
	require.NoError(t, sh.Offer(context.Background(), sender, token, uint256.NewInt(250)))

	offered, err := sh.Offered(1, token)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(350), offered)
}

func TestOfferCreditsCurrentVersionOnly(t *testing.T) {
	sh, eng, _ := newTestShrine(t, testAddr(0x51))
	guardian := testAddr(0x01)
	sender := testAddr(0x10)
	token := Token(testAddr(0xaa))

	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})
	require.NoError(t, sh.Initialize(guardian, ledger, ""))
	eng.mint(token, sender, 1000)

	require.NoError(t, sh.Offer(context.Background(), sender, token, uint256.NewInt(100)))

	_, err := sh.UpdateLedger(guardian, ledger)
	require.NoError(t, err)
	require.NoError(t, sh.Offer(context.Background(), sender, token, uint256.NewInt(30)))

	// The first pool is untouched by deposits made after the update.
	v1, err := sh.Offered(1, token)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(100), v1)
	v2, err := sh.Offered(2, token)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(30), v2)
}

func TestOfferBeforeInitialize(t *testing.T) {
	sh, eng, _ := newTestShrine(t, testAddr(0x51))
	token := Token(testAddr(0xaa))
	eng.mint(token, testAddr(0x10), 100)

	err := sh.Offer(context.Background(), testAddr(0x10), token, uint256.NewInt(10))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestOfferInvalidArguments(t *testing.T) {
	sh, _, _ := newTestShrine(t, testAddr(0x51))
	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})
	require.NoError(t, sh.Initialize(testAddr(1), ledger, ""))

	err := sh.Offer(context.Background(), testAddr(0x10), Token(testAddr(0xaa)), nil)
	assert.ErrorIs(t, err, ErrNilAmount)

	err = sh.Offer(context.Background(), testAddr(0x10), Token{}, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrZeroAddress)
}

func TestOfferTransferFailureRollsBack(t *testing.T) {
	sh, eng, rec := newTestShrine(t, testAddr(0x51))
	sender := testAddr(0x10)
	token := Token(testAddr(0xaa))

	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})
	require.NoError(t, sh.Initialize(testAddr(1), ledger, ""))
	before := len(rec.all())

	// The sender has no balance, so the pull fails.
	err := sh.Offer(context.Background(), sender, token, uint256.NewInt(10))
	require.ErrorIs(t, err, ErrTransferFailed)

	// The failed deposit left no accounting trace and no record.
	offered, err := sh.Offered(1, token)
	require.NoError(t, err)
	assert.True(t, offered.IsZero())
	assert.Len(t, rec.all(), before)

	// The same offer succeeds once the transfer can.
	eng.mint(token, sender, 100)
	require.NoError(t, sh.Offer(context.Background(), sender, token, uint256.NewInt(10)))
	offered, err = sh.Offered(1, token)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(10), offered)
}

func TestOfferZeroAmount(t *testing.T) {
	sh, _, rec := newTestShrine(t, testAddr(0x51))
	ledger, _ := buildLedger(t, []member{{Champion(testAddr(1)), 10}})
	require.NoError(t, sh.Initialize(testAddr(1), ledger, ""))

	require.NoError(t, sh.Offer(context.Background(), testAddr(0x10), Token(testAddr(0xaa)), new(uint256.Int)))

	offered, err := sh.Offered(1, Token(testAddr(0xaa)))
	require.NoError(t, err)
	assert.True(t, offered.IsZero())

	last := rec.all()[len(rec.all())-1].(RecordOffered)
	assert.True(t, last.Amount.IsZero())
}
