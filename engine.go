package shrine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Engine is the external transfer interface a shrine moves tokens through.
// The shrine never touches balances directly: offers pull tokens from the
// depositor into the shrine's custody, claims push them back out.
//
// Implementations must be all-or-nothing per call: either the full amount
// moves or an error is returned and nothing moved. Zero-amount transfers
// must succeed as no-ops. The bank package provides an in-memory
// implementation and a function-field test double.
type Engine interface {
	// Pull moves amount of token from the depositor into holder's custody,
	// spending whatever authorization the engine's platform requires the
	// holder to have been granted.
	Pull(ctx context.Context, token Token, from, to common.Address, amount *uint256.Int) error

	// Push moves amount of token out of the holder's own balance to the
	// recipient.
	Push(ctx context.Context, token Token, from, to common.Address, amount *uint256.Int) error

	// BalanceOf returns holder's current balance of token.
	BalanceOf(ctx context.Context, token Token, holder common.Address) (*uint256.Int, error)
}
