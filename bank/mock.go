package bank

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Astrodrop/shrine"
)

// MockEngine is a test double for shrine.Engine.
// All function fields must be set before the corresponding method is called.
type MockEngine struct {
	PullFn      func(ctx context.Context, token shrine.Token, from, to common.Address, amount *uint256.Int) error
	PushFn      func(ctx context.Context, token shrine.Token, from, to common.Address, amount *uint256.Int) error
	BalanceOfFn func(ctx context.Context, token shrine.Token, holder common.Address) (*uint256.Int, error)
}

func (m *MockEngine) Pull(ctx context.Context, token shrine.Token, from, to common.Address, amount *uint256.Int) error {
	return m.PullFn(ctx, token, from, to, amount)
}

func (m *MockEngine) Push(ctx context.Context, token shrine.Token, from, to common.Address, amount *uint256.Int) error {
	return m.PushFn(ctx, token, from, to, amount)
}

func (m *MockEngine) BalanceOf(ctx context.Context, token shrine.Token, holder common.Address) (*uint256.Int, error) {
	return m.BalanceOfFn(ctx, token, holder)
}
