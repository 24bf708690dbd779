// Package bank provides transfer engines for shrines: an in-memory ledger
// bank with ERC-20 style balances and allowances, and a function-field test
// double. A production deployment would implement shrine.Engine against its
// actual asset platform instead.
package bank

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Astrodrop/shrine"
)

type balanceKey struct {
	token  shrine.Token
	holder common.Address
}

type allowanceKey struct {
	token   shrine.Token
	owner   common.Address
	spender common.Address
}

// MemBank is an in-memory multi-token ledger implementing shrine.Engine.
// Pull spends an allowance granted by the source to the destination, the
// way a contract spends an ERC-20 approval; Push moves the source's own
// funds. Transfers are all-or-nothing and zero amounts succeed without
// touching state. Safe for concurrent use.
type MemBank struct {
	mu         sync.RWMutex
	balances   map[balanceKey]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

// Compile-time interface check.
var _ shrine.Engine = (*MemBank)(nil)

// NewMemBank creates an empty in-memory bank.
func NewMemBank() *MemBank {
	return &MemBank{
		balances:   make(map[balanceKey]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

// Mint credits amount of token to an account out of thin air.
func (b *MemBank) Mint(token shrine.Token, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := balanceKey{token, to}
	total, overflow := addChecked(b.balances[key], amount)
	if overflow {
		return fmt.Errorf("%w: token %s account %s", ErrBalanceOverflow, token, to.Hex())
	}
	b.balances[key] = total
	return nil
}

// Approve lets spender move up to amount of owner's token via Pull. The
// amount overwrites any previous approval; the maximum value is treated as
// unlimited and never consumed.
func (b *MemBank) Approve(token shrine.Token, owner, spender common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[allowanceKey{token, owner, spender}] = amount.Clone()
	return nil
}

// Allowance returns how much of owner's token the spender may still move.
func (b *MemBank) Allowance(token shrine.Token, owner, spender common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.allowances[allowanceKey{token, owner, spender}]
	if !ok {
		return new(uint256.Int)
	}
	return a.Clone()
}

// Pull moves amount of token from `from` to `to`, consuming the allowance
// `from` granted to `to`.
func (b *MemBank) Pull(_ context.Context, token shrine.Token, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if amount.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ak := allowanceKey{token: token, owner: from, spender: to}
	allowance, ok := b.allowances[ak]
	if !ok || allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s of token %s for spender %s", ErrInsufficientAllowance, amount.Dec(), token, to.Hex())
	}

	if err := b.transfer(token, from, to, amount); err != nil {
		return err
	}
	if !allowance.Eq(maxUint256) {
		b.allowances[ak] = new(uint256.Int).Sub(allowance, amount)
	}
	return nil
}

// Push moves amount of token from `from`'s own balance to `to`.
func (b *MemBank) Push(_ context.Context, token shrine.Token, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if amount.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transfer(token, from, to, amount)
}

// BalanceOf returns holder's balance of token.
func (b *MemBank) BalanceOf(_ context.Context, token shrine.Token, holder common.Address) (*uint256.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bal, ok := b.balances[balanceKey{token, holder}]
	if !ok {
		return new(uint256.Int), nil
	}
	return bal.Clone(), nil
}

// transfer moves amount between balances under the lock. All checks run
// before any write so a failed transfer leaves both balances untouched.
func (b *MemBank) transfer(token shrine.Token, from, to common.Address, amount *uint256.Int) error {
	fromKey := balanceKey{token, from}
	fromBal := b.balances[fromKey]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s of token %s in account %s", ErrInsufficientBalance, amount.Dec(), token, from.Hex())
	}
	if from == to {
		return nil
	}

	toKey := balanceKey{token, to}
	toBal, overflow := addChecked(b.balances[toKey], amount)
	if overflow {
		return fmt.Errorf("%w: token %s account %s", ErrBalanceOverflow, token, to.Hex())
	}

	b.balances[fromKey] = new(uint256.Int).Sub(fromBal, amount)
	b.balances[toKey] = toBal
	return nil
}

// addChecked returns cur+amount without aliasing either operand, treating a
// nil current value as zero.
func addChecked(cur, amount *uint256.Int) (*uint256.Int, bool) {
	total := new(uint256.Int)
	if cur == nil {
		cur = total
	}
	_, overflow := total.AddOverflow(cur, amount)
	return total, overflow
}

var maxUint256 = new(uint256.Int).Sub(new(uint256.Int), uint256.NewInt(1))
