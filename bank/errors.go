package bank

import "errors"

var (
	// ErrInsufficientBalance indicates the source account cannot cover the
	// transfer.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")

	// ErrInsufficientAllowance indicates the spender was not granted enough
	// allowance by the source account.
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")

	// ErrBalanceOverflow indicates a credit would push a balance past 256
	// bits.
	ErrBalanceOverflow = errors.New("bank: balance overflow")

	// ErrNilAmount indicates a nil amount where a value was required.
	ErrNilAmount = errors.New("bank: nil amount")
)
