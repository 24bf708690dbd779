package shrine

import "errors"

var (
	// ErrAlreadyInitialized indicates a second initialization attempt on a
	// shrine whose version counter is already nonzero.
	ErrAlreadyInitialized = errors.New("shrine: already initialized")

	// ErrNotInitialized indicates an operation that needs a current ledger
	// was called before Initialize.
	ErrNotInitialized = errors.New("shrine: not initialized")

	// ErrNotAuthorized indicates the caller is neither the champion nor the
	// champion's claim-right owner, or is not the guardian for a
	// guardian-only operation.
	ErrNotAuthorized = errors.New("shrine: caller not authorized")

	// ErrInvalidProof indicates the inclusion proof does not reconstruct the
	// ledger's Merkle root for the claimed (champion, shares) leaf.
	ErrInvalidProof = errors.New("shrine: invalid merkle proof")

	// ErrLengthMismatch indicates parallel batch inputs of differing lengths.
	ErrLengthMismatch = errors.New("shrine: input length mismatch")

	// ErrReentrancy indicates the reentrancy barrier is already held.
	ErrReentrancy = errors.New("shrine: reentrant call")

	// ErrTransferFailed indicates the external transfer engine declined a
	// pull or push; the surrounding accounting mutation has been rolled back.
	ErrTransferFailed = errors.New("shrine: token transfer failed")

	// ErrVersionNotFound indicates a lookup of a ledger version that was
	// never created.
	ErrVersionNotFound = errors.New("shrine: ledger version not found")

	// ErrInvalidLedger indicates a ledger with a zero total share weight or a
	// zero Merkle root.
	ErrInvalidLedger = errors.New("shrine: invalid ledger")

	// ErrZeroGuardian indicates an attempt to bind a shrine to the zero
	// address as guardian.
	ErrZeroGuardian = errors.New("shrine: zero guardian address")

	// ErrAmountOverflow indicates an accounting value exceeded 256 bits.
	ErrAmountOverflow = errors.New("shrine: amount overflow")

	// ErrNilAmount indicates a nil amount where a value was required.
	ErrNilAmount = errors.New("shrine: nil amount")

	// ErrNilStore indicates a shrine was configured without a state store.
	ErrNilStore = errors.New("shrine: nil state store")

	// ErrNilEngine indicates a shrine was configured without a transfer
	// engine.
	ErrNilEngine = errors.New("shrine: nil transfer engine")

	// ErrNilUpstream indicates a composed claim was attempted without an
	// upstream shrine.
	ErrNilUpstream = errors.New("shrine: nil upstream shrine")

	// ErrZeroAddress indicates a required address argument was zero.
	ErrZeroAddress = errors.New("shrine: zero address")
)
