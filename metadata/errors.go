package metadata

import "errors"

var (
	// ErrEmptyDocument indicates a document with no members.
	ErrEmptyDocument = errors.New("metadata: document has no members")

	// ErrDuplicateMember indicates the same account appears twice in a document.
	ErrDuplicateMember = errors.New("metadata: duplicate member account")

	// ErrZeroShares indicates a member with a zero share weight.
	ErrZeroShares = errors.New("metadata: member has zero shares")

	// ErrSharesOverflow indicates the share weights do not sum within uint64.
	ErrSharesOverflow = errors.New("metadata: total shares overflow uint64")

	// ErrMemberNotFound indicates the account is not a member of the document.
	ErrMemberNotFound = errors.New("metadata: member not found")

	// ErrNotFound indicates no document exists for the given ref.
	ErrNotFound = errors.New("metadata: document not found")

	// ErrInvalidRef indicates a ref string that is not a 32-byte hex digest.
	ErrInvalidRef = errors.New("metadata: invalid document ref")

	// ErrRefMismatch indicates stored content whose digest does not match its ref.
	ErrRefMismatch = errors.New("metadata: stored content does not match ref")

	// ErrCorruptDocument indicates stored content that does not decode.
	ErrCorruptDocument = errors.New("metadata: corrupt document")

	// ErrDocumentTooLarge indicates a decompressed document exceeding the safety limit.
	ErrDocumentTooLarge = errors.New("metadata: document exceeds maximum size")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("metadata: invalid base directory")

	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("metadata: I/O failure")

	// ErrLedgerMismatch indicates a document that does not reproduce the
	// ledger it was resolved against.
	ErrLedgerMismatch = errors.New("metadata: document does not reproduce the ledger")
)
