package metadata

import (
	"fmt"

	"github.com/Astrodrop/shrine"
)

// LedgerSource yields committed ledgers by version. *shrine.Shrine satisfies
// it directly.
type LedgerSource interface {
	LedgerOfVersion(v shrine.Version) (shrine.Ledger, error)
}

// Resolver fetches champion documents and verifies them against the ledgers
// a shrine has actually committed to. A document that resolves is trustworthy
// input for claim proofs: its Merkle root and share total are exactly the
// ones the shrine serves claims from.
type Resolver struct {
	store  Store
	source LedgerSource
}

// NewResolver creates a Resolver reading documents from store and ledgers
// from source.
func NewResolver(store Store, source LedgerSource) *Resolver {
	return &Resolver{store: store, source: source}
}

// Resolve fetches the document behind ref and verifies that it reproduces
// the ledger committed under v: same root, same total. A document that fails
// verification is returned as ErrLedgerMismatch, never as a document.
func (r *Resolver) Resolve(v shrine.Version, ref Ref) (*Document, error) {
	ledger, err := r.source.LedgerOfVersion(v)
	if err != nil {
		return nil, err
	}

	doc, err := r.store.Get(ref)
	if err != nil {
		return nil, err
	}

	committed, err := doc.Ledger()
	if err != nil {
		return nil, err
	}
	if committed != ledger {
		return nil, fmt.Errorf("%w: version %d", ErrLedgerMismatch, v)
	}
	return doc, nil
}

// ResolvePointer parses a metadata pointer string, as announced by ledger
// metadata records, and resolves it against version v.
func (r *Resolver) ResolvePointer(v shrine.Version, pointer string) (*Document, error) {
	ref, err := ParseRef(pointer)
	if err != nil {
		return nil, err
	}
	return r.Resolve(v, ref)
}
