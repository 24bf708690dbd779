// Package metadata maintains the champion lists behind ledger metadata
// pointers. A shrine commits only a Merkle root and a share total; the full
// member list lives off to the side as a content-addressed document that
// anyone can fetch, verify against the committed ledger, and derive claim
// proofs from.
package metadata

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Astrodrop/shrine"
	"github.com/Astrodrop/shrine/merkle"
)

// RefSize is the length of a document ref (Keccak-256 output = 32 bytes).
const RefSize = 32

// Ref is the content address of an encoded document: the Keccak-256 digest
// of its canonical JSON bytes.
type Ref common.Hash

// NewRef computes the ref of encoded document bytes.
func NewRef(encoded []byte) Ref {
	return Ref(merkle.Keccak256(encoded))
}

// ParseRef parses a 0x-prefixed 64-digit hex string into a Ref. This is the
// inverse of String and the form carried in ledger metadata pointers.
func ParseRef(s string) (Ref, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Ref{}, fmt.Errorf("%w: missing 0x prefix: %q", ErrInvalidRef, s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q: %v", ErrInvalidRef, s, err)
	}
	if len(raw) != RefSize {
		return Ref{}, fmt.Errorf("%w: got %d bytes", ErrInvalidRef, len(raw))
	}
	var r Ref
	copy(r[:], raw)
	return r, nil
}

// String renders the ref as a 0x-prefixed hex string.
func (r Ref) String() string { return common.Hash(r).Hex() }

// Zero reports whether the ref is all zero bytes.
func (r Ref) Zero() bool { return r == Ref{} }

// Member is one entry of a champion list: an account and its share weight.
type Member struct {
	Account common.Address `json:"account"`
	Shares  uint64         `json:"shares"`
}

// Document is a complete champion list. Member order is significant: it fixes
// the leaf order of the Merkle tree, so two documents with the same members
// in a different order commit to different roots.
type Document struct {
	Members []Member `json:"members"`
}

// Encode renders the document as canonical JSON. Encoding the same document
// always yields the same bytes, so refs are stable.
func (d *Document) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// Decode parses encoded document bytes.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	return &d, nil
}

// Ref computes the document's content address.
func (d *Document) Ref() (Ref, error) {
	encoded, err := d.Encode()
	if err != nil {
		return Ref{}, err
	}
	return NewRef(encoded), nil
}

// TotalShares sums the member share weights, rejecting uint64 overflow.
func (d *Document) TotalShares() (uint64, error) {
	var total uint64
	for _, m := range d.Members {
		sum := total + m.Shares
		if sum < total {
			return 0, ErrSharesOverflow
		}
		total = sum
	}
	return total, nil
}

// Ledger commits the document to the ledger a shrine would store for it:
// the Merkle root over the member leaves and the share total. It rejects
// documents a shrine could not serve claims from.
func (d *Document) Ledger() (shrine.Ledger, error) {
	if len(d.Members) == 0 {
		return shrine.Ledger{}, ErrEmptyDocument
	}

	seen := make(map[common.Address]struct{}, len(d.Members))
	leaves := make([]common.Hash, len(d.Members))
	for i, m := range d.Members {
		if m.Shares == 0 {
			return shrine.Ledger{}, fmt.Errorf("%w: %s", ErrZeroShares, m.Account.Hex())
		}
		if _, dup := seen[m.Account]; dup {
			return shrine.Ledger{}, fmt.Errorf("%w: %s", ErrDuplicateMember, m.Account.Hex())
		}
		seen[m.Account] = struct{}{}
		leaves[i] = merkle.LeafHash(m.Account, m.Shares)
	}

	total, err := d.TotalShares()
	if err != nil {
		return shrine.Ledger{}, err
	}

	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return shrine.Ledger{}, err
	}
	return shrine.Ledger{MerkleRoot: tree.Root(), TotalShares: total}, nil
}

// ProofFor returns the inclusion proof and share weight of one member,
// suitable for a ClaimRequest against the document's ledger.
func (d *Document) ProofFor(account common.Address) ([]common.Hash, uint64, error) {
	index := -1
	leaves := make([]common.Hash, len(d.Members))
	for i, m := range d.Members {
		leaves[i] = merkle.LeafHash(m.Account, m.Shares)
		if m.Account == account {
			index = i
		}
	}
	if index < 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrMemberNotFound, account.Hex())
	}

	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return nil, 0, err
	}
	proof, err := tree.Proof(index)
	if err != nil {
		return nil, 0, err
	}
	return proof, d.Members[index].Shares, nil
}
