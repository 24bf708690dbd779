// Package shrine implements a proportional value-distribution ledger. A
// shrine holds fungible tokens offered to it and lets champions, accounts
// committed to a Merkle tree together with a share weight, withdraw amounts
// proportional to their weight. Membership is proved per call with an
// inclusion proof, so a shrine never stores its champion list. Ledgers are
// versioned, claim rights can be handed to another account, and a shrine can
// itself be a champion of another shrine (a meta shrine), redistributing what
// it claims.
package shrine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Version numbers a shrine's ledger snapshots. The first ledger is version 1;
// version 0 means the shrine has not been initialized.
type Version uint64

// Champion identifies an account entitled to a share of a shrine's
// distributions. It is distinct from a plain address so champion identifiers
// cannot be mixed up with token or caller addresses.
type Champion common.Address

// String returns the champion's 0x-prefixed hex form.
func (c Champion) String() string {
	return common.Address(c).Hex()
}

// Zero reports whether the champion identifier is the zero address.
func (c Champion) Zero() bool {
	return c == Champion{}
}

// Bytes returns the champion identifier as a 20-byte slice.
func (c Champion) Bytes() []byte {
	return common.Address(c).Bytes()
}

// Token identifies a fungible asset handled by the transfer engine.
type Token common.Address

// String returns the token's 0x-prefixed hex form.
func (t Token) String() string {
	return common.Address(t).Hex()
}

// Zero reports whether the token identifier is the zero address.
func (t Token) Zero() bool {
	return t == Token{}
}

// Bytes returns the token identifier as a 20-byte slice.
func (t Token) Bytes() []byte {
	return common.Address(t).Bytes()
}

// Ledger is one immutable snapshot of a shrine's champion commitment: the
// Merkle root of all (champion, shares) leaves and the sum of all share
// weights. Once stored under a version it never changes.
type Ledger struct {
	MerkleRoot  common.Hash
	TotalShares uint64
}

// Validate checks that the ledger can ever pay anything out: a zero total
// weight would make every claim a division by zero, and a zero root admits
// no proofs.
func (l Ledger) Validate() error {
	if l.TotalShares == 0 {
		return fmt.Errorf("%w: zero total shares", ErrInvalidLedger)
	}
	if l.MerkleRoot == (common.Hash{}) {
		return fmt.Errorf("%w: zero merkle root", ErrInvalidLedger)
	}
	return nil
}

// ClaimRequest carries everything a single-asset claim needs: which ledger
// version to claim against, the token, the champion with its committed share
// weight, and the inclusion proof for the (champion, shares) leaf.
type ClaimRequest struct {
	Version  Version
	Token    Token
	Champion Champion
	Shares   uint64
	Proof    []common.Hash
}

// NewClaimRequests zips parallel slices into claim requests for
// ClaimMultiple. It fails with ErrLengthMismatch unless all slices have the
// same length.
func NewClaimRequests(versions []Version, tokens []Token, champions []Champion, shares []uint64, proofs [][]common.Hash) ([]ClaimRequest, error) {
	n := len(versions)
	if len(tokens) != n || len(champions) != n || len(shares) != n || len(proofs) != n {
		return nil, fmt.Errorf("%w: versions=%d tokens=%d champions=%d shares=%d proofs=%d",
			ErrLengthMismatch, n, len(tokens), len(champions), len(shares), len(proofs))
	}

	reqs := make([]ClaimRequest, n)
	for i := 0; i < n; i++ {
		reqs[i] = ClaimRequest{
			Version:  versions[i],
			Token:    tokens[i],
			Champion: champions[i],
			Shares:   shares[i],
			Proof:    proofs[i],
		}
	}
	return reqs, nil
}
