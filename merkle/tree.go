package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Tree is a binary Merkle tree over a fixed list of leaf digests, built with
// the same sorted-pair hashing that VerifyProof uses. When a level has an odd
// number of nodes the last node is promoted to the next level unchanged, so
// no leaf is ever paired with a copy of itself.
//
// Trees are built off-chain by whoever maintains a champion list; the
// verifier side only ever sees roots and proofs.
type Tree struct {
	levels [][]common.Hash // levels[0] is the leaf level, last level is the root
}

// NewTree builds a Merkle tree from the given leaf digests. The leaf order is
// preserved; proofs are issued against leaf indices.
func NewTree(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	level := make([]common.Hash, len(leaves))
	copy(level, leaves)

	levels := [][]common.Hash{level}
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, HashPair(level[i], level[i+1]))
		}
		if len(level)%2 != 0 {
			// Odd node out: promote unchanged.
			next = append(next, level[len(level)-1])
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}, nil
}

// Root returns the tree's root digest.
func (t *Tree) Root() common.Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// NumLeaves returns the number of leaves the tree was built from.
func (t *Tree) NumLeaves() int {
	return len(t.levels[0])
}

// Proof returns the sibling digests proving inclusion of the leaf at index,
// ordered bottom-up. A promoted node contributes no sibling at that level.
func (t *Tree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= t.NumLeaves() {
		return nil, fmt.Errorf("%w: index %d, %d leaves", ErrIndexOutOfRange, index, t.NumLeaves())
	}

	var proof []common.Hash
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		index /= 2
	}
	return proof, nil
}
