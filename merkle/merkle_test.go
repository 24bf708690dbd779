package merkle

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeAccount(seed byte) common.Address {
	var addr common.Address
	for i := range addr {
		addr[i] = seed
	}
	return addr
}

func makeLeaves(n int) []common.Hash {
	leaves := make([]common.Hash, n)
	for i := 0; i < n; i++ {
		leaves[i] = LeafHash(makeAccount(byte(i+1)), uint64(i+1)*100)
	}
	return leaves
}

func TestLeafHash_Deterministic(t *testing.T) {
	a := LeafHash(makeAccount(0xAA), 7000)
	b := LeafHash(makeAccount(0xAA), 7000)
	assert.Equal(t, a, b)

	// Different shares or account give a different digest.
	assert.NotEqual(t, a, LeafHash(makeAccount(0xAA), 7001))
	assert.NotEqual(t, a, LeafHash(makeAccount(0xAB), 7000))
}

func TestHashPair_OrderIndependent(t *testing.T) {
	a := Keccak256([]byte("a"))
	b := Keccak256([]byte("b"))
	assert.Equal(t, HashPair(a, b), HashPair(b, a))
}

func TestNewTree_Empty(t *testing.T) {
	_, err := NewTree(nil)
	assert.ErrorIs(t, err, ErrNoLeaves)
}

func TestTree_SingleLeaf(t *testing.T) {
	leaf := LeafHash(makeAccount(0x01), 100)
	tree, err := NewTree([]common.Hash{leaf})
	require.NoError(t, err)

	// For a single leaf the root is the leaf itself and the proof is empty.
	assert.Equal(t, leaf, tree.Root())
	proof, err := tree.Proof(0)
	require.NoError(t, err)
	assert.Empty(t, proof)
	assert.True(t, VerifyProof(leaf, proof, tree.Root()))
}

func TestTree_ProofRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 16, 33, 100} {
		leaves := makeLeaves(n)
		tree, err := NewTree(leaves)
		require.NoError(t, err)

		for i := 0; i < n; i++ {
			proof, err := tree.Proof(i)
			require.NoError(t, err)
			assert.True(t, VerifyProof(leaves[i], proof, tree.Root()),
				"leaf %d of %d must verify", i, n)
		}
	}
}

func TestTree_ProofIndexOutOfRange(t *testing.T) {
	tree, err := NewTree(makeLeaves(4))
	require.NoError(t, err)

	_, err = tree.Proof(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = tree.Proof(4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestVerifyProof_WrongLeaf(t *testing.T) {
	leaves := makeLeaves(8)
	tree, err := NewTree(leaves)
	require.NoError(t, err)

	proof, err := tree.Proof(3)
	require.NoError(t, err)

	// Proof for leaf 3 must not verify any other leaf.
	for i, leaf := range leaves {
		if i == 3 {
			continue
		}
		assert.False(t, VerifyProof(leaf, proof, tree.Root()), "leaf %d", i)
	}

	// A leaf that was never in the tree must not verify either.
	outsider := LeafHash(makeAccount(0xFF), 12345)
	assert.False(t, VerifyProof(outsider, proof, tree.Root()))
}

func TestVerifyProof_MutatedProof(t *testing.T) {
	leaves := makeLeaves(16)
	tree, err := NewTree(leaves)
	require.NoError(t, err)

	proof, err := tree.Proof(5)
	require.NoError(t, err)
	require.NotEmpty(t, proof)

	// Flip a single bit in each proof element in turn.
	for i := range proof {
		mutated := make([]common.Hash, len(proof))
		copy(mutated, proof)
		mutated[i][0] ^= 0x01
		assert.False(t, VerifyProof(leaves[5], mutated, tree.Root()), "element %d", i)
	}

	// Truncated and extended proofs must fail too.
	assert.False(t, VerifyProof(leaves[5], proof[:len(proof)-1], tree.Root()))
	extended := append(append([]common.Hash{}, proof...), Keccak256([]byte("extra")))
	assert.False(t, VerifyProof(leaves[5], extended, tree.Root()))
}

func TestVerifyProof_WrongRoot(t *testing.T) {
	leaves := makeLeaves(4)
	tree, err := NewTree(leaves)
	require.NoError(t, err)

	proof, err := tree.Proof(0)
	require.NoError(t, err)

	wrongRoot := tree.Root()
	wrongRoot[31] ^= 0x01
	assert.False(t, VerifyProof(leaves[0], proof, wrongRoot))
}

func TestTree_NumLeaves(t *testing.T) {
	tree, err := NewTree(makeLeaves(7))
	require.NoError(t, err)
	assert.Equal(t, 7, tree.NumLeaves())
}
