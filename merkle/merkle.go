package merkle

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// leafEncodingSize is account(20) + shares as a 32-byte big-endian integer.
const leafEncodingSize = 52

// Keccak256 computes the legacy Keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// LeafHash computes the canonical leaf digest for an (account, shares) pair:
// Keccak-256 over the 20-byte account followed by the share weight encoded
// as a 32-byte big-endian integer.
func LeafHash(account common.Address, shares uint64) common.Hash {
	var buf [leafEncodingSize]byte
	copy(buf[:20], account[:])
	binary.BigEndian.PutUint64(buf[44:], shares)
	return Keccak256(buf[:])
}

// HashPair combines two digests into their parent digest. The operands are
// ordered lexicographically before hashing, so the result is independent of
// which side of the tree each digest came from.
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return Keccak256(a[:], b[:])
}

// VerifyProof reports whether leaf is included under root, given the sibling
// digests along the path from the leaf to the root (bottom-up). It is a pure
// function of its inputs.
func VerifyProof(leaf common.Hash, proof []common.Hash, root common.Hash) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = HashPair(computed, sibling)
	}
	return computed == root
}
