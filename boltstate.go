package shrine

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.etcd.io/bbolt"
)

var (
	bucketMeta    = []byte("meta")
	bucketLedgers = []byte("ledgers")
	bucketOffered = []byte("offered")
	bucketClaimed = []byte("claimed")
	bucketRights  = []byte("claim_rights")

	metaKeyVersion  = []byte("version")
	metaKeyGuardian = []byte("guardian")
)

// BoltState is a bbolt-backed StateStore. Every method runs in a single
// transaction, so read-modify-write sequences like AddOffered are atomic
// even across processes sharing the database file.
type BoltState struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ StateStore = (*BoltState)(nil)

// OpenBoltState opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltState(dbPath string) (*BoltState, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("shrine: create state directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("shrine: open state db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketLedgers, bucketOffered, bucketClaimed, bucketRights} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstate: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("shrine: create buckets: %w", err)
	}

	return &BoltState{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltState) Close() error { return s.db.Close() }

// Initialize atomically moves the version counter from 0 to 1.
func (s *BoltState) Initialize(guardian common.Address, ledger Ledger) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if storedVersion(meta) != 0 {
			return ErrAlreadyInitialized
		}

		data, err := encodeGob(ledger)
		if err != nil {
			return fmt.Errorf("encode ledger: %w", err)
		}
		if err := meta.Put(metaKeyVersion, versionKey(1)); err != nil {
			return fmt.Errorf("boltstate: put version: %w", err)
		}
		if err := meta.Put(metaKeyGuardian, guardian.Bytes()); err != nil {
			return fmt.Errorf("boltstate: put guardian: %w", err)
		}
		if err := tx.Bucket(bucketLedgers).Put(versionKey(1), data); err != nil {
			return fmt.Errorf("boltstate: put ledger: %w", err)
		}
		return nil
	})
}

// BumpLedger increments the version counter and stores the new ledger.
func (s *BoltState) BumpLedger(ledger Ledger) (Version, error) {
	var next Version
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		cur := storedVersion(meta)
		if cur == 0 {
			return ErrNotInitialized
		}
		next = cur + 1

		data, err := encodeGob(ledger)
		if err != nil {
			return fmt.Errorf("encode ledger: %w", err)
		}
		if err := meta.Put(metaKeyVersion, versionKey(next)); err != nil {
			return fmt.Errorf("boltstate: put version: %w", err)
		}
		if err := tx.Bucket(bucketLedgers).Put(versionKey(next), data); err != nil {
			return fmt.Errorf("boltstate: put ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// CurrentVersion returns the version counter, 0 if uninitialized.
func (s *BoltState) CurrentVersion() (Version, error) {
	var v Version
	err := s.db.View(func(tx *bbolt.Tx) error {
		v = storedVersion(tx.Bucket(bucketMeta))
		return nil
	})
	return v, err
}

// Guardian returns the guardian address, zero if uninitialized.
func (s *BoltState) Guardian() (common.Address, error) {
	var g common.Address
	err := s.db.View(func(tx *bbolt.Tx) error {
		g = common.BytesToAddress(tx.Bucket(bucketMeta).Get(metaKeyGuardian))
		return nil
	})
	return g, err
}

// LedgerOfVersion returns the ledger stored under a version.
func (s *BoltState) LedgerOfVersion(v Version) (Ledger, error) {
	var ledger Ledger
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketLedgers).Get(versionKey(v))
		if data == nil {
			return fmt.Errorf("%w: version %d", ErrVersionNotFound, v)
		}
		if err := decodeGob(data, &ledger); err != nil {
			return fmt.Errorf("boltstate: decode ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		return Ledger{}, err
	}
	return ledger, nil
}

// AddOffered credits amount to the cumulative deposits of (v, t).
func (s *BoltState) AddOffered(v Version, t Token, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return nil, ErrNilAmount
	}

	var total *uint256.Int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOffered)
		key := offeredKeyBytes(v, t)

		var overflow bool
		total, overflow = addAmount(amountFromBytes(b.Get(key)), amount)
		if overflow {
			return fmt.Errorf("%w: offered total for version %d token %s", ErrAmountOverflow, v, t)
		}
		if err := b.Put(key, amountBytes(total)); err != nil {
			return fmt.Errorf("boltstate: put offered: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// RollbackOffered reverses a prior AddOffered.
func (s *BoltState) RollbackOffered(v Version, t Token, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOffered)
		key := offeredKeyBytes(v, t)

		total, underflow := subAmount(amountFromBytes(b.Get(key)), amount)
		if underflow {
			return fmt.Errorf("%w: offered rollback below zero for version %d token %s", ErrAmountOverflow, v, t)
		}
		if err := b.Put(key, amountBytes(total)); err != nil {
			return fmt.Errorf("boltstate: put offered: %w", err)
		}
		return nil
	})
}

// Offered returns the cumulative deposits of (v, t).
func (s *BoltState) Offered(v Version, t Token) (*uint256.Int, error) {
	var total *uint256.Int
	err := s.db.View(func(tx *bbolt.Tx) error {
		total = amountFromBytes(tx.Bucket(bucketOffered).Get(offeredKeyBytes(v, t)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// AddClaimed credits amount to the cumulative payouts of (v, t, c).
func (s *BoltState) AddClaimed(v Version, t Token, c Champion, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return nil, ErrNilAmount
	}

	var total *uint256.Int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketClaimed)
		key := claimedKeyBytes(v, t, c)

		var overflow bool
		total, overflow = addAmount(amountFromBytes(b.Get(key)), amount)
		if overflow {
			return fmt.Errorf("%w: claimed total for version %d token %s champion %s", ErrAmountOverflow, v, t, c)
		}
		if err := b.Put(key, amountBytes(total)); err != nil {
			return fmt.Errorf("boltstate: put claimed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// RollbackClaimed reverses a prior AddClaimed.
func (s *BoltState) RollbackClaimed(v Version, t Token, c Champion, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketClaimed)
		key := claimedKeyBytes(v, t, c)

		total, underflow := subAmount(amountFromBytes(b.Get(key)), amount)
		if underflow {
			return fmt.Errorf("%w: claimed rollback below zero for version %d token %s champion %s", ErrAmountOverflow, v, t, c)
		}
		if err := b.Put(key, amountBytes(total)); err != nil {
			return fmt.Errorf("boltstate: put claimed: %w", err)
		}
		return nil
	})
}

// Claimed returns the cumulative payouts of (v, t, c).
func (s *BoltState) Claimed(v Version, t Token, c Champion) (*uint256.Int, error) {
	var total *uint256.Int
	err := s.db.View(func(tx *bbolt.Tx) error {
		total = amountFromBytes(tx.Bucket(bucketClaimed).Get(claimedKeyBytes(v, t, c)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// SetClaimRightOwner stores the claim-right owner for a champion.
func (s *BoltState) SetClaimRightOwner(c Champion, owner common.Address) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketRights).Put(c.Bytes(), owner.Bytes()); err != nil {
			return fmt.Errorf("boltstate: put claim right: %w", err)
		}
		return nil
	})
}

// ClaimRightOwner returns the claim-right owner for a champion, zero if unset.
func (s *BoltState) ClaimRightOwner(c Champion) (common.Address, error) {
	var owner common.Address
	err := s.db.View(func(tx *bbolt.Tx) error {
		owner = common.BytesToAddress(tx.Bucket(bucketRights).Get(c.Bytes()))
		return nil
	})
	return owner, err
}

// storedVersion reads the version counter inside a transaction.
func storedVersion(meta *bbolt.Bucket) Version {
	data := meta.Get(metaKeyVersion)
	if len(data) != 8 {
		return 0
	}
	return Version(binary.BigEndian.Uint64(data))
}

// versionKey encodes a version as an 8-byte big-endian key for sorted storage.
func versionKey(v Version) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(v))
	return k
}

// offeredKeyBytes encodes (version, token) as a composite key.
func offeredKeyBytes(v Version, t Token) []byte {
	k := make([]byte, 8+common.AddressLength)
	binary.BigEndian.PutUint64(k, uint64(v))
	copy(k[8:], t.Bytes())
	return k
}

// claimedKeyBytes encodes (version, token, champion) as a composite key.
func claimedKeyBytes(v Version, t Token, c Champion) []byte {
	k := make([]byte, 8+2*common.AddressLength)
	binary.BigEndian.PutUint64(k, uint64(v))
	copy(k[8:], t.Bytes())
	copy(k[8+common.AddressLength:], c.Bytes())
	return k
}

// amountBytes encodes an amount as a fixed 32-byte big-endian value.
func amountBytes(a *uint256.Int) []byte {
	b := a.Bytes32()
	return b[:]
}

// amountFromBytes decodes a stored amount, treating a missing key as zero.
func amountFromBytes(data []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(data)
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
