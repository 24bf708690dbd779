// Package journal persists shrine records in an append-only bbolt log.
// Records are keyed by ULID, so iteration order is creation order and logs
// from multiple shrines can share one database without key collisions.
package journal

import (
	"bytes"
	"crypto/rand"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"

	"github.com/Astrodrop/shrine"
)

var bucketRecords = []byte("records")

func init() {
	gob.Register(shrine.RecordLedgerUpdated{})
	gob.Register(shrine.RecordMetadataUpdated{})
	gob.Register(shrine.RecordOffered{})
	gob.Register(shrine.RecordClaimed{})
	gob.Register(shrine.RecordClaimRightTransferred{})
	gob.Register(shrine.RecordMetaShrineClaimed{})
}

// entry wraps a record so gob can carry the interface value.
type entry struct {
	Record shrine.Record
}

// BoltJournal is a bbolt-backed shrine.Recorder. Safe for concurrent use.
type BoltJournal struct {
	db *bbolt.DB

	// Guards entropy; monotonic ULID readers are not concurrency-safe.
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Compile-time interface check.
var _ shrine.Recorder = (*BoltJournal)(nil)

// OpenBoltJournal opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltJournal(dbPath string) (*BoltJournal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("journal: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create bucket: %w", err)
	}

	return &BoltJournal{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close closes the underlying database.
func (j *BoltJournal) Close() error { return j.db.Close() }

// Record appends a record under a fresh ULID key.
func (j *BoltJournal) Record(r shrine.Record) error {
	if r == nil {
		return fmt.Errorf("journal: nil record")
	}

	id, err := j.nextID()
	if err != nil {
		return fmt.Errorf("journal: new ulid: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry{Record: r}); err != nil {
		return fmt.Errorf("journal: encode record: %w", err)
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketRecords).Put(id[:], buf.Bytes()); err != nil {
			return fmt.Errorf("journal: put record: %w", err)
		}
		return nil
	})
}

// Replay calls fn for every record in append order. It stops at the first
// error fn returns and propagates it.
func (j *BoltJournal) Replay(fn func(shrine.Record) error) error {
	return j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var e entry
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&e); err != nil {
				return fmt.Errorf("journal: decode record %x: %w", k, err)
			}
			return fn(e.Record)
		})
	})
}

// Len returns the number of stored records.
func (j *BoltJournal) Len() (int, error) {
	var n int
	err := j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n, err
}

// nextID draws a monotonic ULID so records created in the same millisecond
// still sort in creation order.
func (j *BoltJournal) nextID() (ulid.ULID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ulid.New(ulid.Now(), j.entropy)
}
