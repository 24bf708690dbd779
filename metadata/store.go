package metadata

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// MaxDocumentSize is the maximum allowed decompressed document size (64 MB).
// It bounds memory use when fetching documents from untrusted storage.
const MaxDocumentSize = 1 << 26

// Store provides content-addressed storage for champion documents. Keys are
// document refs, values the documents themselves.
type Store interface {
	// Put validates and stores a document, returning its ref.
	Put(doc *Document) (Ref, error)

	// Get retrieves a document by ref, verifying content against the ref.
	Get(ref Ref) (*Document, error)

	// Has checks whether a document exists for the given ref.
	Has(ref Ref) (bool, error)

	// Delete removes a document by ref.
	Delete(ref Ref) error

	// List returns all stored refs (for backup/export).
	List() ([]Ref, error)
}

// FileStore implements Store using the local filesystem. Documents are
// stored gzipped at {baseDir}/{hex(ref[:1])}/{hex(ref)}; the first byte
// (2 hex chars) is used as a subdirectory for sharding.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a file-based document store rooted at baseDir. The
// directory is created if it does not exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return &FileStore{baseDir: baseDir}, nil
}

// refPath converts a ref to its filesystem path.
func (fs *FileStore) refPath(ref Ref) string {
	hexRef := hex.EncodeToString(ref[:])
	return filepath.Join(fs.baseDir, hexRef[:2], hexRef)
}

// Put validates and stores a document, returning its ref. Only documents
// that commit to a servable ledger are accepted.
func (fs *FileStore) Put(doc *Document) (Ref, error) {
	if _, err := doc.Ledger(); err != nil {
		return Ref{}, err
	}
	encoded, err := doc.Encode()
	if err != nil {
		return Ref{}, err
	}
	ref := NewRef(encoded)

	compressed, err := compress(encoded)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.refPath(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return Ref{}, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.WriteFile(path, compressed, 0600); err != nil {
		return Ref{}, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return ref, nil
}

// Get retrieves a document by ref. The stored bytes are verified against the
// ref before decoding, so a corrupted or substituted file cannot pass for
// the document it claims to be.
func (fs *FileStore) Get(ref Ref) (*Document, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	compressed, err := os.ReadFile(fs.refPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	encoded, err := decompress(compressed)
	if err != nil {
		return nil, err
	}
	if NewRef(encoded) != ref {
		return nil, fmt.Errorf("%w: %s", ErrRefMismatch, ref)
	}
	return Decode(encoded)
}

// Has checks whether a document exists for the given ref.
func (fs *FileStore) Has(ref Ref) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(fs.refPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return true, nil
}

// Delete removes a document by ref.
func (fs *FileStore) Delete(ref Ref) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(fs.refPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// List returns all stored refs by scanning the shard directories.
func (fs *FileStore) List() ([]Ref, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var result []Ref

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	for _, entry := range entries {
		// Shard directories are 2-character hex strings.
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}

		files, err := os.ReadDir(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			raw, err := hex.DecodeString(f.Name())
			if err != nil || len(raw) != RefSize {
				continue // skip foreign filenames
			}
			var ref Ref
			copy(ref[:], raw)
			result = append(result, ref)
		}
	}

	return result, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if len(out) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}
	return out, nil
}
