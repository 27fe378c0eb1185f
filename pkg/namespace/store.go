package namespace

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// DefaultStorageKey is used when the embedding application enables
// persistence without supplying its own key.
const DefaultStorageKey = "last-namespace"

// PreferenceStore is the durable key/value storage the persistence manager
// writes the last-used namespace into. Implementations may fail on any
// operation; callers treat failures as best-effort.
type PreferenceStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// FileStore persists preferences as one file per key below a directory.
// It is the durable-storage analogue for embeddings that outlive a single
// process, and is backed by afero so tests can run on an in-memory fs.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a store rooted at dir on the real filesystem.
func NewFileStore(dir string) *FileStore {
	return NewFileStoreFs(afero.NewOsFs(), dir)
}

// NewFileStoreFs creates a store rooted at dir on the given filesystem.
func NewFileStoreFs(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: dir}
}

func (s *FileStore) path(key string) string {
	// Keys are caller-supplied; collapse anything path-like to a bare
	// file name so a key can never escape the store directory.
	return filepath.Join(s.dir, filepath.Base(key))
}

// Get returns the stored value for key, or "" when absent. Unreadable or
// non-UTF-8 content is reported as absent rather than as an error so a
// corrupt file never blocks restoration.
func (s *FileStore) Get(key string) (string, error) {
	b, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	value := strings.TrimSpace(string(b))
	if !utf8.ValidString(value) {
		return "", nil
	}
	return value, nil
}

// Set writes value under key, creating the store directory on demand.
func (s *FileStore) Set(key, value string) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.path(key), []byte(value), 0o600)
}

// Remove deletes the stored value for key. Removing an absent key is not
// an error.
func (s *FileStore) Remove(key string) error {
	if err := s.fs.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemStore is an in-process PreferenceStore for tests and embeddings that
// do not want durable persistence.
type MemStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
