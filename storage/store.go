package storage

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownBackend represents a backend name that Open does not support
	ErrUnknownBackend = errors.New("unknown storage backend")
	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("store is closed")
)

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Store is a durable string key-value store.
// Values are stored as given; callers own their serialization.
// Single key operations are atomic, nothing spans several keys.
type Store interface {
	// SetItem stores value under key, replacing any previous value
	SetItem(key, value string) error
	// GetItem returns the value stored under key and whether it exists
	GetItem(key string) (string, bool, error)
	// RemoveKey deletes key, removing a missing key is not an error
	RemoveKey(key string) error
	// AllKeys lists every key in the store
	AllKeys() ([]string, error)
	// Contains reports whether key exists
	Contains(key string) (bool, error)
	// Clear deletes every key in the store
	Clear() error
	// Close releases the underlying resources
	Close() error
}

// Options configures a store instance.
// They are fixed for the lifetime of the instance.
type Options struct {
	// ID identifies the store; it scopes rows in sqlite and salts the encryption key
	ID string
	// Path is the backing file for the file and sqlite backends
	Path string
	// EncryptionKey enables sealing of stored values when not empty
	EncryptionKey string
}

// Open creates the store for the named backend
func Open(backend string, opts Options) (Store, error) {
	if strings.TrimSpace(opts.ID) == "" {
		return nil, errors.New("store id is empty")
	}

	s, err := newSealer(opts.ID, opts.EncryptionKey)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendFile:
		return newFileStore(opts.Path, s)
	case BackendSQLite:
		return newSQLiteStore(opts.Path, opts.ID, s)
	case BackendMemory:
		return newMemoryStore(s), nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", backend)
	}
}
