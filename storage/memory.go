package storage

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

func newMemoryStore(s *sealer) *MemoryStore {
	return &MemoryStore{
		data:   xsync.NewMapOf[string, string](),
		sealer: s,
	}
}

// MemoryStore is a process local store, nothing survives a restart
type MemoryStore struct {
	data   *xsync.MapOf[string, string]
	sealer *sealer
	closed atomic.Bool
}

// SetItem implements Store
func (m *MemoryStore) SetItem(key, value string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	sealed, err := m.sealer.seal(value)
	if err != nil {
		return err
	}
	m.data.Store(key, sealed)

	return nil
}

// GetItem implements Store
func (m *MemoryStore) GetItem(key string) (string, bool, error) {
	if m.closed.Load() {
		return "", false, ErrClosed
	}
	sealed, ok := m.data.Load(key)
	if !ok {
		return "", false, nil
	}
	value, err := m.sealer.open(sealed)
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to open value for %s", key)
	}

	return value, true, nil
}

// RemoveKey implements Store
func (m *MemoryStore) RemoveKey(key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.data.Delete(key)

	return nil
}

// AllKeys implements Store
func (m *MemoryStore) AllKeys() ([]string, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	keys := make([]string, 0, m.data.Size())
	m.data.Range(func(k, _ string) bool {
		keys = append(keys, k)
		return true
	})

	return keys, nil
}

// Contains implements Store
func (m *MemoryStore) Contains(key string) (bool, error) {
	if m.closed.Load() {
		return false, ErrClosed
	}
	_, ok := m.data.Load(key)

	return ok, nil
}

// Clear implements Store
func (m *MemoryStore) Clear() error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.data.Clear()

	return nil
}

// Close implements Store
func (m *MemoryStore) Close() error {
	m.closed.Store(true)

	return nil
}
