package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const (
	filePerm os.FileMode = 0600
	dirPerm  os.FileMode = 0700
)

func newFileStore(filePath string, s *sealer) (*FileStore, error) {
	if filePath == "" {
		return nil, errors.New("store file path is empty")
	}
	dir := filepath.Dir(filePath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, errors.Wrap(err, "failed to create store dir")
		}
	}

	f := &FileStore{
		filePath: filePath,
		data:     make(map[string]string),
		sealer:   s,
	}
	if err := f.ensureFile(); err != nil {
		return nil, err
	}
	if err := f.read(); err != nil {
		return nil, err
	}

	return f, nil
}

// FileStore keeps every entry in a single JSON file.
// The whole file is rewritten after each mutation.
type FileStore struct {
	filePath string
	data     map[string]string
	sealer   *sealer
	m        sync.Mutex
	closed   bool
}

// SetItem implements Store
func (f *FileStore) SetItem(key, value string) error {
	sealed, err := f.sealer.seal(value)
	if err != nil {
		return err
	}

	f.m.Lock()
	defer f.m.Unlock()
	if f.closed {
		return ErrClosed
	}
	prev, had := f.data[key]
	f.data[key] = sealed

	if err := f.save(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

// GetItem implements Store
func (f *FileStore) GetItem(key string) (string, bool, error) {
	f.m.Lock()
	if f.closed {
		f.m.Unlock()
		return "", false, ErrClosed
	}
	sealed, ok := f.data[key]
	f.m.Unlock()
	if !ok {
		return "", false, nil
	}

	value, err := f.sealer.open(sealed)
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to open value for %s", key)
	}

	return value, true, nil
}

// RemoveKey implements Store
func (f *FileStore) RemoveKey(key string) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.closed {
		return ErrClosed
	}
	prev, ok := f.data[key]
	if !ok {
		return nil
	}
	delete(f.data, key)

	if err := f.save(); err != nil {
		f.data[key] = prev
		return err
	}
	return nil
}

// AllKeys implements Store
func (f *FileStore) AllKeys() ([]string, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}

	return keys, nil
}

// Contains implements Store
func (f *FileStore) Contains(key string) (bool, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.closed {
		return false, ErrClosed
	}
	_, ok := f.data[key]

	return ok, nil
}

// Clear implements Store
func (f *FileStore) Clear() error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.closed {
		return ErrClosed
	}
	prev := f.data
	f.data = make(map[string]string)

	if err := f.save(); err != nil {
		f.data = prev
		return err
	}
	return nil
}

// Close implements Store
func (f *FileStore) Close() error {
	f.m.Lock()
	defer f.m.Unlock()
	f.closed = true

	return nil
}

// save writes the current data to the store file.
// Callers restore the previous data when it fails.
// Make sure to execute this when the store is locked
func (f *FileStore) save() error {
	data, err := json.MarshalIndent(f.data, "", "\t")
	if err != nil {
		return errors.Wrap(err, "failed to marshal store data to json")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.filePath), filepath.Base(f.filePath)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary store file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write store file")
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to set store file permissions")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close store file")
	}
	if err := os.Rename(tmp.Name(), f.filePath); err != nil {
		return errors.Wrap(err, "failed to replace store file")
	}

	return nil
}

// read loads the store file into memory
func (f *FileStore) read() error {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return errors.Wrap(err, "failed to read store file")
	}

	if len(data) == 0 || string(data) == "{}" {
		return nil
	}
	err = json.Unmarshal(data, &f.data)
	if err != nil {
		return errors.Wrap(err, "failed to parse data from store file")
	}

	return nil
}

// ensureFile ensures that the store file exists
func (f *FileStore) ensureFile() error {
	file, err := os.OpenFile(f.filePath, os.O_RDONLY|os.O_CREATE, filePerm)
	if err != nil {
		return errors.Wrap(err, "something went wrong creating/reading store file")
	}

	return file.Close()
}
