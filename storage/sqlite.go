package storage

import (
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	store_id TEXT NOT NULL,
	key      TEXT NOT NULL,
	value    TEXT NOT NULL,
	PRIMARY KEY (store_id, key)
)`

func newSQLiteStore(path, id string, s *sealer) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store database path is empty")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite db")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping sqlite db")
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create kv table")
	}

	return &SQLiteStore{db: db, id: id, sealer: s}, nil
}

// SQLiteStore keeps entries in a sqlite table scoped by store id.
// Several store identities can share one database file.
type SQLiteStore struct {
	db     *sql.DB
	id     string
	sealer *sealer
}

// SetItem implements Store
func (s *SQLiteStore) SetItem(key, value string) error {
	sealed, err := s.sealer.seal(value)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO kv (store_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(store_id, key) DO UPDATE SET value = excluded.value`,
		s.id, key, sealed,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to set %s", key)
	}

	return nil
}

// GetItem implements Store
func (s *SQLiteStore) GetItem(key string) (string, bool, error) {
	var sealed string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE store_id = ? AND key = ?`, s.id, key).Scan(&sealed)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to get %s", key)
	}

	value, err := s.sealer.open(sealed)
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to open value for %s", key)
	}

	return value, true, nil
}

// RemoveKey implements Store
func (s *SQLiteStore) RemoveKey(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE store_id = ? AND key = ?`, s.id, key); err != nil {
		return errors.Wrapf(err, "failed to remove %s", key)
	}

	return nil
}

// AllKeys implements Store
func (s *SQLiteStore) AllKeys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM kv WHERE store_id = ? ORDER BY key`, s.id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list keys")
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "failed to scan key")
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate keys")
	}

	return keys, nil
}

// Contains implements Store
func (s *SQLiteStore) Contains(key string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM kv WHERE store_id = ? AND key = ?`, s.id, key).Scan(&n)
	if err != nil {
		return false, errors.Wrapf(err, "failed to look up %s", key)
	}

	return n > 0, nil
}

// Clear implements Store
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE store_id = ?`, s.id); err != nil {
		return errors.Wrap(err, "failed to clear store")
	}

	return nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}
