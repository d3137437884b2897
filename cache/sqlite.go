package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	cachekey "github.com/always-cache/gist-cache/pkg/cache-key"
)

// SQLiteCache stores entries in a private in-memory SQLite database.
// The database is gone when the process exits.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens the database and creates the cache table.
func NewSQLiteCache() (SQLiteCache, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return SQLiteCache{}, fmt.Errorf("open sqlite: %w", err)
	}
	// every connection to :memory: is a separate database,
	// so keep exactly one connection alive for the lifetime of the cache
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS gists (
		key TEXT PRIMARY KEY,
		stored_at INTEGER,
		payload BLOB
	)`)
	if err != nil {
		db.Close()
		return SQLiteCache{}, fmt.Errorf("create gists table: %w", err)
	}
	return SQLiteCache{db: db}, nil
}

func (s SQLiteCache) Get(key cachekey.Key) (Entry, bool, error) {
	var storedAt int64
	var payload []byte
	err := s.db.QueryRow("SELECT stored_at, payload FROM gists WHERE key = ?", key.String()).
		Scan(&storedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{StoredAt: time.Unix(0, storedAt), Payload: payload}, true, nil
}

func (s SQLiteCache) Put(key cachekey.Key, entry Entry) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO gists (key, stored_at, payload) VALUES (?, ?, ?)",
		key.String(), entry.StoredAt.UnixNano(), entry.Payload)
	return err
}

func (s SQLiteCache) Len() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM gists").Scan(&n); err != nil {
		return 0
	}
	return n
}

// Keys returns the keys of all stored entries.
func (s SQLiteCache) Keys() ([]cachekey.Key, error) {
	rows, err := s.db.Query("SELECT key FROM gists ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]cachekey.Key, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return keys, err
		}
		key, err := cachekey.Parse(raw)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s SQLiteCache) Close() error {
	return s.db.Close()
}
