package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/quotefetch/quotes/quotes/common"
)

// SQLiteBackend stores one row per base key in a single cache_data table.
// Writes are serialized through a single connection.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens (creating if missing) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating %v: %v", common.ErrCache, dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %v: %v", common.ErrCache, path, err)
	}
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_data (
			cache_key TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			name TEXT,
			data BLOB,
			earliest_date TEXT,
			latest_date TEXT,
			freq TEXT,
			fq TEXT,
			updated_at TEXT,
			expire_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_freq_fq ON cache_data(symbol, freq, fq)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: creating schema: %v", common.ErrCache, err)
		}
	}
	return &SQLiteBackend{db: db, path: path}, nil
}

// GetRaw implements StorageBackend.
func (b *SQLiteBackend) GetRaw(baseKey string) (*Record, error) {
	row := b.db.QueryRow(
		"SELECT symbol, name, data, expire_at FROM cache_data WHERE cache_key = ?", baseKey)

	var (
		symbol, name string
		data         []byte
		expireAtStr  sql.NullString
	)
	err := row.Scan(&symbol, &name, &data, &expireAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %v: %v", common.ErrCache, baseKey, err)
	}
	series, err := decodeSeries(data)
	if err != nil {
		return nil, err
	}
	rec := &Record{Symbol: symbol, Name: name, Series: series}
	if expireAtStr.Valid && expireAtStr.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, expireAtStr.String); err == nil {
			rec.ExpireAt = &t
		}
	}
	return rec, nil
}

// Put implements StorageBackend.
func (b *SQLiteBackend) Put(baseKey, symbol, name string, series common.Series, earliest, latest, freq, fq string, expireAt *time.Time) error {
	data, err := encodeSeries(series)
	if err != nil {
		return err
	}
	var expireAtStr interface{}
	if expireAt != nil {
		expireAtStr = expireAt.Format(time.RFC3339Nano)
	}
	_, err = b.db.Exec(
		`INSERT OR REPLACE INTO cache_data
		 (cache_key, symbol, name, data, earliest_date, latest_date, freq, fq, updated_at, expire_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		baseKey, symbol, name, data, earliest, latest, freq, fq,
		time.Now().Format(time.RFC3339Nano), expireAtStr,
	)
	if err != nil {
		return fmt.Errorf("%w: writing %v: %v", common.ErrCache, baseKey, err)
	}
	return nil
}

// Delete implements StorageBackend.
func (b *SQLiteBackend) Delete(baseKey string) error {
	if _, err := b.db.Exec("DELETE FROM cache_data WHERE cache_key = ?", baseKey); err != nil {
		return fmt.Errorf("%w: deleting %v: %v", common.ErrCache, baseKey, err)
	}
	return nil
}

// Clear implements StorageBackend.
func (b *SQLiteBackend) Clear() error {
	if _, err := b.db.Exec("DELETE FROM cache_data"); err != nil {
		return fmt.Errorf("%w: clearing: %v", common.ErrCache, err)
	}
	return nil
}

// Close implements StorageBackend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
