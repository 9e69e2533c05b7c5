// Package cache implements the time-range-aware caching layer: a controller
// that parses keys, tests date-range overlap and merges series, over a
// five-method storage backend protocol with relational, line-delimited,
// single-blob and market-sharded implementations.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/quotefetch/quotes/quotes/common"
)

// Record is the raw persisted value for one base key, as returned by GetRaw:
// no date filtering, no TTL check.
type Record struct {
	Symbol   string
	Name     string
	Series   common.Series
	ExpireAt *time.Time
}

// StorageBackend is the persistence protocol. A new backend only needs these
// five operations; the controller owns key parsing, expiry, filtering and
// merging. Backends must be safely openable against a missing path.
type StorageBackend interface {
	// GetRaw returns the record for baseKey, or (nil, nil) when absent.
	GetRaw(baseKey string) (*Record, error)
	// Put unconditionally overwrites the record for baseKey. The controller
	// guarantees series is the already-merged canonical one.
	Put(baseKey, symbol, name string, series common.Series, earliest, latest, freq, fq string, expireAt *time.Time) error
	// Delete removes the record for baseKey.
	Delete(baseKey string) error
	// Clear removes every record.
	Clear() error
	// Close releases connections and handles.
	Close() error
}

// Kind names a concrete backend for the factory.
type Kind string

const (
	// KindSQLite is the relational-table backend.
	KindSQLite Kind = "sqlite"
	// KindJSONL is the append-updated log backend.
	KindJSONL Kind = "jsonl"
	// KindBlob is the single-blob file backend.
	KindBlob Kind = "blob"
	// KindSharded is the market-sharded log backend.
	KindSharded Kind = "sharded"
)

// encodeSeries serializes a series into the stable binary form stored in the
// data column/field. msgpack is self-describing, so files written by one
// version stay readable by another.
func encodeSeries(series common.Series) ([]byte, error) {
	bs, err := msgpack.Marshal([]common.Candle(series))
	if err != nil {
		return nil, fmt.Errorf("%w: encoding series: %v", common.ErrCache, err)
	}
	return bs, nil
}

func decodeSeries(bs []byte) (common.Series, error) {
	var candles []common.Candle
	if err := msgpack.Unmarshal(bs, &candles); err != nil {
		return nil, fmt.Errorf("%w: decoding series: %v", common.ErrCache, err)
	}
	return normalizeUTC(candles), nil
}

// normalizeUTC pins decoded dates back to UTC; the wire format carries
// instants, not locations.
func normalizeUTC(candles []common.Candle) common.Series {
	for i := range candles {
		candles[i].Date = candles[i].Date.UTC()
	}
	return common.Series(candles)
}

// DefaultDir returns the user-home dotted cache directory, creating it if
// missing.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolving home dir: %v", common.ErrCache, err)
	}
	dir := filepath.Join(home, ".quotes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating %v: %v", common.ErrCache, dir, err)
	}
	return dir, nil
}

// DefaultPath returns the default storage path for a backend kind.
func DefaultPath(kind Kind) (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	switch kind {
	case KindJSONL:
		return filepath.Join(dir, "cache.jsonl"), nil
	case KindBlob:
		return filepath.Join(dir, "cache.pkl"), nil
	case KindSharded:
		return dir, nil
	default:
		return filepath.Join(dir, "cache.db"), nil
	}
}

// NewBackend is the factory for the named backend kind. An empty path selects
// the default under the user-home dotted directory.
func NewBackend(kind Kind, path string) (StorageBackend, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(kind); err != nil {
			return nil, err
		}
	}
	switch kind {
	case KindSQLite:
		return NewSQLiteBackend(path)
	case KindJSONL:
		return NewJsonlBackend(path)
	case KindBlob:
		return NewBlobBackend(path)
	case KindSharded:
		return NewShardedBackend(path, nil)
	default:
		return nil, fmt.Errorf("%w: unknown backend kind %q", common.ErrCache, kind)
	}
}
