package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/quotefetch/quotes/quotes/common"
)

// blobEntry is the per-key value inside the single serialized map file.
type blobEntry struct {
	Symbol       string          `msgpack:"symbol"`
	Name         string          `msgpack:"name"`
	Candles      []common.Candle `msgpack:"data"`
	EarliestDate string          `msgpack:"earliest_date"`
	LatestDate   string          `msgpack:"latest_date"`
	Freq         string          `msgpack:"freq"`
	Fq           string          `msgpack:"fq"`
	UpdatedAt    time.Time       `msgpack:"updated_at"`
	ExpireAt     *time.Time      `msgpack:"expire_at"`
}

// BlobBackend stores the whole base_key -> entry map in one file, written as a
// whole on every mutation.
type BlobBackend struct {
	mu      sync.Mutex
	path    string
	entries map[string]blobEntry
}

// NewBlobBackend opens (creating on first write) the blob at path. An existing
// blob that cannot be decoded starts empty rather than failing the open; an
// error reading the file fails it.
func NewBlobBackend(path string) (*BlobBackend, error) {
	b := &BlobBackend{path: path, entries: map[string]blobEntry{}}
	bs, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %v: %v", common.ErrCache, path, err)
	}
	if err := msgpack.Unmarshal(bs, &b.entries); err != nil {
		b.entries = map[string]blobEntry{}
	}
	return b, nil
}

func (b *BlobBackend) save() error {
	bs, err := msgpack.Marshal(b.entries)
	if err != nil {
		return fmt.Errorf("%w: encoding blob: %v", common.ErrCache, err)
	}
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating %v: %v", common.ErrCache, dir, err)
		}
	}
	if err := os.WriteFile(b.path, bs, 0o644); err != nil {
		return fmt.Errorf("%w: writing %v: %v", common.ErrCache, b.path, err)
	}
	return nil
}

// GetRaw implements StorageBackend.
func (b *BlobBackend) GetRaw(baseKey string) (*Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[baseKey]
	if !ok {
		return nil, nil
	}
	return &Record{
		Symbol:   entry.Symbol,
		Name:     entry.Name,
		Series:   normalizeUTC(entry.Candles),
		ExpireAt: entry.ExpireAt,
	}, nil
}

// Put implements StorageBackend.
func (b *BlobBackend) Put(baseKey, symbol, name string, series common.Series, earliest, latest, freq, fq string, expireAt *time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[baseKey] = blobEntry{
		Symbol:       symbol,
		Name:         name,
		Candles:      []common.Candle(series),
		EarliestDate: earliest,
		LatestDate:   latest,
		Freq:         freq,
		Fq:           fq,
		UpdatedAt:    time.Now(),
		ExpireAt:     expireAt,
	}
	return b.save()
}

// Delete implements StorageBackend.
func (b *BlobBackend) Delete(baseKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[baseKey]; !ok {
		return nil
	}
	delete(b.entries, baseKey)
	return b.save()
}

// Clear implements StorageBackend.
func (b *BlobBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = map[string]blobEntry{}
	return b.save()
}

// Close implements StorageBackend.
func (b *BlobBackend) Close() error { return nil }
