package cache

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/quotefetch/quotes/quotes/common"
)

// jsonlRow is the persisted line schema: one JSON object per base key, with
// the series base64-encoded over the opaque binary serialization.
type jsonlRow struct {
	CacheKey     string `json:"cache_key"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Data         string `json:"data"`
	EarliestDate string `json:"earliest_date"`
	LatestDate   string `json:"latest_date"`
	Freq         string `json:"freq"`
	Fq           string `json:"fq"`
	UpdatedAt    string `json:"updated_at"`
	ExpireAt     string `json:"expire_at,omitempty"`
}

// JsonlBackend keeps every record in memory and rewrites the whole file on
// each write. It loads by scanning the file on open; malformed lines are
// skipped rather than poisoning the store.
type JsonlBackend struct {
	mu   sync.Mutex
	path string
	rows map[string]jsonlRow
}

// NewJsonlBackend opens (creating on first write) the log at path.
func NewJsonlBackend(path string) (*JsonlBackend, error) {
	b := &JsonlBackend{path: path, rows: map[string]jsonlRow{}}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *JsonlBackend) load() error {
	f, err := os.Open(b.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: opening %v: %v", common.ErrCache, b.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row jsonlRow
		if err := json.Unmarshal(line, &row); err != nil {
			continue
		}
		if row.CacheKey == "" {
			continue
		}
		b.rows[row.CacheKey] = row
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: scanning %v: %v", common.ErrCache, b.path, err)
	}
	return nil
}

func (b *JsonlBackend) save() error {
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating %v: %v", common.ErrCache, dir, err)
		}
	}
	f, err := os.Create(b.path)
	if err != nil {
		return fmt.Errorf("%w: writing %v: %v", common.ErrCache, b.path, err)
	}
	defer f.Close()

	keys := make([]string, 0, len(b.rows))
	for k := range b.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, k := range keys {
		if err := enc.Encode(b.rows[k]); err != nil {
			return fmt.Errorf("%w: encoding %v: %v", common.ErrCache, k, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flushing %v: %v", common.ErrCache, b.path, err)
	}
	return nil
}

// GetRaw implements StorageBackend.
func (b *JsonlBackend) GetRaw(baseKey string) (*Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	row, ok := b.rows[baseKey]
	if !ok {
		return nil, nil
	}
	return rowToRecord(row)
}

func rowToRecord(row jsonlRow) (*Record, error) {
	bs, err := base64.StdEncoding.DecodeString(row.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %v: %v", common.ErrCache, row.CacheKey, err)
	}
	series, err := decodeSeries(bs)
	if err != nil {
		return nil, err
	}
	rec := &Record{Symbol: row.Symbol, Name: row.Name, Series: series}
	if row.ExpireAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, row.ExpireAt); err == nil {
			rec.ExpireAt = &t
		}
	}
	return rec, nil
}

// Put implements StorageBackend.
func (b *JsonlBackend) Put(baseKey, symbol, name string, series common.Series, earliest, latest, freq, fq string, expireAt *time.Time) error {
	data, err := encodeSeries(series)
	if err != nil {
		return err
	}
	row := jsonlRow{
		CacheKey:     baseKey,
		Symbol:       symbol,
		Name:         name,
		Data:         base64.StdEncoding.EncodeToString(data),
		EarliestDate: earliest,
		LatestDate:   latest,
		Freq:         freq,
		Fq:           fq,
		UpdatedAt:    time.Now().Format(time.RFC3339Nano),
	}
	if expireAt != nil {
		row.ExpireAt = expireAt.Format(time.RFC3339Nano)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[baseKey] = row
	return b.save()
}

// Delete implements StorageBackend.
func (b *JsonlBackend) Delete(baseKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rows[baseKey]; !ok {
		return nil
	}
	delete(b.rows, baseKey)
	return b.save()
}

// Clear implements StorageBackend.
func (b *JsonlBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = map[string]jsonlRow{}
	return b.save()
}

// Close implements StorageBackend. The log holds no long-lived handle.
func (b *JsonlBackend) Close() error { return nil }
