package cache

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/quotefetch/quotes/quotes/common"
)

// RouteFunc decides which market shard a symbol's records live in.
type RouteFunc func(symbol string) string

// shardMarkets are the four market shards, each its own jsonl log.
var shardMarkets = []string{"cn", "hk", "us", "fu"}

const fallbackMarket = "cn"

// StatusRow is one line of the sharded backend's reporting call.
type StatusRow struct {
	Market   string `json:"market"`
	Symbol   string `json:"symbol"`
	Earliest string `json:"earliest_date"`
	Latest   string `json:"latest_date"`
	Rows     int    `json:"rows"`
}

// ShardedBackend routes records to one of four market jsonl logs. The routing
// function is user-overridable; symbols no shard claims land in cn.
type ShardedBackend struct {
	routeFn  RouteFunc
	backends map[string]*JsonlBackend
}

// NewShardedBackend opens the four shard logs under dir. A nil routeFn uses
// the default prefix routing.
func NewShardedBackend(dir string, routeFn RouteFunc) (*ShardedBackend, error) {
	if routeFn == nil {
		routeFn = DefaultRoute
	}
	backends := make(map[string]*JsonlBackend, len(shardMarkets))
	for _, market := range shardMarkets {
		b, err := NewJsonlBackend(filepath.Join(dir, "cache_"+market+".jsonl"))
		if err != nil {
			return nil, err
		}
		backends[market] = b
	}
	return &ShardedBackend{routeFn: routeFn, backends: backends}, nil
}

// DefaultRoute is the default market routing: us/hk/fu prefixes map to their
// shard, everything else is cn.
func DefaultRoute(symbol string) string {
	s := strings.ToLower(symbol)
	switch {
	case strings.HasPrefix(s, "us"):
		return "us"
	case strings.HasPrefix(s, "hk"):
		return "hk"
	case strings.HasPrefix(s, "fu"):
		return "fu"
	}
	return "cn"
}

func symbolFromKey(baseKey string) string {
	if i := strings.IndexByte(baseKey, ':'); i != -1 {
		return baseKey[:i]
	}
	return baseKey
}

func (b *ShardedBackend) backendFor(symbol string) *JsonlBackend {
	if backend, ok := b.backends[b.routeFn(symbol)]; ok {
		return backend
	}
	return b.backends[fallbackMarket]
}

// GetRaw implements StorageBackend.
func (b *ShardedBackend) GetRaw(baseKey string) (*Record, error) {
	return b.backendFor(symbolFromKey(baseKey)).GetRaw(baseKey)
}

// Put implements StorageBackend.
func (b *ShardedBackend) Put(baseKey, symbol, name string, series common.Series, earliest, latest, freq, fq string, expireAt *time.Time) error {
	return b.backendFor(symbol).Put(baseKey, symbol, name, series, earliest, latest, freq, fq, expireAt)
}

// Delete implements StorageBackend.
func (b *ShardedBackend) Delete(baseKey string) error {
	return b.backendFor(symbolFromKey(baseKey)).Delete(baseKey)
}

// Clear implements StorageBackend.
func (b *ShardedBackend) Clear() error {
	for _, backend := range b.backends {
		if err := backend.Clear(); err != nil {
			return err
		}
	}
	return nil
}

// Close implements StorageBackend.
func (b *ShardedBackend) Close() error {
	for _, backend := range b.backends {
		if err := backend.Close(); err != nil {
			return err
		}
	}
	return nil
}

// StatusRows reports the per-symbol shard contents, sorted by symbol. A
// non-empty symbols filter restricts the report to those symbols. Rows is -1
// when the stored series cannot be decoded.
func (b *ShardedBackend) StatusRows(symbols []string) []StatusRow {
	var filter map[string]bool
	if len(symbols) > 0 {
		filter = make(map[string]bool, len(symbols))
		for _, s := range symbols {
			filter[s] = true
		}
	}
	var rows []StatusRow
	for _, market := range shardMarkets {
		backend := b.backends[market]
		backend.mu.Lock()
		for _, row := range backend.rows {
			if row.Symbol == "" {
				continue
			}
			if filter != nil && !filter[row.Symbol] {
				continue
			}
			n := -1
			if rec, err := rowToRecord(row); err == nil {
				n = len(rec.Series)
			}
			rows = append(rows, StatusRow{
				Market:   market,
				Symbol:   row.Symbol,
				Earliest: row.EarliestDate,
				Latest:   row.LatestDate,
				Rows:     n,
			})
		}
		backend.mu.Unlock()
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}
