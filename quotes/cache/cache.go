package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quotefetch/quotes/quotes/common"
)

// Entry is the cached value handed back to callers: the canonical per-symbol
// series plus its identity.
type Entry struct {
	Symbol string
	Name   string
	Series common.Series
}

// Cache is the capability set the query facade wires against. MemoryCache and
// PersistentCache both satisfy it.
type Cache interface {
	// Get returns the entry for key filtered to [sdate, edate], or (nil, nil)
	// on miss. Empty date strings leave that bound open.
	Get(key, sdate, edate string) (*Entry, error)
	// Put stores entry under key, merging with any existing series for the
	// same base key. A zero ttl uses the cache default.
	Put(key string, entry Entry, ttl time.Duration) error
	Delete(key string) error
	Clear() error
	Close() error
}

// keyParts is the decomposition of a textual cache key. Two forms are
// accepted: the full form symbol:sdate:edate:frequency:days:adjustment and
// the base form symbol:frequency:adjustment. Short keys fill day/qfq defaults.
type keyParts struct {
	symbol string
	sdate  string
	edate  string
	freq   string
	fq     string
}

func parseKey(key string) keyParts {
	parts := strings.Split(key, ":")
	switch {
	case len(parts) == 3:
		return keyParts{symbol: parts[0], freq: parts[1], fq: parts[2]}
	case len(parts) >= 6:
		return keyParts{symbol: parts[0], sdate: parts[1], edate: parts[2], freq: parts[3], fq: parts[5]}
	case len(parts) >= 4:
		fq := common.AdjForward
		if len(parts) > 4 {
			fq = parts[4]
		}
		return keyParts{symbol: parts[0], sdate: parts[1], edate: parts[2], freq: parts[3], fq: fq}
	default:
		return keyParts{symbol: parts[0], freq: common.FreqDay, fq: common.AdjForward}
	}
}

func (p keyParts) baseKey() string {
	return BaseKey(p.symbol, p.freq, p.fq)
}

// BaseKey builds the per-series cache key independent of any date window.
func BaseKey(symbol, freq, fq string) string {
	return fmt.Sprintf("%v:%v:%v", symbol, freq, fq)
}

// PersistentCache is the cache controller: key parsing, TTL expiry, the
// date-range overlap test, range filtering, and merge-on-put, delegating raw
// persistence to a StorageBackend.
type PersistentCache struct {
	backend StorageBackend
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewPersistentCache constructs the controller over the named backend kind. A
// zero ttl disables expiry.
func NewPersistentCache(kind Kind, path string, ttl time.Duration) (*PersistentCache, error) {
	backend, err := NewBackend(kind, path)
	if err != nil {
		return nil, err
	}
	return NewPersistentCacheWithBackend(backend, ttl), nil
}

// NewPersistentCacheWithBackend constructs the controller over a caller-owned
// backend.
func NewPersistentCacheWithBackend(backend StorageBackend, ttl time.Duration) *PersistentCache {
	return &PersistentCache{backend: backend, ttl: ttl, nowFunc: time.Now}
}

// SetTimeNowFunc overrides time.Now() for testing TTL expiry.
func (c *PersistentCache) SetTimeNowFunc(f func() time.Time) { c.nowFunc = f }

// Get implements Cache. The three-segment base form takes its window from the
// sdate/edate arguments; the full form prefers the supplied window over the
// one embedded in the key.
func (c *PersistentCache) Get(key, sdate, edate string) (*Entry, error) {
	parts := parseKey(key)
	if strings.Count(key, ":") != 2 {
		if sdate == "" {
			sdate = parts.sdate
		}
		if edate == "" {
			edate = parts.edate
		}
	}
	baseKey := parts.baseKey()

	rec, err := c.backend.GetRaw(baseKey)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		log.Debug().Str("base_key", baseKey).Msg("cache miss")
		return nil, nil
	}
	if c.ttl > 0 && rec.ExpireAt != nil && c.nowFunc().After(*rec.ExpireAt) {
		if err := c.backend.Delete(baseKey); err != nil {
			return nil, err
		}
		log.Debug().Str("base_key", baseKey).Msg("cache entry expired")
		return nil, nil
	}
	if rec.Series.Empty() {
		return nil, nil
	}
	series := rec.Series.Sorted()

	var reqS, reqE time.Time
	if sdate != "" {
		if reqS, err = common.ParseDate(sdate); err != nil {
			return nil, err
		}
	}
	if edate != "" {
		if reqE, err = common.ParseDate(edate); err != nil {
			return nil, err
		}
	}

	// Overlap test against the series itself, not the denormalized columns.
	if !reqE.IsZero() && reqE.Before(series.Earliest()) {
		return nil, nil
	}
	if !reqS.IsZero() && reqS.After(series.Latest()) {
		return nil, nil
	}
	filtered := series.FilterRange(reqS, reqE)
	if filtered.Empty() {
		return nil, nil
	}
	log.Debug().Str("base_key", baseKey).Int("rows", len(filtered)).Msg("cache hit")
	return &Entry{Symbol: rec.Symbol, Name: rec.Name, Series: filtered}, nil
}

// Put implements Cache. The passed series is merged with any existing entry
// for the same base key: duplicate dates keep the later write, and the result
// is re-sorted before persisting.
func (c *PersistentCache) Put(key string, entry Entry, ttl time.Duration) error {
	if entry.Series.Empty() {
		return nil
	}
	parts := parseKey(key)
	symbol := entry.Symbol
	if symbol == "" {
		symbol = parts.symbol
	}
	baseKey := BaseKey(symbol, parts.freq, parts.fq)

	series := entry.Series
	name := entry.Name
	existing, err := c.backend.GetRaw(baseKey)
	if err != nil {
		return err
	}
	if existing != nil {
		if name == "" {
			name = existing.Name
		}
		series = existing.Series.Merge(series)
	} else {
		series = series.Sorted()
	}

	earliest := series.Earliest().Format(common.DateLayout)
	latest := series.Latest().Format(common.DateLayout)

	var expireAt *time.Time
	if effective := c.effectiveTTL(ttl); effective > 0 {
		t := c.nowFunc().Add(effective)
		expireAt = &t
	}
	if err := c.backend.Put(baseKey, symbol, name, series, earliest, latest, parts.freq, parts.fq, expireAt); err != nil {
		return err
	}
	log.Debug().Str("base_key", baseKey).Int("rows", len(series)).Str("earliest", earliest).Str("latest", latest).Msg("cache put")
	return nil
}

func (c *PersistentCache) effectiveTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return c.ttl
}

// Delete implements Cache.
func (c *PersistentCache) Delete(key string) error {
	return c.backend.Delete(parseKey(key).baseKey())
}

// Clear implements Cache.
func (c *PersistentCache) Clear() error { return c.backend.Clear() }

// Close implements Cache.
func (c *PersistentCache) Close() error { return c.backend.Close() }

// Backend exposes the underlying backend, e.g. for the sharded backend's
// status reporting.
func (c *PersistentCache) Backend() StorageBackend { return c.backend }
