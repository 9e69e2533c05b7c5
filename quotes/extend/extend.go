// Package extend implements the forward/backward auto-merge loop that fills
// the gap between a cached series and the requested window by iterating
// vendor fetches until the canonical series covers the request or a stop
// condition fires.
package extend

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quotefetch/quotes/quotes/cache"
	"github.com/quotefetch/quotes/quotes/common"
)

const (
	// DefaultMinRowsBeforeEnd is how many warm-up rows at or before the
	// requested end date the backward loop insists on, so trailing-window
	// consumers have enough history even when the requested start is lax.
	DefaultMinRowsBeforeEnd = 60
	// DefaultMaxIterations bounds both extension loops against defective
	// vendors.
	DefaultMaxIterations = 15
)

// FetchFunc is the vendor adapter's candle fetch, as the orchestrator sees it.
type FetchFunc func(ctx context.Context, symbol, sdate, edate, freq string, days int, fq string) (string, common.Series, error)

// Extender drives the extension loops over a persistent cache.
type Extender struct {
	cache            *cache.PersistentCache
	minRowsBeforeEnd int
	maxIterations    int
	nowFunc          func() time.Time
}

// New constructs an Extender with the default thresholds.
func New(c *cache.PersistentCache, options ...func(*Extender)) *Extender {
	e := &Extender{
		cache:            c,
		minRowsBeforeEnd: DefaultMinRowsBeforeEnd,
		maxIterations:    DefaultMaxIterations,
		nowFunc:          time.Now,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// WithMinRowsBeforeEnd overrides the warm-up row threshold.
func WithMinRowsBeforeEnd(n int) func(*Extender) {
	return func(e *Extender) {
		if n > 0 {
			e.minRowsBeforeEnd = n
		}
	}
}

// WithMaxIterations overrides the iteration cap.
func WithMaxIterations(n int) func(*Extender) {
	return func(e *Extender) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithTimeNowFunc overrides time.Now() for tests.
func WithTimeNowFunc(f func() time.Time) func(*Extender) {
	return func(e *Extender) { e.nowFunc = f }
}

// GetPriceAutoMerge returns the series for the requested window, extending the
// cached one through fetchFn as needed. Forward extensions (catching up toward
// today) all run before backward extensions (deepening history), and every
// fetched fragment is merged into the canonical per-symbol series as it
// arrives, so newer vendor data overrides older cached data per date.
func (e *Extender) GetPriceAutoMerge(ctx context.Context, symbol, sdate, edate, freq string, days int, fq string, fetchFn FetchFunc) (string, string, common.Series, error) {
	baseKey := cache.BaseKey(symbol, freq, fq)

	full, err := e.cache.Get(baseKey, "", "")
	if err != nil {
		return "", "", nil, err
	}
	if full == nil || full.Series.Empty() {
		return e.fetchDirect(ctx, symbol, sdate, edate, freq, days, fq, baseKey, fetchFn)
	}
	name := full.Name

	var reqS, reqE time.Time
	if sdate != "" {
		if reqS, err = common.ParseDate(sdate); err != nil {
			return "", "", nil, err
		}
	}
	if edate != "" {
		if reqE, err = common.ParseDate(edate); err != nil {
			return "", "", nil, err
		}
	}
	// An open end means "up to today" for extension purposes.
	today := e.nowFunc().UTC().Truncate(24 * time.Hour)
	effectiveE := reqE
	if effectiveE.IsZero() {
		effectiveE = today
	}

	series := full.Series
	if effectiveE.After(series.Latest()) {
		series, name, err = e.extendForward(ctx, symbol, freq, days, fq, baseKey, series, name, effectiveE, today, reqS, reqE, fetchFn)
		if err != nil {
			return "", "", nil, err
		}
	}
	if effectiveE.Before(series.Earliest()) || series.CountOnOrBefore(effectiveE) <= e.minRowsBeforeEnd {
		series, name, err = e.extendBackward(ctx, symbol, freq, days, fq, baseKey, series, name, effectiveE, reqS, reqE, fetchFn)
		if err != nil {
			return "", "", nil, err
		}
	}

	entry, err := e.cache.Get(baseKey, sdate, edate)
	if err != nil {
		return "", "", nil, err
	}
	if entry == nil {
		// Extension produced nothing usable for this window; one direct try.
		return e.fetchDirect(ctx, symbol, sdate, edate, freq, days, fq, baseKey, fetchFn)
	}
	return entry.Symbol, entry.Name, entry.Series, nil
}

func (e *Extender) fetchDirect(ctx context.Context, symbol, sdate, edate, freq string, days int, fq, baseKey string, fetchFn FetchFunc) (string, string, common.Series, error) {
	name, fetched, err := fetchFn(ctx, symbol, sdate, edate, freq, days, fq)
	if err != nil {
		return "", "", nil, err
	}
	if fetched.Empty() {
		return symbol, name, common.Series{}, nil
	}
	if err := e.cache.Put(baseKey, cache.Entry{Symbol: symbol, Name: name, Series: fetched}, 0); err != nil {
		return "", "", nil, err
	}
	entry, err := e.cache.Get(baseKey, sdate, edate)
	if err != nil {
		return "", "", nil, err
	}
	if entry == nil {
		return symbol, name, common.Series{}, nil
	}
	return entry.Symbol, entry.Name, entry.Series, nil
}

// extendForward catches the cached series up toward today. Stops on: iteration
// cap, empty vendor answer, a latest date that did not advance (weekends,
// delisted symbols), or coverage of the requested end.
func (e *Extender) extendForward(ctx context.Context, symbol, freq string, days int, fq, baseKey string, series common.Series, name string, effectiveE, today time.Time, reqS, reqE time.Time, fetchFn FetchFunc) (common.Series, string, error) {
	for i := 0; i < e.maxIterations; i++ {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		extendS := series.Latest().AddDate(0, 0, 1).Format(common.DateLayout)
		extendE := today.Format(common.DateLayout)

		fetchedName, fetched, err := fetchFn(ctx, symbol, extendS, extendE, freq, days, fq)
		if err != nil {
			if stop, softErr := e.softenFetchError(err, baseKey, series, reqS, reqE); stop {
				return series, name, softErr
			}
			return nil, "", err
		}
		if fetched.Empty() {
			break
		}
		if fetchedName != "" {
			name = fetchedName
		}
		if err := e.cache.Put(baseKey, cache.Entry{Symbol: symbol, Name: fetchedName, Series: fetched}, 0); err != nil {
			return nil, "", err
		}
		reloaded, err := e.cache.Get(baseKey, "", "")
		if err != nil {
			return nil, "", err
		}
		if reloaded == nil || !reloaded.Series.Latest().After(series.Latest()) {
			break
		}
		series = reloaded.Series
		if !series.Latest().Before(effectiveE) {
			break
		}
	}
	return series, name, nil
}

// extendBackward deepens history using the vendor's implicit "days most recent
// bars ending at edate" contract as a paging primitive: the start is
// deliberately unbounded. Stops on: iteration cap, empty vendor answer, an
// earliest date that did not retreat, or enough warm-up rows at or before the
// requested end.
func (e *Extender) extendBackward(ctx context.Context, symbol, freq string, days int, fq, baseKey string, series common.Series, name string, effectiveE time.Time, reqS, reqE time.Time, fetchFn FetchFunc) (common.Series, string, error) {
	for i := 0; i < e.maxIterations; i++ {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		extendE := series.Earliest().AddDate(0, 0, -1).Format(common.DateLayout)

		fetchedName, fetched, err := fetchFn(ctx, symbol, "", extendE, freq, days, fq)
		if err != nil {
			if stop, softErr := e.softenFetchError(err, baseKey, series, reqS, reqE); stop {
				return series, name, softErr
			}
			return nil, "", err
		}
		if fetched.Empty() {
			break
		}
		if fetchedName != "" {
			name = fetchedName
		}
		if err := e.cache.Put(baseKey, cache.Entry{Symbol: symbol, Name: fetchedName, Series: fetched}, 0); err != nil {
			return nil, "", err
		}
		reloaded, err := e.cache.Get(baseKey, "", "")
		if err != nil {
			return nil, "", err
		}
		if reloaded == nil || !reloaded.Series.Earliest().Before(series.Earliest()) {
			break
		}
		series = reloaded.Series
		if series.CountOnOrBefore(effectiveE) > e.minRowsBeforeEnd && !series.Earliest().After(effectiveE) {
			break
		}
	}
	return series, name, nil
}

// softenFetchError decides what an extension-iteration failure means. A data
// source failure is "this iteration produced nothing": stop extending, keep
// the cached series. A network failure stops with a warning only when the
// cached fragment still satisfies the window; otherwise it surfaces.
func (e *Extender) softenFetchError(err error, baseKey string, series common.Series, reqS, reqE time.Time) (bool, error) {
	if errors.Is(err, common.ErrDataSource) {
		return true, nil
	}
	if errors.Is(err, common.ErrNetwork) {
		if !series.FilterRange(reqS, reqE).Empty() {
			log.Warn().Str("base_key", baseKey).Err(err).Msg("network failure during extension; serving cached window")
			return true, nil
		}
	}
	return false, err
}
