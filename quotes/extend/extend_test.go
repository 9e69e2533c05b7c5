package extend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quotefetch/quotes/quotes/cache"
	"github.com/quotefetch/quotes/quotes/common"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func candle(date string, close float64) common.Candle {
	return common.Candle{Date: day(date), Open: close - 1, Close: close, High: close + 1, Low: close - 2, Vol: 1000}
}

func seriesRange(from, to string, close float64) common.Series {
	s := common.Series{}
	for d := day(from); !d.After(day(to)); d = d.AddDate(0, 0, 1) {
		s = append(s, candle(d.Format("2006-01-02"), close))
	}
	return s
}

func newTestCache(t *testing.T) *cache.PersistentCache {
	t.Helper()
	backend, err := cache.NewJsonlBackend(filepath.Join(t.TempDir(), "cache.jsonl"))
	require.NoError(t, err)
	c := cache.NewPersistentCacheWithBackend(backend, 0)
	t.Cleanup(func() { c.Close() })
	return c
}

// fetchCall records one vendor request the orchestrator issued.
type fetchCall struct {
	sdate, edate string
}

// scriptedFetch answers each call from a queue of canned results and records
// the requested windows.
type scriptedFetch struct {
	calls   []fetchCall
	results []func(sdate, edate string) (string, common.Series, error)
}

func (f *scriptedFetch) fn() FetchFunc {
	return func(_ context.Context, _, sdate, edate, _ string, _ int, _ string) (string, common.Series, error) {
		f.calls = append(f.calls, fetchCall{sdate: sdate, edate: edate})
		if len(f.results) == 0 {
			return "", common.Series{}, nil
		}
		result := f.results[0]
		f.results = f.results[1:]
		return result(sdate, edate)
	}
}

func answer(name string, series common.Series) func(string, string) (string, common.Series, error) {
	return func(string, string) (string, common.Series, error) { return name, series, nil }
}

func fixedNow(date string) func(*Extender) {
	return WithTimeNowFunc(func() time.Time { return day(date) })
}

func TestColdMissSingleFetch(t *testing.T) {
	c := newTestCache(t)
	fetcher := &scriptedFetch{results: []func(string, string) (string, common.Series, error){
		answer("浦发银行", seriesRange("2024-01-02", "2024-01-05", 10)),
	}}
	e := New(c, fixedNow("2024-01-15"))

	symbol, name, series, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-01-02", "2024-01-05", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Equal(t, "sh600000", symbol)
	require.Equal(t, "浦发银行", name)
	require.Len(t, series, 4)
	require.Len(t, fetcher.calls, 1)
	require.Equal(t, fetchCall{sdate: "2024-01-02", edate: "2024-01-05"}, fetcher.calls[0])

	// The cache now has the base entry.
	entry, err := c.Get("sh600000:day:qfq", "", "")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Len(t, entry.Series, 4)
}

func TestExactRangeHitDoesNotFetch(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Name: "浦发银行", Series: seriesRange("2024-01-02", "2024-01-05", 10)}, 0))
	fetcher := &scriptedFetch{}
	e := New(c, fixedNow("2024-01-05"), WithMinRowsBeforeEnd(1))

	_, name, series, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-01-02", "2024-01-05", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Equal(t, "浦发银行", name)
	require.Len(t, series, 4)
	require.Empty(t, fetcher.calls)
}

func TestForwardExtension(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Name: "浦发银行", Series: seriesRange("2024-01-02", "2024-01-05", 10)}, 0))
	fetcher := &scriptedFetch{results: []func(string, string) (string, common.Series, error){
		answer("浦发银行", seriesRange("2024-01-06", "2024-01-12", 11)),
	}}
	e := New(c, fixedNow("2024-01-15"), WithMinRowsBeforeEnd(1))

	_, _, series, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-01-02", "2024-01-12", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Len(t, fetcher.calls, 1)
	// The extension window starts the day after the cached latest and ends today.
	require.Equal(t, fetchCall{sdate: "2024-01-06", edate: "2024-01-15"}, fetcher.calls[0])
	require.Equal(t, day("2024-01-02"), series.Earliest())
	require.Equal(t, day("2024-01-12"), series.Latest())

	entry, err := c.Get("sh600000:day:qfq", "", "")
	require.NoError(t, err)
	require.Equal(t, day("2024-01-12"), entry.Series.Latest())
}

func TestForwardExtensionStopsWhenLatestDoesNotAdvance(t *testing.T) {
	c := newTestCache(t)
	cached := seriesRange("2024-01-02", "2024-01-05", 10)
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Series: cached}, 0))
	// The vendor keeps answering with already-known bars (holiday stretch).
	fetcher := &scriptedFetch{results: []func(string, string) (string, common.Series, error){
		answer("", seriesRange("2024-01-04", "2024-01-05", 10)),
		answer("", seriesRange("2024-01-04", "2024-01-05", 10)),
	}}
	e := New(c, fixedNow("2024-01-15"), WithMinRowsBeforeEnd(1))

	_, _, series, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-01-02", "2024-01-12", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Len(t, fetcher.calls, 1)
	require.Equal(t, day("2024-01-05"), series.Latest())
}

func TestVendorEmptyStopsForwardLoop(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Series: seriesRange("2024-01-02", "2024-01-05", 10)}, 0))
	fetcher := &scriptedFetch{} // every call answers empty
	e := New(c, fixedNow("2024-01-15"), WithMinRowsBeforeEnd(1))

	_, _, series, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-01-02", "2024-01-12", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Len(t, fetcher.calls, 1)
	// The pre-extension cached window filtered to the request.
	require.Len(t, series, 4)
	require.Equal(t, day("2024-01-05"), series.Latest())
}

func TestBackwardWarmup(t *testing.T) {
	c := newTestCache(t)
	// 20 cached bars; the warm-up threshold wants more than 60 at or before
	// the requested end.
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Series: seriesRange("2024-03-01", "2024-03-20", 10)}, 0))
	fetcher := &scriptedFetch{results: []func(string, string) (string, common.Series, error){
		answer("", seriesRange("2023-12-01", "2024-02-29", 9)),
	}}
	e := New(c, fixedNow("2024-03-20"), WithMinRowsBeforeEnd(60))

	_, _, series, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-02-01", "2024-03-20", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Len(t, fetcher.calls, 1)
	// Backward windows deliberately leave the start unbounded and end the day
	// before the cached earliest.
	require.Equal(t, fetchCall{sdate: "", edate: "2024-02-29"}, fetcher.calls[0])
	// The returned window is still the requested one.
	require.Equal(t, day("2024-02-01"), series.Earliest())
	require.Equal(t, day("2024-03-20"), series.Latest())

	// The persisted series now holds enough warm-up rows.
	entry, err := c.Get("sh600000:day:qfq", "", "")
	require.NoError(t, err)
	require.Greater(t, entry.Series.CountOnOrBefore(day("2024-03-20")), 60)
}

func TestBackwardExtensionStopsWhenEarliestDoesNotRetreat(t *testing.T) {
	c := newTestCache(t)
	cached := seriesRange("2024-03-01", "2024-03-20", 10)
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Series: cached}, 0))
	// A delisted symbol: the vendor keeps re-answering the same bars.
	fetcher := &scriptedFetch{results: []func(string, string) (string, common.Series, error){
		answer("", seriesRange("2024-03-01", "2024-03-10", 10)),
		answer("", seriesRange("2024-03-01", "2024-03-10", 10)),
	}}
	e := New(c, fixedNow("2024-03-20"), WithMinRowsBeforeEnd(60))

	_, _, _, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-02-01", "2024-03-20", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Len(t, fetcher.calls, 1)
}

func TestIterationCapBoundsRunawayVendors(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Series: seriesRange("2024-03-19", "2024-03-20", 10)}, 0))
	// The vendor retreats exactly one bar per call, never reaching the warm-up
	// threshold.
	fetcher := &scriptedFetch{}
	fetcher.results = make([]func(string, string) (string, common.Series, error), 0, 20)
	for i := 0; i < 20; i++ {
		d := day("2024-03-18").AddDate(0, 0, -i)
		fetcher.results = append(fetcher.results, answer("", common.Series{candle(d.Format("2006-01-02"), 10)}))
	}
	e := New(c, fixedNow("2024-03-20"), WithMinRowsBeforeEnd(60), WithMaxIterations(3))

	_, _, _, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "", "2024-03-20", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Len(t, fetcher.calls, 3)
}

func TestDataSourceErrorStopsIterationKeepingCache(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Series: seriesRange("2024-01-02", "2024-01-05", 10)}, 0))
	fetcher := &scriptedFetch{results: []func(string, string) (string, common.Series, error){
		func(string, string) (string, common.Series, error) {
			return "", nil, fmt.Errorf("%w: code -1", common.ErrDataSource)
		},
	}}
	e := New(c, fixedNow("2024-01-15"), WithMinRowsBeforeEnd(1))

	_, _, series, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-01-02", "2024-01-12", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Len(t, series, 4)
}

func TestNetworkErrorServesCachedWindowWhenSatisfiable(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Series: seriesRange("2024-01-02", "2024-01-05", 10)}, 0))
	fetcher := &scriptedFetch{results: []func(string, string) (string, common.Series, error){
		func(string, string) (string, common.Series, error) {
			return "", nil, common.NetworkError{URL: "http://example", Attempts: 3, Err: errors.New("timeout")}
		},
	}}
	e := New(c, fixedNow("2024-01-15"), WithMinRowsBeforeEnd(1))

	_, _, series, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-01-02", "2024-01-12", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Len(t, series, 4)
}

func TestNetworkErrorSurfacesWhenCacheCannotSatisfy(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Series: seriesRange("2024-01-02", "2024-01-05", 10)}, 0))
	fetcher := &scriptedFetch{results: []func(string, string) (string, common.Series, error){
		func(string, string) (string, common.Series, error) {
			return "", nil, common.NetworkError{URL: "http://example", Attempts: 3, Err: errors.New("timeout")}
		},
	}}
	e := New(c, fixedNow("2024-03-15"), WithMinRowsBeforeEnd(1))

	// The requested window lies entirely past the cached series.
	_, _, _, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-02-01", "2024-03-12", "day", 320, "qfq", fetcher.fn())

	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrNetwork))
}

func TestMissAfterExtensionFallsBackToDirectFetch(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("sh600000:day:qfq", cache.Entry{Symbol: "sh600000", Series: seriesRange("2024-01-02", "2024-01-05", 10)}, 0))
	// Extension produces nothing, and the requested window misses the cached
	// series entirely; the finalization falls back to one direct fetch.
	fetcher := &scriptedFetch{results: []func(string, string) (string, common.Series, error){
		answer("", common.Series{}),                             // forward extension: empty
		answer("", seriesRange("2024-02-01", "2024-02-05", 12)), // direct fallback
	}}
	e := New(c, fixedNow("2024-03-15"), WithMinRowsBeforeEnd(1))

	_, _, series, err := e.GetPriceAutoMerge(context.Background(), "sh600000", "2024-02-01", "2024-02-05", "day", 320, "qfq", fetcher.fn())

	require.NoError(t, err)
	require.Len(t, fetcher.calls, 2)
	require.Equal(t, fetchCall{sdate: "2024-02-01", edate: "2024-02-05"}, fetcher.calls[1])
	require.Len(t, series, 5)
}
