// Package quotes implements a market-quote retrieval library: a
// time-range-aware caching layer fronting heterogeneous vendor endpoints that
// each expose per-symbol OHLCV candle histories.
//
// Here's an example usage:
//
// ```
// package main
//
// import (
//
//	"context"
//	"fmt"
//	"log"
//
//	"github.com/quotefetch/quotes/quotes"
//	"github.com/quotefetch/quotes/quotes/cache"
//
// )
//
//	func main() {
//		c, err := cache.NewPersistentCache(cache.KindSQLite, "", 0)
//		if err != nil {
//			log.Fatal(err)
//		}
//		q := quotes.New(quotes.WithCache(c))
//		defer q.Close()
//
//		symbol, name, series, err := q.GetPrice(context.Background(), "sh600000", quotes.Query{
//			StartDate: "2024-01-02",
//			EndDate:   "2024-01-05",
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(symbol, name, len(series))
//	}
//
// ```
package quotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quotefetch/quotes/quotes/cache"
	"github.com/quotefetch/quotes/quotes/common"
	"github.com/quotefetch/quotes/quotes/config"
	"github.com/quotefetch/quotes/quotes/eastmoney"
	"github.com/quotefetch/quotes/quotes/extend"
	"github.com/quotefetch/quotes/quotes/fetch"
	"github.com/quotefetch/quotes/quotes/sina"
	"github.com/quotefetch/quotes/quotes/symbols"
	"github.com/quotefetch/quotes/quotes/tencent"
)

// AdjRaw requests the unadjusted series. The facade's empty Adjust means "use
// the default" (forward-adjusted), so raw has to be asked for explicitly; on
// the wire and in cache keys it becomes the empty adjustment.
const AdjRaw = "raw"

// DefaultDays is the vendors' fall-through bar-count default, kept even when
// a start date is also supplied.
const DefaultDays = 320

// Query is the optional part of a price request. Zero fields take defaults:
// day frequency, 320 days, forward adjustment, open date bounds.
type Query struct {
	StartDate string
	EndDate   string
	Freq      string
	Days      int
	Adjust    string
}

// Quotes is the public query facade. Construct it once and share it; the
// underlying HTTP pool is process-wide.
type Quotes struct {
	cache            cache.Cache
	client           *fetch.Client
	tencent          *tencent.Tencent
	sina             *sina.Sina
	eastmoney        *eastmoney.EastMoney
	minRowsBeforeEnd int
	maxIterations    int
	nowFunc          func() time.Time
	debug            bool
}

// New constructs a Quotes facade.
func New(options ...func(*Quotes)) *Quotes {
	q := &Quotes{
		minRowsBeforeEnd: extend.DefaultMinRowsBeforeEnd,
		maxIterations:    extend.DefaultMaxIterations,
		nowFunc:          time.Now,
	}
	for _, option := range options {
		option(q)
	}
	if q.client == nil {
		q.client = fetch.New()
	}
	if q.tencent == nil {
		q.tencent = tencent.New(q.client)
	}
	if q.sina == nil {
		q.sina = sina.New(q.client)
	}
	if q.eastmoney == nil {
		q.eastmoney = eastmoney.New(q.client)
	}
	if q.debug {
		q.tencent.SetDebug(true)
		q.sina.SetDebug(true)
		q.eastmoney.SetDebug(true)
	}
	return q
}

// WithCache wires the user-provided cache. The facade does not own its
// lifecycle beyond Close.
func WithCache(c cache.Cache) func(*Quotes) {
	return func(q *Quotes) { q.cache = c }
}

// WithHTTPClient overrides the HTTP fetcher shared by all adapters.
func WithHTTPClient(client *fetch.Client) func(*Quotes) {
	return func(q *Quotes) { q.client = client }
}

// WithTencent overrides the stock adapter, e.g. one built against a fake
// vendor.
func WithTencent(t *tencent.Tencent) func(*Quotes) {
	return func(q *Quotes) { q.tencent = t }
}

// WithSina overrides the futures/BTC adapter.
func WithSina(s *sina.Sina) func(*Quotes) {
	return func(q *Quotes) { q.sina = s }
}

// WithEastMoney overrides the board adapter.
func WithEastMoney(e *eastmoney.EastMoney) func(*Quotes) {
	return func(q *Quotes) { q.eastmoney = e }
}

// WithConfig rebuilds the shared fetcher from the config's HTTP settings
// (timeout, pool size, retries). The cache settings are not read here.
func WithConfig(cfg config.Config) func(*Quotes) {
	return func(q *Quotes) {
		q.client = fetch.New(
			fetch.WithTimeout(cfg.HTTPTimeout),
			fetch.WithPoolSize(cfg.PoolSize),
			fetch.WithRetries(cfg.RetryTimes, cfg.RetryDelay),
		)
	}
}

// WithMinRowsBeforeEnd overrides the extension orchestrator's warm-up
// threshold.
func WithMinRowsBeforeEnd(n int) func(*Quotes) {
	return func(q *Quotes) {
		if n > 0 {
			q.minRowsBeforeEnd = n
		}
	}
}

// WithMaxExtendIterations overrides the extension orchestrator's iteration cap.
func WithMaxExtendIterations(n int) func(*Quotes) {
	return func(q *Quotes) {
		if n > 0 {
			q.maxIterations = n
		}
	}
}

// WithTimeNowFunc overrides time.Now() for tests.
func WithTimeNowFunc(f func() time.Time) func(*Quotes) {
	return func(q *Quotes) { q.nowFunc = f }
}

// WithDebug enables debug logging across all adapters.
func WithDebug(debug bool) func(*Quotes) {
	return func(q *Quotes) { q.debug = debug }
}

// Close closes the cache, when one is wired.
func (q *Quotes) Close() error {
	if q.cache != nil {
		return q.cache.Close()
	}
	return nil
}

// GetPrice returns (canonical symbol, display name, series) for one symbol
// over the requested window. Date arguments accept YYYY-MM-DD, YYYY/MM/DD,
// YYYYMMDD, YYYY.MM.DD and YYYY_MM_DD; anything else fails with an
// ErrSymbol-kinded error. Daily stock, plate and futures requests against a
// persistent cache go through the auto-merge extension orchestrator; board and
// BTC symbols, and everything else, use a trivial per-request cache wrapper.
func (q *Quotes) GetPrice(ctx context.Context, symbol string, query Query) (string, string, common.Series, error) {
	query = withDefaults(query)

	sdate, err := common.NormalizeDate(query.StartDate)
	if err != nil {
		return "", "", nil, err
	}
	edate, err := common.NormalizeDate(query.EndDate)
	if err != nil {
		return "", "", nil, err
	}
	query.StartDate, query.EndDate = sdate, edate

	market, normalized, err := symbols.Route(symbol)
	if err != nil {
		return "", "", nil, err
	}

	switch market {
	case symbols.MarketBoard:
		return q.getBoard(ctx, normalized, query)
	case symbols.MarketBTC:
		return q.getBTC(ctx, normalized, query)
	case symbols.MarketFuture:
		return q.getFuture(ctx, normalized, query)
	case symbols.MarketPlate:
		return q.getCached(ctx, normalized, query, q.plateFetch())
	case symbols.MarketUS:
		return q.getUS(ctx, normalized, query)
	default: // mainland, Hong Kong
		return q.getCached(ctx, normalized, query, q.tencentFetch())
	}
}

// GetPriceLonger stitches the query's own window together with years-1
// earlier one-year windows, walking backward from the most recent segment:
// each iteration uses the earliest date of the prior segment as its end date.
// Segments are concatenated and deduplicated by date.
func (q *Quotes) GetPriceLonger(ctx context.Context, symbol string, years int, query Query) (string, string, common.Series, error) {
	if years < 1 {
		years = 1
	}
	canonical, name, series, err := q.GetPrice(ctx, symbol, query)
	if err != nil {
		return "", "", nil, err
	}
	if series.Empty() {
		return canonical, name, series, nil
	}
	d1 := series.Earliest()
	for y := 1; y < years; y++ {
		d0 := d1.AddDate(-1, 0, 0)
		segQuery := query
		segQuery.StartDate = d0.Format(common.DateLayout)
		segQuery.EndDate = d1.Format(common.DateLayout)
		_, _, segment, err := q.GetPrice(ctx, canonical, segQuery)
		if err != nil {
			return "", "", nil, err
		}
		if segment.Empty() {
			break
		}
		series = segment.Merge(series)
		d1 = segment.Earliest()
	}
	return canonical, name, series, nil
}

func withDefaults(query Query) Query {
	if query.Freq == "" {
		query.Freq = common.FreqDay
	}
	if query.Days <= 0 {
		query.Days = DefaultDays
	}
	if query.Adjust == "" {
		query.Adjust = common.AdjForward
	}
	return query
}

// wireAdjust translates the explicit-raw sentinel into the empty wire value.
func wireAdjust(fq string) string {
	if fq == AdjRaw {
		return ""
	}
	return fq
}

func (q *Quotes) tencentFetch() extend.FetchFunc {
	return func(ctx context.Context, symbol, sdate, edate, freq string, days int, fq string) (string, common.Series, error) {
		return q.tencent.FetchCandles(ctx, symbol, sdate, edate, freq, days, fq)
	}
}

func (q *Quotes) plateFetch() extend.FetchFunc {
	return func(ctx context.Context, symbol, sdate, edate, freq string, days int, fq string) (string, common.Series, error) {
		return q.tencent.FetchPlate(ctx, symbol, sdate, edate, freq, days, fq)
	}
}

// getCached runs a fetch through the caching layer: the auto-merge extension
// orchestrator for daily requests against a persistent cache, a trivial
// full-key wrapper otherwise.
func (q *Quotes) getCached(ctx context.Context, symbol string, query Query, fetchFn extend.FetchFunc) (string, string, common.Series, error) {
	fq := wireAdjust(query.Adjust)

	if pc, ok := q.cache.(*cache.PersistentCache); ok && query.Freq == common.FreqDay {
		extender := extend.New(pc,
			extend.WithMinRowsBeforeEnd(q.minRowsBeforeEnd),
			extend.WithMaxIterations(q.maxIterations),
			extend.WithTimeNowFunc(q.nowFunc),
		)
		return extender.GetPriceAutoMerge(ctx, symbol, query.StartDate, query.EndDate, query.Freq, query.Days, fq, fetchFn)
	}
	return q.getTrivial(ctx, symbol, query, fetchFn)
}

// getTrivial is the plain cache wrapper: hit on the full request key or fetch
// and store. Minute series are not stored in a persistent cache.
func (q *Quotes) getTrivial(ctx context.Context, symbol string, query Query, fetchFn extend.FetchFunc) (string, string, common.Series, error) {
	fq := wireAdjust(query.Adjust)
	key := fmt.Sprintf("%v:%v:%v:%v:%v:%v", symbol, query.StartDate, query.EndDate, query.Freq, query.Days, fq)

	if q.cache != nil {
		entry, err := q.cache.Get(key, query.StartDate, query.EndDate)
		if err != nil {
			return "", "", nil, err
		}
		if entry != nil {
			return entry.Symbol, entry.Name, entry.Series, nil
		}
	}
	name, series, err := fetchFn(ctx, symbol, query.StartDate, query.EndDate, query.Freq, query.Days, fq)
	if err != nil {
		return "", "", nil, err
	}
	_, persistent := q.cache.(*cache.PersistentCache)
	if q.cache != nil && !series.Empty() && !(persistent && common.IsIntraday(query.Freq)) {
		if err := q.cache.Put(key, cache.Entry{Symbol: symbol, Name: name, Series: series}, 0); err != nil {
			return "", "", nil, err
		}
	}
	return symbol, name, series, nil
}

// getUS handles US symbols, probing the venue-suffix candidates for bare
// codes: each candidate is fetched and the richer series wins (more rows,
// ties broken by the earlier first date). The winner becomes the canonical
// symbol.
func (q *Quotes) getUS(ctx context.Context, symbol string, query Query) (string, string, common.Series, error) {
	if common.IsIntraday(query.Freq) {
		return q.getTrivial(ctx, symbol, query, q.tencentFetch())
	}
	candidates := symbols.USCandidates(symbol)
	if len(candidates) == 1 {
		return q.getCached(ctx, candidates[0], query, q.tencentFetch())
	}

	fq := wireAdjust(query.Adjust)
	var (
		winner       string
		winnerName   string
		winnerSeries common.Series
		lastErr      error
	)
	for _, candidate := range candidates {
		name, series, err := q.tencent.FetchCandles(ctx, candidate, query.StartDate, query.EndDate, query.Freq, query.Days, fq)
		if err != nil {
			lastErr = err
			continue
		}
		if richerThan(series, winnerSeries) {
			winner, winnerName, winnerSeries = candidate, name, series
		}
	}
	if winner == "" {
		if lastErr != nil {
			return "", "", nil, lastErr
		}
		return "", "", nil, fmt.Errorf("%w: no US venue answered for %v", common.ErrDataSource, symbol)
	}
	// Warm the cache with the winning fetch so the cached flow below serves
	// it without refetching.
	if q.cache != nil {
		key := cache.BaseKey(winner, query.Freq, fq)
		if _, ok := q.cache.(*cache.PersistentCache); !ok {
			key = fmt.Sprintf("%v:%v:%v:%v:%v:%v", winner, query.StartDate, query.EndDate, query.Freq, query.Days, fq)
		}
		if err := q.cache.Put(key, cache.Entry{Symbol: winner, Name: winnerName, Series: winnerSeries}, 0); err != nil {
			return "", "", nil, err
		}
	}
	return q.getCached(ctx, winner, query, q.tencentFetch())
}

// richerThan reports whether a beats b: more rows, ties broken by the earlier
// first date.
func richerThan(a, b common.Series) bool {
	if a.Empty() {
		return false
	}
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a.Earliest().Before(b.Earliest())
}

func (q *Quotes) getBoard(ctx context.Context, symbol string, query Query) (string, string, common.Series, error) {
	return q.getTrivial(ctx, symbol, query, func(ctx context.Context, symbol, _, _, _ string, _ int, _ string) (string, common.Series, error) {
		return q.eastmoney.FetchBoardCandles(ctx, symbol)
	})
}

func (q *Quotes) getBTC(ctx context.Context, symbol string, query Query) (string, string, common.Series, error) {
	fetchFn := func(ctx context.Context, _ string, _, _, freq string, _ int, _ string) (string, common.Series, error) {
		if common.IsIntraday(freq) {
			series, err := q.sina.FetchBTCMinute(ctx, 0)
			if err != nil {
				// The BTC minute endpoint is a soft-fail path: preserve the
				// tuple shape with an empty table.
				return "", common.Series{}, nil
			}
			return "BTC", series, nil
		}
		series, err := q.sina.FetchBTCDaily(ctx)
		if err != nil {
			return "", nil, err
		}
		return "BTC", series, nil
	}
	return q.getTrivial(ctx, symbol, query, fetchFn)
}

func (q *Quotes) getFuture(ctx context.Context, symbol string, query Query) (string, string, common.Series, error) {
	code := strings.TrimPrefix(symbol, "fu")
	fetchFn := func(ctx context.Context, _ string, _, _, freq string, _ int, _ string) (string, common.Series, error) {
		if common.IsIntraday(freq) {
			series, err := q.sina.FetchFutureMinute(ctx, code)
			return code, series, err
		}
		series, err := q.sina.FetchFutureDaily(ctx, code)
		return code, series, err
	}
	if common.IsIntraday(query.Freq) {
		return q.getTrivial(ctx, symbol, query, fetchFn)
	}
	return q.getCached(ctx, symbol, query, fetchFn)
}
