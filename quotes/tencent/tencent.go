// Package tencent implements the candle adapter for mainland, Hong Kong and US
// stocks, plus the plate-index route that rides the same kline service behind
// an alternate envelope.
package tencent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/quotefetch/quotes/quotes/common"
	"github.com/quotefetch/quotes/quotes/fetch"
	"github.com/quotefetch/quotes/quotes/parse"
)

// Tencent enables requesting candle histories from the ifzq kline service.
// It does not cache; caching is orthogonal.
type Tencent struct {
	apiURL         string
	apiURLHK       string
	apiURLUS       string
	apiURLUSMinute string
	apiURLPlate    string
	client         *fetch.Client
	debug          bool
}

// New is the constructor for Tencent.
func New(client *fetch.Client, options ...func(*Tencent)) *Tencent {
	t := &Tencent{
		apiURL:         "https://web.ifzq.gtimg.cn/appstock/app/newfqkline/get",
		apiURLHK:       "https://web.ifzq.gtimg.cn/appstock/app/hkfqkline/get",
		apiURLUS:       "https://web.ifzq.gtimg.cn/appstock/app/usfqkline/get",
		apiURLUSMinute: "https://web.ifzq.gtimg.cn/appstock/app/UsMinute/query",
		apiURLPlate:    "https://proxy.finance.qq.com/ifzqgtimg/appstock/app/newfqkline/get",
		client:         client,
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// WithBaseURL points every endpoint at base, keeping the vendor paths. Useful
// for tests against a fake vendor.
func WithBaseURL(base string) func(*Tencent) {
	return func(t *Tencent) {
		t.apiURL = base + "/appstock/app/newfqkline/get"
		t.apiURLHK = base + "/appstock/app/hkfqkline/get"
		t.apiURLUS = base + "/appstock/app/usfqkline/get"
		t.apiURLUSMinute = base + "/appstock/app/UsMinute/query"
		t.apiURLPlate = base + "/ifzqgtimg/appstock/app/newfqkline/get"
	}
}

// SetDebug enables adapter-level request logging.
func (t *Tencent) SetDebug(debug bool) { t.debug = debug }

// FetchCandles requests the candle history of a sh/sz/hk/us symbol for the
// given window. `days` is the vendor's fall-through default when the window is
// open. US intraday requests are routed to the UsMinute endpoint.
func (t *Tencent) FetchCandles(ctx context.Context, symbol, sdate, edate, freq string, days int, fq string) (string, common.Series, error) {
	if strings.HasPrefix(symbol, "us") && common.IsIntraday(freq) {
		return t.fetchUSMinute(ctx, symbol)
	}

	var base string
	switch {
	case strings.HasPrefix(symbol, "sh"), strings.HasPrefix(symbol, "sz"):
		base = t.apiURL
	case strings.HasPrefix(symbol, "hk"):
		base = t.apiURLHK
	case strings.HasPrefix(symbol, "us"):
		base = t.apiURLUS
	default:
		return "", nil, fmt.Errorf("%w: symbol %v not served by this adapter", common.ErrSymbol, symbol)
	}

	url := fmt.Sprintf("%v?param=%v,%v,%v,%v,%v,%v", base, symbol, freq, sdate, edate, days, fq)
	body, err := t.client.Get(ctx, url)
	if err != nil {
		return "", nil, err
	}
	name, series, err := parse.Kline(body, symbol, fq)
	if err != nil {
		return "", nil, err
	}
	if t.debug {
		log.Info().Str("vendor", "tencent").Str("symbol", symbol).Int("candle_count", len(series)).Msg("candle request successful")
	}
	return name, series, nil
}

// FetchPlate requests a plate-index (pt...) history. The plate route answers
// with a `kline_dayqfq=` variable-assignment envelope around the same kline
// schema.
func (t *Tencent) FetchPlate(ctx context.Context, symbol, sdate, edate, freq string, days int, fq string) (string, common.Series, error) {
	url := fmt.Sprintf("%v?_var=kline_dayqfq&param=%v,%v,%v,%v,%v,%v", t.apiURLPlate, symbol, freq, sdate, edate, days, fq)
	body, err := t.client.Get(ctx, url)
	if err != nil {
		return "", nil, err
	}
	inner, err := parse.StripVarAssign(body)
	if err != nil {
		return "", nil, err
	}
	name, series, err := parse.Kline(inner, symbol, fq)
	if err != nil {
		return "", nil, err
	}
	if t.debug {
		log.Info().Str("vendor", "tencent").Str("symbol", symbol).Int("candle_count", len(series)).Msg("plate request successful")
	}
	return name, series, nil
}

func (t *Tencent) fetchUSMinute(ctx context.Context, symbol string) (string, common.Series, error) {
	varName := strings.ReplaceAll(symbol, ".", "")
	url := fmt.Sprintf("%v?_var=min_data_%v&code=%v", t.apiURLUSMinute, varName, symbol)
	body, err := t.client.Get(ctx, url)
	if err != nil {
		return "", nil, err
	}
	inner, err := parse.StripVarAssign(body)
	if err != nil {
		return "", nil, err
	}
	return parse.USMinute(inner, symbol)
}
