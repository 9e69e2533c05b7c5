// Package sina implements the candle adapter for futures and the BTC
// pseudo-future.
package sina

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/quotefetch/quotes/quotes/common"
	"github.com/quotefetch/quotes/quotes/fetch"
	"github.com/quotefetch/quotes/quotes/parse"
)

// Sina enables requesting futures and BTC candle histories.
type Sina struct {
	apiURLFutures string
	apiURLBTC     string
	apiURLBTCMin  string
	client        *fetch.Client
	debug         bool
}

// New is the constructor for Sina.
func New(client *fetch.Client, options ...func(*Sina)) *Sina {
	s := &Sina{
		apiURLFutures: "https://stock2.finance.sina.com.cn/futures/api/jsonp.php",
		apiURLBTC:     "https://quotes.sina.cn/fx/api/openapi.php/BtcService.getDayKLine",
		apiURLBTCMin:  "https://quotes.sina.cn/fx/api/openapi.php/BtcService.getMinKline",
		client:        client,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// WithBaseURL points every endpoint at base, keeping the vendor paths. Useful
// for tests against a fake vendor.
func WithBaseURL(base string) func(*Sina) {
	return func(s *Sina) {
		s.apiURLFutures = base + "/futures/api/jsonp.php"
		s.apiURLBTC = base + "/fx/api/openapi.php/BtcService.getDayKLine"
		s.apiURLBTCMin = base + "/fx/api/openapi.php/BtcService.getMinKline"
	}
}

// SetDebug enables adapter-level request logging.
func (s *Sina) SetDebug(debug bool) { s.debug = debug }

// FetchFutureDaily requests the daily kline of a futures code (without the
// `fu` prefix). The service answers through a `var t1nf_CODE=(...)` jsonp
// envelope.
func (s *Sina) FetchFutureDaily(ctx context.Context, code string) (common.Series, error) {
	url := fmt.Sprintf("%v/var%%20t1nf_%v=/InnerFuturesNewService.getDailyKLine?symbol=%v", s.apiURLFutures, code, code)
	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	inner, err := parse.StripEnvelope(body)
	if err != nil {
		return nil, err
	}
	series, err := parse.FutureDaily(inner)
	if err != nil {
		return nil, err
	}
	if s.debug {
		log.Info().Str("vendor", "sina").Str("code", code).Int("candle_count", len(series)).Msg("futures daily request successful")
	}
	return series, nil
}

// FetchFutureMinute requests the intraday line of a futures code.
func (s *Sina) FetchFutureMinute(ctx context.Context, code string) (common.Series, error) {
	url := fmt.Sprintf("%v/var%%20t1nf_%v=/InnerFuturesNewService.getMinLine?symbol=%v", s.apiURLFutures, code, code)
	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	inner, err := parse.StripEnvelope(body)
	if err != nil {
		return nil, err
	}
	return parse.FutureMinute(inner)
}

// FetchBTCDaily requests the BTC/USD daily kline.
func (s *Sina) FetchBTCDaily(ctx context.Context) (common.Series, error) {
	url := s.apiURLBTC + "?symbol=btcbtcusd"
	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	series, err := parse.BTCDaily(body)
	if err != nil {
		return nil, err
	}
	if s.debug {
		log.Info().Str("vendor", "sina").Int("candle_count", len(series)).Msg("BTC daily request successful")
	}
	return series, nil
}

// FetchBTCMinute requests datalen minute bars of BTC/USD. The service answers
// through a `var _btcbtcusd({...})` callback, sometimes preceded by a comment
// block, which the envelope stripper discards.
func (s *Sina) FetchBTCMinute(ctx context.Context, datalen int) (common.Series, error) {
	if datalen <= 0 {
		datalen = 1440
	}
	url := fmt.Sprintf("%v?symbol=btcbtcusd&scale=1&datalen=%v&callback=var%%20_btcbtcusd", s.apiURLBTCMin, datalen)
	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	inner, err := parse.StripEnvelope(body)
	if err != nil {
		return nil, err
	}
	return parse.BTCMinute(inner)
}
