// Package eastmoney implements the sector-board (BK...) candle adapter.
//
// The board endpoint legitimately produces empties for dead board codes, so
// unlike every other adapter this one soft-fails: vendor-side emptiness is
// logged and returned as an empty series with no error. Transport failures
// still surface.
package eastmoney

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/quotefetch/quotes/quotes/common"
	"github.com/quotefetch/quotes/quotes/fetch"
	"github.com/quotefetch/quotes/quotes/parse"
)

const boardCallback = "jQuery1124022566445873766972_1617864568131"

// EastMoney enables requesting sector-board candle histories.
type EastMoney struct {
	apiURL string
	client *fetch.Client
	debug  bool
}

// New is the constructor for EastMoney.
func New(client *fetch.Client, options ...func(*EastMoney)) *EastMoney {
	e := &EastMoney{
		apiURL: "http://push2his.eastmoney.com/api/qt/stock/kline/get",
		client: client,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// WithBaseURL points the endpoint at base, keeping the vendor path. Useful for
// tests against a fake vendor.
func WithBaseURL(base string) func(*EastMoney) {
	return func(e *EastMoney) {
		e.apiURL = base + "/api/qt/stock/kline/get"
	}
}

// SetDebug enables adapter-level request logging.
func (e *EastMoney) SetDebug(debug bool) { e.debug = debug }

// FetchBoardCandles requests the full daily history of a BK board code. An
// empty vendor payload returns ("", empty series, nil).
func (e *EastMoney) FetchBoardCandles(ctx context.Context, symbol string) (string, common.Series, error) {
	url := fmt.Sprintf(
		"%v?cb=%v&secid=90.%v&fields1=f1%%2Cf2%%2Cf3%%2Cf4%%2Cf5"+
			"&fields2=f51%%2Cf52%%2Cf53%%2Cf54%%2Cf55%%2Cf56%%2Cf57%%2Cf58"+
			"&klt=101&fqt=0&beg=19900101&end=20990101&_=1",
		e.apiURL, boardCallback, symbol,
	)
	body, err := e.client.Get(ctx, url)
	if err != nil {
		return "", nil, err
	}
	inner, err := parse.StripCallback(body, boardCallback)
	if err != nil {
		return "", nil, err
	}
	name, series, err := parse.Board(inner)
	if err != nil {
		if errors.Is(err, common.ErrDataSource) {
			log.Warn().Str("symbol", symbol).Err(err).Msg("board data empty")
			return "", common.Series{}, nil
		}
		return "", nil, err
	}
	if e.debug {
		log.Info().Str("vendor", "eastmoney").Str("symbol", symbol).Int("candle_count", len(series)).Msg("board request successful")
	}
	return name, series, nil
}
