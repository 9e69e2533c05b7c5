package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quotefetch/quotes/quotes/common"
)

type btcDailyResponse struct {
	Result struct {
		Data string `json:"data"`
	} `json:"result"`
}

// BTCDaily parses the BTC daily kline: a single bar-delimited string of
// comma-separated rows date, open, high, low, close, vol, amount.
func BTCDaily(body []byte) (common.Series, error) {
	var resp btcDailyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, common.ParseError{Fragment: string(body), Err: err}
	}
	if resp.Result.Data == "" {
		return nil, fmt.Errorf("%w: empty BTC daily payload", common.ErrDataSource)
	}
	rows := strings.Split(resp.Result.Data, "|")
	series := make(common.Series, 0, len(rows))
	for i, row := range rows {
		cells := strings.Split(row, ",")
		if len(cells) < 7 {
			return nil, common.ParseError{
				Fragment: row,
				Err:      fmt.Errorf("BTC daily row %v has %v fields, want 7", i, len(cells)),
			}
		}
		date, err := common.ParseRowTime(cells[0])
		if err != nil {
			return nil, err
		}
		series = append(series, common.Candle{
			Date:  date,
			Open:  toFloat(cells[1]),
			High:  toFloat(cells[2]),
			Low:   toFloat(cells[3]),
			Close: toFloat(cells[4]),
			Vol:   toFloat(cells[5]),
			Extra: map[string]float64{"amount": toFloat(cells[6])},
		})
	}
	return series.Sorted(), nil
}

type btcMinuteResponse struct {
	Result struct {
		Status struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		} `json:"status"`
		Data []struct {
			D string `json:"d"`
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
			V string `json:"v"`
			A string `json:"a"`
		} `json:"data"`
	} `json:"result"`
}

// BTCMinute parses the BTC minute kline callback payload (already stripped of
// its `var _btcbtcusd(...)` envelope and any leading comment block).
func BTCMinute(body []byte) (common.Series, error) {
	var resp btcMinuteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, common.ParseError{Fragment: string(body), Err: err}
	}
	if resp.Result.Status.Code != 0 {
		return nil, fmt.Errorf("%w: BTC minute code %v: %v", common.ErrDataSource, resp.Result.Status.Code, resp.Result.Status.Msg)
	}
	if len(resp.Result.Data) == 0 {
		return nil, fmt.Errorf("%w: empty BTC minute payload", common.ErrDataSource)
	}
	series := make(common.Series, 0, len(resp.Result.Data))
	for _, item := range resp.Result.Data {
		date, err := common.ParseRowTime(item.D)
		if err != nil {
			return nil, err
		}
		series = append(series, common.Candle{
			Date:  date,
			Open:  toFloat(item.O),
			High:  toFloat(item.H),
			Low:   toFloat(item.L),
			Close: toFloat(item.C),
			Vol:   toFloat(item.V),
			Extra: map[string]float64{"amount": toFloat(item.A)},
		})
	}
	return series.Sorted(), nil
}
