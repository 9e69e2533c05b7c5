package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quotefetch/quotes/quotes/common"
)

type boardResponse struct {
	Data *struct {
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// Board parses the sector-board kline payload (already stripped of its jQuery
// callback envelope). Rows are comma-joined strings of
// date, open, close, high, low, vol, money, p.
//
// A null data field is a legitimate vendor answer for dead board codes; it is
// reported as ErrDataSource and the board adapter soft-fails on it.
func Board(body []byte) (string, common.Series, error) {
	var resp boardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", nil, common.ParseError{Fragment: string(body), Err: err}
	}
	if resp.Data == nil {
		return "", nil, fmt.Errorf("%w: empty board payload", common.ErrDataSource)
	}
	series := make(common.Series, 0, len(resp.Data.Klines))
	for i, row := range resp.Data.Klines {
		cells := strings.Split(row, ",")
		if len(cells) < 8 {
			return "", nil, common.ParseError{
				Fragment: row,
				Err:      fmt.Errorf("board row %v has %v fields, want 8", i, len(cells)),
			}
		}
		date, err := common.ParseRowTime(cells[0])
		if err != nil {
			return "", nil, err
		}
		series = append(series, common.Candle{
			Date:  date,
			Open:  toFloat(cells[1]),
			Close: toFloat(cells[2]),
			High:  toFloat(cells[3]),
			Low:   toFloat(cells[4]),
			Vol:   toFloat(cells[5]),
			Extra: map[string]float64{
				"money": toFloat(cells[6]),
				"p":     toFloat(cells[7]),
			},
		})
	}
	return resp.Data.Name, series.Sorted(), nil
}
