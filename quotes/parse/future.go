package parse

import (
	"encoding/json"
	"fmt"

	"github.com/quotefetch/quotes/quotes/common"
)

// FutureDaily parses the futures daily kline array. Column order is part of
// the contract: date, open, high, low, close, vol, p, s.
func FutureDaily(body []byte) (common.Series, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, common.ParseError{Fragment: string(body), Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty futures daily payload", common.ErrDataSource)
	}
	series := make(common.Series, 0, len(rows))
	for i, row := range rows {
		if len(row) < 8 {
			return nil, common.ParseError{
				Fragment: fmt.Sprintf("%v", row),
				Err:      fmt.Errorf("daily row %v has %v fields, want 8", i, len(row)),
			}
		}
		date, err := common.ParseRowTime(rawToString(row[0]))
		if err != nil {
			return nil, err
		}
		series = append(series, common.Candle{
			Date:  date,
			Open:  rawToFloat(row[1]),
			High:  rawToFloat(row[2]),
			Low:   rawToFloat(row[3]),
			Close: rawToFloat(row[4]),
			Vol:   rawToFloat(row[5]),
			Extra: map[string]float64{
				"p": rawToFloat(row[6]),
				"s": rawToFloat(row[7]),
			},
		})
	}
	return series.Sorted(), nil
}

// FutureMinute parses the futures intraday line. Column order is part of the
// contract: dtime, close, avg, vol, hold, last_close, cur_date.
func FutureMinute(body []byte) (common.Series, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, common.ParseError{Fragment: string(body), Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty futures minute payload", common.ErrDataSource)
	}
	series := make(common.Series, 0, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			return nil, common.ParseError{
				Fragment: fmt.Sprintf("%v", row),
				Err:      fmt.Errorf("minute row %v has %v fields, want 7", i, len(row)),
			}
		}
		dtime, err := common.ParseRowTime(rawToString(row[0]))
		if err != nil {
			return nil, err
		}
		series = append(series, common.Candle{
			Date:  dtime,
			Close: rawToFloat(row[1]),
			Extra: map[string]float64{
				"avg":        rawToFloat(row[2]),
				"hold":       rawToFloat(row[4]),
				"last_close": rawToFloat(row[5]),
			},
			Vol: rawToFloat(row[3]),
		})
	}
	return series.Sorted(), nil
}
