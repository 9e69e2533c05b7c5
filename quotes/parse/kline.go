package parse

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/quotefetch/quotes/quotes/common"
)

// Frequency-key preference lists, driven by the requested adjustment. The
// vendor answers with whichever table it felt like materializing, so lookup
// walks the list and takes the first present key.
var (
	timeKeysForward = []string{"qfqday", "day", "hfqday", "qfqweek", "week", "hfqweek", "qfqmonth", "month", "hfqmonth"}
	timeKeysBack    = []string{"hfqday", "day", "qfqday", "hfqweek", "week", "qfqweek", "hfqmonth", "month", "qfqmonth"}
	timeKeysRaw     = []string{"day", "qfqday", "hfqday", "week", "qfqweek", "hfqweek", "month", "qfqmonth", "hfqmonth"}
)

func timeKeys(fq string) []string {
	switch fq {
	case common.AdjForward:
		return timeKeysForward
	case common.AdjBackward:
		return timeKeysBack
	default:
		return timeKeysRaw
	}
}

type klineResponse struct {
	Code int                        `json:"code"`
	Msg  string                     `json:"msg"`
	Data map[string]json.RawMessage `json:"data"`
}

// Kline parses a candle response body (already stripped of any envelope) into
// (name, series). The frequency key is picked by the fq-driven preference
// order; the first 6 positional fields of each row are read as
// date, open, close, high, low, vol; the display name comes from qt[symbol][1]
// when present. Numeric cells that fail to parse become NaN.
//
// A non-zero API code fails with ErrDataSource; a missing symbol entry or
// frequency key fails with a ParseError carrying the fragment.
func Kline(body []byte, symbol, fq string) (string, common.Series, error) {
	var resp klineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", nil, common.ParseError{Fragment: string(body), Err: err}
	}
	if resp.Code != 0 {
		return "", nil, fmt.Errorf("%w: code %v: %v", common.ErrDataSource, resp.Code, resp.Msg)
	}
	raw, ok := resp.Data[symbol]
	if !ok {
		return "", nil, common.ParseError{Fragment: string(body), Err: fmt.Errorf("no data entry for %v", symbol)}
	}
	var symbolData map[string]json.RawMessage
	if err := json.Unmarshal(raw, &symbolData); err != nil {
		return "", nil, common.ParseError{Fragment: string(raw), Err: err}
	}

	var rows [][]json.RawMessage
	found := false
	for _, key := range timeKeys(fq) {
		tableRaw, ok := symbolData[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(tableRaw, &rows); err != nil {
			return "", nil, common.ParseError{Fragment: string(tableRaw), Err: err}
		}
		found = true
		break
	}
	if !found {
		return "", nil, common.ParseError{Fragment: string(raw), Err: fmt.Errorf("no frequency key for %v", symbol)}
	}

	series := make(common.Series, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return "", nil, common.ParseError{
				Fragment: fmt.Sprintf("%v", row),
				Err:      fmt.Errorf("row %v has %v fields, want at least 6", i, len(row)),
			}
		}
		date, err := common.ParseRowTime(rawToString(row[0]))
		if err != nil {
			return "", nil, err
		}
		series = append(series, common.Candle{
			Date:  date,
			Open:  rawToFloat(row[1]),
			Close: rawToFloat(row[2]),
			High:  rawToFloat(row[3]),
			Low:   rawToFloat(row[4]),
			Vol:   rawToFloat(row[5]),
		})
	}

	return klineName(symbolData, symbol), series.Sorted(), nil
}

// klineName digs the display name out of qt[symbol][1]. Absence is fine.
func klineName(symbolData map[string]json.RawMessage, symbol string) string {
	qtRaw, ok := symbolData["qt"]
	if !ok {
		return ""
	}
	var qt map[string][]json.RawMessage
	if err := json.Unmarshal(qtRaw, &qt); err != nil {
		return ""
	}
	fields, ok := qt[symbol]
	if !ok || len(fields) < 2 {
		return ""
	}
	return rawToString(fields[1])
}

// rawToString reads a JSON cell as its string content, whether the vendor sent
// a string or a bare number.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// rawToFloat coerces a JSON cell to a float with "invalid -> NaN" semantics.
func rawToFloat(raw json.RawMessage) float64 {
	return toFloat(rawToString(raw))
}

func toFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
