package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quotefetch/quotes/quotes/common"
)

type usMinuteResponse struct {
	Code int                        `json:"code"`
	Data map[string]json.RawMessage `json:"data"`
}

type usMinuteSymbolData struct {
	Data struct {
		Data []string `json:"data"`
	} `json:"data"`
	Qt map[string][]json.RawMessage `json:"qt"`
}

// USMinute parses the US intraday quote payload (already stripped of its
// `_var=min_data_SYM` assignment envelope). Rows are whitespace-joined
// "minute price volume" triples.
func USMinute(body []byte, symbol string) (string, common.Series, error) {
	var resp usMinuteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", nil, common.ParseError{Fragment: string(body), Err: err}
	}
	if resp.Code != 0 {
		return "", nil, fmt.Errorf("%w: US minute code %v", common.ErrDataSource, resp.Code)
	}
	raw, ok := resp.Data[symbol]
	if !ok {
		return "", nil, common.ParseError{Fragment: string(body), Err: fmt.Errorf("no data entry for %v", symbol)}
	}
	var symbolData usMinuteSymbolData
	if err := json.Unmarshal(raw, &symbolData); err != nil {
		return "", nil, common.ParseError{Fragment: string(raw), Err: err}
	}
	series := make(common.Series, 0, len(symbolData.Data.Data))
	for i, row := range symbolData.Data.Data {
		cells := strings.Fields(row)
		if len(cells) < 3 {
			return "", nil, common.ParseError{
				Fragment: row,
				Err:      fmt.Errorf("US minute row %v has %v fields, want 3", i, len(cells)),
			}
		}
		minute, err := common.ParseRowTime(cells[0])
		if err != nil {
			return "", nil, err
		}
		series = append(series, common.Candle{
			Date:  minute,
			Close: toFloat(cells[1]),
			Vol:   toFloat(cells[2]),
		})
	}

	name := ""
	if fields, ok := symbolData.Qt[symbol]; ok && len(fields) > 1 {
		name = rawToString(fields[1])
	}
	return name, series.Sorted(), nil
}
