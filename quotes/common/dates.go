package common

import (
	"fmt"
	"time"
)

// DateLayout is the canonical date format every accepted input is normalized to.
const DateLayout = "2006-01-02"

// dateLayouts are the accepted user-facing date spellings, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"2006.01.02",
	"2006_01_02",
}

// timeLayouts are the looser per-row spellings vendors put in candle rows.
var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"200601021504",
	"15:04:05",
	"15:04",
}

// NormalizeDate validates a user-supplied date string and rewrites it into the
// canonical YYYY-MM-DD form. Normalization is idempotent. An empty string stays
// empty. Anything unrecognized fails with an ErrSymbol-kinded error.
func NormalizeDate(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// ParseDate parses a user-supplied date string in any accepted layout into a
// UTC calendar timestamp.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date format not recognized: %q", ErrSymbol, s)
}

// ParseRowTime parses a vendor row's date/time cell. Vendors are looser than
// users: daily rows carry calendar dates, intraday rows carry clock times or
// full datetimes.
func ParseRowTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: row time not recognized: %q", ErrParse, s)
}
