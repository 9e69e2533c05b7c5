package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func candle(date string, close float64) Candle {
	return Candle{Date: day(date), Open: close - 1, Close: close, High: close + 1, Low: close - 2, Vol: 1000}
}

func TestSeriesMergeKeepsLaterWritePerDate(t *testing.T) {
	older := Series{candle("2024-01-02", 10), candle("2024-01-03", 11)}
	newer := Series{candle("2024-01-03", 99), candle("2024-01-04", 12)}

	merged := older.Merge(newer)

	require.Len(t, merged, 3)
	require.Equal(t, 10.0, merged[0].Close)
	require.Equal(t, 99.0, merged[1].Close)
	require.Equal(t, 12.0, merged[2].Close)
}

func TestSeriesMergeIsIdempotent(t *testing.T) {
	s := Series{candle("2024-01-02", 10), candle("2024-01-03", 11)}

	once := s.Merge(s)
	twice := once.Merge(s)

	require.Equal(t, once, twice)
	require.Equal(t, s, once)
}

func TestSeriesMergeDisjointIsSortedUnion(t *testing.T) {
	left := Series{candle("2024-01-04", 12), candle("2024-01-05", 13)}
	right := Series{candle("2024-01-02", 10), candle("2024-01-03", 11)}

	merged := left.Merge(right)

	require.Len(t, merged, 4)
	for i := 1; i < len(merged); i++ {
		require.True(t, merged[i-1].Date.Before(merged[i].Date))
	}
}

func TestSeriesFilterRange(t *testing.T) {
	s := Series{
		candle("2024-01-02", 10),
		candle("2024-01-03", 11),
		candle("2024-01-04", 12),
		candle("2024-01-05", 13),
	}

	tests := []struct {
		name       string
		start, end time.Time
		wantDates  []string
	}{
		{name: "both bounds", start: day("2024-01-03"), end: day("2024-01-04"), wantDates: []string{"2024-01-03", "2024-01-04"}},
		{name: "open start", end: day("2024-01-03"), wantDates: []string{"2024-01-02", "2024-01-03"}},
		{name: "open end", start: day("2024-01-04"), wantDates: []string{"2024-01-04", "2024-01-05"}},
		{name: "fully open", wantDates: []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}},
		{name: "no overlap", start: day("2024-02-01"), end: day("2024-02-10"), wantDates: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.FilterRange(tt.start, tt.end)
			dates := []string{}
			for _, c := range got {
				dates = append(dates, c.Date.Format("2006-01-02"))
			}
			require.Equal(t, tt.wantDates, dates)
		})
	}
}

func TestSeriesCountOnOrBefore(t *testing.T) {
	s := Series{candle("2024-01-02", 10), candle("2024-01-03", 11), candle("2024-01-04", 12)}

	require.Equal(t, 0, s.CountOnOrBefore(day("2024-01-01")))
	require.Equal(t, 2, s.CountOnOrBefore(day("2024-01-03")))
	require.Equal(t, 3, s.CountOnOrBefore(day("2024-02-01")))
}

func TestSeriesEarliestLatest(t *testing.T) {
	require.True(t, Series{}.Earliest().IsZero())
	require.True(t, Series{}.Latest().IsZero())

	s := Series{candle("2024-01-02", 10), candle("2024-01-05", 13)}
	require.Equal(t, day("2024-01-02"), s.Earliest())
	require.Equal(t, day("2024-01-05"), s.Latest())
}
