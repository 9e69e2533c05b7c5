package tencent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quotefetch/quotes/quotes/common"
	"github.com/quotefetch/quotes/quotes/fetch"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Tencent {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client := fetch.New(fetch.WithRetries(1, time.Millisecond))
	return New(client, WithBaseURL(ts.URL))
}

func TestFetchCandlesRoutesByPrefix(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		wantPath string
	}{
		{name: "shanghai", symbol: "sh600000", wantPath: "/appstock/app/newfqkline/get"},
		{name: "shenzhen", symbol: "sz000001", wantPath: "/appstock/app/newfqkline/get"},
		{name: "hong kong", symbol: "hk00700", wantPath: "/appstock/app/hkfqkline/get"},
		{name: "us", symbol: "usTSLA.OQ", wantPath: "/appstock/app/usfqkline/get"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotParam string
			adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotParam = r.URL.Query().Get("param")
				w.Write([]byte(`{"code":0,"data":{"` + tt.symbol + `":{"qfqday":[["2024-01-02","10","10.5","10.8","9.9","1000"]]}}}`))
			})

			_, series, err := adapter.FetchCandles(context.Background(), tt.symbol, "2024-01-02", "2024-01-05", "day", 320, "qfq")

			require.NoError(t, err)
			require.Len(t, series, 1)
			require.Equal(t, tt.wantPath, gotPath)
			require.Equal(t, tt.symbol+",day,2024-01-02,2024-01-05,320,qfq", gotParam)
		})
	}
}

func TestFetchCandlesSurfacesVendorErrorCode(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-1,"msg":"stock code error","data":{}}`))
	})

	_, _, err := adapter.FetchCandles(context.Background(), "sh600000", "", "", "day", 320, "qfq")

	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrDataSource))
}

func TestFetchCandlesRejectsForeignSymbols(t *testing.T) {
	adapter := New(fetch.New())
	_, _, err := adapter.FetchCandles(context.Background(), "fuRB2410", "", "", "day", 320, "qfq")
	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrSymbol))
}

func TestFetchPlateStripsVarEnvelope(t *testing.T) {
	var gotVar string
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotVar = r.URL.Query().Get("_var")
		w.Write([]byte(`kline_dayqfq={"code":0,"data":{"pt000001":{"qfqday":[["2024-01-02","10","10.5","10.8","9.9","1000"]]}}}`))
	})

	_, series, err := adapter.FetchPlate(context.Background(), "pt000001", "", "", "day", 320, "qfq")

	require.NoError(t, err)
	require.Len(t, series, 1)
	require.Equal(t, "kline_dayqfq", gotVar)
}

func TestFetchCandlesUSIntradayUsesMinuteEndpoint(t *testing.T) {
	var gotPath, gotVar, gotCode string
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVar = r.URL.Query().Get("_var")
		gotCode = r.URL.Query().Get("code")
		w.Write([]byte(`min_data_usTSLAOQ={"code":0,"data":{"usTSLA.OQ":{` +
			`"data":{"data":["09:30 248.50 120000"]},"qt":{"usTSLA.OQ":["200","Tesla Inc","TSLA"]}}}}`))
	})

	name, series, err := adapter.FetchCandles(context.Background(), "usTSLA.OQ", "", "", "min", 320, "qfq")

	require.NoError(t, err)
	require.Equal(t, "Tesla Inc", name)
	require.Len(t, series, 1)
	require.Equal(t, "/appstock/app/UsMinute/query", gotPath)
	require.Equal(t, "min_data_usTSLAOQ", gotVar)
	require.Equal(t, "usTSLA.OQ", gotCode)
}
