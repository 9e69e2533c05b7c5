// Package symbols maps user symbols to the market that serves them.
package symbols

import (
	"fmt"
	"strings"

	"github.com/quotefetch/quotes/quotes/common"
)

// Market is an enumesque string value naming the vendor route for a symbol.
type Market string

const (
	// MarketCN is the mainland (sh/sz) stock market.
	MarketCN Market = "cn"
	// MarketHK is the Hong Kong stock market.
	MarketHK Market = "hk"
	// MarketUS is the US stock market.
	MarketUS Market = "us"
	// MarketFuture is the generic futures market.
	MarketFuture Market = "fu"
	// MarketBTC is the BTC pseudo-future.
	MarketBTC Market = "btc"
	// MarketBoard is the sector board (BK...) route, served by a separate
	// list-rank service with a different URL schema.
	MarketBoard Market = "bk"
	// MarketPlate is the plate index (pt...) route, served by the qfq-kline
	// endpoint with the alternate envelope.
	MarketPlate Market = "pt"
)

// USSuffixCandidates is the venue suffix probe set for ambiguous US codes.
var USSuffixCandidates = []string{".OQ", ".N"}

// Route maps a user symbol to (market, normalized symbol). First match wins:
// BK -> board; pt -> plate; fu+BTC -> BTC; fu -> future; sh/sz -> mainland;
// hk (4-digit body padded to 5) -> Hong Kong; us -> US; a bare code starting
// with 5 or 6 gets the sh prefix, 0/1/3 gets sz. Anything else fails with an
// ErrSymbol-kinded error.
func Route(symbol string) (Market, string, error) {
	if symbol == "" {
		return "", "", fmt.Errorf("%w: empty symbol", common.ErrSymbol)
	}
	if strings.HasPrefix(symbol, "BK") {
		return MarketBoard, symbol, nil
	}
	if strings.HasPrefix(symbol, "pt") {
		return MarketPlate, symbol, nil
	}
	if strings.HasPrefix(symbol, "fu") {
		if strings.HasPrefix(strings.ToLower(symbol[2:]), "btc") {
			return MarketBTC, symbol, nil
		}
		return MarketFuture, symbol, nil
	}
	if strings.HasPrefix(symbol, "sh") || strings.HasPrefix(symbol, "sz") {
		return MarketCN, symbol, nil
	}
	if strings.HasPrefix(symbol, "hk") {
		// A 4-digit body is padded to the 5-digit form the vendor expects.
		if len(symbol) == 6 {
			symbol = "hk0" + symbol[2:]
		}
		return MarketHK, symbol, nil
	}
	if strings.HasPrefix(symbol, "us") {
		return MarketUS, symbol, nil
	}
	switch symbol[0] {
	case '5', '6':
		return MarketCN, "sh" + symbol, nil
	case '0', '1', '3':
		return MarketCN, "sz" + symbol, nil
	}
	return "", "", fmt.Errorf("%w: target market not supported: %v", common.ErrSymbol, symbol)
}

// USCandidates enumerates the venue-suffix probe candidates for a US symbol.
// Already-suffixed symbols are returned as-is; bare codes get one candidate
// per known venue suffix. The caller fetches each and keeps the richer answer.
func USCandidates(symbol string) []string {
	if strings.Contains(symbol, ".") {
		return []string{symbol}
	}
	candidates := make([]string, 0, len(USSuffixCandidates))
	for _, suffix := range USSuffixCandidates {
		candidates = append(candidates, symbol+suffix)
	}
	return candidates
}
