package exchange

import "strings"

var symbolCleaner = strings.NewReplacer("/", "", "-", "", "_", "", " ", "")

// NormalizeSymbol canonicalizes a user- or exchange-supplied symbol so that
// "sol/usdt", "SOL-USDT" and "SOLUSDT:USDT" all compare equal. The part
// after a colon is a settlement-currency suffix some venues append.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return symbolCleaner.Replace(s)
}
