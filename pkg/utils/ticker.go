package utils

import (
	"strings"
)

// Company names that users commonly type instead of the listed symbol.
var tickerAliases = map[string]string{
	"APPLE":     "AAPL",
	"TESLA":     "TSLA",
	"MICROSOFT": "MSFT",
	"ALPHABET":  "GOOGL",
	"GOOGLE":    "GOOGL",
	"AMAZON":    "AMZN",
	"NVIDIA":    "NVDA",
	"FACEBOOK":  "META",
	"NETFLIX":   "NFLX",
	"SIEMENS":   "SIE.DE",
	"ALLIANZ":   "ALV.DE",
	"BMW":       "BMW.DE",
}

// NormalizeTicker normalizes a user-input ticker symbol.
// It handles aliases, uppercasing, whitespace and a leading '$'.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	// Remove $ prefix if present (cashtags in feeds and chat)
	ticker = strings.TrimPrefix(ticker, "$")

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// ParseTickers splits a comma or whitespace separated list into
// normalized, de-duplicated tickers in input order.
func ParseTickers(args ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, arg := range args {
		fields := strings.FieldsFunc(arg, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ';'
		})
		for _, f := range fields {
			t := NormalizeTicker(f)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
