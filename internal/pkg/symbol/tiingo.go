package symbol

import "strings"

// TiingoConverter produces the lower-case compact tickers used by the
// Tiingo crypto endpoints, e.g. "btcusd".
type TiingoConverter struct{}

func (TiingoConverter) ToExchange(internal string) string {
	sym := Parse(internal)
	if sym.Base == "" {
		return strings.ToLower(strings.TrimSpace(internal))
	}
	return strings.ToLower(sym.Compact())
}

func (TiingoConverter) FromExchange(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func (TiingoConverter) Format() Format {
	return FormatTiingo
}

var Tiingo = TiingoConverter{}
