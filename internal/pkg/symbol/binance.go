package symbol

import "strings"

type BinanceConverter struct{}

// ToExchange maps USD-quoted pairs onto USDT, the quote Binance futures list.
func (BinanceConverter) ToExchange(internal string) string {
	sym := Parse(internal)
	if sym.Base == "" {
		return strings.ToUpper(strings.TrimSpace(internal))
	}
	if sym.Quote == "USD" {
		sym.Quote = "USDT"
	}
	return sym.Compact()
}

func (BinanceConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

func (BinanceConverter) Format() Format {
	return FormatBinance
}

var Binance = BinanceConverter{}
