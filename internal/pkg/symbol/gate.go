package symbol

import "strings"

type GateConverter struct{}

func (GateConverter) ToExchange(internal string) string {
	sym := Parse(internal)
	if sym.Base == "" {
		return strings.ToUpper(strings.TrimSpace(internal))
	}
	if sym.Quote == "USD" {
		sym.Quote = "USDT"
	}
	return sym.Base + "_" + sym.Quote
}

func (GateConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

func (GateConverter) Format() Format {
	return FormatGate
}

var Gate = GateConverter{}
