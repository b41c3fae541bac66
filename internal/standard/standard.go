// Package standard declares the provider-independent dataset models.
package standard

import (
	"fincore/internal/schema"
)

const (
	EquityHistorical = "EquityHistorical"
	EquityProfile    = "EquityProfile"
	CryptoHistorical = "CryptoHistorical"
	CryptoQuote      = "CryptoQuote"
	YieldCurve       = "YieldCurve"
	CryptoFearGreed  = "CryptoFearGreed"
)

const (
	NamespaceEquity      = "equity"
	NamespaceCrypto      = "crypto"
	NamespaceFixedIncome = "fixedincome"
)

// Multi-symbol fields share one declaration.
func symbolField(description string) schema.Field {
	return schema.Field{
		Name:        "symbol",
		Type:        schema.TypeString,
		Description: description,
		Required:    true,
		Multiple:    true,
		Validators:  []schema.Validator{schema.UpperCase},
	}
}

func dateRange() []schema.Field {
	return []schema.Field{
		{Name: "start_date", Type: schema.TypeDate, Description: "Start date of the data, in YYYY-MM-DD format."},
		{Name: "end_date", Type: schema.TypeDate, Description: "End date of the data, in YYYY-MM-DD format."},
	}
}

func ohlcv(dateType schema.Type) []schema.Field {
	return []schema.Field{
		{Name: "date", Type: dateType, Required: true, Description: "The date of the data."},
		{Name: "symbol", Type: schema.TypeString, Description: "Symbol representing the entity requested in the data."},
		{Name: "open", Type: schema.TypeNumber, Required: true, Description: "The open price."},
		{Name: "high", Type: schema.TypeNumber, Required: true, Description: "The high price."},
		{Name: "low", Type: schema.TypeNumber, Required: true, Description: "The low price."},
		{Name: "close", Type: schema.TypeNumber, Required: true, Description: "The close price."},
		{Name: "volume", Type: schema.TypeNumber, Description: "The trading volume.", Validators: []schema.Validator{schema.NonNegative}},
	}
}

func All() []schema.Standard {
	return []schema.Standard{
		equityHistorical(),
		equityProfile(),
		cryptoHistorical(),
		cryptoQuote(),
		yieldCurve(),
		cryptoFearGreed(),
	}
}

func equityHistorical() schema.Standard {
	query := append([]schema.Field{symbolField("Symbol to get data for.")}, dateRange()...)
	query = append(query, schema.Field{
		Name:        "interval",
		Type:        schema.TypeString,
		Default:     "1d",
		Description: "Time interval of the data to return.",
		Validators:  []schema.Validator{schema.Interval},
	})
	return schema.Standard{
		Name:        EquityHistorical,
		Namespace:   NamespaceEquity,
		Description: "Historical OHLCV bars for equities.",
		Query:       schema.New("EquityHistoricalQueryParams", query...),
		Data: schema.New("EquityHistoricalData", append(ohlcv(schema.TypeDate),
			schema.Field{Name: "vwap", Type: schema.TypeNumber, Description: "Volume weighted average price."},
		)...),
	}
}

func equityProfile() schema.Standard {
	return schema.Standard{
		Name:        EquityProfile,
		Namespace:   NamespaceEquity,
		Description: "General company information.",
		Query:       schema.New("EquityProfileQueryParams", symbolField("Symbol to get data for.")),
		Data: schema.New("EquityProfileData",
			schema.Field{Name: "symbol", Type: schema.TypeString, Required: true, Description: "Symbol representing the entity requested in the data."},
			schema.Field{Name: "name", Type: schema.TypeString, Description: "Common name of the company."},
			schema.Field{Name: "exchange", Type: schema.TypeString, Description: "Primary listing exchange."},
			schema.Field{Name: "sector", Type: schema.TypeString},
			schema.Field{Name: "industry", Type: schema.TypeString},
			schema.Field{Name: "description", Type: schema.TypeString},
			schema.Field{Name: "website", Type: schema.TypeString},
			schema.Field{Name: "currency", Type: schema.TypeString},
			schema.Field{Name: "market_cap", Type: schema.TypeNumber, Unit: "currency"},
			schema.Field{Name: "employees", Type: schema.TypeInteger, Validators: []schema.Validator{schema.NonNegative}},
			schema.Field{Name: "ipo_date", Type: schema.TypeDate},
			schema.Field{Name: "provider_id", Type: schema.TypeString, ExcludeFromAPI: true, Description: "Vendor-internal identifier."},
		),
	}
}

func cryptoHistorical() schema.Standard {
	query := append([]schema.Field{symbolField("Crypto pair to get data for, e.g. BTCUSD.")}, dateRange()...)
	query = append(query,
		schema.Field{Name: "interval", Type: schema.TypeString, Default: "1d", Description: "Time interval of the data to return.", Validators: []schema.Validator{schema.Interval}},
	)
	return schema.Standard{
		Name:        CryptoHistorical,
		Namespace:   NamespaceCrypto,
		Description: "Historical OHLCV bars for crypto pairs.",
		Query:       schema.New("CryptoHistoricalQueryParams", query...),
		Data:        schema.New("CryptoHistoricalData", ohlcv(schema.TypeDateTime)...),
	}
}

func cryptoQuote() schema.Standard {
	return schema.Standard{
		Name:        CryptoQuote,
		Namespace:   NamespaceCrypto,
		Description: "Live top-of-book quotes streamed from the vendor.",
		Query: schema.New("CryptoQuoteQueryParams",
			symbolField("Crypto pairs to subscribe to, e.g. BTCUSD."),
			schema.Field{Name: "limit", Type: schema.TypeInteger, Default: int64(1000), Description: "Number of messages kept in the result buffer.", Validators: []schema.Validator{schema.Positive}},
			schema.Field{Name: "broadcast_address", Type: schema.TypeString, Description: "Re-publish messages to ws://host:port/path or nats://host:port/subject."},
			schema.Field{Name: "record_file", Type: schema.TypeString, Description: "Append messages to this SQLite file."},
		),
		Data: schema.New("CryptoQuoteData",
			schema.Field{Name: "symbol", Type: schema.TypeString, Required: true},
			schema.Field{Name: "date", Type: schema.TypeDateTime, Required: true},
			schema.Field{Name: "type", Type: schema.TypeString, Description: "Message type: quote or trade."},
			schema.Field{Name: "exchange", Type: schema.TypeString},
			schema.Field{Name: "price", Type: schema.TypeNumber},
			schema.Field{Name: "size", Type: schema.TypeNumber},
			schema.Field{Name: "bid_price", Type: schema.TypeNumber},
			schema.Field{Name: "bid_size", Type: schema.TypeNumber},
			schema.Field{Name: "ask_price", Type: schema.TypeNumber},
			schema.Field{Name: "ask_size", Type: schema.TypeNumber},
		),
	}
}

// Maturities is the canonical ordering of yield curve points.
var Maturities = []string{
	"month_1", "month_2", "month_3", "month_4", "month_6",
	"year_1", "year_2", "year_3", "year_5", "year_7",
	"year_10", "year_20", "year_30",
}

func yieldCurve() schema.Standard {
	return schema.Standard{
		Name:        YieldCurve,
		Namespace:   NamespaceFixedIncome,
		Description: "Treasury par yield curve for one or more dates.",
		Query: schema.New("YieldCurveQueryParams",
			schema.Field{
				Name:        "date",
				Type:        schema.TypeString,
				Multiple:    true,
				Description: "Dates of the curves, YYYY-MM-DD. The nearest earlier business day is used. Defaults to the latest curve.",
				Validators:  []schema.Validator{schema.ISODate},
			},
		),
		Data: schema.New("YieldCurveData",
			schema.Field{Name: "date", Type: schema.TypeDate, Required: true, Description: "Date of the curve."},
			schema.Field{Name: "maturity", Type: schema.TypeString, Required: true, Choices: choices(Maturities)},
			schema.Field{Name: "rate", Type: schema.TypeNumber, Required: true, Unit: "percent"},
		),
	}
}

func cryptoFearGreed() schema.Standard {
	return schema.Standard{
		Name:        CryptoFearGreed,
		Namespace:   NamespaceCrypto,
		Description: "Crypto market sentiment index with recent history.",
		Query: schema.New("CryptoFearGreedQueryParams",
			schema.Field{Name: "history", Type: schema.TypeInteger, Default: int64(5), Description: "Number of historical points to include.", Validators: []schema.Validator{schema.Positive}},
		),
		Data: schema.New("CryptoFearGreedData",
			schema.Field{Name: "value", Type: schema.TypeInteger, Required: true},
			schema.Field{Name: "classification", Type: schema.TypeString},
			schema.Field{Name: "date", Type: schema.TypeDateTime},
			schema.Field{Name: "seconds_until_update", Type: schema.TypeInteger},
			schema.Field{Name: "history", Type: schema.TypeArray, Fields: []schema.Field{
				{Name: "value", Type: schema.TypeInteger, Required: true},
				{Name: "classification", Type: schema.TypeString},
				{Name: "date", Type: schema.TypeDateTime},
			}},
		),
	}
}

func choices(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
