package gate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/antihax/optional"
	gateapi "github.com/gateio/gateapi-go/v7"

	"fincore/internal/fetcher"
	"fincore/internal/pkg/convert"
	"fincore/internal/pkg/interval"
	"fincore/internal/pkg/symbol"
	"fincore/internal/schema"
	"fincore/internal/standard"
)

const (
	gateMaxHistoryLimit = 2000
	maxPages            = 10
)

// Gate names the weekly candle "7d".
var gateIntervals = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1h", "4h": "4h", "8h": "8h", "1d": "1d", "1w": "7d",
}

type candleLister interface {
	ListFuturesCandlesticks(ctx context.Context, settle string, contract string, opts *gateapi.ListFuturesCandlesticksOpts) ([]gateapi.FuturesCandlestick, *http.Response, error)
}

type cryptoHistorical struct {
	fetcher.Base
	api candleLister
	now func() time.Time
}

func newCryptoHistorical(api candleLister) *cryptoHistorical {
	return &cryptoHistorical{api: api, now: time.Now}
}

func (f *cryptoHistorical) Info() fetcher.Info {
	choices := make([]any, 0, len(gateIntervals))
	for _, iv := range []string{"1m", "5m", "15m", "30m", "1h", "4h", "8h", "1d", "1w"} {
		choices = append(choices, iv)
	}
	return fetcher.Info{
		Standard:    standard.CryptoHistorical,
		Provider:    Name,
		Description: "USDT perpetual candlesticks. USD pairs map to their _USDT contract.",
		Query: schema.Extension{
			Overrides: []schema.Field{{Name: "interval", Choices: choices}},
		},
		Data: schema.Extension{
			Fields: []schema.Field{
				{Name: "quote_volume", Type: schema.TypeNumber, Description: "Traded value in the settle currency."},
			},
		},
	}
}

// ExtractData walks the window in pages of at most gateMaxHistoryLimit
// candles. Without a start date it asks for the latest candles.
func (f *cryptoHistorical) ExtractData(ctx context.Context, q fetcher.Query, _ fetcher.Credentials) (any, error) {
	contract := symbol.Gate.ToExchange(q.String("symbol"))
	iv := q.String("interval")
	step, _ := interval.ParseDuration(iv)
	request := fmt.Sprintf("GET /futures/%s/candlesticks?contract=%s&interval=%s", gateSettle, contract, gateIntervals[iv])

	start, hasStart := q.Date("start_date")
	if !hasStart {
		opts := &gateapi.ListFuturesCandlesticksOpts{Interval: optional.NewString(gateIntervals[iv])}
		if end, ok := q.Date("end_date"); ok {
			to := end.AddDate(0, 0, 1).Add(-time.Second)
			opts.To = optional.NewInt64(to.Unix())
			opts.From = optional.NewInt64(to.Add(-step * (gateMaxHistoryLimit - 1)).Unix())
		} else {
			opts.Limit = optional.NewInt32(gateMaxHistoryLimit)
		}
		kls, resp, err := f.api.ListFuturesCandlesticks(ctx, gateSettle, contract, opts)
		if err != nil {
			return nil, mapError(err, resp, request)
		}
		return kls, nil
	}

	endUnix := f.now().Unix()
	if end, ok := q.Date("end_date"); ok {
		endUnix = end.AddDate(0, 0, 1).Unix() - 1
	}
	span := int64(step.Seconds()) * (gateMaxHistoryLimit - 1)
	var out []gateapi.FuturesCandlestick
	from := start.Unix()
	for range maxPages {
		to := min(from+span, endUnix)
		kls, resp, err := f.api.ListFuturesCandlesticks(ctx, gateSettle, contract, &gateapi.ListFuturesCandlesticksOpts{
			From:     optional.NewInt64(from),
			To:       optional.NewInt64(to),
			Interval: optional.NewString(gateIntervals[iv]),
		})
		if err != nil {
			return nil, mapError(err, resp, request)
		}
		out = append(out, kls...)
		if to >= endUnix {
			break
		}
		from = to + 1
	}
	return out, nil
}

// TransformData converts candles to rows, dropping duplicates at page
// boundaries and the candle still forming.
func (f *cryptoHistorical) TransformData(q fetcher.Query, raw any) (any, error) {
	kls, _ := raw.([]gateapi.FuturesCandlestick)
	step, _ := interval.ParseDuration(q.String("interval"))
	now := f.now()
	sym := q.String("symbol")
	seen := make(map[int64]bool, len(kls))
	rows := make([]schema.Record, 0, len(kls))
	for _, kl := range kls {
		open := time.Unix(int64(kl.T), 0).UTC()
		if seen[open.Unix()] || !open.Add(step).Before(now) {
			continue
		}
		seen[open.Unix()] = true
		rows = append(rows, schema.Record{
			"date":         open,
			"symbol":       sym,
			"open":         price(kl.O),
			"high":         price(kl.H),
			"low":          price(kl.L),
			"close":        price(kl.C),
			"volume":       kl.V,
			"quote_volume": price(kl.Sum),
		}.Compact())
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows, nil
}

func price(s string) any {
	d, err := convert.ParseDecimal(s)
	if err != nil {
		return nil
	}
	return d.InexactFloat64()
}
