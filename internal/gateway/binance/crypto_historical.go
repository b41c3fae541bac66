package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"fincore/internal/fetcher"
	"fincore/internal/logger"
	"fincore/internal/pkg/convert"
	"fincore/internal/pkg/interval"
	"fincore/internal/pkg/symbol"
	"fincore/internal/schema"
	"fincore/internal/standard"
)

const (
	maxHistoryLimit = 1500
	// maxPages bounds one query to maxPages*maxHistoryLimit bars.
	maxPages = 20
)

var intervals = []any{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w"}

type cryptoHistorical struct {
	fetcher.Base
	client *futures.Client
	now    func() time.Time
}

func newCryptoHistorical(client *futures.Client) *cryptoHistorical {
	return &cryptoHistorical{client: client, now: time.Now}
}

func (f *cryptoHistorical) Info() fetcher.Info {
	return fetcher.Info{
		Standard:    standard.CryptoHistorical,
		Provider:    Name,
		Description: "Perpetual futures klines. USD pairs are served from their USDT contract.",
		Query: schema.Extension{
			Overrides: []schema.Field{
				{Name: "interval", Choices: intervals},
			},
		},
		Data: schema.Extension{
			Fields: []schema.Field{
				{Name: "quote_volume", Type: schema.TypeNumber},
				{Name: "trades", Type: schema.TypeInteger},
				{Name: "close_time", Type: schema.TypeDateTime},
			},
		},
	}
}

// ExtractData pages forward from start_date until end_date. Without a start
// it returns the most recent maxHistoryLimit bars.
func (f *cryptoHistorical) ExtractData(ctx context.Context, q fetcher.Query, _ fetcher.Credentials) (any, error) {
	sym := symbol.Binance.ToExchange(q.String("symbol"))
	iv := q.String("interval")
	step, _ := interval.ParseDuration(iv)
	request := fmt.Sprintf("GET /fapi/v1/klines?symbol=%s&interval=%s", sym, iv)

	var endMs int64
	if end, ok := q.Date("end_date"); ok {
		endMs = end.AddDate(0, 0, 1).UnixMilli() - 1
	}
	start, hasStart := q.Date("start_date")

	var out []*futures.Kline
	cursor := start.UnixMilli()
	for range maxPages {
		svc := f.client.NewKlinesService().Symbol(sym).Interval(iv).Limit(maxHistoryLimit)
		if hasStart {
			svc = svc.StartTime(cursor)
		}
		if endMs > 0 {
			svc = svc.EndTime(endMs)
		}
		kls, err := svc.Do(ctx)
		if err != nil {
			return nil, mapError(err, request)
		}
		out = append(out, kls...)
		if !hasStart || len(kls) < maxHistoryLimit {
			return out, nil
		}
		cursor = kls[len(kls)-1].OpenTime + step.Milliseconds()
		if endMs > 0 && cursor > endMs {
			return out, nil
		}
	}
	logger.Warnf("binance: %s %s truncated at %d bars", sym, iv, len(out))
	return out, nil
}

// TransformData converts klines to rows and drops the bar still forming.
func (f *cryptoHistorical) TransformData(q fetcher.Query, raw any) (any, error) {
	kls, _ := raw.([]*futures.Kline)
	now := f.now().UnixMilli()
	sym := q.String("symbol")
	rows := make([]schema.Record, 0, len(kls))
	for _, kl := range kls {
		if kl == nil || kl.CloseTime >= now {
			continue
		}
		row := schema.Record{
			"date":         time.UnixMilli(kl.OpenTime).UTC(),
			"close_time":   time.UnixMilli(kl.CloseTime).UTC(),
			"symbol":       sym,
			"open":         price(kl.Open),
			"high":         price(kl.High),
			"low":          price(kl.Low),
			"close":        price(kl.Close),
			"volume":       price(kl.Volume),
			"quote_volume": price(kl.QuoteAssetVolume),
			"trades":       kl.TradeNum,
		}
		rows = append(rows, row.Compact())
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows, nil
}

// price parses a decimal string; unparsable values become absent.
func price(s string) any {
	d, err := convert.ParseDecimal(s)
	if err != nil {
		return nil
	}
	return d.InexactFloat64()
}
