package fmp

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"fincore/internal/fetcher"
	"fincore/internal/gateway/httpclient"
	"fincore/internal/schema"
	"fincore/internal/standard"
)

type equityHistorical struct {
	client *httpclient.Client
	now    func() time.Time
}

func newEquityHistorical(client *httpclient.Client) *equityHistorical {
	return &equityHistorical{client: client, now: time.Now}
}

func (f *equityHistorical) Info() fetcher.Info {
	return fetcher.Info{
		Standard:    standard.EquityHistorical,
		Provider:    Name,
		Description: "Daily bars from /v3/historical-price-full.",
		Query: schema.Extension{
			MultipleItems: []string{"symbol"},
			Overrides: []schema.Field{
				{Name: "interval", Choices: []any{"1d"}},
			},
		},
		Data: schema.Extension{
			Fields: []schema.Field{
				{Name: "adj_close", Type: schema.TypeNumber, Description: "Close adjusted for splits and dividends."},
				{Name: "change", Type: schema.TypeNumber},
				{Name: "change_percent", Type: schema.TypeNumber, Unit: "percent"},
			},
			Aliases: map[string]string{
				"adj_close":      "adjClose",
				"change_percent": "changePercent",
			},
		},
		RequiresCredentials: true,
		CredentialNames:     []string{CredentialName},
	}
}

// TransformQuery defaults the window to the year ending today.
func (f *equityHistorical) TransformQuery(params schema.Record) (fetcher.Query, error) {
	q := params.Clone()
	end, ok := q.Date("end_date")
	if !ok {
		end = schema.DateOf(f.now().UTC())
		q["end_date"] = end
	}
	start, ok := q.Date("start_date")
	if !ok {
		start = schema.DateOf(end.AddDate(-1, 0, 0))
		q["start_date"] = start
	}
	if start.After(end) {
		return nil, fmt.Errorf("start_date %s is after end_date %s", start, end)
	}
	return q, nil
}

func (f *equityHistorical) ExtractData(ctx context.Context, q fetcher.Query, creds fetcher.Credentials) (any, error) {
	start, _ := q.Date("start_date")
	end, _ := q.Date("end_date")
	query := url.Values{}
	query.Set("from", start.String())
	query.Set("to", end.String())
	return get(ctx, f.client, "/v3/historical-price-full/"+url.PathEscape(q.String("symbol")), query, creds)
}

// TransformData flattens single and multi-symbol payloads into rows ordered
// by requested symbol, then ascending date, clipped to the window.
func (f *equityHistorical) TransformData(q fetcher.Query, raw any) (any, error) {
	res, _ := raw.(gjson.Result)
	symbols := q.Strings("symbol")
	order := make(map[string]int, len(symbols))
	for i, s := range symbols {
		order[s] = i
	}
	start, _ := q.Date("start_date")
	end, _ := q.Date("end_date")

	series := res.Get("historicalStockList").Array()
	if len(series) == 0 && res.Get("historical").Exists() {
		series = []gjson.Result{res}
	}
	var (
		rows    []schema.Record
		missing []string
		seen    = make(map[string]bool)
	)
	for _, s := range series {
		sym := s.Get("symbol").String()
		seen[sym] = true
		for _, row := range httpclient.Records(s.Get("historical")) {
			d, ok := row.Date("date")
			if !ok || d.Before(start) || d.After(end) {
				continue
			}
			row["symbol"] = sym
			rows = append(rows, row)
		}
	}
	for _, s := range symbols {
		if !seen[s] {
			missing = append(missing, s)
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if oa, ob := order[a.String("symbol")], order[b.String("symbol")]; oa != ob {
			return oa < ob
		}
		da, _ := a.Date("date")
		db, _ := b.Date("date")
		return da.Before(db)
	})
	if len(missing) > 0 {
		return fetcher.AnnotatedResult{Result: rows, Metadata: map[string]any{"missing_symbols": missing}}, nil
	}
	return rows, nil
}
