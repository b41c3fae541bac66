package tiingo

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

var resampleFreq = map[string]string{
	"1d": "daily",
	"1w": "weekly",
}

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
		Description: "End-of-day bars from /tiingo/daily/{ticker}/prices. One ticker per request.",
		Query: schema.Extension{
			Overrides: []schema.Field{
				{Name: "interval", Choices: []any{"1d", "1w"}},
			},
		},
		Data: schema.Extension{
			Fields: []schema.Field{
				{Name: "adj_open", Type: schema.TypeNumber},
				{Name: "adj_high", Type: schema.TypeNumber},
				{Name: "adj_low", Type: schema.TypeNumber},
				{Name: "adj_close", Type: schema.TypeNumber, Description: "Close adjusted for splits and dividends."},
				{Name: "adj_volume", Type: schema.TypeNumber},
				{Name: "dividend", Type: schema.TypeNumber},
				{Name: "split_ratio", Type: schema.TypeNumber},
			},
			Aliases: map[string]string{
				"adj_open":    "adjOpen",
				"adj_high":    "adjHigh",
				"adj_low":     "adjLow",
				"adj_close":   "adjClose",
				"adj_volume":  "adjVolume",
				"dividend":    "divCash",
				"split_ratio": "splitFactor",
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
	query.Set("startDate", start.String())
	query.Set("endDate", end.String())
	query.Set("resampleFreq", resampleFreq[q.String("interval")])
	query.Set("format", "json")
	return get(ctx, f.client, "/tiingo/daily/"+url.PathEscape(q.String("symbol"))+"/prices", query, creds)
}

func (f *equityHistorical) TransformData(q fetcher.Query, raw any) (any, error) {
	res, _ := raw.(gjson.Result)
	symbol := q.String("symbol")
	start, _ := q.Date("start_date")
	end, _ := q.Date("end_date")
	var rows []schema.Record
	for _, row := range httpclient.Records(res) {
		d, ok := row.Date("date")
		if !ok || d.Before(start) || d.After(end) {
			continue
		}
		row["date"] = d
		row["symbol"] = symbol
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, _ := rows[i].Date("date")
		b, _ := rows[j].Date("date")
		return a.Before(b)
	})
	return rows, nil
}
