package tiingo

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/gateway/httpclient"
	"fincore/internal/schema"
	"fincore/internal/standard"
)

type equityProfile struct {
	fetcher.Base
	client *httpclient.Client
}

func newEquityProfile(client *httpclient.Client) *equityProfile {
	return &equityProfile{client: client}
}

func (f *equityProfile) Info() fetcher.Info {
	return fetcher.Info{
		Standard:    standard.EquityProfile,
		Provider:    Name,
		Description: "Ticker metadata from /tiingo/daily/{ticker}.",
		Data: schema.Extension{
			Fields: []schema.Field{
				{Name: "start_date", Type: schema.TypeDate, Description: "First date with price data."},
				{Name: "end_date", Type: schema.TypeDate, Description: "Last date with price data."},
			},
			Aliases: map[string]string{
				"symbol":     "ticker",
				"exchange":   "exchangeCode",
				"start_date": "startDate",
				"end_date":   "endDate",
			},
		},
		RequiresCredentials: true,
		CredentialNames:     []string{CredentialName},
	}
}

func (f *equityProfile) ExtractData(ctx context.Context, q fetcher.Query, creds fetcher.Credentials) (any, error) {
	return get(ctx, f.client, "/tiingo/daily/"+url.PathEscape(q.String("symbol")), nil, creds)
}

func (f *equityProfile) TransformData(q fetcher.Query, raw any) (any, error) {
	res, _ := raw.(gjson.Result)
	if !res.IsObject() || res.Get("ticker").String() == "" {
		return nil, errs.EmptyData("no metadata for %s", q.String("symbol"))
	}
	row := httpclient.Record(res)
	row["ticker"] = q.String("symbol")
	return row, nil
}
