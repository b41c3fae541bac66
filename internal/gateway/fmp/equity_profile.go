package fmp

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
		Description: "Company profiles from /v3/profile.",
		Query:       schema.Extension{MultipleItems: []string{"symbol"}},
		Data: schema.Extension{
			Fields: []schema.Field{
				{Name: "ceo", Type: schema.TypeString},
				{Name: "beta", Type: schema.TypeNumber},
				{Name: "country", Type: schema.TypeString},
				{Name: "is_etf", Type: schema.TypeBoolean},
			},
			Aliases: map[string]string{
				"name":        "companyName",
				"exchange":    "exchangeShortName",
				"market_cap":  "mktCap",
				"employees":   "fullTimeEmployees",
				"ipo_date":    "ipoDate",
				"provider_id": "cik",
				"is_etf":      "isEtf",
			},
		},
		RequiresCredentials: true,
		CredentialNames:     []string{CredentialName},
	}
}

func (f *equityProfile) ExtractData(ctx context.Context, q fetcher.Query, creds fetcher.Credentials) (any, error) {
	return get(ctx, f.client, "/v3/profile/"+url.PathEscape(q.String("symbol")), nil, creds)
}

func (f *equityProfile) TransformData(q fetcher.Query, raw any) (any, error) {
	res, _ := raw.(gjson.Result)
	rows := httpclient.Records(res)
	if len(rows) == 0 {
		return nil, errs.EmptyData("no profile for %s", q.String("symbol"))
	}
	return rows, nil
}
