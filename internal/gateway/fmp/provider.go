// Package fmp adapts Financial Modeling Prep's REST API.
package fmp

import (
	"context"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/gateway/httpclient"
	"fincore/internal/registry"
	"fincore/internal/store"
)

const (
	Name           = "fmp"
	CredentialName = "fmp_api_key"
	DefaultBaseURL = "https://financialmodelingprep.com/api"
)

// New returns the fmp manifest. cache may be nil.
func New(cfg httpclient.Config, cache store.ResponseCache) registry.Manifest {
	cfg.Provider = Name
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	client := httpclient.New(cfg, cache)
	return registry.Manifest{
		Provider:    Name,
		Description: "Financial Modeling Prep: fundamentals and end-of-day prices.",
		Website:     "https://financialmodelingprep.com",
		Credentials: []string{CredentialName},
		Fetchers: []fetcher.Fetcher{
			newEquityHistorical(client),
			newEquityProfile(client),
		},
	}
}

// get issues an authenticated GET. FMP reports some failures as a JSON
// body with an "Error Message" key, even on 200.
func get(ctx context.Context, client *httpclient.Client, path string, query url.Values, creds fetcher.Credentials) (gjson.Result, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apikey", creds.Get(CredentialName))
	res, err := client.GetJSON(ctx, path, query, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	if msg := res.Get("Error Message"); msg.Exists() {
		text := msg.String()
		line := httpclient.RequestLine("GET", client.URL(path, query))
		if strings.Contains(strings.ToLower(text), "api key") {
			e := errs.Unauthorized(Name, "%s", text)
			e.Request = line
			return gjson.Result{}, e
		}
		e := errs.Permanent(nil, "%s", text)
		e.Provider = Name
		e.Request = line
		return gjson.Result{}, e
	}
	return res, nil
}
