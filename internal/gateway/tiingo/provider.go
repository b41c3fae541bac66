// Package tiingo adapts Tiingo's end-of-day REST API and its crypto
// websocket feed.
package tiingo

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/gateway/httpclient"
	"fincore/internal/registry"
	"fincore/internal/store"
	"fincore/internal/stream"
)

const (
	Name             = "tiingo"
	CredentialName   = "tiingo_token"
	DefaultBaseURL   = "https://api.tiingo.com"
	DefaultStreamURL = "wss://api.tiingo.com/crypto"
)

type Options struct {
	HTTP      httpclient.Config
	Cache     store.ResponseCache
	StreamURL string
	Stream    stream.Settings
}

func New(opts Options) registry.Manifest {
	cfg := opts.HTTP
	cfg.Provider = Name
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	streamURL := strings.TrimSpace(opts.StreamURL)
	if streamURL == "" {
		streamURL = DefaultStreamURL
	}
	client := httpclient.New(cfg, opts.Cache)
	return registry.Manifest{
		Provider:    Name,
		Description: "Tiingo: end-of-day equity prices, company metadata and a live crypto top-of-book feed.",
		Website:     "https://www.tiingo.com",
		Credentials: []string{CredentialName},
		Fetchers: []fetcher.Fetcher{
			newEquityHistorical(client),
			newEquityProfile(client),
			newCryptoQuote(streamURL, opts.Stream),
		},
	}
}

// get issues an authenticated GET. A 404 means the ticker has no data.
func get(ctx context.Context, client *httpclient.Client, path string, query url.Values, creds fetcher.Credentials) (gjson.Result, error) {
	header := http.Header{}
	header.Set("Authorization", "Token "+creds.Get(CredentialName))
	res, err := client.GetJSON(ctx, path, query, header)
	if err != nil {
		if httpclient.StatusOf(err) == http.StatusNotFound {
			e := errs.EmptyData("%s", detail(err))
			e.Provider = Name
			e.Request = httpclient.RequestLine("GET", client.URL(path, query))
			return gjson.Result{}, e
		}
		return gjson.Result{}, err
	}
	return res, nil
}

// detail extracts Tiingo's {"detail": "..."} message from a status error.
func detail(err error) string {
	var st *httpclient.Status
	if errors.As(err, &st) {
		if msg := gjson.Get(st.Body, "detail").String(); msg != "" {
			return msg
		}
	}
	return "no data"
}
