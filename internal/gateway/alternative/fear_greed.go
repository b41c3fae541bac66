// Package alternative adapts the alternative.me crypto Fear & Greed index.
package alternative

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/gateway/httpclient"
	"fincore/internal/registry"
	"fincore/internal/schema"
	"fincore/internal/standard"
	"fincore/internal/store"
)

const (
	Name           = "alternative"
	DefaultBaseURL = "https://api.alternative.me"
)

// New returns the alternative.me manifest. cache may be nil.
func New(cfg httpclient.Config, cache store.ResponseCache) registry.Manifest {
	cfg.Provider = Name
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return registry.Manifest{
		Provider:    Name,
		Description: "alternative.me: crypto Fear & Greed index.",
		Website:     "https://alternative.me/crypto/fear-and-greed-index/",
		Fetchers: []fetcher.Fetcher{
			&fearGreed{client: httpclient.New(cfg, cache)},
		},
	}
}

type fearGreed struct {
	fetcher.Base
	client *httpclient.Client
}

func (f *fearGreed) Info() fetcher.Info {
	return fetcher.Info{
		Standard:    standard.CryptoFearGreed,
		Provider:    Name,
		Description: "Latest index value with its recent history, newest first.",
		Shape:       fetcher.ShapeObject,
	}
}

func (f *fearGreed) ExtractData(ctx context.Context, q fetcher.Query, _ fetcher.Credentials) (any, error) {
	history, _ := q.Int("history")
	query := url.Values{"limit": {strconv.FormatInt(max(history, 1), 10)}, "format": {"json"}}
	res, err := f.client.GetJSON(ctx, "fng/", query, nil)
	if err != nil {
		return nil, err
	}
	if e := res.Get("metadata.error"); e.Exists() && e.Type != gjson.Null {
		out := errs.Permanent(nil, "api error: %s", e.String())
		out.Provider = Name
		out.Request = httpclient.RequestLine("GET", f.client.URL("fng/", query))
		return nil, out
	}
	return res.Get("data"), nil
}

func (f *fearGreed) TransformData(_ fetcher.Query, raw any) (any, error) {
	data, _ := raw.(gjson.Result)
	var points []schema.Record
	for _, item := range data.Array() {
		value, err := strconv.Atoi(strings.TrimSpace(item.Get("value").String()))
		if err != nil {
			continue
		}
		p := schema.Record{
			"value":          int64(value),
			"classification": strings.TrimSpace(item.Get("value_classification").String()),
		}
		if sec, err := strconv.ParseInt(strings.TrimSpace(item.Get("timestamp").String()), 10, 64); err == nil {
			p["date"] = time.Unix(sec, 0).UTC()
		}
		points = append(points, p.Compact())
	}
	if len(points) == 0 {
		return nil, nil
	}
	latest := points[0].Clone()
	if secs, err := strconv.ParseInt(strings.TrimSpace(data.Get("0.time_until_update").String()), 10, 64); err == nil && secs > 0 {
		latest["seconds_until_update"] = secs
	}
	latest["history"] = points
	return latest, nil
}
