// Package gate adapts Gate.io USDT-settled futures candlesticks through
// gateapi-go.
package gate

import (
	"context"
	"errors"
	"net/http"

	gateapi "github.com/gateio/gateapi-go/v7"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/registry"
)

const (
	Name       = "gate"
	gateSettle = "usdt"
)

func New(cfg Config) (registry.Manifest, error) {
	final := cfg.withDefaults()
	httpClient, err := final.httpClient()
	if err != nil {
		return registry.Manifest{}, err
	}
	conf := gateapi.NewConfiguration()
	conf.BasePath = final.RESTBaseURL
	conf.HTTPClient = httpClient
	client := gateapi.NewAPIClient(conf)
	return registry.Manifest{
		Provider:    Name,
		Description: "Gate.io USDT perpetual futures candlesticks.",
		Website:     "https://www.gate.io",
		Fetchers: []fetcher.Fetcher{
			newCryptoHistorical(client.FuturesApi),
		},
	}, nil
}

// mapError classifies a gateapi failure by the HTTP status it carried.
func mapError(err error, resp *http.Response, request string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs.FromContext(err)
	}
	msg := err.Error()
	var apiErr gateapi.GateAPIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Label + ": " + apiErr.Message
	}
	var kind errs.Kind
	switch {
	case resp == nil:
		kind = errs.KindTransient
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = errs.KindUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		kind = errs.KindTransient
	default:
		kind = errs.KindPermanent
	}
	return &errs.Error{Kind: kind, Provider: Name, Request: request, Msg: msg, Err: err}
}
