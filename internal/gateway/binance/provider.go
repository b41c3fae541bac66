// Package binance adapts the Binance USDⓈ-M futures market data API through
// the go-binance SDK, plus its public book ticker stream.
package binance

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/registry"
	"fincore/internal/stream"
)

const Name = "binance"

// New returns the binance manifest. No credentials are needed for market
// data.
func New(cfg Config, settings stream.Settings) (registry.Manifest, error) {
	final := cfg.withDefaults()
	httpClient, err := final.httpClient()
	if err != nil {
		return registry.Manifest{}, err
	}
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = httpClient

	if settings.Dialer == nil {
		d, err := final.wsDialer()
		if err != nil {
			return registry.Manifest{}, err
		}
		if d != nil {
			settings.Dialer = stream.WSDialer{Dialer: d}
		}
	}
	return registry.Manifest{
		Provider:    Name,
		Description: "Binance USDⓈ-M futures: klines and live book ticker.",
		Website:     "https://www.binance.com",
		Fetchers: []fetcher.Fetcher{
			newCryptoHistorical(client),
			newCryptoQuote(final.StreamURL, settings),
		},
	}, nil
}

// Binance error codes that mean the request can be retried or the key is
// bad. A zero code is a body that did not parse, usually a 5xx page.
var (
	retryableCodes    = map[int64]bool{-1000: true, -1001: true, -1003: true, -1007: true, -1008: true}
	unauthorizedCodes = map[int64]bool{-1002: true, -1022: true, -2014: true, -2015: true}
)

// mapError translates SDK failures onto the error model.
func mapError(err error, request string) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch {
		case unauthorizedCodes[apiErr.Code]:
			e := errs.Unauthorized(Name, "%s", apiErr.Message)
			e.Request = request
			return e
		case apiErr.Code == 0 || retryableCodes[apiErr.Code]:
			e := errs.Transient(apiErr, "binance %d", apiErr.Code)
			e.Provider = Name
			e.Request = request
			return e
		default:
			e := errs.Permanent(apiErr, "binance %d", apiErr.Code)
			e.Provider = Name
			e.Request = request
			return e
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs.FromContext(err)
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		e := errs.Transient(err, "request failed")
		e.Provider = Name
		e.Request = request
		return e
	}
	e := errs.Permanent(err, "unexpected response")
	e.Provider = Name
	e.Request = request
	return e
}
