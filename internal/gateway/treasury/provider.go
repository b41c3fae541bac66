// Package treasury adapts the U.S. Treasury daily par yield curve CSV.
package treasury

import (
	"strings"

	"fincore/internal/fetcher"
	"fincore/internal/gateway/httpclient"
	"fincore/internal/registry"
	"fincore/internal/store"
)

const (
	Name           = "treasury"
	DefaultBaseURL = "https://home.treasury.gov/resource-center/data-chart-center/interest-rates"
)

// New returns the treasury manifest. cache may be nil.
func New(cfg httpclient.Config, cache store.ResponseCache) registry.Manifest {
	cfg.Provider = Name
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return registry.Manifest{
		Provider:    Name,
		Description: "U.S. Department of the Treasury: daily par yield curve rates.",
		Website:     "https://home.treasury.gov",
		Fetchers: []fetcher.Fetcher{
			newYieldCurve(httpclient.New(cfg, cache)),
		},
	}
}
