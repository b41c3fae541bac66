package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/preferences"
	"fincore/internal/registry"
	"fincore/internal/schema"
)

type stubFetcher struct {
	fetcher.Base
	info fetcher.Info
}

func (s stubFetcher) Info() fetcher.Info { return s.info }

func (s stubFetcher) ExtractData(context.Context, fetcher.Query, fetcher.Credentials) (any, error) {
	return nil, nil
}

func (s stubFetcher) TransformData(_ fetcher.Query, raw any) (any, error) { return raw, nil }

func std(name, namespace string) schema.Standard {
	return schema.Standard{
		Name:      name,
		Namespace: namespace,
		Query:     schema.New(name+"Query", schema.Field{Name: "symbol", Type: schema.TypeString}),
		Data:      schema.New(name+"Data", schema.Field{Name: "close", Type: schema.TypeNumber}),
	}
}

func gated(standard, provider string, creds ...string) fetcher.Fetcher {
	return stubFetcher{info: fetcher.Info{
		Standard:            standard,
		Provider:            provider,
		RequiresCredentials: len(creds) > 0,
		CredentialNames:     creds,
	}}
}

func newInterface(t *testing.T) *Interface {
	t.Helper()
	reg, err := registry.NewBuilder().
		AddStandard(std("EquityHistorical", "equity"), std("EquityProfile", "equity"), std("YieldCurve", "fixedincome"), std("Orphan", "misc")).
		AddManifest(
			registry.Manifest{Provider: "fmp", Credentials: []string{"fmp_api_key"}, Fetchers: []fetcher.Fetcher{
				gated("EquityHistorical", "fmp", "fmp_api_key"),
				gated("EquityProfile", "fmp", "fmp_api_key"),
			}},
			registry.Manifest{
				Provider:    "tiingo",
				Credentials: []string{"tiingo_token"},
				CheckCredentials: func(c fetcher.Credentials) bool {
					return c.Get("tiingo_api_key") != ""
				},
				Fetchers: []fetcher.Fetcher{
					gated("EquityHistorical", "tiingo", "tiingo_token"),
					gated("EquityProfile", "tiingo", "tiingo_token"),
				},
			},
			registry.Manifest{Provider: "treasury", Fetchers: []fetcher.Fetcher{gated("YieldCurve", "treasury")}},
		).
		Build()
	require.NoError(t, err)
	return New(reg)
}

func TestChooseProvider(t *testing.T) {
	pi := newInterface(t)
	prefs := preferences.Preferences{PreferredProvider: map[string]string{"equity": "tiingo"}}

	cases := []struct {
		name      string
		standard  string
		preferred string
		prefs     preferences.Preferences
		want      string
	}{
		{"explicit", "EquityHistorical", "fmp", prefs, "fmp"},
		{"namespace default", "EquityProfile", "", prefs, "tiingo"},
		{"standard default beats namespace", "EquityProfile", "", preferences.Preferences{PreferredProvider: map[string]string{"equity": "tiingo", "EquityProfile": "fmp"}}, "fmp"},
		{"default not implementing ignored", "YieldCurve", "", preferences.Preferences{PreferredProvider: map[string]string{"fixedincome": "fmp"}}, "treasury"},
		{"registry order", "EquityHistorical", "", preferences.Preferences{}, "fmp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for range 3 {
				got, err := pi.ChooseProvider(tc.standard, tc.preferred, tc.prefs)
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
		})
	}

	_, err := pi.ChooseProvider("EquityHistorical", "treasury", prefs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Contains(t, err.Error(), "EquityHistorical")
	assert.Contains(t, err.Error(), "[fmp, tiingo]")

	_, err = pi.ChooseProvider("Orphan", "", prefs)
	assert.True(t, errors.Is(err, errs.ErrNotImplemented))
	assert.Contains(t, err.Error(), "Orphan")

	_, err = pi.ChooseProvider("Ghost", "", prefs)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestFilterProvidersByCredentials(t *testing.T) {
	pi := newInterface(t)

	assert.Equal(t, []string{"fmp", "tiingo", "treasury"}, pi.FilterProvidersByCredentials(nil, false))
	assert.Equal(t, []string{"treasury"}, pi.FilterProvidersByCredentials(nil, true))
	assert.Equal(t, []string{"fmp", "treasury"}, pi.FilterProvidersByCredentials(fetcher.Credentials{"fmp_api_key": "k"}, true))
	assert.Equal(t, []string{"tiingo", "treasury"}, pi.FilterProvidersByCredentials(fetcher.Credentials{"tiingo_api_key": "k"}, true))
	assert.Equal(t, []string{"treasury"}, pi.FilterProvidersByCredentials(fetcher.Credentials{"fmp_api_key": ""}, true))
}

func TestMapsAndCatalog(t *testing.T) {
	pi := newInterface(t)

	assert.Equal(t, []string{"fmp", "tiingo"}, pi.Providers()["EquityHistorical"])
	assert.Empty(t, pi.Providers()["Orphan"])
	assert.Contains(t, pi.QuerySchemas(), "YieldCurve")
	assert.Equal(t, []string{"close"}, pi.DataSchemas()["EquityProfile"].Names())

	cat := pi.Catalog()
	require.Len(t, cat, 4)
	assert.Equal(t, "EquityHistorical", cat[0].Name)
	require.Len(t, cat[0].Providers, 2)
	assert.True(t, cat[0].Providers[0].RequiresCredentials)
	assert.Equal(t, "object", cat[0].QuerySchema["type"])
}
