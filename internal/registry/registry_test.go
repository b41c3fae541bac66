package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
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

func stub(standard, provider string, extras ...schema.Field) stubFetcher {
	return stubFetcher{info: fetcher.Info{
		Standard: standard,
		Provider: provider,
		Query:    schema.Extension{Fields: extras},
	}}
}

func quoteStandard(name string) schema.Standard {
	return schema.Standard{
		Name:      name,
		Namespace: "equity",
		Query: schema.New(name+"Query",
			schema.Field{Name: "symbol", Type: schema.TypeString, Required: true},
		),
		Data: schema.New(name+"Data",
			schema.Field{Name: "price", Type: schema.TypeNumber},
		),
	}
}

func TestBuildAndLookups(t *testing.T) {
	reg, err := NewBuilder().
		AddStandard(quoteStandard("Quote"), quoteStandard("Bars")).
		AddManifest(
			Manifest{Provider: "zeta", Fetchers: []fetcher.Fetcher{stub("Quote", "zeta")}},
			Manifest{Provider: "alpha", Fetchers: []fetcher.Fetcher{stub("Quote", "alpha"), stub("Bars", "alpha")}},
		).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"Bars", "Quote"}, reg.ListStandardModels())
	provs, err := reg.ListProviders("Quote")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, provs)
	assert.Equal(t, []string{"alpha", "zeta"}, reg.Providers())

	f, err := reg.GetFetcher("Quote", "zeta")
	require.NoError(t, err)
	assert.Equal(t, "zeta", f.Info().Provider)

	_, err = reg.GetFetcher("Bars", "zeta")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Contains(t, err.Error(), "Bars")
	assert.Contains(t, err.Error(), "alpha")

	_, err = reg.ListProviders("Nope")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	q, err := reg.StandardQuerySchema("Quote")
	require.NoError(t, err)
	assert.Equal(t, []string{"symbol"}, q.Names())
}

func TestEveryModelExtendsItsStandard(t *testing.T) {
	reg, err := NewBuilder().
		AddStandard(quoteStandard("Quote")).
		AddManifest(Manifest{Provider: "p", Fetchers: []fetcher.Fetcher{
			stub("Quote", "p", schema.Field{Name: "exchange", Type: schema.TypeString}),
		}}).
		Build()
	require.NoError(t, err)

	for _, name := range reg.ListStandardModels() {
		std, _ := reg.Standard(name)
		provs, _ := reg.ListProviders(name)
		for _, p := range provs {
			m, err := reg.Model(name, p)
			require.NoError(t, err)
			for _, f := range std.Query.Fields {
				got, ok := m.Query.Field(f.Name)
				require.True(t, ok, "%s/%s lacks %s", name, p, f.Name)
				assert.Equal(t, f.Type, got.Type)
			}
			for _, f := range std.Data.Fields {
				_, ok := m.Data.Field(f.Name)
				assert.True(t, ok)
			}
		}
	}
}

func TestBuildRejects(t *testing.T) {
	cases := map[string]*Builder{
		"duplicate standard": NewBuilder().AddStandard(quoteStandard("Quote"), quoteStandard("Quote")),
		"duplicate pair": NewBuilder().AddStandard(quoteStandard("Quote")).AddManifest(
			Manifest{Provider: "p", Fetchers: []fetcher.Fetcher{stub("Quote", "p"), stub("Quote", "p")}},
		),
		"duplicate provider": NewBuilder().AddStandard(quoteStandard("Quote")).AddManifest(
			Manifest{Provider: "p"}, Manifest{Provider: "p"},
		),
		"unknown standard": NewBuilder().AddManifest(
			Manifest{Provider: "p", Fetchers: []fetcher.Fetcher{stub("Ghost", "p")}},
		),
		"foreign fetcher": NewBuilder().AddStandard(quoteStandard("Quote")).AddManifest(
			Manifest{Provider: "p", Fetchers: []fetcher.Fetcher{stub("Quote", "q")}},
		),
		"incompatible extension": NewBuilder().AddStandard(quoteStandard("Quote")).AddManifest(
			Manifest{Provider: "p", Fetchers: []fetcher.Fetcher{stub("Quote", "p", schema.Field{Name: "symbol", Type: schema.TypeInteger})}},
		),
		"dangling alias": NewBuilder().AddStandard(quoteStandard("Quote")).AddManifest(
			Manifest{Provider: "p", Fetchers: []fetcher.Fetcher{stubFetcher{info: fetcher.Info{
				Standard: "Quote", Provider: "p",
				Data: schema.Extension{Aliases: map[string]string{"ghost": "g"}},
			}}}},
		),
		"undeclared credential": NewBuilder().AddStandard(quoteStandard("Quote")).AddManifest(
			Manifest{Provider: "p", Fetchers: []fetcher.Fetcher{stubFetcher{info: fetcher.Info{
				Standard: "Quote", Provider: "p", RequiresCredentials: true, CredentialNames: []string{"p_key"},
			}}}},
		),
		"empty provider": NewBuilder().AddManifest(Manifest{}),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build()
			assert.Error(t, err)
		})
	}
}

func TestMergedQuerySchemaCollision(t *testing.T) {
	reg, err := NewBuilder().
		AddStandard(quoteStandard("Quote")).
		AddManifest(
			Manifest{Provider: "tiingo", Fetchers: []fetcher.Fetcher{
				stub("Quote", "tiingo", schema.Field{Name: "limit", Type: schema.TypeString, Description: "from tiingo"}),
			}},
			Manifest{Provider: "fmp", Fetchers: []fetcher.Fetcher{
				stub("Quote", "fmp",
					schema.Field{Name: "limit", Type: schema.TypeInteger, Description: "from fmp"},
					schema.Field{Name: "exchange", Type: schema.TypeString},
				),
			}},
			Manifest{Provider: "intrinio", Fetchers: []fetcher.Fetcher{
				stub("Quote", "intrinio", schema.Field{Name: "limit", Type: schema.TypeNumber}),
			}},
		).
		Build()
	require.NoError(t, err)

	merged, err := reg.MergedQuerySchema("Quote")
	require.NoError(t, err)

	sym, ok := merged.Field("symbol")
	require.True(t, ok)
	assert.True(t, sym.Standard)
	assert.Equal(t, []string{"fmp", "intrinio", "tiingo"}, sym.Providers)

	limit, ok := merged.Field("limit")
	require.True(t, ok)
	assert.Equal(t, schema.TypeString, limit.Type)
	assert.Equal(t, "from fmp", limit.Description)
	assert.Equal(t, []string{"fmp", "intrinio", "tiingo"}, limit.Providers)

	exch, _ := merged.Field("exchange")
	assert.Equal(t, []string{"fmp"}, exch.Providers)

	require.Len(t, reg.Warnings(), 1)
	assert.Contains(t, reg.Warnings()[0], "limit")

	sym.Providers[0] = "mutated"
	merged.Fields[0].Providers[1] = "mutated"
	exch.Providers[0] = "mutated"
	provs, err := reg.ListProviders("Quote")
	require.NoError(t, err)
	assert.Equal(t, []string{"fmp", "intrinio", "tiingo"}, provs)
	again, err := reg.MergedQuerySchema("Quote")
	require.NoError(t, err)
	sym, _ = again.Field("symbol")
	assert.Equal(t, []string{"fmp", "intrinio", "tiingo"}, sym.Providers)
	exch, _ = again.Field("exchange")
	assert.Equal(t, []string{"fmp"}, exch.Providers)
}

func TestWiden(t *testing.T) {
	assert.Equal(t, schema.TypeNumber, widen(schema.TypeInteger, schema.TypeNumber))
	assert.Equal(t, schema.TypeDateTime, widen(schema.TypeDate, schema.TypeDateTime))
	assert.Equal(t, schema.TypeString, widen(schema.TypeBoolean, schema.TypeInteger))
	assert.Equal(t, schema.TypeBoolean, widen(schema.TypeBoolean, schema.TypeBoolean))
}
