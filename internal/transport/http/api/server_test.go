package apihttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"fincore/internal/config"
	"fincore/internal/errs"
	"fincore/internal/executor"
	"fincore/internal/fetcher"
	"fincore/internal/provider"
	"fincore/internal/registry"
	"fincore/internal/schema"
	"fincore/internal/standard"
	"fincore/internal/stream"
)

type stubBars struct {
	fetcher.Base
}

func (stubBars) Info() fetcher.Info {
	return fetcher.Info{
		Standard:            standard.EquityHistorical,
		Provider:            "stub",
		RequiresCredentials: true,
		CredentialNames:     []string{"stub_key"},
		Query:               schema.Extension{MultipleItems: []string{"symbol"}},
	}
}

func (stubBars) ExtractData(_ context.Context, q fetcher.Query, _ fetcher.Credentials) (any, error) {
	if q.String("symbol") == "EMPTY" {
		return nil, errs.EmptyData("nothing for EMPTY")
	}
	return []schema.Record{
		{"date": "2024-01-02", "symbol": q.String("symbol"), "open": 1.0, "high": 2.0, "low": 0.5, "close": 1.5, "note": "x"},
		{"date": "2024-01-03", "symbol": q.String("symbol"), "open": 1.5, "high": 2.5, "low": 1.0, "close": 2.0, "note": "y"},
	}, nil
}

func (stubBars) TransformData(_ fetcher.Query, raw any) (any, error) { return raw, nil }

func newTestServer(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	reg, err := registry.NewBuilder().
		AddStandard(standard.All()...).
		AddManifest(registry.Manifest{Provider: "stub", Credentials: []string{"stub_key"}, Fetchers: []fetcher.Fetcher{stubBars{}}}).
		Build()
	require.NoError(t, err)
	promReg := prometheus.NewRegistry()
	pi := provider.New(reg)
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := NewServer(ServerConfig{
		Executor:  executor.New(pi, executor.Config{}, executor.NewMetrics(promReg)),
		Interface: pi,
		Config:    config.NewHolder(cfg),
		Hub:       stream.NewHub(),
		Gatherer:  promReg,
	})
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndCatalog(t *testing.T) {
	h := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", nil).Code)

	rec := do(t, h, http.MethodGet, "/api/v1/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stub", gjson.Get(rec.Body.String(), "providers.0").String())
	assert.True(t, gjson.Get(rec.Body.String(), `standards.#(name=="YieldCurve")`).Exists())

	rec = do(t, h, http.MethodGet, "/api/v1/catalog/EquityHistorical", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stub", gjson.Get(rec.Body.String(), "providers.0.name").String())

	rec = do(t, h, http.MethodGet, "/api/v1/catalog/Nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuery(t *testing.T) {
	h := newTestServer(t, nil)
	creds := map[string]string{"X-Credential-Stub_key": "k"}

	rec := do(t, h, http.MethodGet, "/api/v1/query/EquityHistorical?symbol=aapl", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", gjson.Get(rec.Body.String(), "error.kind").String())
	assert.Equal(t, "stub", gjson.Get(rec.Body.String(), "error.provider").String())

	rec = do(t, h, http.MethodGet, "/api/v1/query/EquityHistorical?symbol=aapl", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "stub", gjson.Get(body, "provider").String())
	assert.EqualValues(t, 2, gjson.Get(body, "results.#").Int())
	assert.Equal(t, "AAPL", gjson.Get(body, "results.0.symbol").String())
	assert.False(t, gjson.Get(body, "results.0.note").Exists())
	assert.Equal(t, gjson.Null, gjson.Get(body, "chart").Type)

	rec = do(t, h, http.MethodGet, "/api/v1/query/EquityHistorical?symbol=aapl&keep_unknown=true", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "x", gjson.Get(rec.Body.String(), "results.0.note").String())
}

func TestQueryErrors(t *testing.T) {
	h := newTestServer(t, nil)
	creds := map[string]string{"X-Credential-Stub_key": "k"}

	rec := do(t, h, http.MethodGet, "/api/v1/query/Nope", "", creds)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/query/EquityHistorical?symbol=aapl&provider=bogus", "", creds)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "[stub]")

	rec = do(t, h, http.MethodGet, "/api/v1/query/EquityHistorical?symbol=aapl&start_date=soon", "", creds)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation", gjson.Get(rec.Body.String(), "error.kind").String())

	rec = do(t, h, http.MethodGet, "/api/v1/query/EquityHistorical?symbol=empty", "", creds)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("X-Fincore-Error"), "EMPTY")

	rec = do(t, h, http.MethodPost, "/api/v1/query/EquityHistorical", "{not json", creds)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestQueryPostWithPreferences(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.Credentials["stub_key"] = "from-config"
	})
	rec := do(t, h, http.MethodPost, "/api/v1/query/EquityHistorical",
		`{"params":{"symbol":"msft"},"preferences":{"include_metadata":false,"colour":"blue"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "MSFT", gjson.Get(body, "results.0.symbol").String())
	assert.Equal(t, "PreferencesWarning", gjson.Get(body, "warnings.0.category").String())
	assert.Contains(t, gjson.Get(body, "warnings.0.message").String(), "colour")
	assert.False(t, gjson.Get(body, "extra.metadata").Exists())
}

func TestQueryChart(t *testing.T) {
	creds := map[string]string{"X-Credential-Stub_key": "k"}

	h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/api/v1/query/EquityHistorical?symbol=aapl&chart=true", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ChartWarning", gjson.Get(rec.Body.String(), "warnings.0.category").String())

	h = newTestServer(t, func(c *config.Config) { c.Preferences.ChartingExtension = "echarts" })
	rec = do(t, h, http.MethodGet, "/api/v1/query/EquityHistorical?symbol=aapl&chart=true", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "html", gjson.Get(rec.Body.String(), "chart.format").String())
	assert.Contains(t, gjson.Get(rec.Body.String(), "chart.content").String(), "AAPL")
}

func TestMetricsAndStreams(t *testing.T) {
	h := newTestServer(t, nil)
	do(t, h, http.MethodGet, "/api/v1/query/EquityHistorical?symbol=aapl", "", map[string]string{"X-Credential-Stub_key": "k"})

	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fincore_executor_requests_total")

	rec = do(t, h, http.MethodGet, "/api/v1/streams", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, gjson.Get(rec.Body.String(), "streams.#").Int())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/streams/nope", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/v1/streams/nope", "", nil).Code)
}
