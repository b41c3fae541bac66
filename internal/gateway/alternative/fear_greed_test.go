package alternative

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/gateway/httpclient"
	"fincore/internal/registry"
	"fincore/internal/schema"
	"fincore/internal/standard"
)

func model(t *testing.T, body string) *fetcher.Model {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fng/", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	reg, err := registry.NewBuilder().
		AddStandard(standard.All()...).
		AddManifest(New(httpclient.Config{BaseURL: srv.URL}, nil)).
		Build()
	require.NoError(t, err)
	md, err := reg.Model(standard.CryptoFearGreed, Name)
	require.NoError(t, err)
	return md
}

func TestFearGreed(t *testing.T) {
	md := model(t, `{"name":"Fear and Greed Index","data":[
		{"value":"72","value_classification":"Greed","timestamp":"1717200000","time_until_update":"3600"},
		{"value":"65","value_classification":"Greed","timestamp":"1717113600"},
		{"value":"bad","value_classification":"?","timestamp":"1717027200"}
	],"metadata":{"error":null}}`)

	out, err := md.Fetch(context.Background(), map[string]any{"history": 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, fetcher.ShapeObject, out.Shape)

	rec := out.Result.(schema.Record)
	v, _ := rec.Int("value")
	assert.EqualValues(t, 72, v)
	assert.Equal(t, "Greed", rec["classification"])
	ts, _ := rec.Time("date")
	assert.Equal(t, time.Unix(1717200000, 0).UTC(), ts)
	secs, _ := rec.Int("seconds_until_update")
	assert.EqualValues(t, 3600, secs)
	assert.Len(t, rec["history"], 2)
}

func TestFearGreedAPIError(t *testing.T) {
	md := model(t, `{"data":[],"metadata":{"error":"Invalid limit"}}`)
	_, err := md.Fetch(context.Background(), map[string]any{"history": "3"}, nil)
	assert.True(t, errors.Is(err, errs.ErrPermanent))
}

func TestFearGreedEmpty(t *testing.T) {
	md := model(t, `{"data":[],"metadata":{"error":null}}`)
	_, err := md.Fetch(context.Background(), map[string]any{"history": 3}, nil)
	assert.True(t, errors.Is(err, errs.ErrEmptyData))
}
