package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/store"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   errs.Kind
	}{
		{http.StatusUnauthorized, errs.KindUnauthorized},
		{http.StatusForbidden, errs.KindUnauthorized},
		{http.StatusTooManyRequests, errs.KindTransient},
		{http.StatusBadGateway, errs.KindTransient},
		{http.StatusBadRequest, errs.KindPermanent},
		{http.StatusNotFound, errs.KindPermanent},
	}
	for _, tc := range cases {
		err := StatusError("fmp", tc.status, "GET x", []byte("nope"))
		assert.Equal(t, tc.kind, errs.KindOf(err), tc.status)
		assert.Equal(t, tc.status, StatusOf(err))
	}
	assert.NoError(t, StatusError("fmp", http.StatusOK, "", nil))
}

func TestGetJSONRedactsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"symbol":"AAPL","price":190.5}`))
	}))
	defer srv.Close()

	c := New(Config{Provider: "fmp", BaseURL: srv.URL}, nil)
	res, err := c.GetJSON(context.Background(), "/quote", url.Values{"apikey": {"secret"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 190.5, res.Get("price").Float())

	_, err = c.GetJSON(context.Background(), "/quote", url.Values{"apikey": {"wrong"}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
	assert.NotContains(t, err.Error(), "wrong")
}

func TestMalformedJSONIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := New(Config{Provider: "x", BaseURL: srv.URL}, nil).GetJSON(context.Background(), "a", nil, nil)
	assert.Equal(t, errs.KindPermanent, errs.KindOf(err))
}

func TestTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{Provider: "slow", BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil)
	_, err := c.Get(context.Background(), "/", nil, nil)
	assert.Equal(t, errs.KindTransient, errs.KindOf(err))
}

func TestCacheHonorsContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	defer srv.Close()

	c := New(Config{Provider: "p", BaseURL: srv.URL, CacheTTL: time.Minute}, store.NewMemoryCache())
	cached := fetcher.WithCache(context.Background(), true)

	for range 3 {
		_, err := c.Get(cached, "/series", url.Values{"token": {"a"}}, nil)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, hits.Load())

	_, err := c.Get(context.Background(), "/series", nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestRateLimitObservesContext(t *testing.T) {
	c := New(Config{Provider: "p", BaseURL: "http://127.0.0.1:1", RateLimit: 0.001, Burst: 1}, nil)
	c.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "/", nil, nil)
	assert.Equal(t, errs.KindTransient, errs.KindOf(err))
}
