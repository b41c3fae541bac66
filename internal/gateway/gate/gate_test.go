package gate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gateapi "github.com/gateio/gateapi-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/registry"
	"fincore/internal/schema"
	"fincore/internal/standard"
)

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListFuturesCandlesticks(ctx context.Context, settle, contract string, opts *gateapi.ListFuturesCandlesticksOpts) ([]gateapi.FuturesCandlestick, *http.Response, error) {
	args := m.Called(settle, contract, opts)
	kls, _ := args.Get(0).([]gateapi.FuturesCandlestick)
	resp, _ := args.Get(1).(*http.Response)
	return kls, resp, args.Error(2)
}

func modelFor(t *testing.T, f fetcher.Fetcher) *fetcher.Model {
	t.Helper()
	reg, err := registry.NewBuilder().
		AddStandard(standard.All()...).
		AddManifest(registry.Manifest{Provider: Name, Fetchers: []fetcher.Fetcher{f}}).
		Build()
	require.NoError(t, err)
	md, err := reg.Model(standard.CryptoHistorical, Name)
	require.NoError(t, err)
	return md
}

func candle(ts time.Time, c string) gateapi.FuturesCandlestick {
	return gateapi.FuturesCandlestick{T: float64(ts.Unix()), V: 100, O: "1.0", H: "2.0", L: "0.5", C: c, Sum: "150.25"}
}

func TestCryptoHistoricalPages(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := new(mockLister)
	hist := newCryptoHistorical(lister)
	hist.now = func() time.Time { return jan1.AddDate(1, 0, 0) }

	// 2000 daily candles fit one page; a 2024-2030 window needs two.
	lister.On("ListFuturesCandlesticks", "usdt", "ETH_USDT", mock.MatchedBy(func(o *gateapi.ListFuturesCandlesticksOpts) bool {
		return o.From.Value() == jan1.Unix()
	})).Return([]gateapi.FuturesCandlestick{candle(jan1, "1.5"), candle(jan1.AddDate(0, 0, 1), "1.6")}, nil, nil).Once()
	lister.On("ListFuturesCandlesticks", "usdt", "ETH_USDT", mock.MatchedBy(func(o *gateapi.ListFuturesCandlesticksOpts) bool {
		return o.From.Value() > jan1.Unix()
	})).Return([]gateapi.FuturesCandlestick{candle(jan1.AddDate(0, 0, 1), "1.6"), candle(jan1.AddDate(0, 0, 2), "1.7")}, nil, nil).Once()

	out, err := modelFor(t, hist).Fetch(context.Background(), map[string]any{
		"symbol":     "ethusd",
		"start_date": "2024-01-01",
		"end_date":   "2030-01-01",
		"interval":   "1d",
	}, nil)
	require.NoError(t, err)
	lister.AssertExpectations(t)

	rows := out.Result.([]schema.Record)
	require.Len(t, rows, 3)
	assert.Equal(t, 1.7, rows[2]["close"])
	assert.Equal(t, "ETHUSD", rows[0]["symbol"])
	assert.Equal(t, 150.25, rows[0]["quote_volume"])
}

func TestCryptoHistoricalDropsFormingCandle(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	lister := new(mockLister)
	hist := newCryptoHistorical(lister)
	hist.now = func() time.Time { return now }
	lister.On("ListFuturesCandlesticks", "usdt", "BTC_USDT", mock.Anything).Return([]gateapi.FuturesCandlestick{
		candle(now.Add(-2*time.Hour), "1"),
		candle(now.Add(-time.Hour), "2"),
		candle(now, "3"),
	}, nil, nil)

	out, err := modelFor(t, hist).Fetch(context.Background(), map[string]any{"symbol": "BTCUSD", "interval": "1h"}, nil)
	require.NoError(t, err)
	assert.Len(t, out.Result.([]schema.Record), 2)
}

func TestMapError(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized:       errs.ErrUnauthorized,
		http.StatusTooManyRequests:    errs.ErrTransient,
		http.StatusServiceUnavailable: errs.ErrTransient,
		http.StatusBadRequest:         errs.ErrPermanent,
	}
	for status, want := range cases {
		err := mapError(gateapi.GateAPIError{Label: "X", Message: "m"}, &http.Response{StatusCode: status}, "GET /x")
		assert.True(t, errors.Is(err, want), status)
	}
	assert.True(t, errors.Is(mapError(errors.New("dial"), nil, ""), errs.ErrTransient))
}

func TestThroughSDK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/futures/usdt/candlesticks", r.URL.Path)
		assert.Equal(t, "BTC_USDT", r.URL.Query().Get("contract"))
		assert.Equal(t, "7d", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"t":1704067200,"v":10,"c":"42000.5","h":"43000","l":"41000","o":"41500","sum":"420000"}]`))
	}))
	defer srv.Close()

	m, err := New(Config{RESTBaseURL: srv.URL})
	require.NoError(t, err)
	reg, err := registry.NewBuilder().AddStandard(standard.All()...).AddManifest(m).Build()
	require.NoError(t, err)
	md, err := reg.Model(standard.CryptoHistorical, Name)
	require.NoError(t, err)

	out, err := md.Fetch(context.Background(), map[string]any{"symbol": "BTCUSD", "interval": "1w"}, nil)
	require.NoError(t, err)
	rows := out.Result.([]schema.Record)
	require.Len(t, rows, 1)
	assert.Equal(t, 42000.5, rows[0]["close"])
}
