package treasury

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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

const csv2024 = `Date,"1 Mo","2 Mo","3 Mo","4 Mo","6 Mo","1 Yr","2 Yr","3 Yr","5 Yr","7 Yr","10 Yr","20 Yr","30 Yr"
12/02/2024,4.80,4.70,4.55,4.50,4.42,4.28,4.15,4.10,4.07,4.12,4.19,4.47,4.37
11/29/2024,4.78,4.68,4.57,,4.42,4.30,4.13,4.09,4.05,4.10,4.18,4.45,4.36
05/31/2024,5.48,5.49,5.46,5.45,5.42,5.18,4.89,4.68,4.52,4.51,4.51,4.71,4.65
05/30/2024,5.49,5.49,5.46,5.46,5.41,5.18,4.92,4.72,4.57,4.56,4.55,4.75,4.69
`

func vendor(t *testing.T, files map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	calls := new(atomic.Int32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "daily_treasury_yield_curve", r.URL.Query().Get("type"))
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func model(t *testing.T, baseURL string) (*fetcher.Model, *yieldCurve) {
	t.Helper()
	m := New(httpclient.Config{BaseURL: baseURL}, nil)
	reg, err := registry.NewBuilder().AddStandard(standard.All()...).AddManifest(m).Build()
	require.NoError(t, err)
	md, err := reg.Model(standard.YieldCurve, Name)
	require.NoError(t, err)
	return md, m.Fetchers[0].(*yieldCurve)
}

func TestYieldCurveNearestEarlierDates(t *testing.T) {
	srv, calls := vendor(t, map[string]string{"/daily-treasury-rates.csv/2024/all": csv2024})
	md, _ := model(t, srv.URL)

	out, err := md.Fetch(context.Background(), map[string]any{"date": "2024-06-01,2024-12-01"}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	rows := out.Result.([]schema.Record)
	var june, nov []string
	for _, r := range rows {
		d, _ := r.Date("date")
		switch d.String() {
		case "2024-05-31":
			june = append(june, r.String("maturity"))
		case "2024-11-29":
			nov = append(nov, r.String("maturity"))
		default:
			t.Fatalf("unexpected curve date %s", d)
		}
	}
	assert.Equal(t, standard.Maturities, june)
	assert.Len(t, nov, len(standard.Maturities)-1)
	assert.NotContains(t, nov, "month_4")
	assert.Equal(t, "month_3", nov[2])
	assert.Equal(t, "month_6", nov[3])
	assert.Equal(t, 5.48, rows[0]["rate"])

	assert.Equal(t, map[string]string{"2024-06-01": "2024-05-31", "2024-12-01": "2024-11-29"}, out.Metadata["resolved_dates"])
}

func TestYieldCurveEarlyJanuaryReadsPreviousYear(t *testing.T) {
	srv, calls := vendor(t, map[string]string{"/daily-treasury-rates.csv/2024/all": csv2024})
	md, _ := model(t, srv.URL)

	out, err := md.Fetch(context.Background(), map[string]any{"date": "2025-01-01"}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
	d, _ := out.Result.([]schema.Record)[0].Date("date")
	assert.Equal(t, "2024-12-02", d.String())
}

func TestYieldCurveLatest(t *testing.T) {
	srv, _ := vendor(t, map[string]string{"/daily-treasury-rates.csv/2024/all": csv2024})
	md, yc := model(t, srv.URL)
	yc.now = func() time.Time { return time.Date(2024, 12, 3, 15, 0, 0, 0, time.UTC) }

	out, err := md.Fetch(context.Background(), nil, nil)
	require.NoError(t, err)
	rows := out.Result.([]schema.Record)
	assert.Len(t, rows, len(standard.Maturities))
	d, _ := rows[0].Date("date")
	assert.Equal(t, "2024-12-02", d.String())
}

func TestYieldCurveNoCurve(t *testing.T) {
	srv, _ := vendor(t, map[string]string{"/daily-treasury-rates.csv/2024/all": csv2024})
	md, _ := model(t, srv.URL)

	_, err := md.Fetch(context.Background(), map[string]any{"date": "2024-03-01"}, nil)
	assert.True(t, errors.Is(err, errs.ErrEmptyData))
}

func TestYieldCurveMalformedCSV(t *testing.T) {
	srv, _ := vendor(t, map[string]string{"/daily-treasury-rates.csv/2024/all": "<html>maintenance</html>"})
	md, _ := model(t, srv.URL)

	_, err := md.Fetch(context.Background(), map[string]any{"date": "2024-06-01"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPermanent))
}
