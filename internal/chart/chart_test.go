package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/envelope"
	"fincore/internal/fetcher"
	"fincore/internal/schema"
	"fincore/internal/standard"
)

func env(rows []schema.Record) *envelope.Envelope {
	return envelope.New("fmp", fetcher.Output{Result: rows, Shape: fetcher.ShapeList}, schema.Schema{})
}

func TestRenderCandles(t *testing.T) {
	rows := []schema.Record{
		{"date": schema.NewDate(2024, 1, 2), "symbol": "AAPL", "open": 1.0, "high": 2.0, "low": 0.5, "close": 1.5, "volume": int64(100)},
		{"date": schema.NewDate(2024, 1, 3), "symbol": "AAPL", "open": 1.5, "high": 2.5, "low": 1.0, "close": 2.0},
		{"date": schema.NewDate(2024, 1, 2), "symbol": "MSFT", "open": 3.0, "high": 4.0, "low": 2.5, "close": 3.5},
	}
	c, err := Render(standard.EquityHistorical, env(rows))
	require.NoError(t, err)
	assert.Equal(t, "html", c.Format)
	assert.Equal(t, "EquityHistorical (fmp)", c.Title)
	assert.Contains(t, c.Content, "2024-01-03")
	assert.Contains(t, c.Content, "MSFT")
}

func TestRenderYieldCurve(t *testing.T) {
	rows := []schema.Record{
		{"date": schema.NewDate(2024, 5, 31), "maturity": "month_1", "rate": 5.48},
		{"date": schema.NewDate(2024, 5, 31), "maturity": "year_10", "rate": 4.51},
	}
	c, err := Render(standard.YieldCurve, env(rows))
	require.NoError(t, err)
	assert.Contains(t, c.Content, "year_30")
	assert.Contains(t, c.Content, "2024-05-31")
}

func TestRenderFallsBackToNumericLine(t *testing.T) {
	rows := []schema.Record{{"date": schema.NewDate(2024, 5, 31), "value": int64(40), "classification": "Fear"}}
	c, err := Render(standard.CryptoFearGreed, env(rows))
	require.NoError(t, err)
	assert.Contains(t, c.Content, "value")

	_, err = Render(standard.EquityProfile, env([]schema.Record{{"name": "Apple"}}))
	assert.Error(t, err)

	_, err = Render(standard.EquityProfile, env(nil))
	assert.Error(t, err)
}
