package preferences

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	base := Defaults()
	base.PreferredProvider = map[string]string{"equity": "fmp"}

	got, unknown, err := Decode(map[string]any{
		"request_timeout":                  "5",
		"use_cache":                        "true",
		"preferred_provider_per_namespace": map[string]any{"crypto": "binance"},
		"fallback_providers":               map[string]any{"CryptoHistorical": "gate"},
		"colour":                           "blue",
		"theme":                            "dark",
	}, base)
	require.NoError(t, err)

	assert.Equal(t, 5.0, got.RequestTimeout)
	assert.True(t, got.UseCache)
	assert.Equal(t, "binance", got.Preferred("CryptoHistorical", "crypto"))
	assert.Equal(t, "fmp", got.Preferred("EquityProfile", "equity"))
	assert.Equal(t, "gate", got.Fallback("CryptoHistorical", "crypto"))
	assert.Equal(t, []string{"colour", "theme"}, unknown)
	assert.Equal(t, map[string]string{"equity": "fmp"}, base.PreferredProvider)
}

func TestTimeout(t *testing.T) {
	p := Preferences{RequestTimeout: 2, BulkThreshold: 20, BulkTimeoutFactor: 4}
	assert.Equal(t, 2*time.Second, p.Timeout(1))
	assert.Equal(t, 2*time.Second, p.Timeout(19))
	assert.Equal(t, 8*time.Second, p.Timeout(20))
	assert.Equal(t, 10*time.Second, Preferences{}.Timeout(1))
}
