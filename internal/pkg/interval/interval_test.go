package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"4H":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, ok := ParseDuration(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "d", "0m", "-1h", "1y", "abc"} {
		_, ok := ParseDuration(bad)
		assert.False(t, ok, bad)
	}
}

func TestNormalize(t *testing.T) {
	got, ok := Normalize(" 1D ")
	assert.True(t, ok)
	assert.Equal(t, "1d", got)
	assert.True(t, IsDaily("1d"))
	assert.False(t, IsDaily("4h"))
}
