package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestCamel(t *testing.T) {
	cases := map[string]string{
		"start_date":       "StartDate",
		"series_id":        "SeriesID",
		"symbol":           "Symbol",
		"10y":              "X10y",
		"":                 "X",
		"broadcast-url":    "BroadcastURL",
		"include_metadata": "IncludeMetadata",
	}
	for in, want := range cases {
		assert.Equal(t, want, Camel(in), in)
	}
}
