package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsFloat64(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{in: 1.5, want: 1.5, ok: true},
		{in: 3, want: 3, ok: true},
		{in: " 12.30 ", want: 12.3, ok: true},
		{in: "1,234.5", want: 1234.5, ok: true},
		{in: json.Number("7"), want: 7, ok: true},
		{in: "abc", ok: false},
		{in: "", ok: false},
		{in: nil, ok: false},
		{in: true, ok: false},
	}
	for _, tc := range cases {
		got, ok := AsFloat64(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9)
		}
	}
}

func TestAsInt64(t *testing.T) {
	n, ok := AsInt64("42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	n, ok = AsInt64("42.0")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = AsInt64("42.5")
	assert.False(t, ok)

	_, ok = AsInt64(1.25)
	assert.False(t, ok)
}
