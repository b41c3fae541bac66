package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeys(t *testing.T) {
	out, err := Marshal(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, string(out))
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Pretty([]byte(` {"a":1}`+"\n")))
	assert.Equal(t, "[\n  1,\n  2\n]", Pretty([]byte(`[1,2]`)))
	assert.Equal(t, "not json", Pretty([]byte(" not json ")))
	assert.Equal(t, "{broken", Pretty([]byte("{broken")))
}
