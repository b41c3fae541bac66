package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDIsMonotonic(t *testing.T) {
	a, b := RequestID(), RequestID()
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
	_, err := ulid.Parse(a)
	require.NoError(t, err)
}
