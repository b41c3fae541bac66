package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/schema"
)

func newTestStore(t *testing.T, streamCap int) *GormStore {
	t.Helper()
	s, err := NewGormStore(MemoryPath, streamCap)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResponseCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 0)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "k", []byte(`{"a":1}`), time.Minute))
	require.NoError(t, s.Put(ctx, "k", []byte(`{"a":2}`), time.Minute))
	body, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":2}`, string(body))

	now = now.Add(time.Hour)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 0)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, s.Put(ctx, "long", []byte("y"), time.Hour))
	now = now.Add(time.Minute)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, ok, _ := s.Get(ctx, "long")
	assert.True(t, ok)

	require.NoError(t, s.Purge(ctx))
	_, ok, _ = s.Get(ctx, "long")
	assert.False(t, ok)
}

func TestStreamLogIsBounded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 3)

	for i := range 5 {
		require.NoError(t, s.Append(ctx, "c1", "CryptoQuote", []schema.Record{{"symbol": "BTCUSD", "price": float64(i)}}))
	}
	require.NoError(t, s.Append(ctx, "c2", "CryptoQuote", []schema.Record{{"symbol": "ETHUSD"}}))

	events, err := s.List(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.EqualValues(t, 2, events[0].Row["price"])
	assert.EqualValues(t, 4, events[2].Row["price"])

	other, err := s.List(ctx, "c2", 10)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fincore.db")
	s, err := NewGormStore(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "k", []byte("v"), 0))
	require.NoError(t, s.Close())
}
