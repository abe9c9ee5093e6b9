package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKVPutGet(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "alert:a1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Put(ctx, "alert:a1", []byte(`{"id":"a1"}`)))

	got, ok, err := kv.Get(ctx, "alert:a1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"id":"a1"}`), got)

	// 覆盖写。
	require.NoError(t, kv.Put(ctx, "alert:a1", []byte(`{"id":"a1","v":2}`)))
	got, _, _ = kv.Get(ctx, "alert:a1")
	assert.Contains(t, string(got), `"v":2`)
}

func TestMemoryKVCopiesValues(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	value := []byte("original")
	require.NoError(t, kv.Put(ctx, "k", value))
	value[0] = 'X'

	got, _, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	got[0] = 'Y'
	again, _, _ := kv.Get(ctx, "k")
	assert.Equal(t, "original", string(again))
}

func TestMemoryKVListByPrefix(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "alert:a1", []byte("1")))
	require.NoError(t, kv.Put(ctx, "alert:a2", []byte("2")))
	require.NoError(t, kv.Put(ctx, "notification:n1", []byte("3")))

	alerts, err := kv.List(ctx, "alert:")
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
	assert.Contains(t, alerts, "alert:a1")
	assert.Contains(t, alerts, "alert:a2")

	all, err := kv.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryKVDelete(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "k", []byte("v")))
	require.NoError(t, kv.Delete(ctx, "k"))
	require.NoError(t, kv.Delete(ctx, "k"))

	_, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKVHonoursContext(t *testing.T) {
	kv := NewMemoryKV()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, kv.Put(ctx, "k", []byte("v")))
	_, _, err := kv.Get(ctx, "k")
	require.Error(t, err)
}

func TestNilStoreReportsNotConfigured(t *testing.T) {
	var s *Store
	ctx := context.Background()

	err := s.Put(ctx, "k", []byte("v"))
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = s.CountResults(ctx)
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = s.ListRecentResults(ctx, 10)
	require.ErrorIs(t, err, ErrNotConfigured)
}
