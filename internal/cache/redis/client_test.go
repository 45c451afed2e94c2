package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisma-glow/deepsearch/pkg/utils"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := NewClientFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestCanonicalKeyDeterministic(t *testing.T) {
	a := CanonicalKey("lease classification", []string{"MT"}, []string{"financial_reporting"})
	b := CanonicalKey("lease classification", []string{"MT"}, []string{"financial_reporting"})

	assert.Equal(t, a, b)
}

func TestCanonicalKeyNilSlicesMatchEmpty(t *testing.T) {
	assert.Equal(t,
		CanonicalKey("q", nil, nil),
		CanonicalKey("q", []string{}, []string{}),
	)
}

func TestCanonicalKeyVariesByInputs(t *testing.T) {
	base := CanonicalKey("q", []string{"MT"}, []string{"tax"})

	assert.NotEqual(t, base, CanonicalKey("other", []string{"MT"}, []string{"tax"}))
	assert.NotEqual(t, base, CanonicalKey("q", []string{"US"}, []string{"tax"}))
	assert.NotEqual(t, base, CanonicalKey("q", []string{"MT"}, []string{"audit"}))
}

func TestPutAndGet(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	key := CanonicalKey("q", []string{"MT"}, nil)
	require.NoError(t, client.Put(ctx, key, "q", `{"results":[]}`, time.Hour))

	entry, found, err := client.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, key, entry.CacheKey)
	assert.Equal(t, "q", entry.URL)
	assert.Equal(t, `{"results":[]}`, entry.ResponseBody)
	assert.True(t, entry.ExpiresAt.After(time.Now()))
}

func TestGetMissing(t *testing.T) {
	client, _ := newTestClient(t)

	_, found, err := client.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetExpiredEntryIsMiss(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	key := "expiring"
	require.NoError(t, client.Put(ctx, key, "q", "body", time.Hour))

	// Entry still present in storage, but past its logical expiry.
	mr.FastForward(2 * time.Hour)
	require.NoError(t, mr.Set(storageKey(key), mustEntryJSON(t, key, time.Now().Add(-time.Minute))))

	_, found, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetCorruptEntryIsMiss(t *testing.T) {
	client, mr := newTestClient(t)

	require.NoError(t, mr.Set(storageKey("bad"), "{not json"))

	_, found, err := client.Get(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPutOverwrites(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Put(ctx, "k", "q", "first", time.Hour))
	require.NoError(t, client.Put(ctx, "k", "q", "second", time.Hour))

	entry, found, err := client.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second", entry.ResponseBody)
}

func TestStorageKeyHashesCacheKey(t *testing.T) {
	key := CanonicalKey("q", nil, nil)
	assert.Equal(t, "webfetch:"+utils.HashString(key), storageKey(key))
}

func mustEntryJSON(t *testing.T, key string, expiresAt time.Time) string {
	t.Helper()

	entry := CacheEntry{
		CacheKey:     key,
		URL:          "q",
		ResponseBody: "body",
		ExpiresAt:    expiresAt,
		CreatedAt:    expiresAt.Add(-time.Hour),
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	return string(data)
}
