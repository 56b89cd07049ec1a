package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/somcheck/pkg/validation"
)

// countingStore records how often counts are computed.
type countingStore struct {
	IssueStore
	countCalls int
	counts     map[validation.IssueType]int
}

func (c *countingStore) IssueCounts(ctx context.Context, filter IssueFilter) (map[validation.IssueType]int, error) {
	c.countCalls++
	return c.counts, nil
}

func (c *countingStore) WriteFile(ctx context.Context, batch FileBatch) (WriteStats, error) {
	return WriteStats{Issues: len(batch.Issues)}, nil
}

func setupCachedStore(t *testing.T) (*CachedStore, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := &countingStore{counts: map[validation.IssueType]int{
		validation.IssueRange:      4,
		validation.IssueGroupEmpty: 1,
	}}
	cached, err := NewCachedStore(inner, client, time.Minute)
	require.NoError(t, err)
	return cached, inner, mr
}

func TestNewCachedStore(t *testing.T) {
	_, err := NewCachedStore(nil, redis.NewClient(&redis.Options{}), 0)
	assert.Error(t, err)

	_, err = NewCachedStore(&countingStore{}, nil, 0)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	c, err := NewCachedStore(&countingStore{}, redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCountTTL, c.ttl)
}

func TestCachedStore_IssueCounts(t *testing.T) {
	c, inner, mr := setupCachedStore(t)
	ctx := context.Background()
	filter := IssueFilter{Project: "Neubau"}

	first, err := c.IssueCounts(ctx, filter)
	require.NoError(t, err)
	second, err := c.IssueCounts(ctx, filter)
	require.NoError(t, err)

	assert.Equal(t, inner.counts, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.countCalls)
	assert.True(t, mr.Exists(countsKey(filter)))

	mr.FastForward(2 * time.Minute)
	_, err = c.IssueCounts(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.countCalls)
}

func TestCachedStore_WriteInvalidates(t *testing.T) {
	c, inner, mr := setupCachedStore(t)
	ctx := context.Background()

	_, err := c.IssueCounts(ctx, IssueFilter{Project: "Neubau"})
	require.NoError(t, err)
	_, err = c.IssueCounts(ctx, IssueFilter{})
	require.NoError(t, err)
	_, err = c.IssueCounts(ctx, IssueFilter{Project: "Bestand"})
	require.NoError(t, err)
	require.Equal(t, 3, inner.countCalls)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["entries"])

	_, err = c.WriteFile(ctx, FileBatch{Project: "Neubau", File: "a.ifc"})
	require.NoError(t, err)

	assert.False(t, mr.Exists(countsKey(IssueFilter{Project: "Neubau"})))
	assert.False(t, mr.Exists(countsKey(IssueFilter{})))
	assert.True(t, mr.Exists(countsKey(IssueFilter{Project: "Bestand"})))
}

func TestCachedStore_CorruptEntryIsRecomputed(t *testing.T) {
	c, inner, mr := setupCachedStore(t)
	filter := IssueFilter{File: "a.ifc"}
	mr.HSet(countsKey(filter), "RANGE", "x")

	counts, err := c.IssueCounts(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, inner.counts, counts)
	assert.Equal(t, 1, inner.countCalls)
}
