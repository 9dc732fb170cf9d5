package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Pending int `json:"pending"`
}

func withMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr())
	require.NoError(t, err)
	prev := client
	SetClient(c)
	t.Cleanup(func() {
		_ = c.Close()
		SetClient(prev)
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := withMiniRedis(t)
	ctx := context.Background()
	calls := 0

	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			dest.Pending = 3
			return nil
		}
	}

	var first payload
	hit, err := Aside(ctx, ModerationStatsKey("group"), &first, time.Minute, fetch(&first))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, first.Pending)
	assert.True(t, mr.Exists("moderation:stats:group"))

	var second payload
	hit, err = Aside(ctx, ModerationStatsKey("group"), &second, time.Minute, fetch(&second))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, second.Pending)
	assert.Equal(t, 1, calls)

	InvalidateModerationStats(ctx, "group", "post")
	assert.False(t, mr.Exists("moderation:stats:group"))
}

func TestAside_FetchErrorIsReturned(t *testing.T) {
	withMiniRedis(t)
	var p payload
	_, err := Aside(context.Background(), "k", &p, time.Minute, func() error { return errors.New("db down") })
	assert.EqualError(t, err, "db down")
}

func TestAside_WithoutRedisAlwaysFetches(t *testing.T) {
	prev := client
	SetClient(nil)
	t.Cleanup(func() { SetClient(prev) })

	var p payload
	hit, err := Aside(context.Background(), "k", &p, time.Minute, func() error { p.Pending = 1; return nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, p.Pending)
}

func TestNewClient_ParsesURL(t *testing.T) {
	c, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)

	_, err = NewClient("redis://[bad")
	assert.Error(t, err)
}
