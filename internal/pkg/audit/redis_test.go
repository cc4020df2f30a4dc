package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps counters in a map
type fakeRedis struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, d time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = d
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisCounters_Write(t *testing.T) {
	fake := newFakeRedis()
	counters := NewRedisCounters(fake, "")
	ctx := context.Background()
	ts := time.Date(2026, 10, 19, 14, 5, 0, 0, time.UTC)

	require.NoError(t, counters.Write(ctx, Record{Direction: Received, MTI: "0100", Timestamp: ts}))
	require.NoError(t, counters.Write(ctx, Record{Direction: Received, MTI: "0200", Timestamp: ts}))
	require.NoError(t, counters.Write(ctx, Record{Direction: Sent, MTI: "0110", ResponseCode: "00", Timestamp: ts}))
	require.NoError(t, counters.Write(ctx, Record{Direction: Sent, MTI: "0210", ResponseCode: "05", Timestamp: ts}))

	assert.Equal(t, int64(2), fake.counts["paycat:tx:total"])
	assert.Equal(t, int64(2), fake.counts["paycat:tx:hour:2026101914"])
	assert.Equal(t, int64(1), fake.counts["paycat:rc:00"])
	assert.Equal(t, int64(1), fake.counts["paycat:rc:05"])

	// expiry is set once, when the bucket is created
	assert.Equal(t, map[string]time.Duration{"paycat:tx:hour:2026101914": hourlyKeyTTL}, fake.expires)

	require.NoError(t, counters.Close())
	assert.True(t, fake.closed)
}

func TestRedisCounters_Error(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	counters := NewRedisCounters(fake, "switch1")

	err := counters.Write(context.Background(), Record{Direction: Received, Timestamp: time.Now()})
	assert.ErrorContains(t, err, "connection refused")
}
