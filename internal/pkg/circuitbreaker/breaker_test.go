package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(clock *fakeClock) *Breaker {
	return New(Config{
		Name:         "test",
		MaxFailures:  3,
		ResetTimeout: 10 * time.Second,
		now:          clock.Now,
	})
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Call(func() error { return errBackend }), errBackend)
		assert.Equal(t, StateClosed, b.State())
	}
	assert.ErrorIs(t, b.Call(func() error { return errBackend }), errBackend)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	m := b.Metrics()
	assert.Equal(t, uint64(4), m.Attempts)
	assert.Equal(t, uint64(3), m.Failures)
	assert.Equal(t, uint64(1), m.Rejections)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := newTestBreaker(clock)

	b.Call(func() error { return errBackend })
	b.Call(func() error { return errBackend })
	require.NoError(t, b.Call(func() error { return nil }))
	b.Call(func() error { return errBackend })
	b.Call(func() error { return errBackend })

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		b.Call(func() error { return errBackend })
	}
	require.Equal(t, StateOpen, b.State())

	clock.Advance(11 * time.Second)
	require.NoError(t, b.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		b.Call(func() error { return errBackend })
	}

	clock.Advance(11 * time.Second)
	assert.ErrorIs(t, b.Call(func() error { return errBackend }), errBackend)
	assert.Equal(t, StateOpen, b.State())

	// the open period restarts from the failed probe
	clock.Advance(5 * time.Second)
	assert.ErrorIs(t, b.Call(func() error { return nil }), ErrOpen)
}

func TestBreaker_SingleProbe(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		b.Call(func() error { return errBackend })
	}
	clock.Advance(11 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Call(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, b.Call(func() error { return nil }), ErrOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		b.Call(func() error { return errBackend })
	}
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Call(func() error { return nil }))
}
