// Package sysmetrics samples the switch process's own CPU and memory use so
// the statistics log line and the admin API can report them next to the
// transaction counters.
package sysmetrics

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the sampling period used when none is given
const DefaultInterval = time.Second

// Usage is one resource sample of the running process
type Usage struct {
	// CPUPercent is -1 until two samples exist, or where the platform
	// cannot report it.
	CPUPercent float64

	RSSBytes uint64

	// LimitBytes is the cgroup memory limit, 0 when unlimited
	LimitBytes uint64

	SampledAt time.Time
}

// Available reports whether a CPU figure has been computed
func (u Usage) Available() bool {
	return u.CPUPercent >= 0
}

// Sampler refreshes a Usage in the background
type Sampler struct {
	interval time.Duration

	mu    sync.RWMutex
	usage Usage

	cancel context.CancelFunc
	wg     sync.WaitGroup

	state procState
}

// NewSampler creates a sampler. A non-positive interval uses DefaultInterval.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		interval: interval,
		usage:    Usage{CPUPercent: -1},
	}
}

// Start samples once immediately, then every interval until Stop or ctx ends
func (s *Sampler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.state.init()
	s.sample()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sample()
			}
		}
	}()
}

// Stop halts sampling and waits for the background goroutine
func (s *Sampler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Usage returns the latest sample
func (s *Sampler) Usage() Usage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage
}

func (s *Sampler) sample() {
	u := s.state.read(time.Now())
	s.mu.Lock()
	s.usage = u
	s.mu.Unlock()
}
