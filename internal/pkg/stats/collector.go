// Package stats holds the process-wide switch counters. A single Collector
// is created at startup and injected into the session listener.
package stats

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/endorses/paycat/internal/pkg/logger"
	"github.com/endorses/paycat/internal/pkg/sysmetrics"
)

// Stats is a point-in-time copy of the counters
type Stats struct {
	StartTime        time.Time
	ActiveSessions   int64
	AcceptedSessions uint64
	RefusedSessions  uint64
	MessagesReceived uint64
	MessagesSent     uint64
	DecodeErrors     uint64
	Timeouts         uint64
	Approved         uint64
	Declined         uint64
	SystemErrors     uint64

	Process sysmetrics.Usage
}

// Transactions is the number of requests answered
func (s Stats) Transactions() uint64 {
	return s.Approved + s.Declined + s.SystemErrors
}

// Collector collects switch statistics. All methods are safe for concurrent use.
type Collector struct {
	startTime time.Time

	activeSessions   atomic.Int64
	acceptedSessions atomic.Uint64
	refusedSessions  atomic.Uint64
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	decodeErrors     atomic.Uint64
	timeouts         atomic.Uint64
	approved         atomic.Uint64
	declined         atomic.Uint64
	systemErrors     atomic.Uint64

	usage UsageSource
}

// UsageSource reports the process's resource use
type UsageSource interface {
	Usage() sysmetrics.Usage
}

// SetUsageSource attaches process resource sampling. Call it before the
// collector is shared.
func (c *Collector) SetUsageSource(src UsageSource) {
	c.usage = src
}

// NewCollector creates a new stats collector
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SessionOpened records an admitted connection
func (c *Collector) SessionOpened() {
	c.acceptedSessions.Add(1)
	c.activeSessions.Add(1)
}

// SessionClosed records a released connection
func (c *Collector) SessionClosed() {
	c.activeSessions.Add(-1)
}

// SessionRefused records a connection rejected at admission
func (c *Collector) SessionRefused() {
	c.refusedSessions.Add(1)
}

// MessageReceived counts an inbound frame
func (c *Collector) MessageReceived() {
	c.messagesReceived.Add(1)
}

// DecodeError counts an inbound frame that could not be decoded
func (c *Collector) DecodeError() {
	c.decodeErrors.Add(1)
}

// Timeout counts a request that missed its processing deadline
func (c *Collector) Timeout() {
	c.timeouts.Add(1)
}

// ResponseSent counts a written response by its field 39 value
func (c *Collector) ResponseSent(responseCode string) {
	c.messagesSent.Add(1)
	switch responseCode {
	case "00":
		c.approved.Add(1)
	case "96":
		c.systemErrors.Add(1)
	default:
		c.declined.Add(1)
	}
}

// Get returns current statistics (lock-free read)
func (c *Collector) Get() Stats {
	process := sysmetrics.Usage{CPUPercent: -1}
	if c.usage != nil {
		process = c.usage.Usage()
	}
	return Stats{
		StartTime:        c.startTime,
		ActiveSessions:   c.activeSessions.Load(),
		AcceptedSessions: c.acceptedSessions.Load(),
		RefusedSessions:  c.refusedSessions.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		MessagesSent:     c.messagesSent.Load(),
		DecodeErrors:     c.decodeErrors.Load(),
		Timeouts:         c.timeouts.Load(),
		Approved:         c.approved.Load(),
		Declined:         c.declined.Load(),
		SystemErrors:     c.systemErrors.Load(),
		Process:          process,
	}
}

// Run logs a statistics line every interval until ctx is done
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := c.Get()
			logger.Info("Switch statistics",
				"uptime", time.Since(s.StartTime).Round(time.Second).String(),
				"active_sessions", s.ActiveSessions,
				"accepted_sessions", s.AcceptedSessions,
				"refused_sessions", s.RefusedSessions,
				"received", s.MessagesReceived,
				"sent", s.MessagesSent,
				"approved", s.Approved,
				"declined", s.Declined,
				"system_errors", s.SystemErrors,
				"decode_errors", s.DecodeErrors,
				"timeouts", s.Timeouts,
				"cpu_percent", s.Process.CPUPercent,
				"rss_bytes", s.Process.RSSBytes)
		}
	}
}
