// Package constants provides shared constants used across paycat components.
package constants

import "time"

// Shutdown and graceful termination timeouts
const (
	// GracefulShutdownTimeout is the time to wait for graceful component shutdown
	GracefulShutdownTimeout = 2 * time.Second

	// PollingInterval is the standard interval for polling operations
	PollingInterval = 10 * time.Millisecond
)

// Session defaults
const (
	// DefaultListenAddr is where terminals connect
	DefaultListenAddr = ":8000"

	// DefaultAPIListenAddr is the status/query API address
	DefaultAPIListenAddr = ":8080"

	// DefaultMaxSessions bounds concurrent terminal connections
	DefaultMaxSessions = 100

	// DefaultProcessingTimeout bounds decode, process and encode of one request
	DefaultProcessingTimeout = 2 * time.Second

	// DefaultIdleTimeout closes connections that send nothing
	DefaultIdleTimeout = 5 * time.Minute

	// DefaultWriteTimeout bounds a single response write
	DefaultWriteTimeout = 10 * time.Second

	// DefaultMaxFrameSize is the largest accepted message payload
	DefaultMaxFrameSize = 8 * 1024

	// DefaultStatsInterval is the period of the statistics log line
	DefaultStatsInterval = 30 * time.Second

	// DefaultClientTimeout is how long the client waits for a response
	DefaultClientTimeout = 30 * time.Second
)

// Channel buffer sizes
//
// Single-item buffers are used for signals and errors that must never block the
// sender. The audit queue is large: a burst of terminal traffic must not be
// dropped while a backend is slow for a moment.
const (
	// SignalChannelBuffer is the buffer size for OS signal channels
	SignalChannelBuffer = 1

	// ErrorChannelBuffer is the buffer size for error reporting channels
	ErrorChannelBuffer = 1

	// AuditQueueBuffer is the default number of audit records queued for the writer
	AuditQueueBuffer = 10000

	// DefaultMemoryRecords is the number of recent records kept in memory
	DefaultMemoryRecords = 1000
)

// Audit pipeline
const (
	// AuditWriteTimeout bounds one backend write
	AuditWriteTimeout = 5 * time.Second

	// ErrorLogInterval rate-limits repeated error logs
	ErrorLogInterval = 10 * time.Second
)

// Query API
const (
	// DefaultTransactionLimit is the number of records returned when no limit is given
	DefaultTransactionLimit = 50

	// MaxTransactionLimit caps the limit query parameter
	MaxTransactionLimit = 1000
)
