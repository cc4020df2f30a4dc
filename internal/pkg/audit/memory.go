package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/endorses/paycat/internal/pkg/constants"
)

// MemoryStore keeps the most recent records in a ring buffer along with the
// status counters. It is always enabled and backs the query API when no
// database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Record
	size    int
	head    int
	count   int

	startTime   time.Time
	processed   int64
	lastUpdated time.Time
	hourly      map[int64]int64 // hour (unix seconds) -> received requests
}

// NewMemoryStore creates a store holding up to capacity records
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = constants.DefaultMemoryRecords
	}
	now := time.Now()
	return &MemoryStore{
		entries:     make([]Record, capacity),
		size:        capacity,
		startTime:   now,
		lastUpdated: now,
		hourly:      make(map[int64]int64),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

// Write adds a record, overwriting the oldest when full
func (m *MemoryStore) Write(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[m.head] = rec
	m.head = (m.head + 1) % m.size
	if m.count < m.size {
		m.count++
	}

	if rec.Direction == Received {
		m.processed++
		hour := rec.Timestamp.Truncate(time.Hour).Unix()
		m.hourly[hour]++

		// keep a little more than a day of buckets
		cutoff := rec.Timestamp.Add(-25 * time.Hour).Unix()
		for h := range m.hourly {
			if h < cutoff {
				delete(m.hourly, h)
			}
		}
	}
	m.lastUpdated = rec.Timestamp
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Status implements Querier
func (m *MemoryStore) Status(_ context.Context) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Status:                "RUNNING",
		StartTime:             m.startTime,
		TransactionsProcessed: m.processed,
		LastUpdated:           m.lastUpdated,
	}, nil
}

// Recent returns up to limit records, newest first
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit > m.count {
		limit = m.count
	}
	if limit <= 0 {
		return []Record{}, nil
	}

	result := make([]Record, limit)
	// head is the next write position, so head-1 is the newest
	for i := 0; i < limit; i++ {
		idx := (m.head - 1 - i + m.size) % m.size
		result[i] = m.entries[idx]
	}
	return result, nil
}

// CountsByHour implements Querier
func (m *MemoryStore) CountsByHour(_ context.Context, since time.Time) ([]HourlyCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from := since.Truncate(time.Hour).Unix()
	out := make([]HourlyCount, 0, len(m.hourly))
	for h, n := range m.hourly {
		if h >= from {
			out = append(out, HourlyCount{Hour: time.Unix(h, 0).UTC(), Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out, nil
}
