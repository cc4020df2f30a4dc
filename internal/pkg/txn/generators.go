package txn

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

const rrnModulus = 1_000_000_000_000

// RandomApprovalCode returns a random 6 digit authorization code
func RandomApprovalCode() string {
	return fmt.Sprintf("%06d", rand.IntN(1_000_000))
}

// ClockRRN derives retrieval reference numbers from the wall clock in
// milliseconds. Values are strictly increasing within a process even when
// several requests arrive in the same millisecond.
type ClockRRN struct {
	last atomic.Int64
}

// NewClockRRN creates a generator
func NewClockRRN() *ClockRRN {
	return &ClockRRN{}
}

// Next returns a 12 digit reference number for now
func (g *ClockRRN) Next(now time.Time) string {
	candidate := now.UnixMilli() % rrnModulus
	for {
		last := g.last.Load()
		next := candidate
		if next <= last {
			next = last + 1
		}
		if g.last.CompareAndSwap(last, next) {
			return fmt.Sprintf("%012d", next%rrnModulus)
		}
	}
}
