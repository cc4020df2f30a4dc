package audit

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/stretchr/testify/assert"
)

// recordingBackend collects what it is asked to write
type recordingBackend struct {
	mu      sync.Mutex
	name    string
	records []Record
	err     error
	block   chan struct{}
	closed  bool
}

func (b *recordingBackend) Name() string { return b.name }

func (b *recordingBackend) Write(_ context.Context, rec Record) error {
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.records = append(b.records, rec)
	return nil
}

func (b *recordingBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *recordingBackend) snapshot() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Record(nil), b.records...)
}

func testMessage(mti, stan string) *as2805.Message {
	msg := as2805.NewMessage(mti)
	msg.SetString(as2805.FieldSTAN, stan)
	msg.SetString(as2805.FieldTerminalID, "TERM01  ")
	msg.Raw = []byte(mti + stan)
	return msg
}

func TestFromMessage(t *testing.T) {
	msg := testMessage("0100", "000123")
	msg.SetString(as2805.FieldAmount, "000000001000")
	ex := NewExchange("sess-1", "127.0.0.1:5000", "127.0.0.1:8000")
	ts := time.Now()

	rec := FromMessage(Received, msg, ex, ts)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, ex.ID, rec.ExchangeID)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "0100", rec.MTI)
	assert.Equal(t, "000123", rec.STAN)
	assert.Equal(t, "000000001000", rec.Amount)
	assert.Equal(t, "TERM01", rec.TerminalID)
	assert.Equal(t, hex.EncodeToString([]byte("0100000123")), rec.RawMessage)
	assert.Equal(t, ts, rec.Timestamp)

	// the record does not alias the message buffer
	msg.Raw[0] = 'X'
	assert.Equal(t, byte('0'), rec.Raw[0])
}

func TestDispatcher_FansOutAndDrains(t *testing.T) {
	a := &recordingBackend{name: "a"}
	b := &recordingBackend{name: "b"}
	d := NewDispatcher(DispatcherConfig{QueueSize: 100}, a, b)
	d.Start(context.Background())

	ex := NewExchange("s", "127.0.0.1:1", "127.0.0.1:2")
	for i := 0; i < 10; i++ {
		d.Record(Received, testMessage("0200", "000001"), ex)
		d.Record(Sent, testMessage("0210", "000001"), ex)
	}
	d.Stop()

	assert.Len(t, a.snapshot(), 20)
	assert.Len(t, b.snapshot(), 20)
	assert.True(t, a.closed)
	assert.True(t, b.closed)

	recs := a.snapshot()
	assert.Equal(t, Received, recs[0].Direction)
	assert.Equal(t, Sent, recs[1].Direction)
	assert.Equal(t, recs[0].ExchangeID, recs[1].ExchangeID)

	s := d.Stats()
	assert.Equal(t, uint64(20), s.Written)
	assert.Equal(t, uint64(0), s.Dropped)
}

func TestDispatcher_NeverBlocksWhenFull(t *testing.T) {
	slow := &recordingBackend{name: "slow", block: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{QueueSize: 2}, slow)
	d.Start(context.Background())

	done := make(chan struct{})
	go func() {
		ex := NewExchange("s", "", "")
		for i := 0; i < 50; i++ {
			d.Record(Received, testMessage("0100", "000001"), ex)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a stalled backend")
	}

	assert.Greater(t, d.Stats().Dropped, uint64(0))
	close(slow.block)
	d.Stop()
}

func TestDispatcher_BackendFailureIsSwallowed(t *testing.T) {
	failing := &recordingBackend{name: "failing", err: errors.New("disk full")}
	healthy := &recordingBackend{name: "healthy"}
	d := NewDispatcher(DispatcherConfig{MaxFailures: 2, ResetTimeout: time.Hour}, failing, healthy)
	d.Start(context.Background())

	ex := NewExchange("s", "", "")
	for i := 0; i < 5; i++ {
		d.Record(Received, testMessage("0100", "000001"), ex)
	}
	d.Stop()

	assert.Len(t, healthy.snapshot(), 5)
	s := d.Stats()
	assert.Equal(t, uint64(5), s.BackendErrors["failing"])
	assert.Equal(t, uint64(0), s.BackendErrors["healthy"])
}

func TestDispatcher_RecordAfterStop(t *testing.T) {
	b := &recordingBackend{name: "b"}
	d := NewDispatcher(DispatcherConfig{}, b)
	d.Start(context.Background())
	d.Stop()
	d.Stop()

	assert.NotPanics(t, func() {
		d.Record(Received, testMessage("0100", "000001"), NewExchange("s", "", ""))
	})
	assert.Equal(t, uint64(1), d.Stats().Dropped)
	assert.Empty(t, b.snapshot())
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	assert.NotPanics(t, func() {
		s.Record(Sent, testMessage("0110", "000001"), Exchange{})
	})
}
