package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/endorses/paycat/internal/pkg/circuitbreaker"
	"github.com/endorses/paycat/internal/pkg/constants"
	"github.com/endorses/paycat/internal/pkg/logger"
)

// DispatcherConfig configures the async audit pipeline
type DispatcherConfig struct {
	QueueSize    int           // Records buffered before dropping (default: constants.AuditQueueBuffer)
	WriteTimeout time.Duration // Per backend write deadline (default: constants.AuditWriteTimeout)
	MaxFailures  uint32        // Consecutive failures before a backend's breaker opens
	ResetTimeout time.Duration // How long an open breaker rejects writes

	now func() time.Time
}

// guardedBackend is a backend behind its own circuit breaker
type guardedBackend struct {
	backend Backend
	breaker *circuitbreaker.Breaker

	errors          atomic.Uint64
	lastErrorLogged atomic.Int64
}

// Dispatcher is the Sink used by the switch. Record builds an audit record
// and queues it without blocking; a single worker writes queued records to
// every backend in order.
type Dispatcher struct {
	cfg      DispatcherConfig
	backends []*guardedBackend

	mu     sync.RWMutex
	closed bool
	queue  chan Record

	written atomic.Uint64
	dropped atomic.Uint64

	ctx      context.Context
	workerWg sync.WaitGroup
	stopOnce sync.Once
}

// NewDispatcher creates a dispatcher over the given backends
func NewDispatcher(cfg DispatcherConfig, backends ...Backend) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = constants.AuditQueueBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = constants.AuditWriteTimeout
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	d := &Dispatcher{
		cfg:   cfg,
		queue: make(chan Record, cfg.QueueSize),
		ctx:   context.Background(),
	}
	for _, b := range backends {
		d.backends = append(d.backends, &guardedBackend{
			backend: b,
			breaker: circuitbreaker.New(circuitbreaker.Config{
				Name:         "audit-" + b.Name(),
				MaxFailures:  cfg.MaxFailures,
				ResetTimeout: cfg.ResetTimeout,
			}),
		})
	}
	return d
}

// Start begins the write worker. Writes are not cancelled with ctx so that
// Stop can drain the queue after shutdown has begun.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx = context.WithoutCancel(ctx)
	d.workerWg.Add(1)
	go d.writeWorker()

	names := make([]string, 0, len(d.backends))
	for _, gb := range d.backends {
		names = append(names, gb.backend.Name())
	}
	logger.Info("Audit dispatcher started",
		"backends", names,
		"queue_size", cap(d.queue))
}

// Record implements Sink. It never blocks: when the queue is full or the
// dispatcher is stopped the record is dropped and counted.
func (d *Dispatcher) Record(dir Direction, msg *as2805.Message, ex Exchange) {
	if msg == nil {
		return
	}
	rec := FromMessage(dir, msg, ex, d.cfg.now())

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}

	select {
	case d.queue <- rec:
	default:
		if n := d.dropped.Add(1); n == 1 || n%1000 == 0 {
			logger.Warn("Audit queue full, dropping record",
				"direction", dir,
				"mti", rec.MTI,
				"total_dropped", n)
		}
	}
}

// Stop closes the queue, waits for queued records to be written and closes
// the backends. It is safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		logger.Info("Waiting for audit dispatcher to drain", "pending", len(d.queue))
		d.workerWg.Wait()

		for _, gb := range d.backends {
			if err := gb.backend.Close(); err != nil {
				logger.Warn("Failed to close audit backend",
					"backend", gb.backend.Name(),
					"error", err)
			}
		}
		logger.Info("Audit dispatcher stopped",
			"written", d.written.Load(),
			"dropped", d.dropped.Load())
	})
}

// DispatcherStats reports pipeline counters
type DispatcherStats struct {
	Written       uint64
	Dropped       uint64
	QueueDepth    int
	BackendErrors map[string]uint64
}

// Stats returns current counters
func (d *Dispatcher) Stats() DispatcherStats {
	s := DispatcherStats{
		Written:       d.written.Load(),
		Dropped:       d.dropped.Load(),
		QueueDepth:    len(d.queue),
		BackendErrors: make(map[string]uint64, len(d.backends)),
	}
	for _, gb := range d.backends {
		s.BackendErrors[gb.backend.Name()] = gb.errors.Load()
	}
	return s
}

func (d *Dispatcher) writeWorker() {
	defer d.workerWg.Done()

	logger.Debug("Audit write worker started")
	for rec := range d.queue {
		d.write(rec)
	}
	logger.Debug("Audit write queue closed")
}

// write stores rec in every backend; failures are logged and swallowed
func (d *Dispatcher) write(rec Record) {
	for _, gb := range d.backends {
		err := gb.breaker.Call(func() error {
			ctx, cancel := context.WithTimeout(d.ctx, d.cfg.WriteTimeout)
			defer cancel()
			return gb.backend.Write(ctx, rec)
		})
		if err != nil {
			d.logWriteError(gb, rec, err)
		}
	}
	d.written.Add(1)
}

// logWriteError logs at most once per constants.ErrorLogInterval per backend
func (d *Dispatcher) logWriteError(gb *guardedBackend, rec Record, err error) {
	total := gb.errors.Add(1)

	now := d.cfg.now().Unix()
	last := gb.lastErrorLogged.Load()
	if now-last < int64(constants.ErrorLogInterval/time.Second) {
		return
	}
	if !gb.lastErrorLogged.CompareAndSwap(last, now) {
		return
	}
	logger.Error("Failed to write audit record",
		"backend", gb.backend.Name(),
		"error", err,
		"mti", rec.MTI,
		"direction", rec.Direction,
		"total_errors", total,
		"breaker_state", gb.breaker.State().String())
}
