// Package switchd assembles a running switch from its configuration: field
// dictionary, codec, framer, processor, session listener, audit pipeline
// and query API.
package switchd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/endorses/paycat/internal/pkg/api"
	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/endorses/paycat/internal/pkg/audit"
	"github.com/endorses/paycat/internal/pkg/constants"
	"github.com/endorses/paycat/internal/pkg/logger"
	"github.com/endorses/paycat/internal/pkg/server"
	"github.com/endorses/paycat/internal/pkg/stats"
	"github.com/endorses/paycat/internal/pkg/sysmetrics"
	"github.com/endorses/paycat/internal/pkg/tlsutil"
	"github.com/endorses/paycat/internal/pkg/txn"
)

// Config is the complete switch configuration
type Config struct {
	ListenAddr        string
	MaxSessions       int
	HeaderLength      int
	Framing           string
	MaxFrameSize      int
	ApprovalCeiling   int64
	ProcessingTimeout time.Duration
	IdleTimeout       time.Duration
	WriteTimeout      time.Duration
	DictionaryPath    string // YAML field dictionary; empty uses the built-in one
	HealthListenAddr  string
	StatsInterval     time.Duration

	TLSEnabled bool
	TLS        tlsutil.ServerConfig

	Audit AuditConfig

	APIListenAddr string // empty disables the query API
}

// AuditConfig selects the audit backends. The memory store is always on.
type AuditConfig struct {
	QueueSize      int
	MemoryCapacity int
	PostgresDSN    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	PcapFile       string
}

// Switch is an assembled, not yet started switch
type Switch struct {
	config Config

	Codec      *as2805.Codec
	Framer     *as2805.Framer
	Processor  *txn.Processor
	Stats      *stats.Collector
	Memory     *audit.MemoryStore
	Dispatcher *audit.Dispatcher

	server  *server.Server
	api     *api.Server
	sampler *sysmetrics.Sampler

	statsCancel context.CancelFunc
}

// New builds every component and opens the configured audit backends
func New(ctx context.Context, cfg Config) (*Switch, error) {
	dict := as2805.DefaultDictionary()
	if cfg.DictionaryPath != "" {
		d, err := as2805.LoadDictionary(cfg.DictionaryPath)
		if err != nil {
			return nil, err
		}
		dict = d
		logger.Info("Loaded field dictionary", "path", cfg.DictionaryPath, "fields", dict.Len())
	}
	if cfg.HeaderLength < 0 {
		return nil, fmt.Errorf("header length must not be negative: %d", cfg.HeaderLength)
	}

	format, err := as2805.ParseFrameFormat(cfg.Framing)
	if err != nil {
		return nil, err
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = constants.DefaultMaxFrameSize
	}

	sw := &Switch{
		config:    cfg,
		Codec:     as2805.NewCodec(dict, as2805.WithHeaderLength(cfg.HeaderLength)),
		Framer:    as2805.NewFramer(format, cfg.MaxFrameSize),
		Processor: txn.New(txn.Config{ApprovalCeiling: cfg.ApprovalCeiling}),
		Stats:     stats.NewCollector(),
		Memory:    audit.NewMemoryStore(cfg.Audit.MemoryCapacity),
		sampler:   sysmetrics.NewSampler(sysmetrics.DefaultInterval),
	}
	sw.Stats.SetUsageSource(sw.sampler)

	backends, querier, err := openBackends(ctx, cfg.Audit, sw.Memory)
	if err != nil {
		return nil, err
	}
	sw.Dispatcher = audit.NewDispatcher(audit.DispatcherConfig{QueueSize: cfg.Audit.QueueSize}, backends...)

	srvCfg := server.Config{
		ListenAddr:        cfg.ListenAddr,
		MaxSessions:       cfg.MaxSessions,
		ProcessingTimeout: cfg.ProcessingTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		HealthListenAddr:  cfg.HealthListenAddr,
	}
	if cfg.TLSEnabled {
		tlsConfig, err := tlsutil.BuildServerConfig(cfg.TLS)
		if err != nil {
			closeAll(backends)
			return nil, err
		}
		srvCfg.TLSConfig = tlsConfig
		srvCfg.HealthCreds, err = tlsutil.BuildServerCredentials(cfg.TLS)
		if err != nil {
			closeAll(backends)
			return nil, err
		}
	}

	sw.server = server.New(srvCfg, server.Deps{
		Codec:     sw.Codec,
		Framer:    sw.Framer,
		Processor: sw.Processor,
		Sink:      sw.Dispatcher,
		Stats:     sw.Stats,
	})
	if cfg.APIListenAddr != "" {
		sw.api = api.New(api.Config{ListenAddr: cfg.APIListenAddr}, querier, sw.Stats)
	}
	return sw, nil
}

// openBackends returns the audit backends and the store that answers queries:
// Postgres when configured, the memory store otherwise
func openBackends(ctx context.Context, cfg AuditConfig, memory *audit.MemoryStore) ([]audit.Backend, audit.Querier, error) {
	backends := []audit.Backend{memory}
	var querier audit.Querier = memory

	if cfg.PostgresDSN != "" {
		pg, err := audit.OpenPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		backends = append(backends, pg)
		querier = pg
	}
	if cfg.RedisAddr != "" {
		rc, err := audit.OpenRedisCounters(ctx, audit.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			closeAll(backends)
			return nil, nil, err
		}
		backends = append(backends, rc)
	}
	if cfg.PcapFile != "" {
		pr, err := audit.NewPcapRecorder(cfg.PcapFile)
		if err != nil {
			closeAll(backends)
			return nil, nil, err
		}
		backends = append(backends, pr)
	}
	return backends, querier, nil
}

func closeAll(backends []audit.Backend) {
	for _, b := range backends {
		_ = b.Close()
	}
}

// Start starts the audit pipeline, the session listener and the query API
func (s *Switch) Start(ctx context.Context) error {
	s.Dispatcher.Start(ctx)

	if err := s.server.Start(ctx); err != nil {
		s.Dispatcher.Stop()
		return err
	}
	if s.api != nil {
		if err := s.api.Start(ctx); err != nil {
			_ = s.server.Shutdown(ctx)
			s.Dispatcher.Stop()
			return err
		}
	}

	statsCtx, cancel := context.WithCancel(ctx)
	s.statsCancel = cancel
	s.sampler.Start(statsCtx)
	go s.Stats.Run(statsCtx, s.config.StatsInterval)
	return nil
}

// Addr is the terminal listener address
func (s *Switch) Addr() net.Addr {
	return s.server.Addr()
}

// HealthAddr is the gRPC health address, or nil when disabled
func (s *Switch) HealthAddr() net.Addr {
	return s.server.HealthAddr()
}

// APIAddr is the query API address, or nil when disabled
func (s *Switch) APIAddr() net.Addr {
	if s.api == nil {
		return nil
	}
	return s.api.Addr()
}

// Sessions lists the open terminal connections
func (s *Switch) Sessions() []server.SessionInfo {
	return s.server.Sessions()
}

// Shutdown stops accepting, closes sessions, stops the API and drains the
// audit pipeline
func (s *Switch) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.api != nil {
		if err := s.api.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
	}
	if s.statsCancel != nil {
		s.statsCancel()
		s.sampler.Stop()
	}
	s.Dispatcher.Stop()

	st := s.Stats.Get()
	logger.Info("Final switch statistics",
		"accepted_sessions", st.AcceptedSessions,
		"transactions", st.Transactions(),
		"approved", st.Approved,
		"declined", st.Declined,
		"system_errors", st.SystemErrors,
		"rss_bytes", st.Process.RSSBytes,
		"audit_dropped", s.Dispatcher.Stats().Dropped)
	return errors.Join(errs...)
}
