// Package server is the terminal-facing session listener. It admits up to
// MaxSessions concurrent connections, refusing the rest at accept time, and
// runs one goroutine per connection driving decode, process, encode and
// write for every frame received.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/endorses/paycat/internal/pkg/audit"
	"github.com/endorses/paycat/internal/pkg/constants"
	"github.com/endorses/paycat/internal/pkg/logger"
	"github.com/endorses/paycat/internal/pkg/stats"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported by the gRPC health server
const HealthService = "paycat.Switch"

// Processor computes responses. *txn.Processor is the production implementation.
type Processor interface {
	Process(req *as2805.Message) (*as2805.Message, error)
	Decline(req *as2805.Message) *as2805.Message
	DeclineMTI(mti string) *as2805.Message
}

// Config contains the session listener configuration
type Config struct {
	ListenAddr        string
	MaxSessions       int
	ProcessingTimeout time.Duration // Deadline for decode, process and encode of one request
	IdleTimeout       time.Duration // Close connections silent for this long
	WriteTimeout      time.Duration // Deadline for writing one response

	TLSConfig *tls.Config // Wrap the listener with TLS when set

	HealthListenAddr string                           // Serve grpc.health.v1 when set
	HealthCreds      credentials.TransportCredentials // Optional TLS for the health server
}

// Deps are the collaborators shared by all sessions
type Deps struct {
	Codec     *as2805.Codec
	Framer    *as2805.Framer
	Processor Processor
	Sink      audit.Sink
	Stats     *stats.Collector
}

// Server accepts terminal connections
type Server struct {
	config Config
	deps   Deps

	listener net.Listener
	slots    chan struct{}

	mu       sync.Mutex
	sessions map[string]*session
	closing  bool

	health         *health.Server
	grpcServer     *grpc.Server
	healthListener net.Listener

	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// New creates a server. Zero durations and limits fall back to defaults.
func New(config Config, deps Deps) *Server {
	if config.ListenAddr == "" {
		config.ListenAddr = constants.DefaultListenAddr
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = constants.DefaultMaxSessions
	}
	if config.ProcessingTimeout <= 0 {
		config.ProcessingTimeout = constants.DefaultProcessingTimeout
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = constants.DefaultIdleTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = constants.DefaultWriteTimeout
	}
	if deps.Framer == nil {
		deps.Framer = as2805.NewFramer(as2805.FrameASCII4, constants.DefaultMaxFrameSize)
	}
	if deps.Sink == nil {
		deps.Sink = audit.NopSink{}
	}
	if deps.Stats == nil {
		deps.Stats = stats.NewCollector()
	}

	return &Server{
		config:   config,
		deps:     deps,
		slots:    make(chan struct{}, config.MaxSessions),
		sessions: make(map[string]*session),
	}
}

// Start binds the listeners and begins accepting. It returns once the
// server is ready; use Shutdown to stop it.
func (s *Server) Start(ctx context.Context) error {
	if s.deps.Codec == nil || s.deps.Processor == nil {
		return errors.New("server requires a codec and a processor")
	}

	listener, err := createReuseAddrListener(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	if s.config.TLSConfig != nil {
		listener = tls.NewListener(listener, s.config.TLSConfig)
	}
	s.listener = listener

	if s.config.HealthListenAddr != "" {
		if err := s.startHealth(ctx); err != nil {
			_ = listener.Close()
			return err
		}
	}

	s.wg.Add(1)
	go s.acceptLoop()

	logger.Info("Switch listening",
		"addr", listener.Addr().String(),
		"max_sessions", s.config.MaxSessions,
		"framing", s.deps.Framer.Format().String(),
		"header_length", s.deps.Codec.HeaderLength(),
		"processing_timeout", s.config.ProcessingTimeout,
		"idle_timeout", s.config.IdleTimeout,
		"tls", s.config.TLSConfig != nil)
	return nil
}

// Addr returns the bound terminal address
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// HealthAddr returns the bound health address, or nil when disabled
func (s *Server) HealthAddr() net.Addr {
	if s.healthListener == nil {
		return nil
	}
	return s.healthListener.Addr()
}

func (s *Server) startHealth(ctx context.Context) error {
	l, err := createReuseAddrListener(ctx, "tcp", s.config.HealthListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on health address %s: %w", s.config.HealthListenAddr, err)
	}

	var opts []grpc.ServerOption
	if s.config.HealthCreds != nil {
		opts = append(opts, grpc.Creds(s.config.HealthCreds))
	}
	s.grpcServer = grpc.NewServer(opts...)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	s.healthListener = l

	go func() {
		if err := s.grpcServer.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("Health server stopped", "error", err)
		}
	}()
	logger.Info("gRPC health service listening", "addr", l.Addr().String())
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("Accept failed", "error", err)
			time.Sleep(constants.PollingInterval)
			continue
		}

		select {
		case s.slots <- struct{}{}:
		default:
			s.deps.Stats.SessionRefused()
			logger.Warn("Session limit reached, refusing connection",
				"remote_addr", conn.RemoteAddr().String(),
				"max_sessions", s.config.MaxSessions)
			_ = conn.Close()
			continue
		}

		sess := newSession(s, conn)
		if !s.register(sess) {
			<-s.slots
			_ = conn.Close()
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.slots }()
			defer s.unregister(sess)
			sess.run()
		}()
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) register(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions[sess.id] = sess
	s.deps.Stats.SessionOpened()
	return true
}

func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	s.deps.Stats.SessionClosed()
}

// SessionInfo describes an open connection
type SessionInfo struct {
	ID         string
	RemoteAddr string
	Started    time.Time
	Messages   uint64
}

// Sessions lists the open connections, oldest first
func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// Shutdown stops accepting, closes open sessions and waits for their
// goroutines until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		logger.Info("Switch shutting down")

		s.mu.Lock()
		s.closing = true
		open := make([]*session, 0, len(s.sessions))
		for _, sess := range s.sessions {
			open = append(open, sess)
		}
		s.mu.Unlock()

		if s.health != nil {
			s.health.Shutdown()
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
		for _, sess := range open {
			sess.close()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("sessions still running at shutdown deadline: %w", ctx.Err())
		}

		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		logger.Info("Switch shutdown complete", "closed_sessions", len(open))
	})
	return err
}
