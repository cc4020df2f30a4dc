package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/endorses/paycat/internal/pkg/audit"
	"github.com/endorses/paycat/internal/pkg/logger"
	"github.com/google/uuid"
)

// session owns one terminal connection and every message read from it
type session struct {
	id      string
	srv     *Server
	conn    net.Conn
	reader  *bufio.Reader
	log     *slog.Logger
	started time.Time

	remote string
	local  string

	messages  atomic.Uint64
	closeOnce sync.Once
}

func newSession(srv *Server, conn net.Conn) *session {
	id := uuid.NewString()
	remote := conn.RemoteAddr().String()
	return &session{
		id:      id,
		srv:     srv,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		log:     logger.With("session_id", id, "remote_addr", remote),
		started: time.Now(),
		remote:  remote,
		local:   conn.LocalAddr().String(),
	}
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:         s.id,
		RemoteAddr: s.remote,
		Started:    s.started,
		Messages:   s.messages.Load(),
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// run is the read loop. It returns when the peer disconnects, the idle
// timeout fires or a frame cannot be answered.
func (s *session) run() {
	defer s.close()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Recovered from panic in session", "panic", r)
		}
	}()

	s.log.Info("Session opened")
	cfg := s.srv.config

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(cfg.IdleTimeout)); err != nil {
			s.log.Debug("Failed to set read deadline", "error", err)
			return
		}

		payload, err := s.srv.deps.Framer.ReadFrame(s.reader)
		if err != nil {
			s.logReadError(err)
			return
		}
		if len(payload) == 0 {
			continue
		}

		s.messages.Add(1)
		s.srv.deps.Stats.MessageReceived()
		if !s.handle(payload) {
			return
		}
	}
}

func (s *session) logReadError(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		s.log.Info("Session closed by peer", "messages", s.messages.Load())
	case errors.As(err, &netErr) && netErr.Timeout():
		s.log.Info("Session idle timeout", "idle_timeout", s.srv.config.IdleTimeout)
	case errors.Is(err, as2805.ErrFrameTooLarge), errors.Is(err, as2805.ErrBadLengthPrefix):
		s.log.Warn("Invalid frame, closing session", "error", err)
	case errors.Is(err, net.ErrClosed):
		s.log.Debug("Session closed")
	default:
		s.log.Warn("Session read failed", "error", err)
	}
}

// handle answers one frame and reports whether the session may continue
func (s *session) handle(payload []byte) bool {
	deps := s.srv.deps
	start := time.Now()
	deadline := start.Add(s.srv.config.ProcessingTimeout)
	ex := audit.NewExchange(s.id, s.remote, s.local)

	req, err := deps.Codec.Decode(payload)
	if err != nil {
		deps.Stats.DecodeError()
		mti, ok := as2805.RecoveredMTI(err)
		if !ok {
			s.log.Warn("Undecodable frame, closing session without response", "error", err)
			return false
		}

		s.log.Warn("Decode failed, declining and closing session", "error", err, "mti", mti)
		deps.Sink.Record(audit.Received, &as2805.Message{MTI: mti, Raw: payload}, ex)
		if resp := deps.Processor.DeclineMTI(mti); resp != nil {
			raw, err := deps.Codec.Encode(resp)
			if err != nil {
				s.log.Error("Cannot encode decline, closing session", "error", err, "mti", mti)
				return false
			}
			s.write(resp, raw, ex)
		}
		return false
	}

	deps.Sink.Record(audit.Received, req, ex)

	resp, raw, err := s.respond(req, deadline)
	if err != nil {
		s.log.Error("Cannot answer request, closing session",
			"error", err,
			"mti", req.MTI,
			"stan", req.GetString(as2805.FieldSTAN))
		return false
	}

	if !s.write(resp, raw, ex) {
		return false
	}

	s.log.Debug("Exchange complete",
		"mti", req.MTI,
		"response_mti", resp.MTI,
		"stan", resp.GetString(as2805.FieldSTAN),
		"response_code", resp.GetString(as2805.FieldResponseCode),
		"elapsed", time.Since(start))
	return true
}

type outcome struct {
	resp *as2805.Message
	raw  []byte
	err  error

	// unanswerable is set when the processor refused the request outright
	unanswerable bool
}

// respond runs process and encode under the processing deadline. A request
// that misses the deadline, or whose response cannot be encoded, is answered
// with the generic decline.
func (s *session) respond(req *as2805.Message, deadline time.Time) (*as2805.Message, []byte, error) {
	deps := s.srv.deps
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic while processing: %v", r)}
			}
		}()
		resp, err := deps.Processor.Process(req)
		if err != nil {
			done <- outcome{err: err, unanswerable: true}
			return
		}
		raw, err := deps.Codec.Encode(resp)
		done <- outcome{resp: resp, raw: raw, err: err}
	}()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err == nil {
			return out.resp, out.raw, nil
		}
		if out.unanswerable {
			return nil, nil, out.err
		}
		s.log.Warn("Response could not be built, declining",
			"error", out.err,
			"mti", req.MTI)

	case <-timer.C:
		deps.Stats.Timeout()
		s.log.Warn("Processing deadline exceeded, declining",
			"mti", req.MTI,
			"stan", req.GetString(as2805.FieldSTAN),
			"timeout", s.srv.config.ProcessingTimeout)
	}

	resp := deps.Processor.Decline(req)
	if resp == nil {
		return nil, nil, errors.New("no decline for request")
	}
	raw, err := deps.Codec.Encode(resp)
	if err == nil {
		return resp, raw, nil
	}

	// a correlation field itself is unencodable; answer on the MTI alone
	s.log.Warn("Decline could not be encoded, retrying without request fields",
		"error", err,
		"mti", req.MTI)
	resp = deps.Processor.DeclineMTI(req.MTI)
	if resp == nil {
		return nil, nil, fmt.Errorf("encode decline: %w", err)
	}
	if raw, err = deps.Codec.Encode(resp); err != nil {
		return nil, nil, fmt.Errorf("encode decline: %w", err)
	}
	return resp, raw, nil
}

// write sends one framed response and mirrors it to the audit sink
func (s *session) write(resp *as2805.Message, raw []byte, ex audit.Exchange) bool {
	deps := s.srv.deps
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.srv.config.WriteTimeout)); err != nil {
		s.log.Debug("Failed to set write deadline", "error", err)
		return false
	}
	if err := deps.Framer.WriteFrame(s.conn, raw); err != nil {
		s.log.Warn("Failed to write response", "error", err, "mti", resp.MTI)
		return false
	}

	deps.Stats.ResponseSent(resp.GetString(as2805.FieldResponseCode))
	deps.Sink.Record(audit.Sent, resp, ex)
	return true
}
