// Package client is a terminal-side connection to the switch, used by the
// send command and by integration tests.
package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/endorses/paycat/internal/pkg/constants"
	"github.com/endorses/paycat/internal/pkg/logger"
	"github.com/endorses/paycat/internal/pkg/txn"
)

// ErrMismatchedResponse is returned when a response does not answer the request sent
var ErrMismatchedResponse = errors.New("response does not match request")

// Options configure a Client
type Options struct {
	Codec  *as2805.Codec
	Framer *as2805.Framer

	// TLS enables TLS on the connection when set
	TLS *tls.Config

	// Timeout bounds dialing and each request/response exchange
	Timeout time.Duration
}

// Client holds one connection to the switch. Send may be called from
// several goroutines; exchanges are serialized on the connection.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	opts   Options

	mu sync.Mutex
}

// Dial connects to the switch at addr
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	if opts.Codec == nil {
		opts.Codec = as2805.NewCodec(as2805.DefaultDictionary())
	}
	if opts.Framer == nil {
		opts.Framer = as2805.NewFramer(as2805.FrameASCII4, constants.DefaultMaxFrameSize)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultClientTimeout
	}

	dialer := &net.Dialer{Timeout: opts.Timeout}
	var (
		conn net.Conn
		err  error
	)
	if opts.TLS != nil {
		td := &tls.Dialer{NetDialer: dialer, Config: opts.TLS}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to switch %s: %w", addr, err)
	}

	logger.Debug("Connected to switch", "addr", addr, "tls", opts.TLS != nil)
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		opts:   opts,
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the switch address
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Send encodes req, writes it and waits for the response. The response must
// carry the matching response MTI and, when the request has one, the same STAN.
func (c *Client) Send(ctx context.Context, req *as2805.Message) (*as2805.Message, error) {
	raw, err := c.opts.Codec.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.opts.Framer.WriteFrame(c.conn, raw); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	payload, err := c.opts.Framer.ReadFrame(c.reader)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read response: %w", err)
	}

	resp, err := c.opts.Codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := matches(req, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func matches(req, resp *as2805.Message) error {
	if want := txn.ResponseMTI(req.MTI); resp.MTI != want {
		return fmt.Errorf("%w: MTI %s, want %s", ErrMismatchedResponse, resp.MTI, want)
	}
	if stan, ok := req.Get(as2805.FieldSTAN); ok {
		if got := resp.GetString(as2805.FieldSTAN); got != string(stan) {
			return fmt.Errorf("%w: STAN %s, want %s", ErrMismatchedResponse, got, stan)
		}
	}
	return nil
}
