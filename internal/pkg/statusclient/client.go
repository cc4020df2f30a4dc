// Package statusclient queries a running switch: the HTTP query API for
// status and recent transactions, and the gRPC health service.
package statusclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/endorses/paycat/internal/pkg/audit"
	"github.com/endorses/paycat/internal/pkg/server"
	"github.com/endorses/paycat/internal/pkg/tlsutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ClientConfig holds configuration for the status client
type ClientConfig struct {
	// APIAddress is the query API, host:port or a full URL
	APIAddress string

	// HealthAddress is the gRPC health endpoint; empty disables health checks
	HealthAddress string

	// TLS settings for the health connection
	TLSEnabled    bool
	TLSCAFile     string
	TLSCertFile   string
	TLSKeyFile    string
	TLSSkipVerify bool

	// Timeout for operations (default: 10s)
	Timeout time.Duration
}

// StatusClient provides methods for querying a remote switch
type StatusClient struct {
	config  ClientConfig
	baseURL string
	http    *http.Client
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	timeout time.Duration
}

// NewStatusClient creates a status client. No connection is made until the
// first call.
func NewStatusClient(config ClientConfig) (*StatusClient, error) {
	if config.APIAddress == "" {
		return nil, fmt.Errorf("API address is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	base := config.APIAddress
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid API address %q: %w", config.APIAddress, err)
	}

	c := &StatusClient{
		config:  config,
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
	}

	if config.HealthAddress != "" {
		var opts []grpc.DialOption
		if config.TLSEnabled {
			creds, err := tlsutil.BuildClientCredentials(tlsutil.ClientConfig{
				CAFile:     config.TLSCAFile,
				CertFile:   config.TLSCertFile,
				KeyFile:    config.TLSKeyFile,
				SkipVerify: config.TLSSkipVerify,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to build TLS credentials: %w", err)
			}
			opts = append(opts, grpc.WithTransportCredentials(creds))
		} else {
			opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		}

		conn, err := grpc.NewClient(config.HealthAddress, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create health client for %s: %w", config.HealthAddress, err)
		}
		c.conn = conn
		c.health = healthpb.NewHealthClient(conn)
	}

	return c, nil
}

// Close releases the health connection
func (c *StatusClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *StatusClient) context(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// GetStatus fetches /api/status
func (c *StatusClient) GetStatus(ctx context.Context) (audit.Status, error) {
	var status audit.Status
	err := c.getJSON(ctx, "/api/status", &status)
	return status, err
}

// GetTransactions fetches up to limit recent audit records, newest first
func (c *StatusClient) GetTransactions(ctx context.Context, limit int) ([]audit.Record, error) {
	var records []audit.Record
	err := c.getJSON(ctx, "/api/transactions?limit="+strconv.Itoa(limit), &records)
	return records, err
}

// GetHourlyCounts fetches /api/stats
func (c *StatusClient) GetHourlyCounts(ctx context.Context) (map[string]int64, error) {
	var counts map[string]int64
	err := c.getJSON(ctx, "/api/stats", &counts)
	return counts, err
}

// CheckHealth queries the switch health service. It returns an error when
// no health address was configured.
func (c *StatusClient) CheckHealth(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	if c.health == nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health address not configured")
	}
	ctx, cancel := c.context(ctx)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: server.HealthService})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus(), nil
}

func (c *StatusClient) getJSON(ctx context.Context, path string, v any) error {
	ctx, cancel := c.context(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
