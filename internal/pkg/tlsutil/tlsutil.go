// Package tlsutil builds TLS configuration for the terminal link and the
// gRPC health service.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/endorses/paycat/internal/pkg/logger"
	"google.golang.org/grpc/credentials"
)

// ServerConfig contains configuration for building server TLS settings
type ServerConfig struct {
	CertFile   string // Path to server certificate
	KeyFile    string // Path to server private key
	CAFile     string // Path to CA certificate (for client authentication)
	ClientAuth bool   // Require client certificate authentication (mutual TLS)
}

// ClientConfig contains configuration for building client TLS settings
type ClientConfig struct {
	CAFile             string // Path to CA certificate (for server verification)
	CertFile           string // Path to client certificate (for mutual TLS)
	KeyFile            string // Path to client private key (for mutual TLS)
	SkipVerify         bool   // Skip certificate verification (INSECURE - testing only)
	ServerNameOverride string // Override server name for verification
}

// BuildServerConfig creates the listener TLS configuration. Terminals are
// often older devices, so TLS 1.2 is accepted.
func BuildServerConfig(config ServerConfig) (*tls.Config, error) {
	if config.CertFile == "" || config.KeyFile == "" {
		return nil, fmt.Errorf("TLS enabled but certificate or key file not specified")
	}

	cert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if config.ClientAuth {
		if config.CAFile == "" {
			return nil, fmt.Errorf("client auth enabled but CA file not specified")
		}
		pool, err := loadCertPool(config.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert

		logger.Info("Mutual TLS enabled - requiring client certificates",
			"ca_file", config.CAFile)
	}

	logger.Info("TLS server configuration loaded",
		"cert", config.CertFile,
		"min_version", "TLS 1.2",
		"client_auth", config.ClientAuth)

	return tlsConfig, nil
}

// BuildServerCredentials wraps BuildServerConfig for a gRPC server
func BuildServerCredentials(config ServerConfig) (credentials.TransportCredentials, error) {
	tlsConfig, err := BuildServerConfig(config)
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(tlsConfig), nil
}

// BuildClientConfig creates TLS settings for connecting to the switch
func BuildClientConfig(config ClientConfig) (*tls.Config, error) {
	// #nosec G402 -- InsecureSkipVerify is user-configurable, documented as testing-only
	tlsConfig := &tls.Config{
		InsecureSkipVerify: config.SkipVerify,
		ServerName:         config.ServerNameOverride,
		MinVersion:         tls.VersionTLS12,
	}

	if config.SkipVerify {
		logger.Warn("TLS certificate verification disabled",
			"security_risk", "vulnerable to man-in-the-middle attacks",
			"recommendation", "only use in testing environments")

		if os.Getenv("PAYCAT_PRODUCTION") == "true" {
			return nil, fmt.Errorf("PAYCAT_PRODUCTION=true blocks insecure certificate validation")
		}
	}

	if config.CAFile != "" {
		pool, err := loadCertPool(config.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	if config.CertFile != "" && config.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if config.CertFile != "" || config.KeyFile != "" {
		return nil, fmt.Errorf("both cert_file and key_file must be provided for mutual TLS")
	}

	return tlsConfig, nil
}

// BuildClientCredentials wraps BuildClientConfig for a gRPC client
func BuildClientCredentials(config ClientConfig) (credentials.TransportCredentials, error) {
	tlsConfig, err := BuildClientConfig(config)
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(tlsConfig), nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}
	return pool, nil
}
