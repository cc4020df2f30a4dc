package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSelfSigned creates a self-signed certificate for 127.0.0.1 and returns
// the cert and key paths
func writeSelfSigned(t *testing.T) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "paycat-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))
	return certPath, keyPath
}

func TestBuildServerConfig(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t)

	cfg, err := BuildServerConfig(ServerConfig{CertFile: certPath, KeyFile: keyPath})
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Equal(t, tls.NoClientCert, cfg.ClientAuth)

	cfg, err = BuildServerConfig(ServerConfig{CertFile: certPath, KeyFile: keyPath, CAFile: certPath, ClientAuth: true})
	require.NoError(t, err)
	assert.Equal(t, tls.RequireAndVerifyClientCert, cfg.ClientAuth)
	assert.NotNil(t, cfg.ClientCAs)

	creds, err := BuildServerCredentials(ServerConfig{CertFile: certPath, KeyFile: keyPath})
	require.NoError(t, err)
	assert.Equal(t, "tls", creds.Info().SecurityProtocol)
}

func TestBuildServerConfig_Errors(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t)

	_, err := BuildServerConfig(ServerConfig{})
	assert.Error(t, err)

	_, err = BuildServerConfig(ServerConfig{CertFile: certPath, KeyFile: keyPath, ClientAuth: true})
	assert.Error(t, err)

	_, err = BuildServerConfig(ServerConfig{CertFile: certPath, KeyFile: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	_, err = BuildServerConfig(ServerConfig{CertFile: certPath, KeyFile: keyPath, CAFile: keyPath, ClientAuth: true})
	assert.Error(t, err, "a key is not a CA certificate")
}

func TestBuildClientConfig(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t)

	cfg, err := BuildClientConfig(ClientConfig{CAFile: certPath, CertFile: certPath, KeyFile: keyPath})
	require.NoError(t, err)
	assert.NotNil(t, cfg.RootCAs)
	assert.Len(t, cfg.Certificates, 1)

	_, err = BuildClientConfig(ClientConfig{CertFile: certPath})
	assert.Error(t, err)

	t.Setenv("PAYCAT_PRODUCTION", "true")
	_, err = BuildClientConfig(ClientConfig{SkipVerify: true})
	assert.Error(t, err)
}
