package switchd

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/endorses/paycat/internal/pkg/audit"
	"github.com/endorses/paycat/internal/pkg/client"
	"github.com/endorses/paycat/internal/pkg/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		ListenAddr:       "127.0.0.1:0",
		HealthListenAddr: "127.0.0.1:0",
		APIListenAddr:    "127.0.0.1:0",
		Framing:          "binary2",
		ApprovalCeiling:  5000,
		Audit: AuditConfig{
			MemoryCapacity: 100,
			PcapFile:       filepath.Join(t.TempDir(), "audit.pcap"),
		},
	}
}

func TestSwitch_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	sw, err := New(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, sw.Start(ctx))
	require.NotNil(t, sw.HealthAddr())

	c, err := client.Dial(ctx, sw.Addr().String(), client.Options{Framer: sw.Framer, Codec: sw.Codec, Timeout: 5 * time.Second})
	require.NoError(t, err)

	b := client.NewBuilder(0)
	req, err := b.Build("0200", map[int]string{as2805.FieldAmount: "000000004999"})
	require.NoError(t, err)
	resp, err := c.Send(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, txn.CodeApproved, resp.GetString(as2805.FieldResponseCode))

	req, err = b.Build("0200", map[int]string{as2805.FieldAmount: "000000005000"})
	require.NoError(t, err)
	resp, err = c.Send(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, txn.CodeDoNotHonour, resp.GetString(as2805.FieldResponseCode))
	require.NoError(t, c.Close())

	// audit records reach the query API
	url := "http://" + sw.APIAddr().String() + "/api/transactions"
	require.Eventually(t, func() bool {
		r, err := http.Get(url)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var records []audit.Record
		return json.NewDecoder(r.Body).Decode(&records) == nil && len(records) == 4
	}, 2*time.Second, 20*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, sw.Shutdown(shutdownCtx))

	st := sw.Stats.Get()
	assert.Equal(t, uint64(1), st.Approved)
	assert.Equal(t, uint64(1), st.Declined)
	assert.Equal(t, uint64(4), sw.Dispatcher.Stats().Written)

	info, err := os.Stat(cfg.Audit.PcapFile)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(24), "capture holds packets beyond the file header")
}

func TestSwitch_CustomDictionaryAndHeader(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIListenAddr = ""
	cfg.HealthListenAddr = ""
	cfg.HeaderLength = 5
	cfg.DictionaryPath = filepath.Join(t.TempDir(), "dict.yaml")
	require.NoError(t, os.WriteFile(cfg.DictionaryPath, []byte(`fields:
  - index: 3
    type: N
    length: 6
  - index: 4
    type: N
    length: 12
  - index: 7
    type: N
    length: 10
  - index: 11
    type: N
    length: 6
  - index: 37
    type: AN
    length: 12
  - index: 38
    type: AN
    length: 6
  - index: 39
    type: AN
    length: 2
  - index: 70
    type: N
    length: 3
`), 0600))

	ctx := context.Background()
	sw, err := New(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, sw.Start(ctx))
	defer sw.Shutdown(ctx)
	assert.Nil(t, sw.APIAddr())
	assert.Equal(t, 5, sw.Codec.HeaderLength())

	c, err := client.Dial(ctx, sw.Addr().String(), client.Options{Framer: sw.Framer, Codec: sw.Codec})
	require.NoError(t, err)
	defer c.Close()

	req, err := client.NewBuilder(0).Build("0800", nil)
	require.NoError(t, err)
	req.Header = []byte("HDR01")
	resp, err := c.Send(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "0810", resp.MTI)
	assert.Equal(t, []byte("HDR01"), resp.Header)
}

func TestNew_InvalidConfig(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.Framing = "carrier-pigeon"
	_, err := New(ctx, cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.DictionaryPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(ctx, cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.HeaderLength = -1
	_, err = New(ctx, cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.TLSEnabled = true
	_, err = New(ctx, cfg)
	assert.Error(t, err, "TLS without certificate")

	cfg = testConfig(t)
	cfg.Audit.PcapFile = filepath.Join(t.TempDir(), "no", "such", "dir", "x.pcap")
	_, err = New(ctx, cfg)
	assert.Error(t, err)
}
