package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/endorses/paycat/internal/pkg/audit"
	"github.com/endorses/paycat/internal/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)

func seededStore(t *testing.T, n int) *audit.MemoryStore {
	t.Helper()
	store := audit.NewMemoryStore(2000)
	for i := 0; i < n; i++ {
		require.NoError(t, store.Write(context.Background(), audit.Record{
			ID:        fmt.Sprint(i),
			Direction: audit.Received,
			MTI:       "0100",
			STAN:      fmt.Sprintf("%06d", i),
			Timestamp: testNow.Add(-time.Duration(i) * time.Minute),
		}))
	}
	return store
}

func newTestServer(store audit.Querier) *Server {
	s := New(Config{}, store, stats.NewCollector())
	s.now = func() time.Time { return testNow }
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(audit.NewMemoryStore(10)).Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"paycat"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatus(t *testing.T) {
	rec := get(t, newTestServer(seededStore(t, 3)).Handler(), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status audit.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "RUNNING", status.Status)
	assert.Equal(t, int64(3), status.TransactionsProcessed)
}

func TestTransactions_Limit(t *testing.T) {
	h := newTestServer(seededStore(t, 1200)).Handler()

	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"?limit=5", 5},
		{"?limit=5000", 1000},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := get(t, h, "/api/transactions"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			var records []audit.Record
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
			assert.Len(t, records, tt.want)
		})
	}

	for _, bad := range []string{"abc", "0", "-3"} {
		rec := get(t, h, "/api/transactions?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestTransactions_EmptyIsArray(t *testing.T) {
	rec := get(t, newTestServer(audit.NewMemoryStore(10)).Handler(), "/api/transactions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestStats_CountsByHour(t *testing.T) {
	rec := get(t, newTestServer(seededStore(t, 90)).Handler(), "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var byHour map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byHour))
	// 12:30 back to 11:01 spans the 12:00, 11:00 hours
	assert.Equal(t, int64(31), byHour["2026-10-19 12:00"])
	assert.Equal(t, int64(59), byHour["2026-10-19 11:00"])
}

func TestSwitchCounters(t *testing.T) {
	collector := stats.NewCollector()
	collector.SessionOpened()
	collector.ResponseSent("00")
	s := New(Config{}, audit.NewMemoryStore(10), collector)

	rec := get(t, s.Handler(), "/api/switch")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["active_sessions"])
	assert.EqualValues(t, 1, body["approved"])
	process, ok := body["process"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, -1, process["cpu_percent"])

	rec = get(t, New(Config{}, audit.NewMemoryStore(10), nil).Handler(), "/api/switch")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptionsPreflight(t *testing.T) {
	h := newTestServer(audit.NewMemoryStore(10)).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/transactions", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}

type failingQuerier struct{}

func (failingQuerier) Status(context.Context) (audit.Status, error) {
	return audit.Status{}, errors.New("db down")
}

func (failingQuerier) Recent(context.Context, int) ([]audit.Record, error) {
	return nil, errors.New("db down")
}

func (failingQuerier) CountsByHour(context.Context, time.Time) ([]audit.HourlyCount, error) {
	return nil, errors.New("db down")
}

func TestQueryFailureIs500(t *testing.T) {
	h := newTestServer(failingQuerier{}).Handler()
	for _, path := range []string{"/api/status", "/api/transactions", "/api/stats"} {
		rec := get(t, h, path)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "db down", path)
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := New(Config{ListenAddr: "127.0.0.1:0"}, audit.NewMemoryStore(10), nil)
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
	_, err = http.Get("http://" + s.Addr().String() + "/healthz")
	assert.Error(t, err)
}
