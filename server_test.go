package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServer(t *testing.T, src *fakeSource, cfg *Config) *httptest.Server {
	t.Helper()
	log := zap.NewNop()
	c := testCollector(src, &fakeFacts{})
	stream := newBroadcaster(c, time.Second, log)
	srv := newServer(cfg, c, stream, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthEndpoint(t *testing.T) {
	ts := testServer(t, twoCoreSource(), defaultConfig())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := testServer(t, twoCoreSource(), defaultConfig())

	resp, err := http.Get(ts.URL + "/api/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap SystemMetrics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "testhost", snap.Hostname)
	assert.Equal(t, len(snap.CPUUsage), snap.CPUCount)
	assert.Positive(t, snap.Timestamp)
}

func TestMetricsEndpointFailure(t *testing.T) {
	src := twoCoreSource()
	src.cpuErr = errors.New("counters unreadable")
	ts := testServer(t, src, defaultConfig())

	resp, err := http.Get(ts.URL + "/api/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["error"])
}

func TestEnvEndpoint(t *testing.T) {
	t.Setenv("BTOPQ_TEST_PLAIN", "visible")
	ts := testServer(t, twoCoreSource(), defaultConfig())

	resp, err := http.Get(ts.URL + "/api/env")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var vars map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vars))
	assert.Equal(t, "visible", vars["BTOPQ_TEST_PLAIN"])
}

func TestEnvEndpointRedaction(t *testing.T) {
	t.Setenv("BTOPQ_TEST_API_SECRET", "hunter2")
	t.Setenv("BTOPQ_TEST_PLAIN", "visible")
	cfg := defaultConfig()
	cfg.EnvRedact = []string{"secret"}
	ts := testServer(t, twoCoreSource(), cfg)

	resp, err := http.Get(ts.URL + "/api/env")
	require.NoError(t, err)
	defer resp.Body.Close()

	var vars map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vars))
	assert.Equal(t, redactedValue, vars["BTOPQ_TEST_API_SECRET"])
	assert.Equal(t, "visible", vars["BTOPQ_TEST_PLAIN"])
}

func TestCORSHeaders(t *testing.T) {
	ts := testServer(t, twoCoreSource(), defaultConfig())

	resp, err := http.Get(ts.URL + "/api/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/metrics", nil)
	require.NoError(t, err)
	preflight, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	preflight.Body.Close()
	assert.Equal(t, http.StatusNoContent, preflight.StatusCode)
	assert.Equal(t, "GET, OPTIONS", preflight.Header.Get("Access-Control-Allow-Methods"))
}

func TestPrometheusEndpoint(t *testing.T) {
	ts := testServer(t, twoCoreSource(), defaultConfig())

	// Drive one poll so the counters exist with nonzero values.
	resp, err := http.Get(ts.URL + "/api/metrics")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
