package monitoring

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestEndpoints(t *testing.T) {
	m, err := New(config.Monitoring{MetricEnabled: true, ProfilingEnabled: true, URLPrefix: "/bridge"}, logger.Nop())
	require.NoError(t, err)
	m.Run()
	defer func() { _ = m.Shutdown(context.Background()) }()

	code, body := get(t, "http://"+m.Addr()+"/bridge/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")

	code, _ = get(t, "http://"+m.Addr()+"/bridge/debug/pprof/heap")
	assert.Equal(t, http.StatusOK, code)
}

func TestMetricsOnly(t *testing.T) {
	m, err := New(config.Monitoring{MetricEnabled: true}, logger.Nop())
	require.NoError(t, err)
	m.Run()
	defer func() { _ = m.Shutdown(context.Background()) }()

	code, _ := get(t, "http://"+m.Addr()+"/debug/pprof/heap")
	assert.Equal(t, http.StatusNotFound, code)
}
