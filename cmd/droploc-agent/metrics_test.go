package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apandit646/droploc/internal/logging"
	"github.com/apandit646/droploc/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMetricsServer_Handlers(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewPrometheus(reg, "droploc")
	collector.RecordCellChange()

	srv := NewMetricsServer("127.0.0.1:0", reg, logging.NewNop())

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK\n", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "droploc_")
}

func TestMetricsServer_RunStopsOnCancel(t *testing.T) {
	srv := NewMetricsServer("127.0.0.1:0", prometheus.NewRegistry(), logging.NewNop())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
}
