package metrics

import (
	"testing"

	"github.com/apandit646/droploc/types"
	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	metrics := NewNop()

	require.NotNil(t, metrics)
	require.IsType(t, &NopMetrics{}, metrics)
}

func TestNopMetrics_AllMethods(t *testing.T) {
	metrics := NewNop()

	// Should not panic with any input
	require.NotPanics(t, func() {
		metrics.RecordConnectionTransition(types.ConnectionDisconnected, types.ConnectionConnected)
		metrics.RecordConnectionTransition(types.ConnectionState(99), types.ConnectionState(-1))
		metrics.RecordConnectAttempt(true, 0.2)
		metrics.RecordConnectAttempt(false, -1)
		metrics.RecordCellChange()
		metrics.RecordActiveSubscriptions(1)
		metrics.RecordCandidateSnapshot(0)
		metrics.RecordMalformedMessage("candidates")
		metrics.RecordHeartbeat("skipped")
		metrics.RecordEnqueue()
		metrics.RecordResolution(types.ResolutionExpired, 7)
		metrics.RecordQueueDepth(-3)
		metrics.RecordLookup(false, false, 0)
	})
}

func TestNopMetrics_ImplementsInterface(t *testing.T) {
	var _ types.MetricsCollector = NewNop()
}
