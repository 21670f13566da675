// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/apandit646/droploc/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	eng, err := droploc.NewEngine(&cfg, transport, resolver, creds, droploc.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// SessionMetrics implementation

// RecordConnectionTransition discards the metric.
func (n *NopMetrics) RecordConnectionTransition(_, _ types.ConnectionState) {}

// RecordConnectAttempt discards the metric.
func (n *NopMetrics) RecordConnectAttempt(_ bool, _ float64) {}

// SubscriptionMetrics implementation

// RecordCellChange discards the metric.
func (n *NopMetrics) RecordCellChange() {}

// RecordActiveSubscriptions discards the metric.
func (n *NopMetrics) RecordActiveSubscriptions(_ int) {}

// RecordCandidateSnapshot discards the metric.
func (n *NopMetrics) RecordCandidateSnapshot(_ int) {}

// RecordMalformedMessage discards the metric.
func (n *NopMetrics) RecordMalformedMessage(_ string) {}

// HeartbeatMetrics implementation

// RecordHeartbeat discards the metric.
func (n *NopMetrics) RecordHeartbeat(_ string) {}

// QueueMetrics implementation

// RecordEnqueue discards the metric.
func (n *NopMetrics) RecordEnqueue() {}

// RecordResolution discards the metric.
func (n *NopMetrics) RecordResolution(_ types.Resolution, _ float64) {}

// RecordQueueDepth discards the metric.
func (n *NopMetrics) RecordQueueDepth(_ int) {}

// LookupMetrics implementation

// RecordLookup discards the metric.
func (n *NopMetrics) RecordLookup(_, _ bool, _ float64) {}
