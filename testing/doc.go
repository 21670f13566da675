// Package testing provides test doubles and fixtures for droploc.
//
// It follows the net/http/httptest convention of a dedicated helper package:
//
//   - MemoryBroker: in-process types.Transport that records every subscribe,
//     unsubscribe and publish, tracks concurrent subscriptions per topic prefix and
//     lets a test deliver server messages or drop the connection
//   - StartEmbeddedNATS: in-process NATS server plus an observer client for
//     exercising the NATS transport end to end
//   - NewTestLogger: types.Logger backed by t.Logf
//
// Example usage:
//
//	import (
//	    "testing"
//	    droploctest "github.com/apandit646/droploc/testing"
//	)
//
//	func TestCellChange(t *testing.T) {
//	    broker := droploctest.NewMemoryBroker()
//	    // dial through broker, then assert on broker.OpsWithPrefix("location/")
//	}
package testing
