package testing

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// StartEmbeddedNATS starts an in-process NATS server and returns it with a connected
// observer client.
//
// The observer client plays the server side of the location protocol in tests: it
// publishes candidate snapshots and notifications and subscribes to heartbeat topics.
// Both the server and the client are shut down through t.Cleanup.
//
// Parameters:
//   - t: Testing context for logging and cleanup
//
// Returns:
//   - *server.Server: The embedded NATS server instance (ClientURL() for dialing)
//   - *nats.Conn: Observer connection (closed automatically on test completion)
//
// Example:
//
//	func TestTransport(t *testing.T) {
//	    ns, observer := droploctest.StartEmbeddedNATS(t)
//	    tr := natstransport.New(ns.ClientURL())
//	    // ...
//	}
func StartEmbeddedNATS(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	ns := startServer(t)

	nc, err := nats.Connect(ns.ClientURL(),
		nats.Timeout(2*time.Second),
		nats.NoReconnect(),
	)
	if err != nil {
		ns.Shutdown()
		t.Fatalf("Failed to connect to embedded NATS server: %v", err)
	}

	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns, nc
}

// startServer creates a server on a random loopback port and waits until it accepts clients.
func startServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:  "127.0.0.1",
		Port:  -1,
		NoLog: true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create embedded NATS server: %v", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("Embedded NATS server not ready within timeout")
	}

	return ns
}

// FlushObserver waits until the server has processed everything the observer sent,
// so that subsequent deliveries are ordered after earlier subscriptions.
func FlushObserver(t *testing.T, nc *nats.Conn) {
	t.Helper()

	if err := nc.FlushTimeout(2 * time.Second); err != nil {
		t.Fatalf("Failed to flush observer connection: %v", err)
	}
}
