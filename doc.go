// Package droploc is the client-side location sync and notification engine of a
// ride-hailing app.
//
// An Engine keeps one actor (a rider or a driver) in sync with the dispatch backend
// over a publish/subscribe transport. It publishes the actor's position on a fixed
// cadence, follows the actor across geospatial cells by moving a single location
// subscription, ranks the candidates broadcast in the current cell by distance, and
// shows incoming ride requests one at a time with an expiry window.
//
// # Quick Start
//
//	cfg := droploc.DefaultConfig()
//	cfg.API.BaseURL = "http://dispatch.local:8080"
//
//	transport := natstransport.New(nats.DefaultURL)
//	creds := credentials.NewStatic(token, "driver@example.com")
//	resolver := geocell.NewHTTPResolver(cfg.API.BaseURL, creds)
//
//	eng, err := droploc.NewEngine(&cfg, transport, resolver, creds,
//	    droploc.WithHooks(&droploc.Hooks{
//	        OnDisplay: func(ctx context.Context, ev droploc.RideRequestEvent, deadline time.Time) error {
//	            return ui.Show(ev, deadline)
//	        },
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop(context.Background())
//
//	if err := eng.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	eng.UpdatePosition(droploc.Position{Latitude: 19.07, Longitude: 72.87})
//
// # Architecture
//
// Every component is owned by a single event loop. Public methods post closures to
// the loop and wait for them; transport deliveries, lookup completions and timers
// post back into the same loop, and each carries a generation number so anything
// belonging to a superseded subscription, sample or display is dropped on arrival.
// The heartbeat is the only component with its own goroutine; it reads an immutable
// snapshot published by the loop.
//
// The connection is never re-established automatically. After a loss the Engine
// reports ConnectionLost and waits for the next Connect.
//
// # Transports
//
//   - transport/natstransport: NATS core pub/sub, topics mapped to subjects
//   - transport/stomp: STOMP 1.2 over a WebSocket, the reference backend's wire
//   - testing.MemoryBroker: in-process broker for tests
//
// # Cell Sources
//
//   - lookup: REST lookup through a Resolver, cached per quantized position
//   - geohash, s2: computed locally
//   - push: assigned by the server on a per-actor topic
package droploc
