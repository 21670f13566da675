// Package heartbeat publishes the actor's position on a fixed cadence.
//
// # Design Overview
//
// The heartbeat is the outbound half of location tracking. While a session is
// connected and a position is known, the Publisher sends
//
//	{"token": "<auth token>", "location": {"latitude": ..., "longitude": ...}}
//
// to a fixed topic (app/update-location by default):
//
//   - Active actors publish every 3 seconds
//   - Passive actors (only consuming broadcasts) publish every 30 seconds
//   - The first publish happens as soon as the Publisher starts, not one interval later
//
// # Preconditions
//
// Every tick re-reads its inputs. A tick with no live connection, no position or no
// auth token is skipped: it logs at Debug, records a "skipped" heartbeat metric and
// returns a *types.PreconditionError. Nothing is retried; the next tick simply tries
// again, so a token that disappears mid-run pauses publishing until it returns.
//
// # Publisher Lifecycle
//
//  1. Create with New(topic, interval, snapshot, creds)
//  2. Start(ctx) launches the ticker goroutine
//  3. Stop() cancels the in-flight publish and waits for the goroutine to exit
//
// A stopped Publisher can be started again, which is how reconnects resume the cadence.
//
// Example:
//
//	hb := heartbeat.New("app/update-location", 3*time.Second, engineSnapshot, creds)
//	if err := hb.Start(ctx); err != nil {
//	    return err
//	}
//	defer hb.Stop()
//
// # Thread Safety
//
// The snapshot function is called from the Publisher's goroutine and must not block
// on the caller's event loop. All Publisher methods are safe for concurrent use.
package heartbeat
