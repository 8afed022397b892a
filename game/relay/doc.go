// Package relay owns the arena relay's shared state and runs its event loop.
//
// The relay package implements:
//   - The connection registry, keyed by client id
//   - The single event loop that owns the room, the arena and the registry
//   - Routing of inbound frames by their type discriminator
//   - Connection lifecycle: init on connect, cleanup on disconnect
//   - Status and roster snapshots for operator tooling
//   - The shutdown path: notify, close, clear, then report done
//
// Architecture:
//
// Transports call Connect, Receive and Disconnect from their own goroutines.
// Those calls only enqueue closures; Run executes them one at a time, so the
// registries need no locks. Scheduler ticks and operator queries travel the
// same queue.
//
// Usage:
//
//	srv := relay.NewServer(relay.Options{Bounds: world.DefaultBounds()})
//	go srv.Run(ctx)
//
//	id, err := srv.Connect(conn)
//	srv.Receive(id, frame)
//	srv.Disconnect(id)
//
// Failure Policy:
//
// Malformed frames are logged and dropped. A panic inside any queued closure
// is fatal: Run recovers it, performs the shutdown path and returns the
// error.
package relay
