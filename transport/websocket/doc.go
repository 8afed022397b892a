// Package websocket carries relay traffic over WebSocket connections.
//
// Each upgraded connection becomes a Client with two goroutines:
//   - readPump forwards every inbound frame to the relay and reports the
//     disconnect when the socket ends
//   - writePump drains the client's send queue, one frame per message,
//     and keeps the peer alive with pings
//
// Clients never block the relay. A client whose send queue is full is
// closed and treated like any other disconnect.
//
// Usage:
//
//	srv := relay.NewServer(relay.Options{})
//	go srv.Run(ctx)
//
//	router.Handle("/ws", websocket.NewHandler(srv, websocket.Options{}))
package websocket
