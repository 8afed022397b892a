// Package lobby implements the pre-game room where clients declare a display
// name and toggle readiness.
//
// The Room tracks members in join order together with their ready flag and
// broadcasts membership and readiness changes through a protocol.Outbox.
// After every readiness change or departure it runs the readiness barrier:
// with at least two members all flagged ready, every member receives a
// start_game signal. The barrier fires again on each satisfying event; it
// does not remember that it already fired.
//
// A Room is not safe for concurrent use. The relay server only touches it
// from its event loop.
package lobby
