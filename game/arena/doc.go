// Package arena implements the registry of players taking part in the
// active game session.
//
// The arena package implements:
//   - Player entry with color assignment and a random spawn point
//   - Catch-up and join notices between entering and existing players
//   - Relay of gameplay messages to every other active player
//   - game_over fan-out to every active player
//   - The item table and the spawn tick driven by a Scheduler
//
// Scheduler Lifecycle:
//
// The arena starts its scheduler when an entry brings the population to one.
// Departures never stop it; the next tick observes an empty arena, stops the
// scheduler and clears the item table. A new entry before that tick restarts
// the scheduler, replacing the pending activation.
//
// Concurrency:
//
// An Arena is not safe for concurrent use. The relay server only touches it
// from its event loop, including scheduler ticks.
package arena
