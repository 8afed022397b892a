// Package world provides the geometry and color primitives shared by the
// arena relay.
//
// The world package implements:
//   - Point and Bounds for the rectangular world extent
//   - Uniform random placement for spawn points and items
//   - RGB colors and the fixed six-entry player palette
//   - Color assignment that keeps active players visually distinct
//
// Randomness:
//
// Every function that draws random values takes a *rand.Rand so callers
// (and tests) control seeding. The relay server owns a single source that is
// only touched from its event loop.
//
// Usage:
//
//	bounds := world.Bounds{MinX: 0, MaxX: 5000, MinY: 0, MaxY: 5000}
//	rng := world.NewRand()
//
//	spawn := bounds.RandomPoint(rng)
//	color := world.AssignColor(inUse, rng)
package world
