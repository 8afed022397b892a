package world

import "math/rand/v2"

// Color is an RGB triple with normalized components
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Palette holds the visually distinct colors handed out before falling back
// to random ones.
var Palette = [...]Color{
	{R: 1, G: 0.5, B: 0.5}, // red
	{R: 0.5, G: 1, B: 0.5}, // green
	{R: 0.5, G: 0.5, B: 1}, // blue
	{R: 1, G: 1, B: 0.5},   // yellow
	{R: 1, G: 0.5, B: 1},   // pink
	{R: 0.5, G: 1, B: 1},   // cyan
}

// AssignColor picks a palette entry not present in inUse, uniformly among the
// free ones. Once the palette is exhausted it returns a random color, which
// may collide with an existing one.
func AssignColor(inUse []Color, rng *rand.Rand) Color {
	free := make([]Color, 0, len(Palette))
	for _, candidate := range Palette {
		taken := false
		for _, used := range inUse {
			if used == candidate {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, candidate)
		}
	}

	if len(free) > 0 {
		return free[rng.IntN(len(free))]
	}

	return Color{R: rng.Float64(), G: rng.Float64(), B: rng.Float64()}
}

// InPalette reports whether c is one of the fixed palette entries
func InPalette(c Color) bool {
	for _, p := range Palette {
		if p == c {
			return true
		}
	}
	return false
}
