package world

import (
	"errors"
	"math/rand/v2"
	"time"
)

// DefaultWidth and DefaultHeight describe the square world the game client
// ships with.
const (
	DefaultWidth  = 5000
	DefaultHeight = 5000
)

var ErrEmptyBounds = errors.New("world bounds are empty")

// Point represents x,y coordinates in world space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is the rectangular world extent. Max values are exclusive for
// random placement.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// DefaultBounds returns the default world rectangle anchored at the origin
func DefaultBounds() Bounds {
	return Bounds{MinX: 0, MaxX: DefaultWidth, MinY: 0, MaxY: DefaultHeight}
}

// NewBounds builds bounds anchored at the origin with the given size
func NewBounds(width, height float64) Bounds {
	return Bounds{MinX: 0, MaxX: width, MinY: 0, MaxY: height}
}

// Validate reports whether the rectangle has a positive area
func (b Bounds) Validate() error {
	if b.MaxX <= b.MinX || b.MaxY <= b.MinY {
		return ErrEmptyBounds
	}
	return nil
}

// Contains reports whether p lies inside the rectangle
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.MinX && p.X < b.MaxX && p.Y >= b.MinY && p.Y < b.MaxY
}

// RandomPoint draws a point uniformly over the rectangle
func (b Bounds) RandomPoint(rng *rand.Rand) Point {
	return Point{
		X: rng.Float64()*(b.MaxX-b.MinX) + b.MinX,
		Y: rng.Float64()*(b.MaxY-b.MinY) + b.MinY,
	}
}

// NewRand returns a time-seeded source for use by a single goroutine
func NewRand() *rand.Rand {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}
