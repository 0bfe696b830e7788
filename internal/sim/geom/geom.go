package geom

import (
	"fmt"
	"math"
)

// Location is a block coordinate in a named world. It is comparable and is
// used directly as a map key.
type Location struct {
	World string
	X     int
	Y     int
	Z     int
}

func (l Location) ToArray() [3]int { return [3]int{l.X, l.Y, l.Z} }

func (l Location) String() string {
	return fmt.Sprintf("%d, %d, %d in %s", l.X, l.Y, l.Z, l.World)
}

// TeleportPoint is the standing spot on top of the block at l.
func (l Location) TeleportPoint() Position {
	return Position{
		World: l.World,
		X:     float64(l.X) + 0.5,
		Y:     float64(l.Y) + 1,
		Z:     float64(l.Z) + 0.5,
	}
}

// Offset returns the location moved by the given deltas.
func (l Location) Offset(dx, dy, dz int) Location {
	return Location{World: l.World, X: l.X + dx, Y: l.Y + dy, Z: l.Z + dz}
}

// Position is a precise point in a world (player feet, effect origin).
type Position struct {
	World string
	X     float64
	Y     float64
	Z     float64
}

func (p Position) ToArray() [3]float64 { return [3]float64{p.X, p.Y, p.Z} }

func (p Position) Add(dx, dy, dz float64) Position {
	return Position{World: p.World, X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// Block truncates p to the block that contains it.
func (p Position) Block() Location { return BlockOf(p) }

// BlockOf floors every axis, so -0.5 lands in block -1.
func BlockOf(p Position) Location {
	return Location{
		World: p.World,
		X:     int(math.Floor(p.X)),
		Y:     int(math.Floor(p.Y)),
		Z:     int(math.Floor(p.Z)),
	}
}

// SameBlock reports whether a and b are in the same world and block.
func SameBlock(a, b Position) bool { return BlockOf(a) == BlockOf(b) }

func FromArray(world string, v [3]float64) Position {
	return Position{World: world, X: v[0], Y: v[1], Z: v[2]}
}

func LocationFromArray(world string, v [3]int) Location {
	return Location{World: world, X: v[0], Y: v[1], Z: v[2]}
}
