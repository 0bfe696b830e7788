package teleport

import (
	"math"

	"github.com/google/uuid"

	"totemcraft.ai/internal/sim/geom"
)

// Effects plays feedback in the world. Failures are the host's concern.
type Effects interface {
	PlaySound(player uuid.UUID, at geom.Position, sound string)
	SpawnParticles(points []geom.Position, particle string)
}

// ringPoints is a ten point circle of radius 0.5 one block above center.
func ringPoints(center geom.Position) []geom.Position {
	const n = 10
	out := make([]geom.Position, 0, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / n
		out = append(out, center.Add(math.Cos(angle)*0.5, 1, math.Sin(angle)*0.5))
	}
	return out
}

// spiralPoints rises two blocks while its radius shrinks from 1 to 0.
func spiralPoints(center geom.Position) []geom.Position {
	out := make([]geom.Position, 0, 21)
	for i := 0; i <= 20; i++ {
		y := float64(i) / 10
		angle := y * math.Pi
		radius := 1 - y/2
		out = append(out, center.Add(math.Cos(angle)*radius, y, math.Sin(angle)*radius))
	}
	return out
}
