package totem

import (
	"time"

	"github.com/google/uuid"

	"totemcraft.ai/internal/sim/geom"
)

// Totem is a named, owned teleport waypoint bound to one block.
type Totem struct {
	ID        uuid.UUID
	Owner     uuid.UUID
	Name      string
	Location  geom.Location
	Marker    string
	CreatedAt time.Time
}

func (t Totem) TeleportPoint() geom.Position { return t.Location.TeleportPoint() }

func (t Totem) OwnedBy(player uuid.UUID) bool { return t.Owner == player }
