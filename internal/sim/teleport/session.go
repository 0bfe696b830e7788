package teleport

import (
	"time"

	"github.com/google/uuid"

	"totemcraft.ai/internal/sim/geom"
	"totemcraft.ai/internal/sim/sched"
	"totemcraft.ai/internal/sim/totem"
)

// Session is one running countdown. Origin is the block the player stood on
// when the countdown started.
type Session struct {
	Player      uuid.UUID
	Destination totem.Totem
	Origin      geom.Location
	Remaining   int
	StartedAt   time.Time

	handle    sched.Handle
	cancelled bool
}

// Observation is what the host reports about the player at a tick.
type Observation struct {
	Online bool
	Block  geom.Location
}

type Step int

const (
	StepCountdown Step = iota
	StepOffline
	StepMoved
	StepArrive
)

func (s Step) String() string {
	switch s {
	case StepCountdown:
		return "countdown"
	case StepOffline:
		return "offline"
	case StepMoved:
		return "moved"
	case StepArrive:
		return "arrive"
	default:
		return "unknown"
	}
}

// Advance is one countdown tick. Checks run in a fixed order: online, moved,
// decrement, then countdown or arrival. An offline or moved player leaves
// Remaining untouched.
func Advance(s Session, obs Observation) (Session, Step) {
	if !obs.Online {
		return s, StepOffline
	}
	if obs.Block != s.Origin {
		return s, StepMoved
	}
	s.Remaining--
	if s.Remaining > 0 {
		return s, StepCountdown
	}
	return s, StepArrive
}
