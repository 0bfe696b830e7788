package players

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the per-player bookmark, cooldown and confirmation state.
type State struct {
	PlayerID uuid.UUID

	registered  map[uuid.UUID]struct{}
	customNames map[uuid.UUID]string

	LastTeleportAt time.Time

	pendingBreak   uuid.UUID
	pendingBreakAt time.Time
}

func newState(id uuid.UUID) *State {
	return &State{
		PlayerID:    id,
		registered:  map[uuid.UUID]struct{}{},
		customNames: map[uuid.UUID]string{},
	}
}

func (s *State) register(totemID uuid.UUID) bool {
	if _, ok := s.registered[totemID]; ok {
		return false
	}
	s.registered[totemID] = struct{}{}
	return true
}

// unregister also drops the custom name, which only exists for registered ids.
func (s *State) unregister(totemID uuid.UUID) bool {
	_, ok := s.registered[totemID]
	delete(s.registered, totemID)
	delete(s.customNames, totemID)
	return ok
}

func (s *State) IsRegistered(totemID uuid.UUID) bool {
	_, ok := s.registered[totemID]
	return ok
}

func (s *State) RegisteredCount() int { return len(s.registered) }

// Registered returns the bookmarked ids in a stable order.
func (s *State) Registered() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.registered))
	for id := range s.registered {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

func (s *State) CustomName(totemID uuid.UUID) (string, bool) {
	n, ok := s.customNames[totemID]
	return n, ok
}

func (s *State) CustomNames() map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(s.customNames))
	for k, v := range s.customNames {
		out[k] = v
	}
	return out
}

func (s *State) setCustomName(totemID uuid.UUID, name string) {
	if strings.TrimSpace(name) == "" {
		delete(s.customNames, totemID)
		return
	}
	s.customNames[totemID] = name
}

func (s *State) HasPendingBreak() bool { return s.pendingBreak != uuid.Nil }

// PendingBreak returns the target and request time of the outstanding break.
func (s *State) PendingBreak() (uuid.UUID, time.Time, bool) {
	return s.pendingBreak, s.pendingBreakAt, s.HasPendingBreak()
}

func (s *State) clearPending() {
	s.pendingBreak = uuid.Nil
	s.pendingBreakAt = time.Time{}
}
