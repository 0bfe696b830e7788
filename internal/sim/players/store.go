package players

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Store holds the loaded player states. It is not safe for concurrent use;
// callers serialise access on the tick loop.
type Store struct {
	now     func() time.Time
	players map[uuid.UUID]*State
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now, players: map[uuid.UUID]*State{}}
}

// Get returns the player's state, creating it on first access.
func (s *Store) Get(player uuid.UUID) *State {
	st := s.players[player]
	if st == nil {
		st = newState(player)
		s.players[player] = st
	}
	return st
}

func (s *Store) Has(player uuid.UUID) bool {
	_, ok := s.players[player]
	return ok
}

// Unload forgets the in-memory state. Persisted state is untouched.
func (s *Store) Unload(player uuid.UUID) { delete(s.players, player) }

func (s *Store) Loaded() int { return len(s.players) }

// All returns every loaded state ordered by player id.
func (s *Store) All() []*State {
	out := make([]*State, 0, len(s.players))
	for _, st := range s.players {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID.String() < out[j].PlayerID.String() })
	return out
}

// Restore installs a state read from a snapshot, replacing any loaded one.
func (s *Store) Restore(player uuid.UUID, registered []uuid.UUID, customNames map[uuid.UUID]string, lastTeleport time.Time) *State {
	st := newState(player)
	for _, id := range registered {
		st.register(id)
	}
	for id, name := range customNames {
		if st.IsRegistered(id) {
			st.setCustomName(id, name)
		}
	}
	st.LastTeleportAt = lastTeleport
	s.players[player] = st
	return st
}

func (s *Store) RegisterTotem(player, totemID uuid.UUID) bool {
	return s.Get(player).register(totemID)
}

func (s *Store) UnregisterTotem(player, totemID uuid.UUID) bool {
	return s.Get(player).unregister(totemID)
}

func (s *Store) IsRegistered(player, totemID uuid.UUID) bool {
	return s.Get(player).IsRegistered(totemID)
}

// UnregisterFromAll removes a destroyed totem from every loaded player and
// returns how many players had it.
func (s *Store) UnregisterFromAll(totemID uuid.UUID) int {
	n := 0
	for _, st := range s.players {
		if st.unregister(totemID) {
			n++
		}
	}
	return n
}

// SetCustomName stores a per-player label; an empty name clears it.
func (s *Store) SetCustomName(player, totemID uuid.UUID, name string) {
	s.Get(player).setCustomName(totemID, name)
}

func (s *Store) CustomName(player, totemID uuid.UUID) (string, bool) {
	return s.Get(player).CustomName(totemID)
}

// DisplayName is the custom name if set, else fallback.
func (s *Store) DisplayName(player, totemID uuid.UUID, fallback string) string {
	if n, ok := s.CustomName(player, totemID); ok {
		return n
	}
	return fallback
}

func (s *Store) CanTeleport(player uuid.UUID, cooldown time.Duration) bool {
	last := s.Get(player).LastTeleportAt
	if last.IsZero() {
		return true
	}
	return s.now().Sub(last) >= cooldown
}

// RemainingCooldown is floored to whole seconds and never negative.
func (s *Store) RemainingCooldown(player uuid.UUID, cooldown time.Duration) time.Duration {
	last := s.Get(player).LastTeleportAt
	if last.IsZero() {
		return 0
	}
	rem := cooldown - s.now().Sub(last)
	if rem <= 0 {
		return 0
	}
	return rem.Truncate(time.Second)
}

func (s *Store) MarkTeleported(player uuid.UUID) {
	s.Get(player).LastTeleportAt = s.now()
}

// RequestBreak starts (or overwrites) the player's pending break.
func (s *Store) RequestBreak(player, totemID uuid.UUID) {
	st := s.Get(player)
	st.pendingBreak = totemID
	st.pendingBreakAt = s.now()
}

func (s *Store) IsPendingFor(player, totemID uuid.UUID) bool {
	st := s.Get(player)
	return st.HasPendingBreak() && st.pendingBreak == totemID
}

// IsExpired is true only when a break is pending and strictly more than
// window has elapsed since it was requested.
func (s *Store) IsExpired(player uuid.UUID, window time.Duration) bool {
	st := s.Get(player)
	if !st.HasPendingBreak() {
		return false
	}
	return s.now().Sub(st.pendingBreakAt) > window
}

func (s *Store) ClearPending(player uuid.UUID) { s.Get(player).clearPending() }

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
