// Package sandbox is an in-memory block world with connected players. It is
// the host the server runs against: markers are map entries, players are
// positions with an XP level, and effects and messages are recorded.
package sandbox

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"totemcraft.ai/internal/sim/geom"
)

var (
	ErrUnknownPlayer = errors.New("unknown player")
	ErrOffline       = errors.New("player offline")
	ErrNoWorld       = errors.New("location has no world")
)

const effectLogSize = 256

type Player struct {
	ID     uuid.UUID
	Name   string
	Pos    geom.Position
	Level  int
	Online bool
}

type Delivery struct {
	Key  string
	Text string
}

type SoundEvent struct {
	Player uuid.UUID
	At     geom.Position
	Sound  string
}

type ParticleEvent struct {
	Points   int
	At       geom.Position
	Particle string
}

// World is not safe for concurrent use; it lives on the tick loop.
type World struct {
	blocks  map[geom.Location]string
	players map[uuid.UUID]*Player
	inbox   map[uuid.UUID][]Delivery

	sounds    []SoundEvent
	particles []ParticleEvent

	listener func(player uuid.UUID, key, text string)

	// FailMarkers makes marker mutations fail, for exercising the
	// best-effort path.
	FailMarkers bool
}

func New() *World {
	return &World{
		blocks:  map[geom.Location]string{},
		players: map[uuid.UUID]*Player{},
		inbox:   map[uuid.UUID][]Delivery{},
	}
}

// OnDeliver installs a callback run for every delivered message. While one
// is installed nothing is recorded in the inbox.
func (w *World) OnDeliver(fn func(player uuid.UUID, key, text string)) { w.listener = fn }

// Join brings a player online, creating them if needed. A returning player
// keeps their last position and level when pos is nil.
func (w *World) Join(id uuid.UUID, name string, pos *geom.Position, level int) *Player {
	p := w.players[id]
	if p == nil {
		p = &Player{ID: id, Level: level}
		if pos != nil {
			p.Pos = *pos
		}
		w.players[id] = p
	} else if pos != nil {
		p.Pos = *pos
	}
	if name != "" {
		p.Name = name
	}
	p.Online = true
	return p
}

func (w *World) Leave(id uuid.UUID) {
	if p := w.players[id]; p != nil {
		p.Online = false
	}
}

func (w *World) Player(id uuid.UUID) (Player, bool) {
	p := w.players[id]
	if p == nil {
		return Player{}, false
	}
	return *p, true
}

func (w *World) PlayerByName(name string) (Player, bool) {
	for _, p := range w.players {
		if p.Name == name {
			return *p, true
		}
	}
	return Player{}, false
}

func (w *World) Name(id uuid.UUID) string {
	if p := w.players[id]; p != nil && p.Name != "" {
		return p.Name
	}
	return id.String()
}

func (w *World) OnlinePlayers() []Player {
	var out []Player
	for _, p := range w.players {
		if p.Online {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (w *World) Move(id uuid.UUID, to geom.Position) error {
	p, err := w.online(id)
	if err != nil {
		return err
	}
	p.Pos = to
	return nil
}

func (w *World) SetLevel(id uuid.UUID, level int) error {
	p := w.players[id]
	if p == nil {
		return ErrUnknownPlayer
	}
	p.Level = level
	return nil
}

func (w *World) SetBlock(loc geom.Location, kind string) {
	if kind == "" {
		delete(w.blocks, loc)
		return
	}
	w.blocks[loc] = kind
}

func (w *World) BlockAt(loc geom.Location) (string, bool) {
	k, ok := w.blocks[loc]
	return k, ok
}

func (w *World) Blocks() int { return len(w.blocks) }

// Obstructed reports whether a block already occupies loc.
func (w *World) Obstructed(loc geom.Location) bool {
	_, ok := w.blocks[loc]
	return ok
}

func (w *World) online(id uuid.UUID) (*Player, error) {
	p := w.players[id]
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if !p.Online {
		return nil, ErrOffline
	}
	return p, nil
}

// Marker world.

func (w *World) PlaceMarker(loc geom.Location, kind string) error {
	if w.FailMarkers {
		return fmt.Errorf("place %s at %s: marker writes disabled", kind, loc)
	}
	if loc.World == "" {
		return ErrNoWorld
	}
	w.blocks[loc] = kind
	return nil
}

func (w *World) RemoveMarker(loc geom.Location) error {
	if w.FailMarkers {
		return fmt.Errorf("remove at %s: marker writes disabled", loc)
	}
	delete(w.blocks, loc)
	return nil
}

func (w *World) MarkerKindAt(loc geom.Location) (string, bool) { return w.BlockAt(loc) }

// Player host.

func (w *World) Online(id uuid.UUID) bool {
	p := w.players[id]
	return p != nil && p.Online
}

func (w *World) Position(id uuid.UUID) (geom.Position, bool) {
	p, err := w.online(id)
	if err != nil {
		return geom.Position{}, false
	}
	return p.Pos, true
}

func (w *World) Balance(id uuid.UUID) int {
	if p := w.players[id]; p != nil {
		return p.Level
	}
	return 0
}

// Deduct never takes the level below zero.
func (w *World) Deduct(id uuid.UUID, amount int) error {
	p := w.players[id]
	if p == nil {
		return ErrUnknownPlayer
	}
	if amount > p.Level {
		err := fmt.Errorf("deduct %d from level %d", amount, p.Level)
		p.Level = 0
		return err
	}
	p.Level -= amount
	return nil
}

func (w *World) Relocate(id uuid.UUID, to geom.Position) error {
	return w.Move(id, to)
}

// Effects.

func (w *World) PlaySound(player uuid.UUID, at geom.Position, sound string) {
	w.sounds = appendCapped(w.sounds, SoundEvent{Player: player, At: at, Sound: sound})
}

func (w *World) SpawnParticles(points []geom.Position, particle string) {
	if len(points) == 0 {
		return
	}
	w.particles = appendCapped(w.particles, ParticleEvent{Points: len(points), At: points[0], Particle: particle})
}

func (w *World) Sounds() []SoundEvent {
	return append([]SoundEvent(nil), w.sounds...)
}

func (w *World) Particles() []ParticleEvent {
	return append([]ParticleEvent(nil), w.particles...)
}

func appendCapped[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > effectLogSize {
		s = append(s[:0], s[len(s)-effectLogSize:]...)
	}
	return s
}

// Message sink.

func (w *World) Deliver(player uuid.UUID, key, text string) {
	if w.listener != nil {
		w.listener(player, key, text)
		return
	}
	w.inbox[player] = append(w.inbox[player], Delivery{Key: key, Text: text})
}

// Inbox returns and clears the messages recorded for player.
func (w *World) Inbox(player uuid.UUID) []Delivery {
	out := w.inbox[player]
	delete(w.inbox, player)
	return out
}
