package teleport

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"totemcraft.ai/internal/sim/geom"
	"totemcraft.ai/internal/sim/players"
	"totemcraft.ai/internal/sim/sched"
	"totemcraft.ai/internal/sim/totem"
	"totemcraft.ai/internal/sim/tuning"
)

var (
	ErrAlreadyTeleporting = errors.New("teleport already active")
	ErrInvalidDestination = errors.New("destination marker missing")
)

type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("on cooldown for %ds", int(e.Remaining/time.Second))
}

type InsufficientResourceError struct {
	Required int
	Balance  int
}

func (e *InsufficientResourceError) Error() string {
	return fmt.Sprintf("need %d xp levels, have %d", e.Required, e.Balance)
}

// PlayerHost is the host's view of a connected player.
type PlayerHost interface {
	Online(player uuid.UUID) bool
	Position(player uuid.UUID) (geom.Position, bool)
	Balance(player uuid.UUID) int
	Deduct(player uuid.UUID, amount int) error
	Relocate(player uuid.UUID, to geom.Position) error
}

// Notifier delivers a message template to a player.
type Notifier interface {
	Notify(player uuid.UUID, key string, vars map[string]string)
}

type Config struct {
	Countdown int
	Cost      int
	Cooldown  time.Duration

	Particles      bool
	ParticleType   string
	Sounds         bool
	SoundType      string
	CountdownSound string
}

func ConfigFrom(t tuning.Tuning) Config {
	return Config{
		Countdown:      t.TeleportCountdown,
		Cost:           t.XPCost,
		Cooldown:       t.Cooldown(),
		Particles:      t.Effects.Particles,
		ParticleType:   t.Effects.ParticleType,
		Sounds:         t.Effects.Sounds,
		SoundType:      t.Effects.SoundType,
		CountdownSound: t.Effects.CountdownSound,
	}
}

// Report describes a completed teleport.
type Report struct {
	Player    uuid.UUID
	TotemID   uuid.UUID
	TotemName string
	From      geom.Position
	To        geom.Position
	Cost      int
	At        time.Time
}

type Deps struct {
	Scheduler sched.Scheduler
	Players   *players.Store
	Host      PlayerHost
	Effects   Effects
	Notifier  Notifier
	// Valid reports whether a destination's marker is still in place.
	Valid func(totem.Totem) bool
	// Lookup returns the current state of a destination, so a rename during
	// the countdown shows up on arrival.
	Lookup func(uuid.UUID) (totem.Totem, bool)
	Logger *log.Logger
}

// Coordinator runs at most one countdown per player. All methods and every
// tick run on the scheduler's goroutine.
type Coordinator struct {
	cfg    Config
	sch    sched.Scheduler
	store  *players.Store
	host   PlayerHost
	fx     Effects
	notify Notifier
	valid  func(totem.Totem) bool
	lookup func(uuid.UUID) (totem.Totem, bool)
	logger *log.Logger

	active map[uuid.UUID]*Session

	// OnTeleport, when set, is called after every completed teleport.
	OnTeleport func(Report)
}

func NewCoordinator(cfg Config, d Deps) *Coordinator {
	valid := d.Valid
	if valid == nil {
		valid = func(totem.Totem) bool { return true }
	}
	return &Coordinator{
		cfg:    cfg,
		sch:    d.Scheduler,
		store:  d.Players,
		host:   d.Host,
		fx:     d.Effects,
		notify: d.Notifier,
		valid:  valid,
		lookup: d.Lookup,
		logger: d.Logger,
		active: map[uuid.UUID]*Session{},
	}
}

func (c *Coordinator) SetConfig(cfg Config) { c.cfg = cfg }

func (c *Coordinator) Config() Config { return c.cfg }

// Start arms a countdown towards dest. The player is told why when it is
// rejected, and the error says the same.
func (c *Coordinator) Start(player uuid.UUID, dest totem.Totem) (Session, error) {
	if _, ok := c.active[player]; ok {
		c.send(player, "teleport-already-active", nil)
		return Session{}, ErrAlreadyTeleporting
	}
	if !c.valid(dest) {
		c.send(player, "error-totem-invalid", nil)
		return Session{}, ErrInvalidDestination
	}
	if !c.store.CanTeleport(player, c.cfg.Cooldown) {
		rem := c.store.RemainingCooldown(player, c.cfg.Cooldown)
		c.send(player, "error-cooldown", map[string]string{"time": strconv.Itoa(int(rem / time.Second))})
		return Session{}, &CooldownError{Remaining: rem}
	}
	if bal := c.host.Balance(player); bal < c.cfg.Cost {
		c.send(player, "error-no-xp", map[string]string{"xp": strconv.Itoa(c.cfg.Cost)})
		return Session{}, &InsufficientResourceError{Required: c.cfg.Cost, Balance: bal}
	}
	pos, ok := c.host.Position(player)
	if !ok {
		// Not an error the player can see; they are gone.
		return Session{}, fmt.Errorf("player %s not online", player)
	}

	s := &Session{
		Player:      player,
		Destination: dest,
		Origin:      pos.Block(),
		Remaining:   c.cfg.Countdown,
		StartedAt:   c.sch.Now(),
	}
	c.active[player] = s
	c.send(player, "teleport-started", nil)
	s.handle = c.sch.Every(time.Second, func(now time.Time) { c.tick(s, now) })
	return *s, nil
}

// Cancel stops the player's countdown silently. It reports whether one was
// running; calling it again is a no-op.
func (c *Coordinator) Cancel(player uuid.UUID) bool {
	s, ok := c.active[player]
	if !ok {
		return false
	}
	c.teardown(s)
	return true
}

// CancelAll stops every countdown and returns how many were running.
func (c *Coordinator) CancelAll() int {
	n := len(c.active)
	for _, s := range c.active {
		c.teardown(s)
	}
	return n
}

func (c *Coordinator) IsTeleporting(player uuid.UUID) bool {
	_, ok := c.active[player]
	return ok
}

func (c *Coordinator) Session(player uuid.UUID) (Session, bool) {
	s, ok := c.active[player]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Sessions returns the running countdowns ordered by player id.
func (c *Coordinator) Sessions() []Session {
	out := make([]Session, 0, len(c.active))
	for _, s := range c.active {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Player.String() < out[j].Player.String() })
	return out
}

func (c *Coordinator) Len() int { return len(c.active) }

func (c *Coordinator) teardown(s *Session) {
	s.cancelled = true
	if s.handle != nil {
		s.handle.Cancel()
	}
	if c.active[s.Player] == s {
		delete(c.active, s.Player)
	}
}

func (c *Coordinator) tick(s *Session, now time.Time) {
	if s.cancelled || c.active[s.Player] != s {
		return
	}
	obs := Observation{Online: c.host.Online(s.Player)}
	pos, ok := c.host.Position(s.Player)
	if !ok {
		obs.Online = false
	} else {
		obs.Block = pos.Block()
	}

	next, step := Advance(*s, obs)
	s.Remaining = next.Remaining

	switch step {
	case StepOffline:
		c.teardown(s)
	case StepMoved:
		c.send(s.Player, "teleport-cancelled-moved", nil)
		c.teardown(s)
	case StepCountdown:
		c.send(s.Player, "teleport-countdown", map[string]string{"seconds": strconv.Itoa(s.Remaining)})
		if c.fx != nil && c.cfg.Sounds {
			c.fx.PlaySound(s.Player, pos, c.cfg.CountdownSound)
		}
		if c.fx != nil && c.cfg.Particles {
			c.fx.SpawnParticles(ringPoints(pos), c.cfg.ParticleType)
		}
	case StepArrive:
		c.arrive(s, pos, now)
	}
}

func (c *Coordinator) arrive(s *Session, from geom.Position, now time.Time) {
	if c.lookup != nil {
		if t, ok := c.lookup(s.Destination.ID); ok {
			s.Destination = t
		}
	}
	to := s.Destination.TeleportPoint()
	c.feedback(s.Player, from)
	if err := c.host.Relocate(s.Player, to); err != nil {
		c.logf("relocate %s to %s: %v", s.Player, s.Destination.ID, err)
		c.send(s.Player, "error-generic", nil)
		c.teardown(s)
		return
	}
	c.feedback(s.Player, to)
	if c.cfg.Cost > 0 {
		if err := c.host.Deduct(s.Player, c.cfg.Cost); err != nil {
			c.logf("deduct %d from %s: %v", c.cfg.Cost, s.Player, err)
		}
	}
	c.store.MarkTeleported(s.Player)
	c.send(s.Player, "teleport-success", map[string]string{"totem": s.Destination.Name})
	c.teardown(s)
	c.logf("player %s teleported to %q", s.Player, s.Destination.Name)

	if c.OnTeleport != nil {
		c.OnTeleport(Report{
			Player:    s.Player,
			TotemID:   s.Destination.ID,
			TotemName: s.Destination.Name,
			From:      from,
			To:        to,
			Cost:      c.cfg.Cost,
			At:        now,
		})
	}
}

func (c *Coordinator) feedback(player uuid.UUID, at geom.Position) {
	if c.fx == nil {
		return
	}
	if c.cfg.Particles {
		c.fx.SpawnParticles(spiralPoints(at), c.cfg.ParticleType)
	}
	if c.cfg.Sounds {
		c.fx.PlaySound(player, at, c.cfg.SoundType)
	}
}

func (c *Coordinator) send(player uuid.UUID, key string, vars map[string]string) {
	if c.notify != nil {
		c.notify.Notify(player, key, vars)
	}
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
