// Package service is the command and query surface of the totem core. An App
// owns the registry, the player store and the teleport coordinator; adapters
// translate host events into App calls on the tick loop goroutine.
package service

import (
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"totemcraft.ai/internal/persistence/snapshot"
	"totemcraft.ai/internal/sim/geom"
	"totemcraft.ai/internal/sim/players"
	"totemcraft.ai/internal/sim/sched"
	"totemcraft.ai/internal/sim/teleport"
	"totemcraft.ai/internal/sim/totem"
	"totemcraft.ai/internal/sim/tuning"
)

const MaxNameLength = 32

// Host is everything the core needs from the world it runs in.
type Host interface {
	totem.MarkerWorld
	teleport.PlayerHost
	// Obstructed reports whether placing a marker at loc would replace
	// something already there.
	Obstructed(loc geom.Location) bool
}

// Actor is the player invoking an operation. Admin is decided by the caller.
type Actor struct {
	ID    uuid.UUID
	Name  string
	Admin bool
}

// Index receives read-model updates. Implementations must not block.
type Index interface {
	SyncTotems(ts []totem.Totem)
	RecordTeleport(r teleport.Report)
}

type Options struct {
	Tuning    tuning.Tuning
	Host      Host
	Effects   teleport.Effects
	Notifier  teleport.Notifier
	Scheduler sched.Scheduler
	Logger    *log.Logger

	// DataDir holds totems.yml and playerdata.yml. Empty disables
	// persistence.
	DataDir  string
	Compress bool

	Audit []AuditSink
	Index Index
}

type App struct {
	tun    tuning.Tuning
	host   Host
	notify teleport.Notifier
	sch    sched.Scheduler
	logger *log.Logger

	Totems    *totem.Registry
	Players   *players.Store
	Teleports *teleport.Coordinator

	// renames maps a player to the totem whose new name they will type.
	renames map[uuid.UUID]uuid.UUID
	// offline holds the persisted state of unloaded players so saves keep
	// them and a returning player gets it back.
	offline map[uuid.UUID]snapshot.Player

	dataDir  string
	compress bool
	audit    []AuditSink
	index    Index
}

func New(opts Options) *App {
	opts.Tuning.Validate()
	a := &App{
		tun:      opts.Tuning,
		host:     opts.Host,
		notify:   opts.Notifier,
		sch:      opts.Scheduler,
		logger:   opts.Logger,
		renames:  map[uuid.UUID]uuid.UUID{},
		offline:  map[uuid.UUID]snapshot.Player{},
		dataDir:  opts.DataDir,
		compress: opts.Compress,
		audit:    opts.Audit,
		index:    opts.Index,
	}
	a.Totems = totem.NewRegistry(opts.Host, opts.Logger, a.sch.Now)
	a.Players = players.NewStore(a.sch.Now)
	a.Teleports = teleport.NewCoordinator(teleport.ConfigFrom(a.tun), teleport.Deps{
		Scheduler: a.sch,
		Players:   a.Players,
		Host:      opts.Host,
		Effects:   opts.Effects,
		Notifier:  opts.Notifier,
		Valid:     a.Totems.Valid,
		Lookup:    a.Totems.ByID,
		Logger:    opts.Logger,
	})
	a.Teleports.OnTeleport = a.onTeleport
	return a
}

func (a *App) Tuning() tuning.Tuning { return a.tun }

func (a *App) Now() time.Time { return a.sch.Now() }

// IsAdmin applies the configured admin list.
func (a *App) IsAdmin(name string) bool { return a.tun.IsAdmin(name) }

// CanManage is the one ownership predicate: the owner or an admin may rename
// or break a totem.
func CanManage(t totem.Totem, actor Actor) bool {
	return t.OwnedBy(actor.ID) || actor.Admin
}

// Schedule installs the periodic snapshot and cleanup timers.
func (a *App) Schedule() []sched.Handle {
	var hs []sched.Handle
	if d := a.tun.SnapshotEvery(); d > 0 {
		hs = append(hs, a.sch.Every(d, func(time.Time) { _ = a.Save() }))
	}
	if d := a.tun.CleanupEvery(); d > 0 {
		hs = append(hs, a.sch.Every(d, func(time.Time) { a.Cleanup() }))
	}
	return hs
}

// touch brings an unloaded player's persisted state back into the store.
func (a *App) touch(player uuid.UUID) {
	if a.Players.Has(player) {
		return
	}
	if p, ok := a.offline[player]; ok {
		a.Players.Restore(p.ID, p.Registered, p.CustomNames, p.LastTeleport)
		delete(a.offline, player)
	}
}

func (a *App) send(player uuid.UUID, key string, vars map[string]string) {
	if a.notify != nil {
		a.notify.Notify(player, key, vars)
	}
}

func (a *App) logf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}

func (a *App) path(name string) string {
	if a.compress {
		name += ".zst"
	}
	return filepath.Join(a.dataDir, name)
}

func (a *App) TotemsPath() string  { return a.path(snapshot.TotemsFile) }
func (a *App) PlayersPath() string { return a.path(snapshot.PlayersFile) }
