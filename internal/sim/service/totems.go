package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"totemcraft.ai/internal/persistence/snapshot"
	"totemcraft.ai/internal/sim/geom"
	"totemcraft.ai/internal/sim/teleport"
	"totemcraft.ai/internal/sim/totem"
)

// PlaceTotem creates a totem owned by actor at loc and registers it for
// them. An empty name becomes "<player>'s Totem".
func (a *App) PlaceTotem(actor Actor, loc geom.Location, name string) (totem.Totem, error) {
	a.touch(actor.ID)
	limit := a.tun.MaxTotemsPerPlayer
	if !a.Totems.CanCreateMore(actor.ID, limit) {
		a.send(actor.ID, "error-max-totems", map[string]string{"max": strconv.Itoa(limit)})
		return totem.Totem{}, &QuotaError{Max: limit}
	}
	if a.Totems.Has(loc) {
		a.send(actor.ID, "error-totem-exists", nil)
		return totem.Totem{}, totem.ErrLocationOccupied
	}
	if a.host.Obstructed(loc) {
		a.send(actor.ID, "error-obstructed", nil)
		return totem.Totem{}, ErrObstructed
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultTotemName(actor)
	}
	if err := a.checkName(actor.ID, name); err != nil {
		return totem.Totem{}, err
	}

	t, err := a.Totems.Create(loc, actor.ID, name, a.tun.TotemBlock.Material)
	if err != nil {
		a.send(actor.ID, "error-generic", nil)
		return totem.Totem{}, err
	}
	a.Players.RegisterTotem(actor.ID, t.ID)
	a.send(actor.ID, "totem-created", map[string]string{"totem": t.Name})
	a.record(AuditEntry{Action: ActionCreate, Actor: actor.ID.String(), TotemID: t.ID.String(), Details: map[string]any{
		"name":     t.Name,
		"location": loc.String(),
	}})
	_ = a.Save()
	return t, nil
}

func defaultTotemName(actor Actor) string {
	if actor.Name == "" {
		return "Totem"
	}
	name := actor.Name + "'s Totem"
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "Totem"
	}
	return name
}

// RegisterTotem bookmarks the totem at loc for actor. It reports false when
// it was already registered.
func (a *App) RegisterTotem(actor Actor, loc geom.Location) (totem.Totem, bool, error) {
	a.touch(actor.ID)
	t, ok := a.Totems.ByLocation(loc)
	if !ok {
		a.send(actor.ID, "error-totem-not-found", nil)
		return totem.Totem{}, false, ErrUnknownTotem
	}
	if !a.Players.RegisterTotem(actor.ID, t.ID) {
		a.send(actor.ID, "totem-already-registered", nil)
		return t, false, nil
	}
	a.send(actor.ID, "totem-registered", nil)
	_ = a.savePlayers()
	return t, true, nil
}

type Entry struct {
	Totem       totem.Totem
	DisplayName string
	Custom      bool
	Owned       bool
}

// ListTotems returns actor's registered totems, oldest first. Ids whose
// totem no longer exists are unregistered on the way.
func (a *App) ListTotems(actor Actor) []Entry {
	a.touch(actor.ID)
	st := a.Players.Get(actor.ID)
	var out []Entry
	stale := 0
	for _, id := range st.Registered() {
		t, ok := a.Totems.ByID(id)
		if !ok {
			a.Players.UnregisterTotem(actor.ID, id)
			stale++
			continue
		}
		custom, hasCustom := st.CustomName(id)
		e := Entry{Totem: t, DisplayName: t.Name, Custom: hasCustom, Owned: t.OwnedBy(actor.ID)}
		if hasCustom {
			e.DisplayName = custom
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Totem.CreatedAt.Equal(out[j].Totem.CreatedAt) {
			return out[i].Totem.CreatedAt.Before(out[j].Totem.CreatedAt)
		}
		return out[i].Totem.ID.String() < out[j].Totem.ID.String()
	})
	if stale > 0 {
		a.logf("unregistered %d missing totems for %s", stale, actor.ID)
		_ = a.savePlayers()
	}
	return out
}

// Teleport starts a countdown to one of actor's registered totems.
func (a *App) Teleport(actor Actor, totemID uuid.UUID) (teleport.Session, error) {
	a.touch(actor.ID)
	t, ok := a.Totems.ByID(totemID)
	if !ok {
		a.send(actor.ID, "error-totem-not-found", nil)
		return teleport.Session{}, ErrUnknownTotem
	}
	if !a.Players.IsRegistered(actor.ID, totemID) {
		a.send(actor.ID, "error-not-registered", nil)
		return teleport.Session{}, ErrNotRegistered
	}
	return a.Teleports.Start(actor.ID, t)
}

type BreakOutcome int

const (
	BreakRejected BreakOutcome = iota
	BreakPrompted
	BreakDestroyed
)

func (o BreakOutcome) String() string {
	switch o {
	case BreakPrompted:
		return "prompted"
	case BreakDestroyed:
		return "destroyed"
	default:
		return "rejected"
	}
}

// BreakTotem is one destroy request on the totem at loc. The first request
// only arms a confirmation; a second one for the same totem inside the
// window destroys it. An expired confirmation counts as a first request.
func (a *App) BreakTotem(actor Actor, loc geom.Location) (BreakOutcome, error) {
	a.touch(actor.ID)
	t, ok := a.Totems.ByLocation(loc)
	if !ok {
		return BreakRejected, ErrUnknownTotem
	}
	if !CanManage(t, actor) {
		a.send(actor.ID, "error-not-owner", nil)
		return BreakRejected, ErrPermissionDenied
	}
	if a.tun.TotemBlock.Indestructible && !actor.Admin {
		a.send(actor.ID, "error-totem-indestructible", nil)
		return BreakRejected, ErrIndestructible
	}

	window := a.tun.BreakConfirmation()
	if !a.Players.IsPendingFor(actor.ID, t.ID) {
		a.Players.RequestBreak(actor.ID, t.ID)
		a.send(actor.ID, "totem-break-confirm", nil)
		return BreakPrompted, nil
	}
	if a.Players.IsExpired(actor.ID, window) {
		a.Players.ClearPending(actor.ID)
		a.Players.RequestBreak(actor.ID, t.ID)
		a.send(actor.ID, "totem-break-confirm", nil)
		return BreakPrompted, nil
	}

	a.destroy(t)
	a.Players.ClearPending(actor.ID)
	a.send(actor.ID, "totem-removed", nil)
	a.record(AuditEntry{Action: ActionRemove, Actor: actor.ID.String(), TotemID: t.ID.String(), Details: map[string]any{
		"name":     t.Name,
		"location": t.Location.String(),
	}})
	_ = a.Save()
	return BreakDestroyed, nil
}

// destroy removes t everywhere: registry, every player's bookmarks, and any
// countdown heading to it.
func (a *App) destroy(t totem.Totem) {
	a.Totems.Remove(t.ID)
	a.Players.UnregisterFromAll(t.ID)
	for id, p := range a.offline {
		a.offline[id] = forgetTotem(p, t.ID)
	}
	for p, id := range a.renames {
		if id == t.ID {
			delete(a.renames, p)
		}
	}
	for _, s := range a.Teleports.Sessions() {
		if s.Destination.ID == t.ID && a.Teleports.Cancel(s.Player) {
			a.send(s.Player, "error-totem-invalid", nil)
		}
	}
}

func forgetTotem(p snapshot.Player, totemID uuid.UUID) snapshot.Player {
	kept := p.Registered[:0:0]
	for _, id := range p.Registered {
		if id != totemID {
			kept = append(kept, id)
		}
	}
	p.Registered = kept
	if _, ok := p.CustomNames[totemID]; ok {
		names := make(map[uuid.UUID]string, len(p.CustomNames))
		for id, n := range p.CustomNames {
			if id != totemID {
				names[id] = n
			}
		}
		p.CustomNames = names
	}
	return p
}

// Cleanup drops totems whose marker is gone and returns how many.
func (a *App) Cleanup() int {
	removed := a.Totems.PruneInvalid()
	for _, t := range removed {
		a.destroy(t)
		a.record(AuditEntry{Action: ActionCleanup, TotemID: t.ID.String(), Details: map[string]any{
			"name":     t.Name,
			"location": t.Location.String(),
		}})
	}
	if len(removed) > 0 {
		a.logf("cleanup removed %d invalid totems", len(removed))
		_ = a.Save()
	}
	return len(removed)
}

// OnDamage cancels a running countdown and tells the player why.
func (a *App) OnDamage(player uuid.UUID) bool {
	if !a.Teleports.Cancel(player) {
		return false
	}
	a.send(player, "teleport-cancelled-damage", nil)
	return true
}

// OnQuit silently drops everything transient about player and saves.
func (a *App) OnQuit(player uuid.UUID) {
	a.Teleports.Cancel(player)
	if a.Players.Has(player) {
		a.Players.ClearPending(player)
	}
	delete(a.renames, player)
	_ = a.savePlayers()
}

// Unload forgets player from memory. Their persisted state stays and comes
// back on their next operation.
func (a *App) Unload(player uuid.UUID) {
	if !a.Players.Has(player) {
		return
	}
	a.Teleports.Cancel(player)
	delete(a.renames, player)
	a.offline[player] = exportPlayer(a.Players.Get(player))
	a.Players.Unload(player)
}

func (a *App) checkName(player uuid.UUID, name string) error {
	if name == "" {
		a.send(player, "rename-empty", nil)
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		a.send(player, "rename-too-long", map[string]string{"max": strconv.Itoa(MaxNameLength)})
		return ErrNameTooLong
	}
	return nil
}

// Describe is a one-line summary used by logs and the admin dump.
func Describe(t totem.Totem) string {
	return fmt.Sprintf("%s %q owner=%s at %s (%s)", t.ID, t.Name, t.Owner, t.Location, t.Marker)
}
