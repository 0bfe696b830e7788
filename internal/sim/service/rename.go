package service

import (
	"strings"

	"github.com/google/uuid"
)

var cancelWords = []string{"cancel", "cancelar", "sair"}

// Rename sets a totem's shared name. The name is checked before the totem
// and the permission, matching the chat flow.
func (a *App) Rename(actor Actor, totemID uuid.UUID, name string) error {
	a.touch(actor.ID)
	name = strings.TrimSpace(name)
	if err := a.checkName(actor.ID, name); err != nil {
		return err
	}
	t, ok := a.Totems.ByID(totemID)
	if !ok {
		a.send(actor.ID, "error-totem-not-found", nil)
		return ErrUnknownTotem
	}
	if !CanManage(t, actor) {
		a.send(actor.ID, "error-not-owner", nil)
		return ErrPermissionDenied
	}
	if err := a.Totems.Rename(t.ID, name); err != nil {
		return err
	}
	a.send(actor.ID, "rename-success", map[string]string{"old": t.Name, "new": name})
	a.logf("player %s renamed totem %q to %q", actor.ID, t.Name, name)
	a.record(AuditEntry{Action: ActionRename, Actor: actor.ID.String(), TotemID: t.ID.String(), Details: map[string]any{
		"old": t.Name,
		"new": name,
	}})
	_ = a.saveTotems()
	return nil
}

// BeginRename makes actor's next chat line the new name of the totem.
func (a *App) BeginRename(actor Actor, totemID uuid.UUID) error {
	t, ok := a.Totems.ByID(totemID)
	if !ok {
		a.send(actor.ID, "error-totem-not-found", nil)
		return ErrUnknownTotem
	}
	if !CanManage(t, actor) {
		a.send(actor.ID, "error-not-owner", nil)
		return ErrPermissionDenied
	}
	a.renames[actor.ID] = t.ID
	a.send(actor.ID, "rename-prompt", nil)
	return nil
}

func (a *App) AwaitingRename(player uuid.UUID) (uuid.UUID, bool) {
	id, ok := a.renames[player]
	return id, ok
}

// ChatInput consumes a chat line when actor is naming a totem. It reports
// whether the line was consumed; other lines are left to the caller.
func (a *App) ChatInput(actor Actor, text string) bool {
	id, ok := a.renames[actor.ID]
	if !ok {
		return false
	}
	delete(a.renames, actor.ID)
	text = strings.TrimSpace(text)
	for _, w := range cancelWords {
		if strings.EqualFold(text, w) {
			a.send(actor.ID, "rename-cancelled", nil)
			return true
		}
	}
	_ = a.Rename(actor, id, text)
	return true
}

// SetCustomName sets actor's private label for a registered totem. An empty
// name clears it.
func (a *App) SetCustomName(actor Actor, totemID uuid.UUID, name string) error {
	a.touch(actor.ID)
	if !a.Players.IsRegistered(actor.ID, totemID) {
		a.send(actor.ID, "error-not-registered", nil)
		return ErrNotRegistered
	}
	name = strings.TrimSpace(name)
	if name != "" {
		if err := a.checkName(actor.ID, name); err != nil {
			return err
		}
	}
	a.Players.SetCustomName(actor.ID, totemID, name)
	if name == "" {
		a.send(actor.ID, "custom-name-cleared", nil)
	} else {
		a.send(actor.ID, "custom-name-set", map[string]string{"name": name})
	}
	a.record(AuditEntry{Action: ActionCustomName, Actor: actor.ID.String(), TotemID: totemID.String(), Details: map[string]any{
		"name": name,
	}})
	_ = a.savePlayers()
	return nil
}
