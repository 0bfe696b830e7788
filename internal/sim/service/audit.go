package service

import (
	"time"

	"totemcraft.ai/internal/sim/teleport"
)

const (
	ActionCreate     = "TOTEM_CREATE"
	ActionRemove     = "TOTEM_REMOVE"
	ActionRename     = "TOTEM_RENAME"
	ActionCustomName = "CUSTOM_NAME"
	ActionCleanup    = "TOTEM_CLEANUP"
	ActionTeleport   = "TELEPORT"
)

type AuditEntry struct {
	At      int64          `json:"at"`
	Action  string         `json:"action"`
	Actor   string         `json:"actor,omitempty"`
	TotemID string         `json:"totem_id,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (e AuditEntry) Time() time.Time { return time.UnixMilli(e.At) }

type AuditSink interface {
	WriteAudit(e AuditEntry) error
}

func (a *App) record(e AuditEntry) {
	if e.At == 0 {
		e.At = a.sch.Now().UnixMilli()
	}
	for _, s := range a.audit {
		if err := s.WriteAudit(e); err != nil {
			a.logf("audit %s: %v", e.Action, err)
		}
	}
}

func (a *App) onTeleport(r teleport.Report) {
	a.record(AuditEntry{At: r.At.UnixMilli(), Action: ActionTeleport, Actor: r.Player.String(), TotemID: r.TotemID.String(), Details: map[string]any{
		"totem": r.TotemName,
		"world": r.To.World,
		"from":  r.From.ToArray(),
		"to":    r.To.ToArray(),
		"cost":  r.Cost,
	}})
	if a.index != nil {
		a.index.RecordTeleport(r)
	}
}
