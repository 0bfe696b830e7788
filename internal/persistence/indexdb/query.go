package indexdb

import (
	"context"
	"database/sql"
)

// Totems lists indexed totems, optionally only those of owner.
func Totems(ctx context.Context, db *sql.DB, owner string) ([]TotemRow, error) {
	q := `SELECT id,owner,name,world,x,y,z,material,created_at FROM totems`
	var args []any
	if owner != "" {
		q += ` WHERE owner = ?`
		args = append(args, owner)
	}
	q += ` ORDER BY created_at, id`
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TotemRow
	for rows.Next() {
		var t TotemRow
		if err := rows.Scan(&t.ID, &t.Owner, &t.Name, &t.World, &t.X, &t.Y, &t.Z, &t.Material, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Teleports lists the newest teleports first, optionally for one player.
func Teleports(ctx context.Context, db *sql.DB, player string, limit int) ([]TeleportRow, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT at,player,totem_id,totem_name,world,from_x,from_y,from_z,to_x,to_y,to_z,cost FROM teleports`
	var args []any
	if player != "" {
		q += ` WHERE player = ?`
		args = append(args, player)
	}
	q += ` ORDER BY at DESC, seq DESC LIMIT ?`
	args = append(args, limit)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TeleportRow
	for rows.Next() {
		var r TeleportRow
		if err := rows.Scan(&r.At, &r.Player, &r.TotemID, &r.TotemName, &r.World,
			&r.From[0], &r.From[1], &r.From[2], &r.To[0], &r.To[1], &r.To[2], &r.Cost); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type AuditRow struct {
	At      int64
	Actor   string
	Action  string
	TotemID string
	Raw     string
}

// Audits lists audit rows for a totem, oldest first.
func Audits(ctx context.Context, db *sql.DB, totemID string) ([]AuditRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT at,actor,action,totem_id,raw_json FROM audits WHERE totem_id = ? ORDER BY at, seq`, totemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRow
	for rows.Next() {
		var a AuditRow
		if err := rows.Scan(&a.At, &a.Actor, &a.Action, &a.TotemID, &a.Raw); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
