package indexdb

import (
	"totemcraft.ai/internal/sim/teleport"
	"totemcraft.ai/internal/sim/totem"
)

type TotemRow struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	World     string `json:"world"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Z         int    `json:"z"`
	Material  string `json:"material"`
	CreatedAt int64  `json:"created_at"`
}

type TeleportRow struct {
	At        int64      `json:"at"`
	Player    string     `json:"player"`
	TotemID   string     `json:"totem_id"`
	TotemName string     `json:"totem_name"`
	World     string     `json:"world"`
	From      [3]float64 `json:"from"`
	To        [3]float64 `json:"to"`
	Cost      int        `json:"cost"`
}

func totemRow(t totem.Totem) TotemRow {
	return TotemRow{
		ID:        t.ID.String(),
		Owner:     t.Owner.String(),
		Name:      t.Name,
		World:     t.Location.World,
		X:         t.Location.X,
		Y:         t.Location.Y,
		Z:         t.Location.Z,
		Material:  t.Marker,
		CreatedAt: t.CreatedAt.UnixMilli(),
	}
}

func totemRows(ts []totem.Totem) []TotemRow {
	out := make([]TotemRow, 0, len(ts))
	for _, t := range ts {
		out = append(out, totemRow(t))
	}
	return out
}

func teleportRow(r teleport.Report) TeleportRow {
	return TeleportRow{
		At:        r.At.UnixMilli(),
		Player:    r.Player.String(),
		TotemID:   r.TotemID.String(),
		TotemName: r.TotemName,
		World:     r.To.World,
		From:      r.From.ToArray(),
		To:        r.To.ToArray(),
		Cost:      r.Cost,
	}
}
