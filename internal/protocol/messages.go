package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	PlayerName      string      `json:"player_name"`
	PlayerID        string      `json:"player_id,omitempty"`
	World           string      `json:"world,omitempty"`
	Spawn           *[3]float64 `json:"spawn,omitempty"`
	Level           int         `json:"level,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	PlayerID        string       `json:"player_id"`
	Admin           bool         `json:"admin,omitempty"`
	Params          ServerParams `json:"params"`
}

type ServerParams struct {
	TickRateHz               int    `json:"tick_rate_hz"`
	CooldownSeconds          int    `json:"cooldown_seconds"`
	TeleportCountdown        int    `json:"teleport_countdown"`
	XPCost                   int    `json:"xp_cost"`
	MaxTotemsPerPlayer       int    `json:"max_totems_per_player"`
	BreakConfirmationSeconds int    `json:"break_confirmation_seconds"`
	TotemMaterial            string `json:"totem_material"`
	TuningDigest             string `json:"tuning_digest,omitempty"`
}

// CMD (client -> server). Pos is a precise position for MOVE and a block
// position (floored) for PLACE, USE and BREAK.
type CmdMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ID              string      `json:"id"`
	Op              string      `json:"op"`
	World           string      `json:"world,omitempty"`
	Pos             *[3]float64 `json:"pos,omitempty"`
	TotemID         string      `json:"totem_id,omitempty"`
	Name            *string     `json:"name,omitempty"`
	Text            string      `json:"text,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Result          string `json:"result,omitempty"`
	TotemID         string `json:"totem_id,omitempty"`
}

// NOTIFY (server -> client): one rendered player message.
type NotifyMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Key             string `json:"key"`
	Text            string `json:"text"`
}

type ListMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	AckFor          string       `json:"ack_for,omitempty"`
	Totems          []TotemEntry `json:"totems"`
}

type TotemEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Owner       string `json:"owner"`
	Owned       bool   `json:"owned,omitempty"`
	World       string `json:"world"`
	Pos         [3]int `json:"pos"`
	CreatedAt   int64  `json:"created_at"`
}
