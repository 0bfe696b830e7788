package ws

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"totemcraft.ai/internal/persistence/snapshot"
	"totemcraft.ai/internal/protocol"
	"totemcraft.ai/internal/sim/geom"
	"totemcraft.ai/internal/sim/sandbox"
	"totemcraft.ai/internal/sim/service"
	"totemcraft.ai/internal/sim/teleport"
	"totemcraft.ai/internal/sim/totem"
)

// exec runs one validated command on the loop and acknowledges it.
func (s *Server) exec(c *client, cmd protocol.CmdMsg) {
	actor := service.Actor{ID: c.id, Name: c.name, Admin: c.admin}
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          cmd.ID,
		Accepted:        true,
	}

	var err error
	switch cmd.Op {
	case protocol.OpMove:
		err = s.world.Move(c.id, s.position(c, cmd))

	case protocol.OpPlace:
		var t totem.Totem
		t, err = s.app.PlaceTotem(actor, s.block(c, cmd), derefName(cmd.Name))
		if err == nil {
			ack.TotemID = t.ID.String()
		}

	case protocol.OpUse:
		var (
			t     totem.Totem
			added bool
		)
		t, added, err = s.app.RegisterTotem(actor, s.block(c, cmd))
		if err == nil {
			ack.TotemID = t.ID.String()
			ack.Result = "already_registered"
			if added {
				ack.Result = "registered"
			}
		}

	case protocol.OpBreak:
		var out service.BreakOutcome
		out, err = s.app.BreakTotem(actor, s.block(c, cmd))
		ack.Result = strings.ToLower(out.String())

	case protocol.OpTeleport:
		var id uuid.UUID
		if id, err = parseTotemID(cmd.TotemID); err == nil {
			_, err = s.app.Teleport(actor, id)
		}

	case protocol.OpRename:
		var id uuid.UUID
		if id, err = parseTotemID(cmd.TotemID); err == nil {
			if cmd.Name != nil {
				err = s.app.Rename(actor, id, *cmd.Name)
			} else {
				err = s.app.BeginRename(actor, id)
				ack.Result = "awaiting_name"
			}
		}

	case protocol.OpCustomName:
		var id uuid.UUID
		if id, err = parseTotemID(cmd.TotemID); err == nil {
			err = s.app.SetCustomName(actor, id, derefName(cmd.Name))
		}

	case protocol.OpList:
		s.send(c, s.list(actor, cmd.ID))

	case protocol.OpDamage:
		ack.Result = "none"
		if s.app.OnDamage(c.id) {
			ack.Result = "cancelled"
		}

	case protocol.OpChat:
		ack.Result = "ignored"
		if s.app.ChatInput(actor, cmd.Text) {
			ack.Result = "consumed"
		}

	default:
		err = fmt.Errorf("unknown op %q", cmd.Op)
	}

	if err != nil {
		ack.Accepted = false
		ack.Code = codeFor(err)
		ack.Message = err.Error()
	}
	s.send(c, ack)
}

func (s *Server) list(actor service.Actor, ackFor string) protocol.ListMsg {
	entries := s.app.ListTotems(actor)
	msg := protocol.ListMsg{
		Type:            protocol.TypeList,
		ProtocolVersion: protocol.Version,
		AckFor:          ackFor,
		Totems:          make([]protocol.TotemEntry, 0, len(entries)),
	}
	for _, e := range entries {
		msg.Totems = append(msg.Totems, protocol.TotemEntry{
			ID:          e.Totem.ID.String(),
			Name:        e.Totem.Name,
			DisplayName: e.DisplayName,
			Owner:       e.Totem.Owner.String(),
			Owned:       e.Owned,
			World:       e.Totem.Location.World,
			Pos:         e.Totem.Location.ToArray(),
			CreatedAt:   e.Totem.CreatedAt.UnixMilli(),
		})
	}
	return msg
}

func (s *Server) worldOf(c *client, cmd protocol.CmdMsg) string {
	if cmd.World != "" {
		return cmd.World
	}
	if p, ok := s.world.Player(c.id); ok && p.Pos.World != "" {
		return p.Pos.World
	}
	return defaultWorld
}

func (s *Server) position(c *client, cmd protocol.CmdMsg) geom.Position {
	return geom.FromArray(s.worldOf(c, cmd), *cmd.Pos)
}

func (s *Server) block(c *client, cmd protocol.CmdMsg) geom.Location {
	return s.position(c, cmd).Block()
}

func derefName(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// codeFor maps core errors onto wire codes.
func codeFor(err error) string {
	var (
		cooldown *teleport.CooldownError
		funds    *teleport.InsufficientResourceError
		quota    *service.QuotaError
		persist  *snapshot.Error
	)
	switch {
	case errors.As(err, &cooldown):
		return protocol.ErrCooldown
	case errors.As(err, &funds):
		return protocol.ErrNoResource
	case errors.As(err, &quota):
		return protocol.ErrLimit
	case errors.As(err, &persist):
		return protocol.ErrPersistence
	case errors.Is(err, teleport.ErrAlreadyTeleporting), errors.Is(err, totem.ErrLocationOccupied):
		return protocol.ErrConflict
	case errors.Is(err, teleport.ErrInvalidDestination), errors.Is(err, service.ErrNotRegistered):
		return protocol.ErrInvalidTarget
	case errors.Is(err, service.ErrUnknownTotem):
		return protocol.ErrNotFound
	case errors.Is(err, service.ErrPermissionDenied):
		return protocol.ErrNoPermission
	case errors.Is(err, service.ErrIndestructible), errors.Is(err, service.ErrObstructed):
		return protocol.ErrBlocked
	case errors.Is(err, service.ErrEmptyName), errors.Is(err, service.ErrNameTooLong),
		errors.Is(err, sandbox.ErrOffline), errors.Is(err, sandbox.ErrUnknownPlayer):
		return protocol.ErrBadRequest
	case errors.Is(err, errBadTotemID):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

var errBadTotemID = errors.New("bad totem_id")

func parseTotemID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errBadTotemID, err)
	}
	return id, nil
}
