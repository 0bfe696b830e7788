package ws

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"totemcraft.ai/internal/protocol"
	"totemcraft.ai/internal/sim/geom"
	"totemcraft.ai/internal/sim/sandbox"
	"totemcraft.ai/internal/sim/sched"
	"totemcraft.ai/internal/sim/service"
)

const (
	outQueue     = 64
	defaultWorld = "world"

	AdminTokenHeader = "x-totem-admin-token"
)

// Authenticator decides whether a HELLO may join and whether the player gets
// admin rights. It runs before the player id is claimed.
type Authenticator func(r *http.Request, hello protocol.HelloMsg) (admin bool, err error)

var errAdminToken = errors.New("admin token required")

// AdminTokenAuth only lets configured admin names in when the upgrade request
// carries token in AdminTokenHeader. Other names join as regular players.
func AdminTokenAuth(app *service.App, token string) Authenticator {
	return func(r *http.Request, hello protocol.HelloMsg) (bool, error) {
		if !app.IsAdmin(hello.PlayerName) {
			return false, nil
		}
		got := r.Header.Get(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return false, errAdminToken
		}
		return true, nil
	}
}

// Server connects WebSocket players to the sandbox and the App. Every App
// call runs on the loop goroutine.
type Server struct {
	app   *service.App
	world *sandbox.World
	loop  *sched.Loop
	log   *log.Logger
	check *protocol.Validator
	auth  Authenticator

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*client

	dropped atomic.Uint64
}

type client struct {
	id    uuid.UUID
	name  string
	admin bool
	out   chan []byte
}

func NewServer(app *service.App, w *sandbox.World, loop *sched.Loop, logger *log.Logger) (*Server, error) {
	check, err := protocol.DefaultValidator()
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:   app,
		world: w,
		loop:  loop,
		log:   logger,
		check: check,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		clients: map[uuid.UUID]*client{},
	}
	w.OnDeliver(s.deliver)
	return s, nil
}

// SetAuthenticator installs fn for every later handshake. Without one, admin
// rights follow the player name alone. Call it before serving.
func (s *Server) SetAuthenticator(fn Authenticator) { s.auth = fn }

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := s.handshake(conn, r)
		if c == nil {
			return
		}
		defer s.leave(c)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cmd, err := s.decodeCmd(msg)
			if err != nil {
				s.send(c, protocol.AckMsg{
					Type:            protocol.TypeAck,
					ProtocolVersion: protocol.Version,
					AckFor:          cmd.ID,
					Accepted:        false,
					Code:            protocol.ErrProtoBadRequest,
					Message:         err.Error(),
				})
				continue
			}
			if err := s.loop.Submit(ctx, func() { s.exec(c, cmd) }); err != nil {
				return
			}
		}
	}
}

func (s *Server) decodeCmd(msg []byte) (protocol.CmdMsg, error) {
	var cmd protocol.CmdMsg
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return cmd, errors.New("malformed json")
	}
	// Best effort so a rejected frame can still be correlated.
	_ = json.Unmarshal(msg, &cmd)
	if base.Type != protocol.TypeCmd {
		return cmd, errors.New("expected CMD")
	}
	if base.ProtocolVersion != protocol.Version {
		return cmd, errors.New("bad protocol_version")
	}
	if err := s.check.ValidateCmd(msg); err != nil {
		return cmd, err
	}
	return cmd, nil
}

func (s *Server) handshake(conn *websocket.Conn, r *http.Request) *client {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return nil
	}
	if base.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return nil
	}
	if err := s.check.ValidateHello(msg); err != nil {
		closeWith(conn, "invalid HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}

	admin := s.app.IsAdmin(hello.PlayerName)
	if s.auth != nil {
		if admin, err = s.auth(r, hello); err != nil {
			s.logf("reject %q: %v", hello.PlayerName, err)
			closeWith(conn, "unauthorized")
			return nil
		}
	}

	id := offlinePlayerID(hello.PlayerName)
	if hello.PlayerID != "" {
		if parsed, err := uuid.Parse(hello.PlayerID); err == nil {
			id = parsed
		}
	}
	c := &client{
		id:    id,
		name:  hello.PlayerName,
		admin: admin,
		out:   make(chan []byte, outQueue),
	}

	s.mu.Lock()
	if _, dup := s.clients[id]; dup {
		s.mu.Unlock()
		closeWith(conn, "already connected")
		return nil
	}
	s.clients[id] = c
	s.mu.Unlock()

	worldName := strings.TrimSpace(hello.World)
	if worldName == "" {
		worldName = defaultWorld
	}
	var spawn *geom.Position
	if hello.Spawn != nil {
		p := geom.FromArray(worldName, *hello.Spawn)
		spawn = &p
	}

	var welcome protocol.WelcomeMsg
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = s.loop.Call(ctx, func() {
		if _, known := s.world.Player(id); !known && spawn == nil {
			p := geom.Position{World: worldName, X: 0.5, Y: 64, Z: 0.5}
			spawn = &p
		}
		s.world.Join(id, hello.PlayerName, spawn, hello.Level)
		welcome = s.welcome(c)
	})
	if err != nil {
		s.forget(c)
		closeWith(conn, "server stopping")
		return nil
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.leave(c)
		return nil
	}
	s.logf("join player=%s id=%s admin=%v", c.name, c.id, c.admin)
	return c
}

func (s *Server) welcome(c *client) protocol.WelcomeMsg {
	tun := s.app.Tuning()
	digest := ""
	if b, err := json.Marshal(tun); err == nil {
		sum := sha256.Sum256(b)
		digest = hex.EncodeToString(sum[:])
	}
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        c.id.String(),
		Admin:           c.admin,
		Params: protocol.ServerParams{
			TickRateHz:               tun.TickRateHz,
			CooldownSeconds:          tun.CooldownSeconds,
			TeleportCountdown:        tun.TeleportCountdown,
			XPCost:                   tun.XPCost,
			MaxTotemsPerPlayer:       tun.MaxTotemsPerPlayer,
			BreakConfirmationSeconds: tun.BreakConfirmationSeconds,
			TotemMaterial:            tun.TotemBlock.Material,
			TuningDigest:             digest,
		},
	}
}

// leave runs the quit hooks on the loop and drops the connection.
func (s *Server) leave(c *client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.loop.Call(ctx, func() {
		s.app.OnQuit(c.id)
		s.app.Unload(c.id)
		s.world.Leave(c.id)
	}); err != nil {
		s.logf("leave player=%s: %v", c.name, err)
	}
	s.forget(c)
	s.logf("leave player=%s id=%s", c.name, c.id)
}

func (s *Server) forget(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[c.id] == c {
		delete(s.clients, c.id)
	}
}

// deliver is the sandbox message listener.
func (s *Server) deliver(player uuid.UUID, key, text string) {
	s.mu.Lock()
	c := s.clients[player]
	s.mu.Unlock()
	if c == nil {
		return
	}
	s.send(c, protocol.NotifyMsg{
		Type:            protocol.TypeNotify,
		ProtocolVersion: protocol.Version,
		Key:             key,
		Text:            text,
	})
}

// send never blocks; a slow client loses frames.
func (s *Server) send(c *client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.out <- b:
	default:
		s.dropped.Add(1)
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// offlinePlayerID derives a stable id from the player name, the way
// offline-mode servers do.
func offlinePlayerID(name string) uuid.UUID {
	return uuid.NewMD5(uuid.Nil, []byte("OfflinePlayer:"+name))
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
