package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"totemcraft.ai/internal/protocol"
)

// bot is a scripted player: it places a totem near spawn, lists what it can
// see, teleports to the first other totem and then wanders.
func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "player name")
		world  = flag.String("world", "world", "world name")
		wander = flag.Duration("wander", 40*time.Second, "interval between random moves (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	spawn := [3]float64{0.5, 64, 0.5}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		World:           *world,
		Spawn:           &spawn,
		Level:           10,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	frames := make(chan []byte, 16)
	go func() {
		defer close(frames)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			frames <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{conn: conn, log: logger, world: *world, pos: spawn, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	var tick <-chan time.Time
	if *wander > 0 {
		t := time.NewTicker(*wander)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-stop:
			return
		case <-tick:
			b.wander()
		case msg, ok := <-frames:
			if !ok {
				return
			}
			b.handle(msg)
		}
	}
}

type bot struct {
	conn     *websocket.Conn
	log      *log.Logger
	world    string
	pos      [3]float64
	rng      *rand.Rand
	seq      int
	placed   string
	traveled bool
}

func (b *bot) handle(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return
		}
		b.log.Printf("WELCOME player_id=%s countdown=%ds cooldown=%ds material=%s", w.PlayerID, w.Params.TeleportCountdown, w.Params.CooldownSeconds, w.Params.TotemMaterial)
		at := [3]float64{b.pos[0] + 2, b.pos[1], b.pos[2]}
		b.cmd(protocol.CmdMsg{Op: protocol.OpPlace, World: b.world, Pos: &at})

	case protocol.TypeAck:
		var a protocol.AckMsg
		if err := json.Unmarshal(msg, &a); err != nil {
			return
		}
		if !a.Accepted {
			b.log.Printf("ACK %s rejected code=%s msg=%s", a.AckFor, a.Code, a.Message)
		}
		if a.TotemID != "" && b.placed == "" {
			b.placed = a.TotemID
			b.log.Printf("placed totem %s", a.TotemID)
		}
		if a.AckFor == "c1" {
			b.cmd(protocol.CmdMsg{Op: protocol.OpList})
		}

	case protocol.TypeList:
		var l protocol.ListMsg
		if err := json.Unmarshal(msg, &l); err != nil {
			return
		}
		b.log.Printf("LIST %d totems", len(l.Totems))
		if b.traveled {
			return
		}
		for _, t := range l.Totems {
			if t.ID == b.placed {
				continue
			}
			b.traveled = true
			b.log.Printf("teleporting to %s (%s)", t.DisplayName, t.ID)
			b.cmd(protocol.CmdMsg{Op: protocol.OpTeleport, TotemID: t.ID})
			return
		}

	case protocol.TypeNotify:
		var n protocol.NotifyMsg
		if err := json.Unmarshal(msg, &n); err != nil {
			return
		}
		b.log.Printf("NOTIFY %s: %s", n.Key, n.Text)
	}
}

func (b *bot) wander() {
	b.pos[0] += float64(b.rng.Intn(15) - 7)
	b.pos[2] += float64(b.rng.Intn(15) - 7)
	at := b.pos
	b.cmd(protocol.CmdMsg{Op: protocol.OpMove, World: b.world, Pos: &at})
}

func (b *bot) cmd(c protocol.CmdMsg) {
	b.seq++
	c.Type = protocol.TypeCmd
	c.ProtocolVersion = protocol.Version
	c.ID = fmt.Sprintf("c%d", b.seq)
	if err := b.conn.WriteJSON(c); err != nil {
		b.log.Printf("send %s: %v", c.Op, err)
	}
}
