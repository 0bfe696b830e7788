package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"totemcraft.ai/internal/sim/service"
	"totemcraft.ai/internal/sim/teleport"
	"totemcraft.ai/internal/sim/totem"
)

// D1Config points the exporter at an HTTP ingest worker that writes into a
// remote SQL database (Cloudflare D1 in production).
type D1Config struct {
	Endpoint      string
	Token         string
	ServerID      string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

type D1Index struct {
	cfg        D1Config
	httpClient *http.Client

	ch   chan d1Event
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropped    atomic.Uint64
	flushFails atomic.Uint64
}

type d1Event struct {
	Kind     string `json:"kind"`
	ServerID string `json:"server_id"`
	Payload  any    `json:"payload"`
}

type d1TotemsPayload struct {
	Totems []TotemRow `json:"totems"`
}

type D1Stats struct {
	QueueDepth        int
	QueueCapacity     int
	QueueDroppedTotal uint64
	FlushFailTotal    uint64
}

func OpenD1(cfg D1Config) (*D1Index, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.ServerID = strings.TrimSpace(cfg.ServerID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty d1 ingest endpoint")
	}
	if cfg.ServerID == "" {
		return nil, fmt.Errorf("empty server id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &D1Index{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		ch: make(chan d1Event, 32768),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()

	return d, nil
}

func (d *D1Index) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *D1Index) Stats() D1Stats {
	if d == nil {
		return D1Stats{}
	}
	return D1Stats{
		QueueDepth:        len(d.ch),
		QueueCapacity:     cap(d.ch),
		QueueDroppedTotal: d.dropped.Load(),
		FlushFailTotal:    d.flushFails.Load(),
	}
}

func (d *D1Index) SyncTotems(ts []totem.Totem) {
	d.enqueue("totems", d1TotemsPayload{Totems: totemRows(ts)})
}

func (d *D1Index) RecordTeleport(r teleport.Report) {
	d.enqueue("teleport", teleportRow(r))
}

func (d *D1Index) WriteAudit(entry service.AuditEntry) error {
	d.enqueue("audit", entry)
	return nil
}

func (d *D1Index) enqueue(kind string, payload any) {
	if d == nil || d.closed.Load() {
		return
	}
	ev := d1Event{Kind: kind, ServerID: d.cfg.ServerID, Payload: payload}
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
		d.printf("d1 index queue full; drop kind=%s server=%s", ev.Kind, ev.ServerID)
	}
}

func (d *D1Index) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]d1Event, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFails.Add(1)
			d.printf("d1 index flush failed batch=%d err=%v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *D1Index) sendBatch(events []d1Event) error {
	if len(events) == 0 {
		return nil
	}

	body := struct {
		Events []d1Event `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-totem-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *D1Index) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}

// Multi fans index writes out to several backends.
type Multi []service.Index

func (m Multi) SyncTotems(ts []totem.Totem) {
	for _, ix := range m {
		ix.SyncTotems(ts)
	}
}

func (m Multi) RecordTeleport(r teleport.Report) {
	for _, ix := range m {
		ix.RecordTeleport(r)
	}
}

func (d *D1Index) QueueStats() (depth, capacity int, dropped uint64) {
	st := d.Stats()
	return st.QueueDepth, st.QueueCapacity, st.QueueDroppedTotal
}
