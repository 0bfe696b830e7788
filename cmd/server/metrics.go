package main

import (
	"context"
	"fmt"
	"net/http"

	"totemcraft.ai/internal/sim/sched"
	"totemcraft.ai/internal/sim/service"
	"totemcraft.ai/internal/transport/ws"
)

type statsSource struct {
	app   *service.App
	loop  *sched.Loop
	ws    *ws.Server
	index runtimeIndex
}

type serverStats struct {
	Totems          int    `json:"totems"`
	LoadedPlayers   int    `json:"loaded_players"`
	ActiveTeleports int    `json:"active_teleports"`
	Timers          int    `json:"timers"`
	Clients         int    `json:"clients"`
	DroppedFrames   uint64 `json:"dropped_frames"`
	IndexDepth      int    `json:"index_queue_depth"`
	IndexCapacity   int    `json:"index_queue_capacity"`
	IndexDropped    uint64 `json:"index_dropped_total"`
}

// collect reads App state on the loop and transport counters directly.
func (s *statsSource) collect(ctx context.Context) (serverStats, error) {
	var m serverStats
	err := s.loop.Call(ctx, func() {
		m.Totems = s.app.Totems.Len()
		m.LoadedPlayers = len(s.app.Players.All())
		m.ActiveTeleports = s.app.Teleports.Len()
		m.Timers = s.loop.Pending()
	})
	if err != nil {
		return m, err
	}
	m.Clients = s.ws.Clients()
	m.DroppedFrames = s.ws.Dropped()
	if q, ok := s.index.(indexQueue); ok {
		m.IndexDepth, m.IndexCapacity, m.IndexDropped = q.QueueStats()
	}
	return m, nil
}

func (s *statsSource) metricsHandler(serverID string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		m, err := s.collect(r.Context())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		gauge(rw, "totemcraft_totems", "Totems in the registry.", serverID, m.Totems)
		gauge(rw, "totemcraft_loaded_players", "Players with state loaded in memory.", serverID, m.LoadedPlayers)
		gauge(rw, "totemcraft_active_teleports", "Running teleport countdowns.", serverID, m.ActiveTeleports)
		gauge(rw, "totemcraft_timers", "Live scheduler timers.", serverID, m.Timers)
		gauge(rw, "totemcraft_clients", "Connected WebSocket clients.", serverID, m.Clients)

		fmt.Fprintf(rw, "# HELP totemcraft_dropped_frames_total Frames dropped for slow clients.\n")
		fmt.Fprintf(rw, "# TYPE totemcraft_dropped_frames_total counter\n")
		fmt.Fprintf(rw, "totemcraft_dropped_frames_total{server=%q} %d\n", serverID, m.DroppedFrames)

		if s.index != nil {
			gauge(rw, "totemcraft_index_queue_depth", "Index backend queue depth.", serverID, m.IndexDepth)
			gauge(rw, "totemcraft_index_queue_capacity", "Index backend queue capacity.", serverID, m.IndexCapacity)
			fmt.Fprintf(rw, "# HELP totemcraft_index_dropped_total Index writes dropped because the queue was full.\n")
			fmt.Fprintf(rw, "# TYPE totemcraft_index_dropped_total counter\n")
			fmt.Fprintf(rw, "totemcraft_index_dropped_total{server=%q} %d\n", serverID, m.IndexDropped)
		}
	}
}

func gauge(rw http.ResponseWriter, name, help, serverID string, v int) {
	fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
	fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
	fmt.Fprintf(rw, "%s{server=%q} %d\n", name, serverID, v)
}
