package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"totemcraft.ai/internal/persistence/archive"
	"totemcraft.ai/internal/persistence/indexdb"
	persistlog "totemcraft.ai/internal/persistence/log"
	"totemcraft.ai/internal/persistence/snapshot"
	"totemcraft.ai/internal/sim/geom"
	"totemcraft.ai/internal/sim/service"
	"totemcraft.ai/internal/sim/teleport"
	"totemcraft.ai/internal/sim/totem"
	"totemcraft.ai/internal/sim/tuning"
)

// replay applies the audit log to a baseline (an archive, or nothing) and
// checks that the result matches the current totems snapshot. With -reindex
// it also rebuilds a SQLite index from the same log.
func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		baseline = flag.String("archive", "", "archive name to start from (optional; default: empty registry)")
		reindex  = flag.String("reindex", "", "sqlite path to rebuild from the audit log (optional)")
	)
	flag.Parse()

	fallback := tuning.Defaults().TotemBlock.Material
	state := map[string]string{}
	var since int64
	if *baseline != "" {
		meta, err := archive.ReadMeta(*dataDir, *baseline)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read archive meta:", err)
			os.Exit(1)
		}
		at, err := time.Parse(time.RFC3339Nano, meta.CreatedAt)
		if err != nil {
			fmt.Fprintln(os.Stderr, "archive created_at:", err)
			os.Exit(1)
		}
		since = at.UnixMilli()
		ts, _, err := snapshot.ReadTotems(archivedTotems(*dataDir, *baseline, meta), fallback)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read archived totems:", err)
			os.Exit(1)
		}
		for _, t := range ts {
			state[t.ID.String()] = t.Name
		}
	}

	files, err := persistlog.AuditFiles(filepath.Join(*dataDir, "audit"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit:", err)
		os.Exit(1)
	}
	entries, err := persistlog.ReadAudit(files)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}

	var idx *indexdb.SQLiteIndex
	if *reindex != "" {
		_ = os.Remove(*reindex)
		idx, err = indexdb.OpenSQLite(*reindex)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open index:", err)
			os.Exit(1)
		}
	}

	st := apply(state, entries, since, func(e service.AuditEntry) {
		if idx == nil {
			return
		}
		if e.Action == service.ActionTeleport {
			if r, ok := teleportReport(e); ok {
				idx.RecordTeleport(r)
			}
		}
		_ = idx.WriteAudit(e)
	})

	current, _, err := snapshot.ReadTotems(snapshotPath(*dataDir, snapshot.TotemsFile), fallback)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read totems:", err)
		os.Exit(1)
	}
	if idx != nil {
		idx.SyncTotems(current)
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := idx.Flush(ctx)
		cancel()
		_ = idx.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "flush index:", err)
			os.Exit(1)
		}
	}

	diffs := compare(state, current)
	for _, d := range diffs {
		fmt.Println("mismatch:", d)
	}
	if len(diffs) > 0 {
		os.Exit(1)
	}
	fmt.Printf("replay ok: applied=%d skipped=%d teleports=%d totems=%d\n", st.applied, st.skipped, st.teleports, len(current))
}

type replayStats struct {
	applied   int
	skipped   int
	teleports int
}

// apply folds registry-changing audit entries at or after since into state
// (totem id -> name). Every considered entry is passed to each.
func apply(state map[string]string, entries []service.AuditEntry, since int64, each func(service.AuditEntry)) replayStats {
	var st replayStats
	for _, e := range entries {
		if e.At < since {
			st.skipped++
			continue
		}
		switch e.Action {
		case service.ActionCreate:
			name, _ := e.Details["name"].(string)
			state[e.TotemID] = name
		case service.ActionRemove, service.ActionCleanup:
			delete(state, e.TotemID)
		case service.ActionRename:
			if name, ok := e.Details["new"].(string); ok {
				if _, exists := state[e.TotemID]; exists {
					state[e.TotemID] = name
				}
			}
		case service.ActionTeleport:
			st.teleports++
		}
		st.applied++
		if each != nil {
			each(e)
		}
	}
	return st
}

func compare(state map[string]string, current []totem.Totem) []string {
	var diffs []string
	seen := map[string]bool{}
	for _, t := range current {
		id := t.ID.String()
		seen[id] = true
		name, ok := state[id]
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("totem %s (%s) in snapshot but not in audit", id, t.Name))
		case name != t.Name:
			diffs = append(diffs, fmt.Sprintf("totem %s name snapshot=%q audit=%q", id, t.Name, name))
		}
	}
	for id, name := range state {
		if !seen[id] {
			diffs = append(diffs, fmt.Sprintf("totem %s (%s) in audit but not in snapshot", id, name))
		}
	}
	sort.Strings(diffs)
	return diffs
}

func teleportReport(e service.AuditEntry) (teleport.Report, bool) {
	player, err := uuid.Parse(e.Actor)
	if err != nil {
		return teleport.Report{}, false
	}
	id, err := uuid.Parse(e.TotemID)
	if err != nil {
		return teleport.Report{}, false
	}
	world, _ := e.Details["world"].(string)
	name, _ := e.Details["totem"].(string)
	cost, _ := e.Details["cost"].(float64)
	return teleport.Report{
		Player:    player,
		TotemID:   id,
		TotemName: name,
		From:      geom.FromArray(world, vec3(e.Details["from"])),
		To:        geom.FromArray(world, vec3(e.Details["to"])),
		Cost:      int(cost),
		At:        e.Time(),
	}, true
}

// vec3 reads a JSON-decoded [x,y,z] array.
func vec3(v any) [3]float64 {
	var out [3]float64
	arr, _ := v.([]any)
	for i := 0; i < len(arr) && i < 3; i++ {
		out[i], _ = arr[i].(float64)
	}
	return out
}

func archivedTotems(dataDir, name string, meta archive.Meta) string {
	for _, f := range meta.Files {
		if f == snapshot.TotemsFile || f == snapshot.TotemsFile+".zst" {
			return filepath.Join(dataDir, "archives", name, f)
		}
	}
	return filepath.Join(dataDir, "archives", name, snapshot.TotemsFile)
}

func snapshotPath(dataDir, name string) string {
	p := filepath.Join(dataDir, name)
	if _, err := os.Stat(p + ".zst"); err == nil {
		return p + ".zst"
	}
	return p
}
