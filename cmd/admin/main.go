package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"totemcraft.ai/internal/persistence/archive"
	persistlog "totemcraft.ai/internal/persistence/log"
	"totemcraft.ai/internal/persistence/snapshot"
	"totemcraft.ai/internal/sim/tuning"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "totems":
		err = totemsCmd(args, os.Stdout)
	case "players":
		err = playersCmd(args, os.Stdout)
	case "audit":
		err = auditCmd(args, os.Stdout)
	case "archives":
		err = archivesCmd(args, os.Stdout)
	case "restore":
		err = restoreCmd(args, os.Stdout)
	case "db":
		err = dbCmd(args, os.Stdout)
	case "state":
		err = stateCmd(args, os.Stdout)
	case "snapshot":
		err = snapshotCmd(args, os.Stdout)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <totems|players|audit|archives|restore|db|state|snapshot> [flags]")
}

// snapshotPath prefers the compressed variant when both exist.
func snapshotPath(dataDir, name string) string {
	p := filepath.Join(dataDir, name)
	if _, err := os.Stat(p + ".zst"); err == nil {
		return p + ".zst"
	}
	return p
}

func totemsCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("totems", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	owner := fs.String("owner", "", "owner uuid filter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ts, rep, err := snapshot.ReadTotems(snapshotPath(*dataDir, snapshot.TotemsFile), tuning.Defaults().TotemBlock.Material)
	if err != nil {
		return err
	}
	for _, p := range rep.Problems {
		fmt.Fprintln(os.Stderr, "skipped:", p)
	}
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID.String() < ts[j].ID.String()
	})
	for _, t := range ts {
		if *owner != "" && t.Owner.String() != *owner {
			continue
		}
		printJSON(out, struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Owner    string `json:"owner"`
			Location string `json:"location"`
			Material string `json:"material"`
			Created  string `json:"created"`
		}{
			ID:       t.ID.String(),
			Name:     t.Name,
			Owner:    t.Owner.String(),
			Location: t.Location.String(),
			Material: t.Marker,
			Created:  t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

func playersCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("players", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ps, rep, err := snapshot.ReadPlayers(snapshotPath(*dataDir, snapshot.PlayersFile))
	if err != nil {
		return err
	}
	for _, p := range rep.Problems {
		fmt.Fprintln(os.Stderr, "skipped:", p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID.String() < ps[j].ID.String() })
	for _, p := range ps {
		last := ""
		if !p.LastTeleport.IsZero() {
			last = p.LastTeleport.UTC().Format(time.RFC3339)
		}
		printJSON(out, struct {
			ID           string `json:"id"`
			Registered   int    `json:"registered"`
			CustomNames  int    `json:"custom_names"`
			LastTeleport string `json:"last_teleport,omitempty"`
		}{
			ID:           p.ID.String(),
			Registered:   len(p.Registered),
			CustomNames:  len(p.CustomNames),
			LastTeleport: last,
		})
	}
	return nil
}

func auditCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	action := fs.String("action", "", "action filter (TOTEM_CREATE, TELEPORT, ...)")
	totemID := fs.String("totem", "", "totem id filter")
	actor := fs.String("actor", "", "actor filter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	files, err := persistlog.AuditFiles(filepath.Join(*dataDir, "audit"))
	if err != nil {
		return err
	}
	entries, err := persistlog.ReadAudit(files)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if *action != "" && !strings.EqualFold(e.Action, *action) {
			continue
		}
		if *totemID != "" && e.TotemID != *totemID {
			continue
		}
		if *actor != "" && e.Actor != *actor {
			continue
		}
		printJSON(out, e)
	}
	return nil
}

func archivesCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("archives", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	names, err := archive.List(*dataDir)
	if err != nil {
		return err
	}
	for _, n := range names {
		meta, err := archive.ReadMeta(*dataDir, n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", n, err)
			continue
		}
		printJSON(out, struct {
			Name string `json:"name"`
			archive.Meta
		}{Name: n, Meta: meta})
	}
	return nil
}

func restoreCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory (server must be stopped)")
	name := fs.String("archive", "", "archive name (default: newest)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		names, err := archive.List(*dataDir)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return fmt.Errorf("no archives under %s", *dataDir)
		}
		*name = names[len(names)-1]
	}
	files, err := archive.Restore(*dataDir, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "restore ok: archive=%s files=%s\n", *name, strings.Join(files, ","))
	return nil
}

func printJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
