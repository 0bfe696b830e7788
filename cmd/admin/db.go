package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"totemcraft.ai/internal/persistence/indexdb"
)

func dbCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("db", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/totems.sqlite)")
	limit := fs.Int("limit", 20, "result limit (teleports)")
	player := fs.String("player", "", "player uuid filter (teleports)")
	owner := fs.String("owner", "", "owner uuid filter (totems)")
	totemID := fs.String("totem", "", "totem id (audits)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := "teleports"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "totems.sqlite")
	}
	db, err := indexdb.OpenDB(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch q {
	case "teleports":
		rows, err := indexdb.Teleports(ctx, db, *player, *limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(out, r)
		}
	case "totems":
		rows, err := indexdb.Totems(ctx, db, *owner)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(out, r)
		}
	case "audits":
		if *totemID == "" {
			return fmt.Errorf("audits needs -totem")
		}
		rows, err := indexdb.Audits(ctx, db, *totemID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			fmt.Fprintln(out, r.Raw)
		}
	default:
		return fmt.Errorf("unknown query %q (teleports|totems|audits)", q)
	}
	return nil
}
