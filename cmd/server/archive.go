package main

import (
	"log"
	"path/filepath"

	"totemcraft.ai/internal/persistence/archive"
	"totemcraft.ai/internal/sim/service"
)

// archiver saves the current state and copies it into archives/. It runs on
// the loop.
type archiver struct {
	app     *service.App
	dataDir string
	keep    int
	log     *log.Logger
}

func (a *archiver) run(reason string) (string, error) {
	if err := a.app.Save(); err != nil {
		a.log.Printf("archive: save: %v", err)
		return "", err
	}
	meta := archive.Meta{
		Reason:  reason,
		Totems:  a.app.Totems.Len(),
		Players: len(a.app.ExportPlayers()),
	}
	dir, err := archive.ArchiveSnapshot(a.dataDir, []string{a.app.TotemsPath(), a.app.PlayersPath()}, meta, a.app.Now())
	if err != nil {
		a.log.Printf("archive: %v", err)
		return "", err
	}
	removed, err := archive.Prune(a.dataDir, a.keep)
	if err != nil {
		a.log.Printf("archive prune: %v", err)
	}
	a.log.Printf("archived %s reason=%s totems=%d pruned=%d", filepath.Base(dir), reason, meta.Totems, len(removed))
	return dir, nil
}
