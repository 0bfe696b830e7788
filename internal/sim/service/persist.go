package service

import (
	"errors"

	"totemcraft.ai/internal/persistence/snapshot"
	"totemcraft.ai/internal/sim/players"
)

type LoadReport struct {
	Totems   snapshot.Report
	Players  snapshot.Report
	Restored int
}

// Load reads both snapshot files into an empty registry and store. Bad
// records are skipped; restore re-places markers that went missing.
func (a *App) Load() (LoadReport, error) {
	var rep LoadReport
	if a.dataDir == "" {
		return rep, nil
	}
	ts, trep, err := snapshot.ReadTotems(a.TotemsPath(), a.tun.TotemBlock.Material)
	if err != nil {
		a.logf("load totems: %v", err)
		return rep, err
	}
	for _, t := range ts {
		if err := a.Totems.Insert(t); err != nil {
			trep.Loaded--
			trep.Skipped++
			trep.Problems = append(trep.Problems, "totem "+t.ID.String()+": "+err.Error())
		}
	}
	rep.Totems = trep
	rep.Restored = a.Totems.RestoreOrFlag()

	ps, prep, err := snapshot.ReadPlayers(a.PlayersPath())
	if err != nil {
		a.logf("load players: %v", err)
		return rep, err
	}
	for _, p := range ps {
		a.Players.Restore(p.ID, p.Registered, p.CustomNames, p.LastTeleport)
	}
	rep.Players = prep

	for _, line := range append(rep.Totems.Problems, rep.Players.Problems...) {
		a.logf("skipped: %s", line)
	}
	a.logf("loaded %d totems (%d skipped, %d markers restored), %d players (%d skipped)",
		rep.Totems.Loaded, rep.Totems.Skipped, rep.Restored, rep.Players.Loaded, rep.Players.Skipped)
	if a.index != nil {
		a.index.SyncTotems(a.Totems.All())
	}
	return rep, nil
}

// Save overwrites both snapshot files. A failure is logged and returned as a
// *snapshot.Error; memory is unchanged and the next save retries.
func (a *App) Save() error {
	return errors.Join(a.saveTotems(), a.savePlayers())
}

func (a *App) saveTotems() error {
	if a.dataDir == "" {
		return nil
	}
	all := a.Totems.All()
	if err := snapshot.WriteTotems(a.TotemsPath(), all); err != nil {
		a.logf("%v", err)
		return err
	}
	if a.index != nil {
		a.index.SyncTotems(all)
	}
	return nil
}

func (a *App) savePlayers() error {
	if a.dataDir == "" {
		return nil
	}
	if err := snapshot.WritePlayers(a.PlayersPath(), a.ExportPlayers()); err != nil {
		a.logf("%v", err)
		return err
	}
	return nil
}

// ExportPlayers is every loaded and unloaded player's persisted state.
func (a *App) ExportPlayers() []snapshot.Player {
	out := make([]snapshot.Player, 0, a.Players.Loaded()+len(a.offline))
	for _, st := range a.Players.All() {
		out = append(out, exportPlayer(st))
	}
	for id, p := range a.offline {
		if !a.Players.Has(id) {
			out = append(out, p)
		}
	}
	return out
}

func exportPlayer(st *players.State) snapshot.Player {
	return snapshot.Player{
		ID:           st.PlayerID,
		Registered:   st.Registered(),
		CustomNames:  st.CustomNames(),
		LastTeleport: st.LastTeleportAt,
	}
}

// Shutdown cancels every countdown and flushes a final snapshot.
func (a *App) Shutdown() error {
	n := a.Teleports.CancelAll()
	if n > 0 {
		a.logf("cancelled %d active teleports", n)
	}
	return a.Save()
}
