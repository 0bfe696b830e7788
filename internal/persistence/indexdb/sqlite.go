package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"totemcraft.ai/internal/sim/service"
	"totemcraft.ai/internal/sim/teleport"
	"totemcraft.ai/internal/sim/totem"
)

// SQLiteIndex is a query-friendly copy of the totem state, the teleport
// history and the audit trail. Writes are queued and applied by one
// goroutine; the snapshot files stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTotems    atomic.Uint64
	dropTeleports atomic.Uint64
	dropAudits    atomic.Uint64
}

type reqKind int

const (
	reqTotems reqKind = iota + 1
	reqTeleport
	reqAudit
	reqFlush
)

type req struct {
	kind reqKind

	totems   []TotemRow
	teleport TeleportRow
	audit    service.AuditEntry
	done     chan struct{}
}

type Stats struct {
	QueueDepth         int
	QueueCapacity      int
	DropTotemsTotal    uint64
	DropTeleportsTotal uint64
	DropAuditTotal     uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

// OpenDB opens the index database for direct queries.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS totems (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			name TEXT NOT NULL,
			world TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			material TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_totems_owner ON totems(owner);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_totems_loc ON totems(world, x, y, z);`,
		`CREATE TABLE IF NOT EXISTS teleports (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			player TEXT NOT NULL,
			totem_id TEXT NOT NULL,
			totem_name TEXT NOT NULL,
			world TEXT NOT NULL,
			from_x REAL NOT NULL,
			from_y REAL NOT NULL,
			from_z REAL NOT NULL,
			to_x REAL NOT NULL,
			to_y REAL NOT NULL,
			to_z REAL NOT NULL,
			cost INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_teleports_player_at ON teleports(player, at);`,
		`CREATE TABLE IF NOT EXISTS audits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			totem_id TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_at ON audits(actor, at);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_totem_at ON audits(totem_id, at);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) DB() *sql.DB { return s.db }

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
		DropTotemsTotal:    s.dropTotems.Load(),
		DropTeleportsTotal: s.dropTeleports.Load(),
		DropAuditTotal:     s.dropAudits.Load(),
	}
}

// SyncTotems replaces the totems table with ts.
func (s *SQLiteIndex) SyncTotems(ts []totem.Totem) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTotems, totems: totemRows(ts)}:
	default:
		s.dropTotems.Add(1)
	}
}

func (s *SQLiteIndex) RecordTeleport(r teleport.Report) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTeleport, teleport: teleportRow(r)}:
	default:
		s.dropTeleports.Add(1)
	}
}

func (s *SQLiteIndex) WriteAudit(entry service.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		// Drop if the indexer falls behind; the JSONL audit log remains the
		// source of truth.
		s.dropAudits.Add(1)
	}
	return nil
}

// Flush waits until everything queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTeleport, _ := s.db.Prepare(`INSERT INTO teleports(at,player,totem_id,totem_name,world,from_x,from_y,from_z,to_x,to_y,to_z,cost) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(at,actor,action,totem_id,raw_json) VALUES(?,?,?,?,?)`)
	insertTotem, _ := s.db.Prepare(`INSERT OR REPLACE INTO totems(id,owner,name,world,x,y,z,material,created_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTeleport, insertAudit, insertTotem} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTotems:
			if _, err := tx.Exec(`DELETE FROM totems`); err != nil {
				rollback()
				continue
			}
			if insertTotem == nil {
				break
			}
			for _, t := range r.totems {
				if _, err := tx.Stmt(insertTotem).Exec(t.ID, t.Owner, t.Name, t.World, t.X, t.Y, t.Z, t.Material, t.CreatedAt); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqTeleport:
			p := r.teleport
			if insertTeleport != nil {
				if _, err := tx.Stmt(insertTeleport).Exec(
					p.At, p.Player, p.TotemID, p.TotemName, p.World,
					p.From[0], p.From[1], p.From[2],
					p.To[0], p.To[1], p.To[2],
					p.Cost,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(a.At, a.Actor, a.Action, a.TotemID, string(raw)); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

func (s *SQLiteIndex) QueueStats() (depth, capacity int, dropped uint64) {
	st := s.Stats()
	return st.QueueDepth, st.QueueCapacity, st.DropTotemsTotal + st.DropTeleportsTotal + st.DropAuditTotal
}
