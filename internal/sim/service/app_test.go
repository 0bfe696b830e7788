package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"totemcraft.ai/internal/persistence/snapshot"
	"totemcraft.ai/internal/sim/geom"
	"totemcraft.ai/internal/sim/messages"
	"totemcraft.ai/internal/sim/sandbox"
	"totemcraft.ai/internal/sim/sched"
	"totemcraft.ai/internal/sim/totem"
	"totemcraft.ai/internal/sim/tuning"
)

var home = geom.Location{World: "overworld", X: 10, Y: 64, Z: 10}

type memAudit struct{ entries []AuditEntry }

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) actions() []string {
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	app   *App
	world *sandbox.World
	clock *sched.Manual
	audit *memAudit
	dir   string
}

func newFixture(t *testing.T, tweak func(*tuning.Tuning)) *fixture {
	t.Helper()
	dir := t.TempDir()
	return newFixtureAt(t, dir, sandbox.New(), tweak)
}

func newFixtureAt(t *testing.T, dir string, world *sandbox.World, tweak func(*tuning.Tuning)) *fixture {
	t.Helper()
	tun := tuning.Defaults()
	tun.TotemBlock.Indestructible = false
	if tweak != nil {
		tweak(&tun)
	}
	f := &fixture{
		world: world,
		clock: sched.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		audit: &memAudit{},
		dir:   dir,
	}
	f.app = New(Options{
		Tuning:    tun,
		Host:      world,
		Effects:   world,
		Notifier:  messages.NewDispatcher(messages.Default(nil), world),
		Scheduler: f.clock,
		DataDir:   dir,
		Audit:     []AuditSink{f.audit},
	})
	return f
}

func (f *fixture) join(name string, level int) Actor {
	id := uuid.New()
	pos := geom.Position{World: "overworld", X: 0.5, Y: 64, Z: 0.5}
	f.world.Join(id, name, &pos, level)
	return Actor{ID: id, Name: name}
}

func (f *fixture) lastKey(t *testing.T, a Actor) string {
	t.Helper()
	in := f.world.Inbox(a.ID)
	if len(in) == 0 {
		t.Fatalf("no messages for %s", a.Name)
	}
	return in[len(in)-1].Key
}

func TestPlaceTotem_SecondPlacementAtSameLocationFails(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)

	tt, err := f.app.PlaceTotem(alex, home, "Home")
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if f.app.Totems.Len() != 1 {
		t.Fatalf("len=%d want 1", f.app.Totems.Len())
	}
	if got, ok := f.app.Totems.ByLocation(home); !ok || got.ID != tt.ID {
		t.Fatalf("by location=%+v ok=%v", got, ok)
	}
	if k, _ := f.world.BlockAt(home); k != "BEDROCK" {
		t.Fatalf("marker=%q", k)
	}
	if !f.app.Players.IsRegistered(alex.ID, tt.ID) {
		t.Fatalf("creator not auto-registered")
	}
	if key := f.lastKey(t, alex); key != "totem-created" {
		t.Fatalf("key=%q", key)
	}

	steve := f.join("steve", 5)
	if _, err := f.app.PlaceTotem(steve, home, "Mine"); !errors.Is(err, totem.ErrLocationOccupied) {
		t.Fatalf("err=%v want ErrLocationOccupied", err)
	}
	if key := f.lastKey(t, steve); key != "error-totem-exists" {
		t.Fatalf("key=%q", key)
	}
	if f.app.Totems.Len() != 1 {
		t.Fatalf("len=%d want 1", f.app.Totems.Len())
	}
	if _, err := os.Stat(filepath.Join(f.dir, snapshot.TotemsFile)); err != nil {
		t.Fatalf("place did not save: %v", err)
	}
}

func TestPlaceTotem_QuotaObstructionAndNames(t *testing.T) {
	f := newFixture(t, func(tu *tuning.Tuning) { tu.MaxTotemsPerPlayer = 1 })
	alex := f.join("alex", 5)

	stone := home.Offset(5, 0, 0)
	f.world.SetBlock(stone, "STONE")
	if _, err := f.app.PlaceTotem(alex, stone, ""); !errors.Is(err, ErrObstructed) {
		t.Fatalf("err=%v want ErrObstructed", err)
	}
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	if _, err := f.app.PlaceTotem(alex, home, long); !errors.Is(err, ErrNameTooLong) {
		t.Fatalf("err=%v want ErrNameTooLong", err)
	}

	tt, err := f.app.PlaceTotem(alex, home, "  ")
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if tt.Name != "alex's Totem" {
		t.Fatalf("default name=%q", tt.Name)
	}
	var qe *QuotaError
	if _, err := f.app.PlaceTotem(alex, home.Offset(0, 0, 3), "Two"); !errors.As(err, &qe) || qe.Max != 1 {
		t.Fatalf("err=%v want QuotaError{1}", err)
	}
	if key := f.lastKey(t, alex); key != "error-max-totems" {
		t.Fatalf("key=%q", key)
	}
}

func TestRegisterAndList(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	steve := f.join("steve", 5)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")

	if _, ok, err := f.app.RegisterTotem(steve, home); err != nil || !ok {
		t.Fatalf("register ok=%v err=%v", ok, err)
	}
	if _, ok, _ := f.app.RegisterTotem(steve, home); ok {
		t.Fatalf("second register should report false")
	}
	if key := f.lastKey(t, steve); key != "totem-already-registered" {
		t.Fatalf("key=%q", key)
	}
	if _, _, err := f.app.RegisterTotem(steve, home.Offset(1, 0, 0)); !errors.Is(err, ErrUnknownTotem) {
		t.Fatalf("err=%v want ErrUnknownTotem", err)
	}

	if err := f.app.SetCustomName(steve, tt.ID, "Alex base"); err != nil {
		t.Fatalf("custom name: %v", err)
	}
	ghost := uuid.New()
	f.app.Players.RegisterTotem(steve.ID, ghost)

	list := f.app.ListTotems(steve)
	if len(list) != 1 || list[0].DisplayName != "Alex base" || !list[0].Custom || list[0].Owned {
		t.Fatalf("list=%+v", list)
	}
	if f.app.Players.IsRegistered(steve.ID, ghost) {
		t.Fatalf("missing totem still registered after list")
	}
	if err := f.app.SetCustomName(steve, ghost, "x"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("err=%v want ErrNotRegistered", err)
	}
}

func TestBreak_ConfirmWithinWindowDestroys(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	steve := f.join("steve", 5)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")
	_, _, _ = f.app.RegisterTotem(steve, home)
	_ = f.app.SetCustomName(steve, tt.ID, "Theirs")

	out, err := f.app.BreakTotem(alex, home)
	if err != nil || out != BreakPrompted {
		t.Fatalf("first break out=%v err=%v", out, err)
	}
	if _, ok := f.app.Totems.ByID(tt.ID); !ok {
		t.Fatalf("destroyed on first request")
	}
	if key := f.lastKey(t, alex); key != "totem-break-confirm" {
		t.Fatalf("key=%q", key)
	}

	f.clock.Advance(2 * time.Second)
	out, err = f.app.BreakTotem(alex, home)
	if err != nil || out != BreakDestroyed {
		t.Fatalf("confirm out=%v err=%v", out, err)
	}
	if f.app.Totems.Len() != 0 || f.world.Obstructed(home) {
		t.Fatalf("totem or marker survived")
	}
	for _, p := range []Actor{alex, steve} {
		if f.app.Players.IsRegistered(p.ID, tt.ID) {
			t.Fatalf("%s still registered", p.Name)
		}
	}
	if _, ok := f.app.Players.CustomName(steve.ID, tt.ID); ok {
		t.Fatalf("custom name survived destruction")
	}
	if f.app.Players.Get(alex.ID).HasPendingBreak() {
		t.Fatalf("pending break not cleared")
	}
	if err := f.app.Totems.CheckIndex(); err != nil {
		t.Fatalf("index: %v", err)
	}
}

func TestBreak_ExpiredConfirmationIsFreshRequest(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	_, _ = f.app.PlaceTotem(alex, home, "Home")

	_, _ = f.app.BreakTotem(alex, home)
	f.clock.Advance(5*time.Second + time.Millisecond)
	if out, _ := f.app.BreakTotem(alex, home); out != BreakPrompted {
		t.Fatalf("out=%v want prompted", out)
	}
	if f.app.Totems.Len() != 1 {
		t.Fatalf("totem destroyed by an expired confirmation")
	}
	// the re-request restarted the window
	f.clock.Advance(5 * time.Second)
	if out, _ := f.app.BreakTotem(alex, home); out != BreakDestroyed {
		t.Fatalf("out=%v want destroyed at exactly the window", out)
	}
}

func TestBreak_OtherTotemOverwritesPending(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	x := home
	y := home.Offset(3, 0, 0)
	_, _ = f.app.PlaceTotem(alex, x, "X")
	_, _ = f.app.PlaceTotem(alex, y, "Y")

	_, _ = f.app.BreakTotem(alex, x)
	if out, _ := f.app.BreakTotem(alex, y); out != BreakPrompted {
		t.Fatalf("break on other totem out=%v want prompted", out)
	}
	if out, _ := f.app.BreakTotem(alex, x); out != BreakPrompted {
		t.Fatalf("X was no longer pending; out=%v", out)
	}
	if f.app.Totems.Len() != 2 {
		t.Fatalf("len=%d want 2", f.app.Totems.Len())
	}
}

func TestBreak_PermissionAndIndestructible(t *testing.T) {
	f := newFixture(t, func(tu *tuning.Tuning) { tu.TotemBlock.Indestructible = true })
	alex := f.join("alex", 5)
	steve := f.join("steve", 5)
	_, _ = f.app.PlaceTotem(alex, home, "Home")

	if _, err := f.app.BreakTotem(steve, home); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err=%v want ErrPermissionDenied", err)
	}
	if _, err := f.app.BreakTotem(alex, home); !errors.Is(err, ErrIndestructible) {
		t.Fatalf("err=%v want ErrIndestructible", err)
	}
	admin := Actor{ID: steve.ID, Name: steve.Name, Admin: true}
	_, _ = f.app.BreakTotem(admin, home)
	if out, err := f.app.BreakTotem(admin, home); err != nil || out != BreakDestroyed {
		t.Fatalf("admin out=%v err=%v", out, err)
	}
	if _, err := f.app.BreakTotem(admin, home); !errors.Is(err, ErrUnknownTotem) {
		t.Fatalf("err=%v want ErrUnknownTotem", err)
	}
}

func TestChatRename(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	steve := f.join("steve", 5)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")

	if f.app.ChatInput(alex, "hello") {
		t.Fatalf("chat consumed without a pending rename")
	}
	if err := f.app.BeginRename(steve, tt.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err=%v want ErrPermissionDenied", err)
	}

	_ = f.app.BeginRename(alex, tt.ID)
	if !f.app.ChatInput(alex, "CANCELAR") {
		t.Fatalf("cancel word not consumed")
	}
	if key := f.lastKey(t, alex); key != "rename-cancelled" {
		t.Fatalf("key=%q", key)
	}

	_ = f.app.BeginRename(alex, tt.ID)
	f.app.ChatInput(alex, "abcdefghijklmnopqrstuvwxyz0123456789")
	if key := f.lastKey(t, alex); key != "rename-too-long" {
		t.Fatalf("key=%q", key)
	}
	if _, waiting := f.app.AwaitingRename(alex.ID); waiting {
		t.Fatalf("rename still pending after a rejected name")
	}

	_ = f.app.BeginRename(alex, tt.ID)
	f.app.ChatInput(alex, "  Castle  ")
	if got, _ := f.app.Totems.ByID(tt.ID); got.Name != "Castle" {
		t.Fatalf("name=%q", got.Name)
	}

	admin := Actor{ID: steve.ID, Name: steve.Name, Admin: true}
	if err := f.app.Rename(admin, tt.ID, "Admin named"); err != nil {
		t.Fatalf("admin rename: %v", err)
	}
	acts := f.audit.actions()
	if acts[len(acts)-1] != ActionRename {
		t.Fatalf("audit=%v", acts)
	}
}

func TestTeleport_ThroughApp(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	steve := f.join("steve", 0)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")

	if _, err := f.app.Teleport(steve, tt.ID); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("err=%v want ErrNotRegistered", err)
	}
	if _, err := f.app.Teleport(alex, uuid.New()); !errors.Is(err, ErrUnknownTotem) {
		t.Fatalf("err=%v want ErrUnknownTotem", err)
	}
	if _, err := f.app.Teleport(alex, tt.ID); err != nil {
		t.Fatalf("teleport: %v", err)
	}
	f.clock.Advance(3 * time.Second)
	p, _ := f.world.Player(alex.ID)
	if p.Pos != (geom.Position{World: "overworld", X: 10.5, Y: 65, Z: 10.5}) || p.Level != 4 {
		t.Fatalf("player=%+v", p)
	}
	acts := f.audit.actions()
	if acts[len(acts)-1] != ActionTeleport {
		t.Fatalf("audit=%v", acts)
	}
}

func TestTeleport_SuccessUsesNameAtArrival(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")
	if _, err := f.app.Teleport(alex, tt.ID); err != nil {
		t.Fatalf("teleport: %v", err)
	}
	f.clock.Advance(time.Second)
	if err := f.app.Rename(alex, tt.ID, "Base"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	_ = f.world.Inbox(alex.ID)
	f.clock.Advance(2 * time.Second)

	var text string
	for _, d := range f.world.Inbox(alex.ID) {
		if d.Key == "teleport-success" {
			text = d.Text
		}
	}
	if !strings.Contains(text, "Base") || strings.Contains(text, "Home") {
		t.Fatalf("success text=%q want new name", text)
	}
	if got := f.audit.entries[len(f.audit.entries)-1]; got.Details["totem"] != "Base" {
		t.Fatalf("audit details=%v", got.Details)
	}
}

func TestOnDamageAndQuit(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")

	_, _ = f.app.Teleport(alex, tt.ID)
	if !f.app.OnDamage(alex.ID) {
		t.Fatalf("damage did not cancel")
	}
	if key := f.lastKey(t, alex); key != "teleport-cancelled-damage" {
		t.Fatalf("key=%q", key)
	}
	if f.app.OnDamage(alex.ID) {
		t.Fatalf("second damage should be a no-op")
	}

	_, _ = f.app.Teleport(alex, tt.ID)
	_, _ = f.app.BreakTotem(alex, home)
	_ = f.app.BeginRename(alex, tt.ID)
	f.world.Inbox(alex.ID)
	f.app.OnQuit(alex.ID)
	if f.app.Teleports.IsTeleporting(alex.ID) || f.app.Players.Get(alex.ID).HasPendingBreak() {
		t.Fatalf("quit left transient state")
	}
	if _, waiting := f.app.AwaitingRename(alex.ID); waiting {
		t.Fatalf("quit left a pending rename")
	}
	if in := f.world.Inbox(alex.ID); len(in) != 0 {
		t.Fatalf("quit sent %+v", in)
	}
}

func TestDestroyCancelsTeleportsToIt(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	steve := f.join("steve", 5)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")
	_, _, _ = f.app.RegisterTotem(steve, home)

	_, _ = f.app.Teleport(steve, tt.ID)
	_, _ = f.app.BreakTotem(alex, home)
	_, _ = f.app.BreakTotem(alex, home)
	if f.app.Teleports.IsTeleporting(steve.ID) {
		t.Fatalf("countdown to a destroyed totem survived")
	}
	if key := f.lastKey(t, steve); key != "error-totem-invalid" {
		t.Fatalf("key=%q", key)
	}
}

func TestCleanupPrunesMissingMarkers(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")
	_, _ = f.app.PlaceTotem(alex, home.Offset(4, 0, 0), "Kept")

	f.world.SetBlock(home, "")
	if n := f.app.Cleanup(); n != 1 {
		t.Fatalf("cleanup=%d want 1", n)
	}
	if f.app.Players.IsRegistered(alex.ID, tt.ID) || f.app.Totems.Len() != 1 {
		t.Fatalf("cleanup left references")
	}
	if n := f.app.Cleanup(); n != 0 {
		t.Fatalf("second cleanup=%d want 0", n)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	steve := f.join("steve", 5)
	a, _ := f.app.PlaceTotem(alex, home, "Home")
	b, _ := f.app.PlaceTotem(steve, geom.Location{World: "nether", X: -7, Y: 30, Z: 2}, "Hell")
	_, _, _ = f.app.RegisterTotem(alex, b.Location)
	_ = f.app.SetCustomName(alex, b.ID, "Steve's")
	_, _ = f.app.Teleport(alex, a.ID)
	f.clock.Advance(3 * time.Second)
	if err := f.app.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	g := newFixtureAt(t, f.dir, f.world, nil)
	rep, err := g.app.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rep.Totems.Loaded != 2 || rep.Players.Loaded != 2 || rep.Restored != 0 {
		t.Fatalf("report=%+v", rep)
	}
	for _, want := range []totem.Totem{a, b} {
		got, ok := g.app.Totems.ByID(want.ID)
		if !ok || got.Owner != want.Owner || got.Name != want.Name || got.Location != want.Location || got.Marker != want.Marker || !got.CreatedAt.Equal(want.CreatedAt) {
			t.Fatalf("got=%+v want %+v", got, want)
		}
	}
	st := g.app.Players.Get(alex.ID)
	if st.RegisteredCount() != 2 || !st.IsRegistered(b.ID) {
		t.Fatalf("registered=%v", st.Registered())
	}
	if n, _ := st.CustomName(b.ID); n != "Steve's" {
		t.Fatalf("custom=%q", n)
	}
	if !st.LastTeleportAt.Equal(f.app.Players.Get(alex.ID).LastTeleportAt) || st.LastTeleportAt.IsZero() {
		t.Fatalf("last teleport=%v", st.LastTeleportAt)
	}
	if err := g.app.Totems.CheckIndex(); err != nil {
		t.Fatalf("index: %v", err)
	}
}

func TestLoadRestoresMissingMarkers(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	_, _ = f.app.PlaceTotem(alex, home, "Home")

	g := newFixtureAt(t, f.dir, sandbox.New(), nil)
	rep, err := g.app.Load()
	if err != nil || rep.Restored != 1 {
		t.Fatalf("rep=%+v err=%v", rep, err)
	}
	if k, _ := g.world.BlockAt(home); k != "BEDROCK" {
		t.Fatalf("marker not restored: %q", k)
	}
}

func TestUnloadKeepsPersistedState(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")

	f.app.Unload(alex.ID)
	if f.app.Players.Has(alex.ID) {
		t.Fatalf("still loaded")
	}
	if err := f.app.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	ps, _, _ := snapshot.ReadPlayers(f.app.PlayersPath())
	if len(ps) != 1 || len(ps[0].Registered) != 1 {
		t.Fatalf("unloaded player dropped from snapshot: %+v", ps)
	}
	if list := f.app.ListTotems(alex); len(list) != 1 || list[0].Totem.ID != tt.ID {
		t.Fatalf("returning player lost bookmarks: %+v", list)
	}
}

func TestBreak_ClearsUnloadedPlayersBookmarks(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	bea := f.join("bea", 5)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")
	_, _, _ = f.app.RegisterTotem(bea, home)
	_ = f.app.SetCustomName(bea, tt.ID, "Alex base")
	f.app.OnQuit(bea.ID)
	f.app.Unload(bea.ID)

	if out, _ := f.app.BreakTotem(alex, home); out != BreakPrompted {
		t.Fatalf("first break out=%v", out)
	}
	if out, err := f.app.BreakTotem(alex, home); err != nil || out != BreakDestroyed {
		t.Fatalf("confirm out=%v err=%v", out, err)
	}
	for _, p := range f.app.ExportPlayers() {
		for _, id := range p.Registered {
			if id == tt.ID {
				t.Fatalf("player %s still registered to destroyed totem", p.ID)
			}
		}
		if _, ok := p.CustomNames[tt.ID]; ok {
			t.Fatalf("player %s kept custom name for destroyed totem", p.ID)
		}
	}
	ps, _, err := snapshot.ReadPlayers(f.app.PlayersPath())
	if err != nil {
		t.Fatalf("read players: %v", err)
	}
	for _, p := range ps {
		if p.ID == bea.ID && (len(p.Registered) != 0 || len(p.CustomNames) != 0) {
			t.Fatalf("bea on disk=%+v", p)
		}
	}
}

func TestSaveFailureIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "file")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := newFixtureAt(t, blocked, sandbox.New(), nil)
	alex := f.join("alex", 5)
	tt, err := f.app.PlaceTotem(alex, home, "Home")
	if err != nil {
		t.Fatalf("place must succeed even when saving fails: %v", err)
	}
	var se *snapshot.Error
	if err := f.app.Save(); !errors.As(err, &se) {
		t.Fatalf("err=%v want *snapshot.Error", err)
	}
	if _, ok := f.app.Totems.ByID(tt.ID); !ok {
		t.Fatalf("failed save touched memory")
	}
}

func TestSchedule_PeriodicSaveAndCleanup(t *testing.T) {
	f := newFixture(t, func(tu *tuning.Tuning) {
		tu.SnapshotEverySeconds = 10
		tu.CleanupEverySeconds = 20
	})
	alex := f.join("alex", 5)
	_, _ = f.app.PlaceTotem(alex, home, "Home")
	if hs := f.app.Schedule(); len(hs) != 2 {
		t.Fatalf("handles=%d want 2", len(hs))
	}
	f.world.SetBlock(home, "")
	f.clock.Advance(20 * time.Second)
	if f.app.Totems.Len() != 0 {
		t.Fatalf("periodic cleanup did not run")
	}
}

func TestShutdownCancelsTeleports(t *testing.T) {
	f := newFixture(t, nil)
	alex := f.join("alex", 5)
	tt, _ := f.app.PlaceTotem(alex, home, "Home")
	_, _ = f.app.Teleport(alex, tt.ID)
	if err := f.app.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if f.app.Teleports.Len() != 0 || f.clock.Pending() != 0 {
		t.Fatalf("len=%d pending=%d", f.app.Teleports.Len(), f.clock.Pending())
	}
}
