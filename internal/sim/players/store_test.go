package players

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*Store, *testClock) {
	c := &testClock{t: time.Unix(1_700_000_000, 0)}
	return NewStore(c.Now), c
}

func TestStore_GetCreatesOnAccess(t *testing.T) {
	s, _ := newTestStore()
	p := uuid.New()
	if s.Has(p) {
		t.Fatalf("unexpected state before access")
	}
	st := s.Get(p)
	if st == nil || st.PlayerID != p {
		t.Fatalf("Get returned %+v", st)
	}
	if s.Get(p) != st {
		t.Fatalf("Get must return the same state")
	}
	s.Unload(p)
	if s.Has(p) || s.Loaded() != 0 {
		t.Fatalf("unload did not drop state")
	}
}

func TestStore_RegisterUnregisterSetSemantics(t *testing.T) {
	s, _ := newTestStore()
	p, totemID := uuid.New(), uuid.New()

	if !s.RegisterTotem(p, totemID) {
		t.Fatalf("first register returned false")
	}
	if s.RegisterTotem(p, totemID) {
		t.Fatalf("second register returned true")
	}
	s.SetCustomName(p, totemID, "Mine")

	if !s.UnregisterTotem(p, totemID) {
		t.Fatalf("unregister returned false")
	}
	if _, ok := s.CustomName(p, totemID); ok {
		t.Fatalf("custom name survived unregister")
	}
	if s.UnregisterTotem(p, totemID) {
		t.Fatalf("second unregister returned true")
	}
	if s.Get(p).RegisteredCount() != 0 {
		t.Fatalf("registered count=%d", s.Get(p).RegisteredCount())
	}
}

func TestStore_EmptyCustomNameClears(t *testing.T) {
	s, _ := newTestStore()
	p, totemID := uuid.New(), uuid.New()
	s.RegisterTotem(p, totemID)

	s.SetCustomName(p, totemID, "Farm")
	if got := s.DisplayName(p, totemID, "Totem"); got != "Farm" {
		t.Fatalf("display=%q want Farm", got)
	}
	s.SetCustomName(p, totemID, "   ")
	if _, ok := s.CustomName(p, totemID); ok {
		t.Fatalf("blank name stored")
	}
	if got := s.DisplayName(p, totemID, "Totem"); got != "Totem" {
		t.Fatalf("display=%q want fallback", got)
	}
}

func TestStore_UnregisterFromAll(t *testing.T) {
	s, _ := newTestStore()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	x, y := uuid.New(), uuid.New()
	s.RegisterTotem(a, x)
	s.RegisterTotem(b, x)
	s.RegisterTotem(b, y)
	s.SetCustomName(b, x, "B's X")
	s.Get(c)

	if n := s.UnregisterFromAll(x); n != 2 {
		t.Fatalf("removed=%d want 2", n)
	}
	if s.IsRegistered(a, x) || s.IsRegistered(b, x) {
		t.Fatalf("x still registered")
	}
	if !s.IsRegistered(b, y) {
		t.Fatalf("y lost")
	}
	if len(s.Get(b).CustomNames()) != 0 {
		t.Fatalf("custom names=%v", s.Get(b).CustomNames())
	}
}

func TestStore_CooldownBoundaries(t *testing.T) {
	s, clk := newTestStore()
	p := uuid.New()
	cd := 300 * time.Second

	if !s.CanTeleport(p, cd) || s.RemainingCooldown(p, cd) != 0 {
		t.Fatalf("never-teleported player must be free")
	}
	s.MarkTeleported(p)

	clk.Advance(100*time.Second + 400*time.Millisecond)
	if s.CanTeleport(p, cd) {
		t.Fatalf("expected cooldown active")
	}
	if got := s.RemainingCooldown(p, cd); got != 199*time.Second {
		t.Fatalf("remaining=%v want 199s", got)
	}

	clk.Advance(cd - 100*time.Second - 400*time.Millisecond)
	if got := s.RemainingCooldown(p, cd); got != 0 {
		t.Fatalf("remaining at boundary=%v want 0", got)
	}
	if !s.CanTeleport(p, cd) {
		t.Fatalf("expected teleport allowed at exact boundary")
	}

	clk.Advance(time.Hour)
	if got := s.RemainingCooldown(p, cd); got != 0 {
		t.Fatalf("remaining long after=%v want 0", got)
	}
}

func TestStore_BreakConfirmationWindow(t *testing.T) {
	s, clk := newTestStore()
	p, x, y := uuid.New(), uuid.New(), uuid.New()
	window := 5 * time.Second

	if s.IsExpired(p, window) {
		t.Fatalf("no pending break must not be expired")
	}
	s.RequestBreak(p, x)
	if !s.IsPendingFor(p, x) || s.IsPendingFor(p, y) {
		t.Fatalf("pending target wrong")
	}

	clk.Advance(window)
	if s.IsExpired(p, window) {
		t.Fatalf("exactly at window must not be expired")
	}
	clk.Advance(time.Millisecond)
	if !s.IsExpired(p, window) {
		t.Fatalf("window+1ms must be expired")
	}

	s.RequestBreak(p, y)
	if !s.IsPendingFor(p, y) || s.IsPendingFor(p, x) {
		t.Fatalf("request for another totem must overwrite")
	}
	if s.IsExpired(p, window) {
		t.Fatalf("overwrite must refresh timestamp")
	}

	s.ClearPending(p)
	if s.Get(p).HasPendingBreak() || s.IsPendingFor(p, y) {
		t.Fatalf("clear did not reset pending break")
	}
}

func TestStore_RestoreDropsOrphanCustomNames(t *testing.T) {
	s, _ := newTestStore()
	p, x, orphan := uuid.New(), uuid.New(), uuid.New()
	last := time.UnixMilli(1_700_000_123_456)

	st := s.Restore(p, []uuid.UUID{x}, map[uuid.UUID]string{x: "Home", orphan: "Gone"}, last)
	if !st.IsRegistered(x) || st.RegisteredCount() != 1 {
		t.Fatalf("registered=%v", st.Registered())
	}
	if _, ok := st.CustomName(orphan); ok {
		t.Fatalf("orphan custom name restored")
	}
	if !st.LastTeleportAt.Equal(last) {
		t.Fatalf("last teleport=%v want %v", st.LastTeleportAt, last)
	}
}
