package totem

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"totemcraft.ai/internal/sim/geom"
)

type fakeWorld struct {
	blocks    map[geom.Location]string
	failPlace bool
}

func newFakeWorld() *fakeWorld { return &fakeWorld{blocks: map[geom.Location]string{}} }

func (w *fakeWorld) PlaceMarker(loc geom.Location, kind string) error {
	if w.failPlace {
		return errors.New("chunk not loaded")
	}
	w.blocks[loc] = kind
	return nil
}

func (w *fakeWorld) RemoveMarker(loc geom.Location) error {
	delete(w.blocks, loc)
	return nil
}

func (w *fakeWorld) MarkerKindAt(loc geom.Location) (string, bool) {
	k, ok := w.blocks[loc]
	return k, ok
}

func newTestRegistry() (*Registry, *fakeWorld) {
	w := newFakeWorld()
	base := time.Unix(1_700_000_000, 0)
	n := 0
	clock := func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return NewRegistry(w, nil, clock), w
}

var home = geom.Location{World: "overworld", X: 10, Y: 64, Z: 10}

func TestRegistry_CreateRejectsOccupiedLocation(t *testing.T) {
	r, w := newTestRegistry()
	owner := uuid.New()

	tt, err := r.Create(home, owner, "Home", "BEDROCK")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("len=%d want 1", r.Len())
	}
	if w.blocks[home] != "BEDROCK" {
		t.Fatalf("marker not placed: %q", w.blocks[home])
	}
	got, ok := r.ByLocation(home)
	if !ok || got.ID != tt.ID || got.Name != "Home" {
		t.Fatalf("ByLocation=%+v ok=%v", got, ok)
	}

	if _, err := r.Create(home, uuid.New(), "Other", "BEDROCK"); !errors.Is(err, ErrLocationOccupied) {
		t.Fatalf("second create err=%v want ErrLocationOccupied", err)
	}
	if r.Len() != 1 {
		t.Fatalf("len after rejected create=%d want 1", r.Len())
	}
}

func TestRegistry_IndexesStayInLockStep(t *testing.T) {
	r, _ := newTestRegistry()
	owner := uuid.New()
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		tt, err := r.Create(home.Offset(i, 0, 0), owner, "T", "BEDROCK")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, tt.ID)
	}
	r.Remove(ids[1])
	r.RemoveAt(home.Offset(3, 0, 0))

	if err := r.CheckIndex(); err != nil {
		t.Fatalf("index: %v", err)
	}
	for _, tt := range r.All() {
		byLoc, ok := r.ByLocation(tt.Location)
		if !ok || byLoc.ID != tt.ID {
			t.Fatalf("location index diverged for %s", tt.ID)
		}
		byID, ok := r.ByID(byLoc.ID)
		if !ok || byID != tt {
			t.Fatalf("id index diverged for %s", tt.ID)
		}
	}
	if r.Len() != 3 {
		t.Fatalf("len=%d want 3", r.Len())
	}
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r, w := newTestRegistry()
	tt, _ := r.Create(home, uuid.New(), "Home", "BEDROCK")

	if !r.Remove(tt.ID) {
		t.Fatalf("first remove returned false")
	}
	if _, ok := w.blocks[home]; ok {
		t.Fatalf("marker still present")
	}
	if r.Remove(tt.ID) {
		t.Fatalf("second remove returned true")
	}
	if r.Has(home) {
		t.Fatalf("location still indexed")
	}
}

func TestRegistry_RemoveKeepsForeignBlock(t *testing.T) {
	r, w := newTestRegistry()
	tt, _ := r.Create(home, uuid.New(), "Home", "BEDROCK")
	w.blocks[home] = "STONE"

	r.Remove(tt.ID)
	if w.blocks[home] != "STONE" {
		t.Fatalf("foreign block removed: %q", w.blocks[home])
	}
}

func TestRegistry_WorldFailureDoesNotRollBack(t *testing.T) {
	r, w := newTestRegistry()
	w.failPlace = true

	tt, err := r.Create(home, uuid.New(), "Home", "BEDROCK")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := r.ByID(tt.ID); !ok {
		t.Fatalf("totem missing after marker failure")
	}
	if r.Valid(tt) {
		t.Fatalf("expected invalid marker")
	}
}

func TestRegistry_ByOwnerAndQuota(t *testing.T) {
	r, _ := newTestRegistry()
	alice, bob := uuid.New(), uuid.New()
	a1, _ := r.Create(home, alice, "A1", "BEDROCK")
	_, _ = r.Create(home.Offset(0, 0, 1), bob, "B1", "BEDROCK")
	a2, _ := r.Create(home.Offset(0, 0, 2), alice, "A2", "BEDROCK")

	got := r.ByOwner(alice)
	if len(got) != 2 || got[0].ID != a1.ID || got[1].ID != a2.ID {
		t.Fatalf("ByOwner=%+v", got)
	}
	if !r.CanCreateMore(alice, 3) {
		t.Fatalf("expected alice below limit 3")
	}
	if r.CanCreateMore(alice, 2) {
		t.Fatalf("expected alice at limit 2")
	}
	if n := r.Remaining(alice, 1); n != 0 {
		t.Fatalf("remaining=%d want 0", n)
	}
	if n := r.Remaining(bob, 5); n != 4 {
		t.Fatalf("remaining=%d want 4", n)
	}
}

func TestRegistry_RenameAndMarkerKind(t *testing.T) {
	r, w := newTestRegistry()
	tt, _ := r.Create(home, uuid.New(), "Home", "BEDROCK")

	if err := r.Rename(tt.ID, "Base"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := r.SetMarkerKind(tt.ID, "OBSIDIAN"); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	got, _ := r.ByID(tt.ID)
	if got.Name != "Base" || got.Marker != "OBSIDIAN" || w.blocks[home] != "OBSIDIAN" {
		t.Fatalf("got=%+v block=%q", got, w.blocks[home])
	}
	if err := r.Rename(uuid.New(), "x"); !errors.Is(err, ErrUnknownTotem) {
		t.Fatalf("rename unknown err=%v", err)
	}
}

func TestRegistry_RestoreOrFlagAndPruneInvalid(t *testing.T) {
	r, w := newTestRegistry()
	owner := uuid.New()
	a, _ := r.Create(home, owner, "A", "BEDROCK")
	b, _ := r.Create(home.Offset(5, 0, 0), owner, "B", "BEDROCK")

	delete(w.blocks, a.Location)
	if n := r.RestoreOrFlag(); n != 1 {
		t.Fatalf("restored=%d want 1", n)
	}
	if w.blocks[a.Location] != "BEDROCK" {
		t.Fatalf("marker not restored")
	}

	w.blocks[b.Location] = "DIRT"
	pruned := r.PruneInvalid()
	if len(pruned) != 1 || pruned[0].ID != b.ID {
		t.Fatalf("pruned=%+v", pruned)
	}
	if _, ok := r.ByID(b.ID); ok {
		t.Fatalf("pruned totem still indexed")
	}
	if w.blocks[b.Location] != "DIRT" {
		t.Fatalf("prune must not clear the foreign block")
	}
	if err := r.CheckIndex(); err != nil {
		t.Fatalf("index: %v", err)
	}
}

func TestRegistry_InsertRejectsDuplicates(t *testing.T) {
	r, _ := newTestRegistry()
	tt := Totem{ID: uuid.New(), Owner: uuid.New(), Name: "A", Location: home, Marker: "BEDROCK"}
	if err := r.Insert(tt); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := r.Insert(tt); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("dup id err=%v", err)
	}
	other := tt
	other.ID = uuid.New()
	if err := r.Insert(other); !errors.Is(err, ErrLocationOccupied) {
		t.Fatalf("dup location err=%v", err)
	}
}
