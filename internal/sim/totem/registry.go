package totem

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"totemcraft.ai/internal/sim/geom"
)

var (
	ErrLocationOccupied = errors.New("location occupied by a totem")
	ErrUnknownTotem     = errors.New("unknown totem")
	ErrDuplicateID      = errors.New("duplicate totem id")
)

// MarkerWorld is the physical side of the registry. Failures are logged and
// never roll back an index mutation.
type MarkerWorld interface {
	PlaceMarker(loc geom.Location, kind string) error
	RemoveMarker(loc geom.Location) error
	// MarkerKindAt returns the block kind at loc, ok=false for empty space.
	MarkerKindAt(loc geom.Location) (kind string, ok bool)
}

// Registry owns every totem. The id index and the location index are only
// ever mutated together inside one method.
type Registry struct {
	world MarkerWorld
	log   *log.Logger
	now   func() time.Time

	byID  map[uuid.UUID]*Totem
	byLoc map[geom.Location]uuid.UUID
}

func NewRegistry(world MarkerWorld, logger *log.Logger, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		world: world,
		log:   logger,
		now:   now,
		byID:  map[uuid.UUID]*Totem{},
		byLoc: map[geom.Location]uuid.UUID{},
	}
}

func (r *Registry) Create(loc geom.Location, owner uuid.UUID, name, kind string) (Totem, error) {
	if _, ok := r.byLoc[loc]; ok {
		return Totem{}, ErrLocationOccupied
	}
	id := uuid.New()
	for r.byID[id] != nil {
		id = uuid.New()
	}
	t := &Totem{
		ID:        id,
		Owner:     owner,
		Name:      name,
		Location:  loc,
		Marker:    kind,
		CreatedAt: r.now(),
	}
	r.byID[id] = t
	r.byLoc[loc] = id

	if err := r.world.PlaceMarker(loc, kind); err != nil {
		r.logf("place marker for totem %s at %s: %v", t.Name, loc, err)
	}
	r.logf("totem created: %s by %s at %s", t.Name, owner, loc)
	return *t, nil
}

// Insert adds a totem restored from a snapshot without touching the world.
func (r *Registry) Insert(t Totem) error {
	if _, ok := r.byID[t.ID]; ok {
		return ErrDuplicateID
	}
	if _, ok := r.byLoc[t.Location]; ok {
		return ErrLocationOccupied
	}
	cp := t
	r.byID[t.ID] = &cp
	r.byLoc[t.Location] = t.ID
	return nil
}

// Remove drops the totem and its marker. Unknown ids are a no-op.
func (r *Registry) Remove(id uuid.UUID) bool {
	t := r.byID[id]
	if t == nil {
		return false
	}
	delete(r.byLoc, t.Location)
	delete(r.byID, id)

	// Never clear a block that is no longer ours.
	if r.Valid(*t) {
		if err := r.world.RemoveMarker(t.Location); err != nil {
			r.logf("remove marker for totem %s at %s: %v", t.Name, t.Location, err)
		}
	}
	r.logf("totem removed: %s", t.Name)
	return true
}

func (r *Registry) RemoveAt(loc geom.Location) bool {
	id, ok := r.byLoc[loc]
	if !ok {
		return false
	}
	return r.Remove(id)
}

func (r *Registry) ByID(id uuid.UUID) (Totem, bool) {
	t := r.byID[id]
	if t == nil {
		return Totem{}, false
	}
	return *t, true
}

func (r *Registry) ByLocation(loc geom.Location) (Totem, bool) {
	id, ok := r.byLoc[loc]
	if !ok {
		return Totem{}, false
	}
	return r.ByID(id)
}

func (r *Registry) Has(loc geom.Location) bool {
	_, ok := r.byLoc[loc]
	return ok
}

// ByOwner returns the owner's totems, oldest first.
func (r *Registry) ByOwner(owner uuid.UUID) []Totem {
	var out []Totem
	for _, t := range r.byID {
		if t.Owner == owner {
			out = append(out, *t)
		}
	}
	sortTotems(out)
	return out
}

func (r *Registry) All() []Totem {
	out := make([]Totem, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, *t)
	}
	sortTotems(out)
	return out
}

func (r *Registry) Len() int { return len(r.byID) }

func (r *Registry) CanCreateMore(owner uuid.UUID, limit int) bool {
	return r.countOwned(owner) < limit
}

func (r *Registry) Remaining(owner uuid.UUID, limit int) int {
	n := limit - r.countOwned(owner)
	if n < 0 {
		return 0
	}
	return n
}

func (r *Registry) countOwned(owner uuid.UUID) int {
	n := 0
	for _, t := range r.byID {
		if t.Owner == owner {
			n++
		}
	}
	return n
}

func (r *Registry) Rename(id uuid.UUID, name string) error {
	t := r.byID[id]
	if t == nil {
		return ErrUnknownTotem
	}
	t.Name = name
	return nil
}

// SetMarkerKind changes the expected marker and re-places the block.
func (r *Registry) SetMarkerKind(id uuid.UUID, kind string) error {
	t := r.byID[id]
	if t == nil {
		return ErrUnknownTotem
	}
	t.Marker = kind
	if err := r.world.PlaceMarker(t.Location, kind); err != nil {
		r.logf("place marker for totem %s at %s: %v", t.Name, t.Location, err)
	}
	return nil
}

// Valid reports whether the block at the totem still has its marker kind.
func (r *Registry) Valid(t Totem) bool {
	kind, ok := r.world.MarkerKindAt(t.Location)
	return ok && kind == t.Marker
}

// RestoreOrFlag re-places every mismatched marker. Used at load time.
func (r *Registry) RestoreOrFlag() int {
	restored := 0
	for _, t := range r.All() {
		if r.Valid(t) {
			continue
		}
		if err := r.world.PlaceMarker(t.Location, t.Marker); err != nil {
			r.logf("restore marker for totem %s at %s: %v", t.Name, t.Location, err)
			continue
		}
		r.logf("totem marker restored: %s", t.Name)
		restored++
	}
	return restored
}

// PruneInvalid drops every totem whose marker no longer matches. Used by the
// periodic cleanup; the caller unregisters the returned ids from players.
func (r *Registry) PruneInvalid() []Totem {
	var pruned []Totem
	for _, t := range r.All() {
		if r.Valid(t) {
			continue
		}
		r.Remove(t.ID)
		pruned = append(pruned, t)
	}
	return pruned
}

// CheckIndex verifies both indexes point at each other.
func (r *Registry) CheckIndex() error {
	if len(r.byID) != len(r.byLoc) {
		return fmt.Errorf("index size mismatch: ids=%d locations=%d", len(r.byID), len(r.byLoc))
	}
	for id, t := range r.byID {
		if t.ID != id {
			return fmt.Errorf("totem %s stored under id %s", t.ID, id)
		}
		if got, ok := r.byLoc[t.Location]; !ok || got != id {
			return fmt.Errorf("location %s does not point back to %s", t.Location, id)
		}
	}
	for loc, id := range r.byLoc {
		t := r.byID[id]
		if t == nil || t.Location != loc {
			return fmt.Errorf("location %s points to missing or moved totem %s", loc, id)
		}
	}
	return nil
}

func (r *Registry) logf(format string, args ...any) {
	if r.log != nil {
		r.log.Printf(format, args...)
	}
}

func sortTotems(ts []Totem) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID.String() < ts[j].ID.String()
	})
}
