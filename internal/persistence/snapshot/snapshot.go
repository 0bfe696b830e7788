package snapshot

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"totemcraft.ai/internal/sim/geom"
	"totemcraft.ai/internal/sim/totem"
)

const (
	TotemsFile  = "totems.yml"
	PlayersFile = "playerdata.yml"
)

// Error is a failed snapshot read or write. In-memory state is never touched
// by a failed write.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Path, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Report counts the records a load accepted and skipped.
type Report struct {
	Loaded  int
	Skipped int
	// Problems holds one line per skipped record.
	Problems []string
}

func (r *Report) skip(format string, args ...any) {
	r.Skipped++
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

type TotemV1 struct {
	Name     string  `yaml:"name"`
	Owner    string  `yaml:"owner"`
	World    string  `yaml:"world"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Z        float64 `yaml:"z"`
	Material string  `yaml:"material"`
	Created  int64   `yaml:"created"`
}

type PlayerV1 struct {
	RegisteredTotems []string          `yaml:"registered-totems"`
	CustomNames      map[string]string `yaml:"custom-names,omitempty"`
	LastTeleport     int64             `yaml:"last-teleport"`
}

type totemsDoc struct {
	Totems map[string]TotemV1 `yaml:"totems"`
}

type playersDoc struct {
	Players map[string]PlayerV1 `yaml:"players"`
}

// Player is the persisted part of a player's state.
type Player struct {
	ID           uuid.UUID
	Registered   []uuid.UUID
	CustomNames  map[uuid.UUID]string
	LastTeleport time.Time
}

func EncodeTotem(t totem.Totem) TotemV1 {
	return TotemV1{
		Name:     t.Name,
		Owner:    t.Owner.String(),
		World:    t.Location.World,
		X:        float64(t.Location.X),
		Y:        float64(t.Location.Y),
		Z:        float64(t.Location.Z),
		Material: t.Marker,
		Created:  toMillis(t.CreatedAt),
	}
}

// DecodeTotem validates a record. An empty material takes fallbackKind.
func DecodeTotem(id string, r TotemV1, fallbackKind string) (totem.Totem, error) {
	tid, err := uuid.Parse(id)
	if err != nil {
		return totem.Totem{}, fmt.Errorf("id: %w", err)
	}
	owner, err := uuid.Parse(r.Owner)
	if err != nil {
		return totem.Totem{}, fmt.Errorf("owner: %w", err)
	}
	if strings.TrimSpace(r.World) == "" {
		return totem.Totem{}, fmt.Errorf("missing world")
	}
	kind := strings.ToUpper(strings.TrimSpace(r.Material))
	if kind == "" {
		kind = fallbackKind
	}
	return totem.Totem{
		ID:    tid,
		Owner: owner,
		Name:  r.Name,
		Location: geom.Location{
			World: r.World,
			X:     int(math.Floor(r.X)),
			Y:     int(math.Floor(r.Y)),
			Z:     int(math.Floor(r.Z)),
		},
		Marker:    kind,
		CreatedAt: fromMillis(r.Created),
	}, nil
}

func EncodePlayer(p Player) PlayerV1 {
	rec := PlayerV1{
		RegisteredTotems: make([]string, 0, len(p.Registered)),
		LastTeleport:     toMillis(p.LastTeleport),
	}
	for _, id := range p.Registered {
		rec.RegisteredTotems = append(rec.RegisteredTotems, id.String())
	}
	if len(p.CustomNames) > 0 {
		rec.CustomNames = map[string]string{}
		for id, name := range p.CustomNames {
			rec.CustomNames[id.String()] = name
		}
	}
	return rec
}

// DecodePlayer validates a record. Unparseable totem ids inside it are
// dropped and reported through dropped.
func DecodePlayer(id string, r PlayerV1) (p Player, dropped int, err error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return Player{}, 0, fmt.Errorf("id: %w", err)
	}
	p = Player{ID: pid, CustomNames: map[uuid.UUID]string{}, LastTeleport: fromMillis(r.LastTeleport)}
	for _, s := range r.RegisteredTotems {
		tid, err := uuid.Parse(s)
		if err != nil {
			dropped++
			continue
		}
		p.Registered = append(p.Registered, tid)
	}
	for s, name := range r.CustomNames {
		tid, err := uuid.Parse(s)
		if err != nil {
			dropped++
			continue
		}
		p.CustomNames[tid] = name
	}
	return p, dropped, nil
}

// WriteTotems replaces the file at path with every totem.
func WriteTotems(path string, totems []totem.Totem) error {
	doc := totemsDoc{Totems: make(map[string]TotemV1, len(totems))}
	for _, t := range totems {
		doc.Totems[t.ID.String()] = EncodeTotem(t)
	}
	return writeDoc("write totems", path, doc)
}

func WritePlayers(path string, ps []Player) error {
	doc := playersDoc{Players: make(map[string]PlayerV1, len(ps))}
	for _, p := range ps {
		doc.Players[p.ID.String()] = EncodePlayer(p)
	}
	return writeDoc("write players", path, doc)
}

// ReadTotems loads every decodable totem. A missing file is an empty
// snapshot. Records that do not decode are skipped and counted.
func ReadTotems(path, fallbackKind string) ([]totem.Totem, Report, error) {
	var rep Report
	nodes, err := readSection("read totems", path, "totems")
	if err != nil || nodes == nil {
		return nil, rep, err
	}
	out := make([]totem.Totem, 0, len(nodes))
	for _, id := range sortedKeys(nodes) {
		var rec TotemV1
		n := nodes[id]
		if err := n.Decode(&rec); err != nil {
			rep.skip("totem %s: %v", id, err)
			continue
		}
		t, err := DecodeTotem(id, rec, fallbackKind)
		if err != nil {
			rep.skip("totem %s: %v", id, err)
			continue
		}
		out = append(out, t)
		rep.Loaded++
	}
	return out, rep, nil
}

func ReadPlayers(path string) ([]Player, Report, error) {
	var rep Report
	nodes, err := readSection("read players", path, "players")
	if err != nil || nodes == nil {
		return nil, rep, err
	}
	out := make([]Player, 0, len(nodes))
	for _, id := range sortedKeys(nodes) {
		var rec PlayerV1
		n := nodes[id]
		if err := n.Decode(&rec); err != nil {
			rep.skip("player %s: %v", id, err)
			continue
		}
		p, dropped, err := DecodePlayer(id, rec)
		if err != nil {
			rep.skip("player %s: %v", id, err)
			continue
		}
		if dropped > 0 {
			rep.Problems = append(rep.Problems, fmt.Sprintf("player %s: dropped %d bad totem ids", id, dropped))
		}
		out = append(out, p)
		rep.Loaded++
	}
	return out, rep, nil
}

func readSection(op, path, section string) (map[string]yaml.Node, error) {
	raw, err := readFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: op, Path: path, Err: err}
	}
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &Error{Op: op, Path: path, Err: err}
	}
	sec, ok := doc[section]
	if !ok {
		return nil, nil
	}
	var nodes map[string]yaml.Node
	if err := sec.Decode(&nodes); err != nil {
		return nil, &Error{Op: op, Path: path, Err: err}
	}
	return nodes, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if !compressed(path) {
		return io.ReadAll(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(bufio.NewReaderSize(dec, 256*1024))
}

// writeDoc writes next to path and renames over it, so readers never see a
// partial file.
func writeDoc(op, path string, doc any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return &Error{Op: op, Path: path, Err: err}
	}
	if err := enc.Close(); err != nil {
		return &Error{Op: op, Path: path, Err: err}
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return &Error{Op: op, Path: path, Err: err}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	ok := false
	defer func() {
		if !ok {
			_ = os.Remove(tmp)
		}
	}()

	if compressed(path) {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			f.Close()
			return err
		}
		if _, err := enc.Write(data); err != nil {
			enc.Close()
			f.Close()
			return err
		}
		if err := enc.Close(); err != nil {
			f.Close()
			return err
		}
	} else if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	ok = true
	return nil
}

func compressed(path string) bool { return strings.HasSuffix(path, ".zst") }

func sortedKeys(m map[string]yaml.Node) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
