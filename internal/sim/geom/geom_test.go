package geom

import "testing"

func TestBlockOf_FloorsNegativeAxes(t *testing.T) {
	got := BlockOf(Position{World: "overworld", X: -0.5, Y: 64.99, Z: 10.2})
	want := Location{World: "overworld", X: -1, Y: 64, Z: 10}
	if got != want {
		t.Fatalf("BlockOf=%v want %v", got, want)
	}
}

func TestTeleportPoint_StandsOnTopCenter(t *testing.T) {
	p := Location{World: "overworld", X: 10, Y: 64, Z: -3}.TeleportPoint()
	if p.X != 10.5 || p.Y != 65 || p.Z != -2.5 || p.World != "overworld" {
		t.Fatalf("teleport point=%+v", p)
	}
	if p.Block() != (Location{World: "overworld", X: 10, Y: 65, Z: -3}) {
		t.Fatalf("teleport point block=%v", p.Block())
	}
}

func TestSameBlock_IgnoresSubBlockMotion(t *testing.T) {
	a := Position{World: "w", X: 1.1, Y: 2.0, Z: 3.9}
	b := Position{World: "w", X: 1.9, Y: 2.5, Z: 3.1}
	if !SameBlock(a, b) {
		t.Fatalf("expected same block")
	}
	if SameBlock(a, b.Add(1, 0, 0)) {
		t.Fatalf("expected different block after one block move")
	}
	if SameBlock(a, Position{World: "nether", X: 1.1, Y: 2, Z: 3.9}) {
		t.Fatalf("expected different block across worlds")
	}
}
