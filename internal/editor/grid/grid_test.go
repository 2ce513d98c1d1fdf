package grid

import (
	"math"
	"testing"
)

func TestSnap_RoundHalfAwayFromZero(t *testing.T) {
	cs := NewCoordinateSystem(3.0, nil)

	cases := []struct {
		in   Vec3
		want Vec3
	}{
		{Vec3{0, 0, 0}, Vec3{0, 0, 0}},
		{Vec3{1.4, 1.6, -1.4}, Vec3{0, 3, 0}},
		{Vec3{1.5, -1.5, 4.5}, Vec3{3, -3, 6}},
		{Vec3{-4.4, 7.6, -7.6}, Vec3{-3, 9, -9}},
	}
	for _, c := range cases {
		got := cs.Snap(c.in)
		if got != c.want {
			t.Fatalf("Snap(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSnap_Idempotent(t *testing.T) {
	cs := NewCoordinateSystem(3.0, nil)
	for _, p := range []Vec3{{1.2, -8.9, 100.01}, {0.4, 0.5, -0.5}, {7, -13, 22}} {
		once := cs.Snap(p)
		twice := cs.Snap(once)
		if once != twice {
			t.Fatalf("Snap not idempotent: %v -> %v -> %v", p, once, twice)
		}
	}
}

func TestWorldGridRoundTrip(t *testing.T) {
	cs := NewCoordinateSystem(3.0, nil)
	for _, g := range []Pos{{0, 0, 0}, {1, 2, 3}, {-5, 7, -11}, {1000, -1000, 42}} {
		got := cs.WorldToGrid(cs.GridToWorld(g))
		if got != g {
			t.Fatalf("round trip %v -> %v", g, got)
		}
	}
	if n := cs.IntegrityWarnings(); n != 0 {
		t.Fatalf("unexpected integrity warnings: %d", n)
	}
}

func TestWorldToGrid_OffLatticeWarns(t *testing.T) {
	cs := NewCoordinateSystem(3.0, nil)
	got := cs.WorldToGrid(Vec3{X: 4.1, Y: 0, Z: 0})
	if got != (Pos{X: 1, Y: 0, Z: 0}) {
		t.Fatalf("off-lattice rounding = %v", got)
	}
	if n := cs.IntegrityWarnings(); n != 1 {
		t.Fatalf("integrity warnings = %d, want 1", n)
	}
}

func TestKeyRoundTrip(t *testing.T) {
	cases := []Pos{
		{0, 0, 0},
		{1, -1, 1},
		{-1, 1, -1},
		{123456, -654321, 7},
		{KeyAxisMin, KeyAxisMax, KeyAxisMin},
	}
	for _, g := range cases {
		if got := DecodeKey(EncodeKey(g)); got != g {
			t.Fatalf("DecodeKey(EncodeKey(%v)) = %v", g, got)
		}
	}
}

func TestKeyUnique(t *testing.T) {
	seen := map[Key]Pos{}
	for x := -4; x <= 4; x++ {
		for y := -4; y <= 4; y++ {
			for z := -4; z <= 4; z++ {
				p := Pos{X: x, Y: y, Z: z}
				k := EncodeKey(p)
				if prev, ok := seen[k]; ok {
					t.Fatalf("key collision: %v and %v -> %d", prev, p, k)
				}
				seen[k] = p
			}
		}
	}
}

func TestManhattan(t *testing.T) {
	if d := Manhattan(Pos{0, 0, 0}, Pos{1, -2, 3}); d != 6 {
		t.Fatalf("Manhattan = %d, want 6", d)
	}
	if d := Manhattan(Pos{5, 5, 5}, Pos{5, 5, 5}); d != 0 {
		t.Fatalf("Manhattan = %d, want 0", d)
	}
}

func TestLinePositions_AxisAligned(t *testing.T) {
	got := LinePositions(Pos{0, 0, 0}, Pos{3, 0, 0})
	want := []Pos{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLinePositions_Properties(t *testing.T) {
	cases := []struct {
		start, end Pos
	}{
		{Pos{0, 0, 0}, Pos{5, 3, 1}},
		{Pos{2, -1, 7}, Pos{-4, 8, 7}},
		{Pos{0, 0, 0}, Pos{0, 0, -9}},
		{Pos{1, 1, 1}, Pos{1, 1, 1}},
		{Pos{-3, -3, -3}, Pos{4, 4, 4}},
	}
	for _, c := range cases {
		got := LinePositions(c.start, c.end)
		d := c.end.Sub(c.start)
		wantLen := absInt(d.X)
		if absInt(d.Y) > wantLen {
			wantLen = absInt(d.Y)
		}
		if absInt(d.Z) > wantLen {
			wantLen = absInt(d.Z)
		}
		wantLen++

		if len(got) != wantLen {
			t.Fatalf("%v->%v: len = %d, want %d", c.start, c.end, len(got), wantLen)
		}
		if got[0] != c.start || got[len(got)-1] != c.end {
			t.Fatalf("%v->%v: endpoints %v..%v", c.start, c.end, got[0], got[len(got)-1])
		}
		seen := map[Pos]bool{}
		for i, p := range got {
			if seen[p] {
				t.Fatalf("%v->%v: duplicate cell %v", c.start, c.end, p)
			}
			seen[p] = true
			if i > 0 {
				step := p.Sub(got[i-1])
				if absInt(step.X) > 1 || absInt(step.Y) > 1 || absInt(step.Z) > 1 {
					t.Fatalf("%v->%v: gap between %v and %v", c.start, c.end, got[i-1], p)
				}
			}
		}
	}
}

func TestLinePositions_PureFunction(t *testing.T) {
	a := LinePositions(Pos{0, 0, 0}, Pos{7, 2, -5})
	b := LinePositions(Pos{0, 0, 0}, Pos{7, 2, -5})
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("traversal not deterministic at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestVec3Helpers(t *testing.T) {
	v := Vec3{3, 4, 0}
	if l := v.Length(); math.Abs(l-5) > 1e-12 {
		t.Fatalf("Length = %g", l)
	}
	if d := v.Dot(Vec3{1, 1, 1}); d != 7 {
		t.Fatalf("Dot = %g", d)
	}
}
