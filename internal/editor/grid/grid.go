package grid

import (
	"fmt"
	"log"
	"math"
	"sync/atomic"
)

// Pos addresses one cell of the voxel lattice.
type Pos struct {
	X int
	Y int
	Z int
}

func (p Pos) Add(o Pos) Pos   { return Pos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z} }
func (p Pos) Sub(o Pos) Pos   { return Pos{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z} }
func (p Pos) Scale(n int) Pos { return Pos{X: p.X * n, Y: p.Y * n, Z: p.Z * n} }
func (p Pos) ToArray() [3]int { return [3]int{p.X, p.Y, p.Z} }
func (p Pos) String() string  { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// Vec3 is a world-space position or direction.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Length() float64      { return math.Sqrt(v.Dot(v)) }

// Key is a packed encoding of a Pos, used as the registry lookup key.
// Each axis occupies 21 bits (two's complement), so the addressable range
// per axis is [-1048576, 1048575].
type Key int64

const (
	keyBits = 21
	keyMask = (1 << keyBits) - 1
	// KeyAxisMin/Max bound the per-axis coordinates a Key can hold.
	KeyAxisMin = -(1 << (keyBits - 1))
	KeyAxisMax = (1 << (keyBits - 1)) - 1
)

// Manhattan returns the sum of absolute per-axis differences.
func Manhattan(a, b Pos) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y) + absInt(a.Z-b.Z)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// CoordinateSystem converts between world space and the integer lattice.
// voxelSize is fixed at construction.
type CoordinateSystem struct {
	voxelSize float64
	logger    *log.Logger

	integrityWarnings atomic.Uint64
}

func NewCoordinateSystem(voxelSize float64, logger *log.Logger) *CoordinateSystem {
	if voxelSize <= 0 {
		voxelSize = 3.0
	}
	return &CoordinateSystem{voxelSize: voxelSize, logger: logger}
}

func (cs *CoordinateSystem) VoxelSize() float64 { return cs.voxelSize }

// IntegrityWarnings reports how many off-lattice inputs have been observed.
func (cs *CoordinateSystem) IntegrityWarnings() uint64 { return cs.integrityWarnings.Load() }

// Snap rounds each axis to the nearest multiple of the voxel size
// (half away from zero). Idempotent.
func (cs *CoordinateSystem) Snap(w Vec3) Vec3 {
	return Vec3{
		X: math.Round(w.X/cs.voxelSize) * cs.voxelSize,
		Y: math.Round(w.Y/cs.voxelSize) * cs.voxelSize,
		Z: math.Round(w.Z/cs.voxelSize) * cs.voxelSize,
	}
}

// integrityEps tolerates float accumulation from pointer math; anything
// farther off the lattice than this is treated as a defect signal.
const integrityEps = 1e-6

// WorldToGrid maps a world position to its grid cell by rounding each axis.
// Off-lattice inputs are still rounded, but logged and counted: callers are
// expected to pass snapped positions.
func (cs *CoordinateSystem) WorldToGrid(w Vec3) Pos {
	gx, okx := cs.axisToGrid(w.X)
	gy, oky := cs.axisToGrid(w.Y)
	gz, okz := cs.axisToGrid(w.Z)
	if !okx || !oky || !okz {
		cs.integrityWarnings.Add(1)
		if cs.logger != nil {
			cs.logger.Printf("grid: off-lattice world position (%g,%g,%g) voxel_size=%g", w.X, w.Y, w.Z, cs.voxelSize)
		}
	}
	return Pos{X: gx, Y: gy, Z: gz}
}

func (cs *CoordinateSystem) axisToGrid(v float64) (int, bool) {
	q := v / cs.voxelSize
	r := math.Round(q)
	return int(r), math.Abs(q-r) <= integrityEps
}

// GridToWorld is the exact inverse of WorldToGrid on lattice points.
func (cs *CoordinateSystem) GridToWorld(p Pos) Vec3 {
	return Vec3{
		X: float64(p.X) * cs.voxelSize,
		Y: float64(p.Y) * cs.voxelSize,
		Z: float64(p.Z) * cs.voxelSize,
	}
}

// EncodeKey packs p into a Key. Coordinates outside the 21-bit axis range
// wrap; the editor's document bounds stay far inside it.
func EncodeKey(p Pos) Key {
	x := uint64(uint32(int32(p.X))) & keyMask
	y := uint64(uint32(int32(p.Y))) & keyMask
	z := uint64(uint32(int32(p.Z))) & keyMask
	return Key(x<<(2*keyBits) | y<<keyBits | z)
}

// DecodeKey is the exact inverse of EncodeKey.
func DecodeKey(k Key) Pos {
	return Pos{
		X: signExtend(uint64(k) >> (2 * keyBits)),
		Y: signExtend(uint64(k) >> keyBits),
		Z: signExtend(uint64(k)),
	}
}

func signExtend(v uint64) int {
	v &= keyMask
	if v&(1<<(keyBits-1)) != 0 {
		v |= ^uint64(keyMask)
	}
	return int(int64(v))
}

// LinePositions walks the lattice from start to end inclusive: a 3D
// Bresenham traversal driven by the axis with the greatest absolute delta
// (ties x, then y, then z). It yields exactly max(|dx|,|dy|,|dz|)+1 cells
// with no duplicates and no gaps.
func LinePositions(start, end Pos) []Pos {
	dx := absInt(end.X - start.X)
	dy := absInt(end.Y - start.Y)
	dz := absInt(end.Z - start.Z)

	sx := stepSign(start.X, end.X)
	sy := stepSign(start.Y, end.Y)
	sz := stepSign(start.Z, end.Z)

	n := dx
	if dy > n {
		n = dy
	}
	if dz > n {
		n = dz
	}

	out := make([]Pos, 0, n+1)
	cur := start
	out = append(out, cur)

	switch {
	case dx >= dy && dx >= dz:
		e1, e2 := dx/2, dx/2
		for cur.X != end.X {
			cur.X += sx
			e1 += dy
			if e1 >= dx {
				cur.Y += sy
				e1 -= dx
			}
			e2 += dz
			if e2 >= dx {
				cur.Z += sz
				e2 -= dx
			}
			out = append(out, cur)
		}
	case dy >= dx && dy >= dz:
		e1, e2 := dy/2, dy/2
		for cur.Y != end.Y {
			cur.Y += sy
			e1 += dx
			if e1 >= dy {
				cur.X += sx
				e1 -= dy
			}
			e2 += dz
			if e2 >= dy {
				cur.Z += sz
				e2 -= dy
			}
			out = append(out, cur)
		}
	default:
		e1, e2 := dz/2, dz/2
		for cur.Z != end.Z {
			cur.Z += sz
			e1 += dx
			if e1 >= dz {
				cur.X += sx
				e1 -= dz
			}
			e2 += dy
			if e2 >= dz {
				cur.Y += sy
				e2 -= dz
			}
			out = append(out, cur)
		}
	}
	return out
}

func stepSign(from, to int) int {
	if from < to {
		return 1
	}
	return -1
}
