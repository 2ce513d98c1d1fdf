package face

import (
	"math"

	"voxelstudio.app/internal/editor/grid"
	"voxelstudio.app/internal/editor/registry"
)

// Ray is a world-space pointer ray. Dir need not be normalized.
type Ray struct {
	Origin grid.Vec3
	Dir    grid.Vec3
}

// Face identifies one axis-aligned side of a voxel for a single interaction.
// Faces are transient: recomputed per pointer frame, never stored.
type Face struct {
	Voxel    *registry.Voxel
	Dir      grid.Pos  // outward cardinal unit direction
	Center   grid.Vec3 // world-space face center
	Distance float64   // ray parameter at the hit
}

// Resolver maps pointer rays onto voxel faces.
type Resolver struct {
	cs  *grid.CoordinateSystem
	reg *registry.Registry
}

func NewResolver(cs *grid.CoordinateSystem, reg *registry.Registry) *Resolver {
	return &Resolver{cs: cs, reg: reg}
}

// SnapToCardinal snaps a possibly noisy surface normal to the nearest
// cardinal axis: the dominant absolute component wins, ties going to x,
// then y, then z, and the result keeps that component's sign. Only
// axis-aligned outward directions are valid extrusion directions.
func SnapToCardinal(n grid.Vec3) grid.Pos {
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	switch {
	case ax >= ay && ax >= az:
		return grid.Pos{X: sign(n.X)}
	case ay >= az:
		return grid.Pos{Y: sign(n.Y)}
	default:
		return grid.Pos{Z: sign(n.Z)}
	}
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}

// Resolve casts the ray against the candidate voxels and returns the nearest
// hit face. Candidates behind the ray origin are skipped.
func (r *Resolver) Resolve(ray Ray, candidates []*registry.Voxel) (Face, bool) {
	best := Face{Distance: math.Inf(1)}
	found := false
	half := r.cs.VoxelSize() / 2

	for _, v := range candidates {
		if v == nil {
			continue
		}
		t, normal, ok := intersectBox(ray, v.World, half)
		if !ok || t >= best.Distance {
			continue
		}
		dir := SnapToCardinal(normal)
		best = Face{
			Voxel:    v,
			Dir:      dir,
			Center:   r.FaceCenter(v, dir),
			Distance: t,
		}
		found = true
	}
	return best, found
}

// FaceCenter is the voxel anchor offset by half the voxel size along dir.
func (r *Resolver) FaceCenter(v *registry.Voxel, dir grid.Pos) grid.Vec3 {
	half := r.cs.VoxelSize() / 2
	return grid.Vec3{
		X: v.World.X + float64(dir.X)*half,
		Y: v.World.Y + float64(dir.Y)*half,
		Z: v.World.Z + float64(dir.Z)*half,
	}
}

// IsExternalFace reports whether the cell the face points into is free. An
// internal face, between two touching voxels, is never an extrusion target.
func (r *Resolver) IsExternalFace(f Face) bool {
	if f.Voxel == nil {
		return false
	}
	return !r.reg.IsOccupied(f.Voxel.Pos.Add(f.Dir))
}

// intersectBox is a slab test against the axis-aligned cube centered at c
// with the given half extent. It returns the entry parameter and the exact
// outward normal of the entered face.
func intersectBox(ray Ray, c grid.Vec3, half float64) (float64, grid.Vec3, bool) {
	tMin := math.Inf(-1)
	tMax := math.Inf(1)
	var normal grid.Vec3

	origin := [3]float64{ray.Origin.X, ray.Origin.Y, ray.Origin.Z}
	dir := [3]float64{ray.Dir.X, ray.Dir.Y, ray.Dir.Z}
	center := [3]float64{c.X, c.Y, c.Z}

	for axis := 0; axis < 3; axis++ {
		lo := center[axis] - half
		hi := center[axis] + half
		if dir[axis] == 0 {
			if origin[axis] < lo || origin[axis] > hi {
				return 0, grid.Vec3{}, false
			}
			continue
		}
		t1 := (lo - origin[axis]) / dir[axis]
		t2 := (hi - origin[axis]) / dir[axis]
		sign := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1.0
		}
		if t1 > tMin {
			tMin = t1
			normal = grid.Vec3{}
			switch axis {
			case 0:
				normal.X = sign
			case 1:
				normal.Y = sign
			case 2:
				normal.Z = sign
			}
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return 0, grid.Vec3{}, false
		}
	}
	if tMax < 0 {
		return 0, grid.Vec3{}, false
	}
	if tMin < 0 {
		// Origin inside the box; no entered face.
		return 0, grid.Vec3{}, false
	}
	return tMin, normal, true
}
