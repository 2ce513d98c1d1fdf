package extrude

import (
	"errors"

	"voxelstudio.app/internal/editor/face"
	"voxelstudio.app/internal/editor/grid"
	"voxelstudio.app/internal/editor/registry"
)

var ErrZeroDistance = errors.New("zero extrusion distance")

// Presenter is the slice of the presentation layer extrusion needs. The
// registry is mutated first, presentation second; a crash between the two
// leaves the occupancy index, the source of truth, consistent.
type Presenter interface {
	AddVisual(v *registry.Voxel)
	RemoveVisual(v *registry.Voxel)
}

// Result reports one extrusion call. Created keeps the order the voxels were
// placed in, which commands rely on to invert the operation.
type Result struct {
	Created      []*registry.Voxel
	SuccessCount int
	Blocked      bool
	BlockReason  string
}

// IntrusionResult lists the voxels removed by one intrusion call.
type IntrusionResult struct {
	Deleted []*registry.Voxel
}

// Engine grows and shrinks voxel structures along face normals, one cell at
// a time, consulting the registry at every step.
type Engine struct {
	reg       *registry.Registry
	presenter Presenter
}

func NewEngine(reg *registry.Registry, presenter Presenter) *Engine {
	return &Engine{reg: reg, presenter: presenter}
}

// Extrude walks |distance| cells outward from f along its direction (inward
// for negative distance), creating a voxel per free cell. The walk stops at
// the first blocked cell and keeps what was already created: "push until you
// hit something" preserves partial progress on long drags.
func (e *Engine) Extrude(f face.Face, distance int, material string, tick uint64) (Result, error) {
	if distance == 0 {
		return Result{}, ErrZeroDistance
	}
	if f.Voxel == nil {
		return Result{}, errors.New("extrude: no face voxel")
	}

	steps := distance
	dir := f.Dir
	if steps < 0 {
		steps = -steps
		dir = grid.Pos{X: -dir.X, Y: -dir.Y, Z: -dir.Z}
	}

	var res Result
	base := f.Voxel.Pos
	for i := 1; i <= steps; i++ {
		next := base.Add(dir.Scale(i))
		ok, reason := e.reg.CanPlace(next)
		if !ok {
			res.Blocked = true
			res.BlockReason = reason
			break
		}
		v := e.reg.NewVoxel(next, material, tick)
		if err := e.reg.Register(v); err != nil {
			// CanPlace just said yes; treat as blocked and stop.
			res.Blocked = true
			res.BlockReason = registry.ReasonOccupied
			break
		}
		if e.presenter != nil {
			e.presenter.AddVisual(v)
		}
		res.Created = append(res.Created, v)
		res.SuccessCount++
	}
	return res, nil
}

// Intrude deletes up to distance voxels walking inward from the face,
// starting at the face's own cell. Absent cells are skipped.
func (e *Engine) Intrude(f face.Face, distance int) (IntrusionResult, error) {
	if f.Voxel == nil {
		return IntrusionResult{}, errors.New("intrude: no face voxel")
	}
	var res IntrusionResult
	base := f.Voxel.Pos
	for i := 0; i < distance; i++ {
		cell := base.Sub(f.Dir.Scale(i))
		v := e.reg.Unregister(cell)
		if v == nil {
			continue
		}
		if e.presenter != nil {
			e.presenter.RemoveVisual(v)
		}
		res.Deleted = append(res.Deleted, v)
	}
	return res, nil
}

// ExtrudeMultiple applies Extrude per face in caller order. Each face sees
// the registry state left by the previous one, so adjacent faces can
// legitimately block each other.
func (e *Engine) ExtrudeMultiple(faces []face.Face, distance int, material string, tick uint64) (Result, error) {
	if distance == 0 {
		return Result{}, ErrZeroDistance
	}
	var agg Result
	for _, f := range faces {
		r, err := e.Extrude(f, distance, material, tick)
		if err != nil {
			return agg, err
		}
		agg.Created = append(agg.Created, r.Created...)
		agg.SuccessCount += r.SuccessCount
		if r.Blocked {
			agg.Blocked = true
			agg.BlockReason = r.BlockReason
		}
	}
	return agg, nil
}
