package extrude

import (
	"errors"
	"testing"

	"voxelstudio.app/internal/editor/face"
	"voxelstudio.app/internal/editor/grid"
	"voxelstudio.app/internal/editor/registry"
)

type recordingPresenter struct {
	added   []string
	removed []string
}

func (p *recordingPresenter) AddVisual(v *registry.Voxel)    { p.added = append(p.added, v.ID) }
func (p *recordingPresenter) RemoveVisual(v *registry.Voxel) { p.removed = append(p.removed, v.ID) }

func setup(t *testing.T, cells ...grid.Pos) (*registry.Registry, *Engine, *recordingPresenter, []*registry.Voxel) {
	t.Helper()
	cs := grid.NewCoordinateSystem(3.0, nil)
	reg := registry.New(cs, 0, nil)
	var voxels []*registry.Voxel
	for _, p := range cells {
		v := reg.NewVoxel(p, "SLATE", 0)
		if err := reg.Register(v); err != nil {
			t.Fatalf("register %v: %v", p, err)
		}
		voxels = append(voxels, v)
	}
	pres := &recordingPresenter{}
	return reg, NewEngine(reg, pres), pres, voxels
}

func TestExtrude_Free(t *testing.T) {
	reg, eng, pres, voxels := setup(t, grid.Pos{})
	f := face.Face{Voxel: voxels[0], Dir: grid.Pos{X: 1}}

	res, err := eng.Extrude(f, 3, "SLATE", 1)
	if err != nil {
		t.Fatalf("extrude: %v", err)
	}
	if res.SuccessCount != 3 || res.Blocked {
		t.Fatalf("res = %+v", res)
	}
	for i := 1; i <= 3; i++ {
		if !reg.IsOccupied(grid.Pos{X: i}) {
			t.Fatalf("cell x=%d not occupied", i)
		}
	}
	if len(pres.added) != 3 {
		t.Fatalf("presenter saw %d adds", len(pres.added))
	}
}

func TestExtrude_StopsAtFirstBlockedCell(t *testing.T) {
	// Occupy the 3rd step ahead of the face.
	reg, eng, _, voxels := setup(t, grid.Pos{}, grid.Pos{X: 3})
	f := face.Face{Voxel: voxels[0], Dir: grid.Pos{X: 1}}

	res, err := eng.Extrude(f, 5, "SLATE", 1)
	if err != nil {
		t.Fatalf("extrude: %v", err)
	}
	if res.SuccessCount != 2 {
		t.Fatalf("SuccessCount = %d, want 2", res.SuccessCount)
	}
	if !res.Blocked || res.BlockReason != registry.ReasonOccupied {
		t.Fatalf("blocked = %v reason = %q", res.Blocked, res.BlockReason)
	}
	// Partial progress is kept; nothing past the obstacle.
	if !reg.IsOccupied(grid.Pos{X: 1}) || !reg.IsOccupied(grid.Pos{X: 2}) {
		t.Fatalf("partial cells missing")
	}
	if reg.IsOccupied(grid.Pos{X: 4}) || reg.IsOccupied(grid.Pos{X: 5}) {
		t.Fatalf("cells past the obstacle must stay empty")
	}
}

func TestExtrude_ZeroDistance(t *testing.T) {
	reg, eng, _, voxels := setup(t, grid.Pos{})
	f := face.Face{Voxel: voxels[0], Dir: grid.Pos{Y: 1}}

	_, err := eng.Extrude(f, 0, "SLATE", 1)
	if !errors.Is(err, ErrZeroDistance) {
		t.Fatalf("err = %v, want ErrZeroDistance", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("zero-distance extrude must create nothing")
	}
}

func TestExtrude_NegativeDistanceReversesDirection(t *testing.T) {
	reg, eng, _, voxels := setup(t, grid.Pos{})
	f := face.Face{Voxel: voxels[0], Dir: grid.Pos{X: 1}}

	res, err := eng.Extrude(f, -2, "SLATE", 1)
	if err != nil {
		t.Fatalf("extrude: %v", err)
	}
	if res.SuccessCount != 2 {
		t.Fatalf("SuccessCount = %d", res.SuccessCount)
	}
	if !reg.IsOccupied(grid.Pos{X: -1}) || !reg.IsOccupied(grid.Pos{X: -2}) {
		t.Fatalf("negative distance should walk the opposite way")
	}
}

func TestExtrude_RespectsVoxelLimit(t *testing.T) {
	cs := grid.NewCoordinateSystem(3.0, nil)
	reg := registry.New(cs, 3, nil)
	v := reg.NewVoxel(grid.Pos{}, "SLATE", 0)
	if err := reg.Register(v); err != nil {
		t.Fatalf("register: %v", err)
	}
	eng := NewEngine(reg, nil)

	res, err := eng.Extrude(face.Face{Voxel: v, Dir: grid.Pos{Z: 1}}, 5, "SLATE", 1)
	if err != nil {
		t.Fatalf("extrude: %v", err)
	}
	if res.SuccessCount != 2 || res.BlockReason != registry.ReasonVoxelLimit {
		t.Fatalf("res = %+v", res)
	}
}

func TestIntrude(t *testing.T) {
	// A column of three with a hole would skip the hole; here delete 2 of 3.
	reg, eng, pres, voxels := setup(t, grid.Pos{Y: 2}, grid.Pos{Y: 1}, grid.Pos{})
	f := face.Face{Voxel: voxels[0], Dir: grid.Pos{Y: 1}}

	res, err := eng.Intrude(f, 2)
	if err != nil {
		t.Fatalf("intrude: %v", err)
	}
	if len(res.Deleted) != 2 {
		t.Fatalf("deleted %d, want 2", len(res.Deleted))
	}
	if reg.IsOccupied(grid.Pos{Y: 2}) || reg.IsOccupied(grid.Pos{Y: 1}) {
		t.Fatalf("intruded cells still occupied")
	}
	if !reg.IsOccupied(grid.Pos{}) {
		t.Fatalf("cell below intrusion depth must survive")
	}
	if len(pres.removed) != 2 {
		t.Fatalf("presenter saw %d removals", len(pres.removed))
	}
}

func TestIntrude_SkipsAbsentCells(t *testing.T) {
	reg, eng, _, voxels := setup(t, grid.Pos{Y: 3}, grid.Pos{Y: 1})
	f := face.Face{Voxel: voxels[0], Dir: grid.Pos{Y: 1}}

	res, err := eng.Intrude(f, 3)
	if err != nil {
		t.Fatalf("intrude: %v", err)
	}
	if len(res.Deleted) != 2 {
		t.Fatalf("deleted %d, want 2 (hole skipped)", len(res.Deleted))
	}
	if reg.Count() != 0 {
		t.Fatalf("count = %d", reg.Count())
	}
}

func TestExtrudeMultiple_AdjacentFacesBlockEachOther(t *testing.T) {
	reg, eng, _, voxels := setup(t, grid.Pos{}, grid.Pos{X: 2})
	faces := []face.Face{
		{Voxel: voxels[0], Dir: grid.Pos{X: 1}},
		{Voxel: voxels[1], Dir: grid.Pos{X: -1}},
	}

	res, err := eng.ExtrudeMultiple(faces, 1, "SLATE", 1)
	if err != nil {
		t.Fatalf("extrude multiple: %v", err)
	}
	// First face claims x=1; the second face's extrusion into the same cell
	// is blocked by the state the first one left behind.
	if res.SuccessCount != 1 || !res.Blocked {
		t.Fatalf("res = %+v", res)
	}
	if !reg.IsOccupied(grid.Pos{X: 1}) {
		t.Fatalf("shared cell should hold the first face's voxel")
	}
}
