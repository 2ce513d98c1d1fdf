package history

import (
	"errors"
	"testing"

	"voxelstudio.app/internal/editor/extrude"
	"voxelstudio.app/internal/editor/face"
	"voxelstudio.app/internal/editor/grid"
	"voxelstudio.app/internal/editor/registry"
)

func newDoc(t *testing.T) (*registry.Registry, *extrude.Engine) {
	t.Helper()
	cs := grid.NewCoordinateSystem(3.0, nil)
	reg := registry.New(cs, 0, nil)
	return reg, extrude.NewEngine(reg, nil)
}

func docEqual(t *testing.T, reg *registry.Registry, want []registry.State) {
	t.Helper()
	got := reg.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("document has %d voxels, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("voxel %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCreateCommand_UndoRedoRestoresByValue(t *testing.T) {
	reg, _ := newDoc(t)
	h := New(0)

	cmd := &CreateCommand{
		Reg:       reg,
		Positions: []grid.Pos{{X: 1}, {X: 2}, {Y: 1}},
		Material:  "BRASS",
		Tick:      3,
	}
	if err := h.Execute(cmd); err != nil {
		t.Fatalf("execute: %v", err)
	}
	after := reg.Snapshot()

	if err := h.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if reg.Count() != 0 {
		t.Fatalf("undo left %d voxels", reg.Count())
	}
	if err := h.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	docEqual(t, reg, after)
}

func TestCreateCommand_OccupiedCellFailsWhole(t *testing.T) {
	reg, _ := newDoc(t)
	if err := reg.Register(reg.NewVoxel(grid.Pos{X: 2}, "SLATE", 0)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := New(0)
	cmd := &CreateCommand{Reg: reg, Positions: []grid.Pos{{X: 1}, {X: 2}}, Material: "SLATE"}
	if err := h.Execute(cmd); err == nil {
		t.Fatalf("expected failure on occupied cell")
	}
	if reg.Count() != 1 {
		t.Fatalf("failed create must not leave partial voxels: %d", reg.Count())
	}
	if h.CanUndo() {
		t.Fatalf("failed command recorded")
	}
}

func TestDeleteCommand_RevertRestoresOriginal(t *testing.T) {
	reg, _ := newDoc(t)
	h := New(0)
	seed := &CreateCommand{Reg: reg, Positions: []grid.Pos{{X: 1}, {X: 2}}, Material: "BRASS", Tick: 9}
	if err := h.Execute(seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := reg.Snapshot()

	del := &DeleteCommand{Reg: reg, Targets: []grid.Pos{{X: 1}, {X: 5}}}
	if err := h.Execute(del); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if reg.IsOccupied(grid.Pos{X: 1}) {
		t.Fatalf("delete did not remove the voxel")
	}
	if err := h.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	docEqual(t, reg, before)
}

func TestDeleteCommand_AllAbsentIsNothingToDo(t *testing.T) {
	reg, _ := newDoc(t)
	del := &DeleteCommand{Reg: reg, Targets: []grid.Pos{{X: 7}}}
	if err := del.Apply(); !errors.Is(err, ErrNothingToDo) {
		t.Fatalf("err = %v, want ErrNothingToDo", err)
	}
}

func TestTransformCommand_AllOrNothing(t *testing.T) {
	reg, _ := newDoc(t)
	a := reg.NewVoxel(grid.Pos{X: 0}, "SLATE", 0)
	b := reg.NewVoxel(grid.Pos{X: 1}, "SLATE", 0)
	blocker := reg.NewVoxel(grid.Pos{X: 9}, "SLATE", 0)
	for _, v := range []*registry.Voxel{a, b, blocker} {
		if err := reg.Register(v); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	cmd := &TransformCommand{Reg: reg, Entries: []MoveEntry{
		{ID: a.ID, From: grid.Pos{X: 0}, To: grid.Pos{X: 4}},
		{ID: b.ID, From: grid.Pos{X: 1}, To: grid.Pos{X: 9}}, // blocked
	}}
	if err := cmd.Apply(); err == nil {
		t.Fatalf("expected blocked move to fail")
	}
	// The first entry's move was rolled back.
	if !reg.IsOccupied(grid.Pos{X: 0}) || reg.IsOccupied(grid.Pos{X: 4}) {
		t.Fatalf("partial transform was not rolled back")
	}
}

func TestTransformCommand_UndoRestoresPositions(t *testing.T) {
	reg, _ := newDoc(t)
	h := New(0)
	v := reg.NewVoxel(grid.Pos{X: 1, Y: 2}, "SLATE", 0)
	if err := reg.Register(v); err != nil {
		t.Fatalf("register: %v", err)
	}
	before := reg.Snapshot()

	cmd := &TransformCommand{Reg: reg, Entries: []MoveEntry{
		{ID: v.ID, From: grid.Pos{X: 1, Y: 2}, To: grid.Pos{X: -3, Y: 2}},
	}}
	if err := h.Execute(cmd); err != nil {
		t.Fatalf("execute: %v", err)
	}
	after := reg.Snapshot()
	if err := h.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	docEqual(t, reg, before)
	if err := h.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	docEqual(t, reg, after)
}

func TestExtrudeCommand_UndoRemovesAllCreated(t *testing.T) {
	reg, eng := newDoc(t)
	h := New(0)
	base := reg.NewVoxel(grid.Pos{}, "SLATE", 0)
	if err := reg.Register(base); err != nil {
		t.Fatalf("register: %v", err)
	}
	before := reg.Snapshot()

	cmd := &ExtrudeCommand{
		Engine:   eng,
		Reg:      reg,
		Face:     face.Face{Voxel: base, Dir: grid.Pos{Z: 1}},
		Distance: 4,
		Material: "SLATE",
		Tick:     1,
	}
	if err := h.Execute(cmd); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if cmd.Result.SuccessCount != 4 {
		t.Fatalf("extruded %d", cmd.Result.SuccessCount)
	}
	after := reg.Snapshot()

	if err := h.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	docEqual(t, reg, before)
	if err := h.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	docEqual(t, reg, after)
}

func TestExtrudeCommand_FullyBlockedNotRecorded(t *testing.T) {
	reg, eng := newDoc(t)
	h := New(0)
	a := reg.NewVoxel(grid.Pos{}, "SLATE", 0)
	b := reg.NewVoxel(grid.Pos{X: 1}, "SLATE", 0)
	for _, v := range []*registry.Voxel{a, b} {
		if err := reg.Register(v); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	cmd := &ExtrudeCommand{
		Engine:   eng,
		Reg:      reg,
		Face:     face.Face{Voxel: a, Dir: grid.Pos{X: 1}},
		Distance: 2,
		Material: "SLATE",
	}
	if err := h.Execute(cmd); !errors.Is(err, ErrNothingToDo) {
		t.Fatalf("err = %v, want ErrNothingToDo", err)
	}
	if h.CanUndo() {
		t.Fatalf("no-op extrusion recorded")
	}
}

func TestIntrudeCommand_UndoRedo(t *testing.T) {
	reg, eng := newDoc(t)
	h := New(0)
	var top *registry.Voxel
	for y := 0; y <= 2; y++ {
		v := reg.NewVoxel(grid.Pos{Y: y}, "SLATE", 0)
		if err := reg.Register(v); err != nil {
			t.Fatalf("register: %v", err)
		}
		top = v
	}
	before := reg.Snapshot()

	cmd := &IntrudeCommand{
		Engine:   eng,
		Reg:      reg,
		Face:     face.Face{Voxel: top, Dir: grid.Pos{Y: 1}},
		Distance: 2,
	}
	if err := h.Execute(cmd); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("count after intrude = %d", reg.Count())
	}
	after := reg.Snapshot()

	if err := h.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	docEqual(t, reg, before)
	if err := h.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	docEqual(t, reg, after)
}
