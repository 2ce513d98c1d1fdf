package history

import (
	"errors"
	"fmt"

	"voxelstudio.app/internal/editor/extrude"
	"voxelstudio.app/internal/editor/face"
	"voxelstudio.app/internal/editor/grid"
	"voxelstudio.app/internal/editor/registry"
)

// ErrNothingToDo marks commands whose first apply mutated nothing (fully
// blocked extrusion, delete of empty cells). The session drops them instead
// of recording no-ops.
var ErrNothingToDo = errors.New("command changed nothing")

// Presenter is the presentation port commands drive after registry
// mutations, in that order.
type Presenter interface {
	AddVisual(v *registry.Voxel)
	RemoveVisual(v *registry.Voxel)
	UpdateTransform(v *registry.Voxel, from grid.Pos)
}

// CreateCommand places voxels at fixed cells. The first apply allocates the
// voxels; redo restores the same IDs from the captured states.
type CreateCommand struct {
	Reg       *registry.Registry
	Presenter Presenter
	Positions []grid.Pos
	Material  string
	Tick      uint64

	created []registry.State
}

func (c *CreateCommand) Name() string { return "create" }

func (c *CreateCommand) Apply() error {
	if c.created != nil {
		return restoreAll(c.Reg, c.Presenter, c.created)
	}
	// Validate every cell before touching any, so a failed apply leaves the
	// document unchanged and the command out of history.
	for _, p := range c.Positions {
		if ok, reason := c.Reg.CanPlace(p); !ok {
			return fmt.Errorf("create at %v: %s", p, reason)
		}
	}
	for _, p := range c.Positions {
		v := c.Reg.NewVoxel(p, c.Material, c.Tick)
		if err := c.Reg.Register(v); err != nil {
			return err
		}
		if c.Presenter != nil {
			c.Presenter.AddVisual(v)
		}
		c.created = append(c.created, v.State())
	}
	if len(c.created) == 0 {
		return ErrNothingToDo
	}
	return nil
}

func (c *CreateCommand) Revert() error {
	return removeAll(c.Reg, c.Presenter, c.created)
}

// DeleteCommand removes the voxels at the target cells, capturing their full
// state so revert can re-insert them at the original positions.
type DeleteCommand struct {
	Reg       *registry.Registry
	Presenter Presenter
	Targets   []grid.Pos

	removed []registry.State
}

func (c *DeleteCommand) Name() string { return "delete" }

func (c *DeleteCommand) Apply() error {
	if c.removed == nil {
		for _, p := range c.Targets {
			v := c.Reg.Unregister(p)
			if v == nil {
				continue
			}
			if c.Presenter != nil {
				c.Presenter.RemoveVisual(v)
			}
			c.removed = append(c.removed, v.State())
		}
		if len(c.removed) == 0 {
			c.removed = nil
			return ErrNothingToDo
		}
		return nil
	}
	return removeAll(c.Reg, c.Presenter, c.removed)
}

func (c *DeleteCommand) Revert() error {
	return restoreAll(c.Reg, c.Presenter, c.removed)
}

// MoveEntry is one object's pre/post grid position inside a transform.
type MoveEntry struct {
	ID   string
	From grid.Pos
	To   grid.Pos
}

// TransformCommand re-keys voxels to new grid positions through the
// registry's move operation. Apply moves everything or nothing.
type TransformCommand struct {
	Reg       *registry.Registry
	Presenter Presenter
	Entries   []MoveEntry
}

func (c *TransformCommand) Name() string { return "transform" }

func (c *TransformCommand) Apply() error  { return c.move(false) }
func (c *TransformCommand) Revert() error { return c.move(true) }

func (c *TransformCommand) move(back bool) error {
	done := make([]MoveEntry, 0, len(c.Entries))
	for i := range c.Entries {
		e := c.Entries[i]
		if back {
			e = c.Entries[len(c.Entries)-1-i]
			e.From, e.To = e.To, e.From
		}
		if err := c.Reg.Move(e.ID, e.To); err != nil {
			// Roll the partial move back so the command is all-or-nothing.
			for j := len(done) - 1; j >= 0; j-- {
				_ = c.Reg.Move(done[j].ID, done[j].From)
			}
			return fmt.Errorf("move %s to %v: %w", e.ID, e.To, err)
		}
		done = append(done, e)
	}
	if c.Presenter != nil {
		for _, e := range done {
			if v, ok := c.Reg.GetByID(e.ID); ok {
				c.Presenter.UpdateTransform(v, e.From)
			}
		}
	}
	return nil
}

// ExtrudeCommand records one extrusion call. The first apply walks the grid
// through the engine; redo restores the captured voxel list verbatim.
type ExtrudeCommand struct {
	Engine    *extrude.Engine
	Reg       *registry.Registry
	Presenter Presenter
	Face      face.Face
	Distance  int
	Material  string
	Tick      uint64

	created []registry.State
	// Result of the first apply, for caller feedback.
	Result extrude.Result
}

func (c *ExtrudeCommand) Name() string { return "extrude" }

func (c *ExtrudeCommand) Apply() error {
	if c.created != nil {
		return restoreAll(c.Reg, c.Presenter, c.created)
	}
	res, err := c.Engine.Extrude(c.Face, c.Distance, c.Material, c.Tick)
	if err != nil {
		return err
	}
	c.Result = res
	if res.SuccessCount == 0 {
		return ErrNothingToDo
	}
	c.created = make([]registry.State, 0, len(res.Created))
	for _, v := range res.Created {
		c.created = append(c.created, v.State())
	}
	return nil
}

func (c *ExtrudeCommand) Revert() error {
	return removeAll(c.Reg, c.Presenter, c.created)
}

// IntrudeCommand records one intrusion call, the inverse walk.
type IntrudeCommand struct {
	Engine    *extrude.Engine
	Reg       *registry.Registry
	Presenter Presenter
	Face      face.Face
	Distance  int

	removed []registry.State
}

func (c *IntrudeCommand) Name() string { return "intrude" }

func (c *IntrudeCommand) Apply() error {
	if c.removed == nil {
		res, err := c.Engine.Intrude(c.Face, c.Distance)
		if err != nil {
			return err
		}
		if len(res.Deleted) == 0 {
			return ErrNothingToDo
		}
		c.removed = make([]registry.State, 0, len(res.Deleted))
		for _, v := range res.Deleted {
			c.removed = append(c.removed, v.State())
		}
		return nil
	}
	return removeAll(c.Reg, c.Presenter, c.removed)
}

func (c *IntrudeCommand) Revert() error {
	return restoreAll(c.Reg, c.Presenter, c.removed)
}

func restoreAll(reg *registry.Registry, pres Presenter, states []registry.State) error {
	for _, s := range states {
		v, err := reg.Restore(s)
		if err != nil {
			return fmt.Errorf("restore %s at %v: %w", s.ID, s.Pos, err)
		}
		if pres != nil {
			pres.AddVisual(v)
		}
	}
	return nil
}

func removeAll(reg *registry.Registry, pres Presenter, states []registry.State) error {
	// Reverse order, so interleaved dependencies unwind cleanly.
	for i := len(states) - 1; i >= 0; i-- {
		v := reg.Unregister(states[i].Pos)
		if v == nil {
			continue
		}
		if pres != nil {
			pres.RemoveVisual(v)
		}
	}
	return nil
}
