package session

import (
	"fmt"
	"math"

	"voxelstudio.app/internal/editor/face"
	"voxelstudio.app/internal/editor/grid"
	"voxelstudio.app/internal/editor/history"
	"voxelstudio.app/internal/persistence/journal"
	"voxelstudio.app/internal/protocol"
)

// applyControl handles one discrete CONTROL operation. Only the controller
// may mutate; viewers and stale clients get an ACTION_RESULT and nothing else.
func (s *Session) applyControl(env ControlEnvelope) {
	ctl := env.Ctl
	ref := ctl.ID
	if ref == "" {
		ref = fmt.Sprintf("%s@%d", ctl.Op, s.tick.Load())
	}

	c, ok := s.clients[env.ClientID]
	if !ok {
		return
	}
	if c.Viewer {
		s.actionResult(ref, false, protocol.ErrBadRequest, "viewers cannot issue controls")
		return
	}
	if env.ClientID != s.controllerID {
		s.actionResult(ref, false, protocol.ErrBadRequest, "not the controller")
		return
	}

	switch ctl.Op {
	case protocol.ControlUndo:
		s.applyHistoryOp(ref, protocol.ControlUndo, env.ClientID)
	case protocol.ControlRedo:
		s.applyHistoryOp(ref, protocol.ControlRedo, env.ClientID)
	case protocol.ControlSetTool:
		s.setTool(ref, ctl.Tool)
	case protocol.ControlSetMaterial:
		if ctl.Material == "" {
			s.actionResult(ref, false, protocol.ErrBadRequest, "empty material")
			return
		}
		s.material = ctl.Material
		s.actionResult(ref, true, "", "")
		s.pushEvent(s.docStateEvent())
	case protocol.ControlSetHistorySize:
		if ctl.HistorySize < 1 {
			s.actionResult(ref, false, protocol.ErrBadRequest, "history size must be >= 1")
			return
		}
		s.hist.SetMaxSize(ctl.HistorySize)
		s.actionResult(ref, true, "", "")
		s.pushEvent(s.docStateEvent())
	case protocol.ControlSave:
		s.requestSave(ref)
	default:
		s.actionResult(ref, false, protocol.ErrProtoBadRequest, "unknown op "+ctl.Op)
	}
}

// applyHistoryOp runs undo or redo through the same effect-capture path as
// commit, so journal replay sees the reverted mutations as plain effects.
func (s *Session) applyHistoryOp(ref, op, clientID string) {
	var can bool
	if op == protocol.ControlUndo {
		can = s.hist.CanUndo()
	} else {
		can = s.hist.CanRedo()
	}
	if !can {
		// Empty history is not an error; the client just gets told.
		s.actionResult(ref, true, "", "nothing to "+op)
		return
	}

	s.cancelDrag()
	s.curEffects = &journal.Entry{
		Tick:     s.tick.Load(),
		Op:       op,
		ClientID: clientID,
	}
	var err error
	if op == protocol.ControlUndo {
		err = s.hist.Undo()
	} else {
		err = s.hist.Redo()
	}
	entry := s.curEffects
	s.curEffects = nil

	if err != nil {
		s.actionResult(ref, false, commandErrCode(err), err.Error())
		return
	}
	s.finishCommit(entry, ref, op)
}

func (s *Session) setTool(ref, tool string) {
	switch tool {
	case ToolPlace, ToolDelete, ToolExtrude, ToolMove:
	default:
		s.actionResult(ref, false, protocol.ErrBadRequest, "unknown tool "+tool)
		return
	}
	s.cancelDrag()
	s.tool = tool
	s.actionResult(ref, true, "", "")
	s.pushEvent(s.docStateEvent())
}

func (s *Session) requestSave(ref string) {
	if s.snapshotSink == nil {
		s.actionResult(ref, false, protocol.ErrInternal, "no snapshot writer")
		return
	}
	select {
	case s.snapshotSink <- s.Export():
		s.actionResult(ref, true, "", "")
	default:
		s.actionResult(ref, false, protocol.ErrBlocked, "snapshot writer busy")
	}
}

// applyFrame feeds the controller's frame through the gesture gate and
// dispatches the active tool. Engage edges start an action, sustained
// engagement drags it, release edges commit it.
func (s *Session) applyFrame(env FrameEnvelope) {
	f := env.Frame
	g := f.Primary
	active := g.Kind == protocol.GestureSinglePinch && g.Active
	conf := g.Confidence
	if conf == 0 {
		conf = g.Strength
	}
	engaged, engagedEdge, releasedEdge := s.gate.Update(active, conf)

	switch {
	case engagedEdge:
		s.beginAction(f)
	case engaged && s.drag != nil:
		s.updateDrag(f)
	case releasedEdge:
		s.commitDrag(f)
	}
}

func frameRay(f protocol.FrameMsg) (face.Ray, bool) {
	p := f.RightPointer
	if p == nil {
		p = f.LeftPointer
	}
	if p == nil {
		return face.Ray{}, false
	}
	return face.Ray{
		Origin: grid.Vec3{X: p.Origin[0], Y: p.Origin[1], Z: p.Origin[2]},
		Dir:    grid.Vec3{X: p.Dir[0], Y: p.Dir[1], Z: p.Dir[2]},
	}, true
}

func gesturePos(g protocol.GestureJSON) grid.Vec3 {
	return grid.Vec3{X: g.Position[0], Y: g.Position[1], Z: g.Position[2]}
}

func (s *Session) beginAction(f protocol.FrameMsg) {
	tick := s.tick.Load()
	ref := fmt.Sprintf("%s@%d", s.tool, tick)

	switch s.tool {
	case ToolPlace:
		pos := s.cs.WorldToGrid(gesturePos(f.Primary))
		if s.reg.Count() > 0 && !s.reg.IsAdjacentToAny(pos) && !s.reg.IsOccupied(pos) {
			s.actionResult(ref, false, protocol.ErrDetached, "cell does not touch the structure")
			return
		}
		cmd := &history.CreateCommand{
			Reg:       s.reg,
			Presenter: s,
			Positions: []grid.Pos{pos},
			Material:  s.material,
			Tick:      tick,
		}
		s.commit(cmd, "CREATE", s.controllerID, ref)

	case ToolDelete:
		hit, ok := s.resolveRay(f, ref)
		if !ok {
			return
		}
		cmd := &history.DeleteCommand{
			Reg:       s.reg,
			Presenter: s,
			Targets:   []grid.Pos{hit.Voxel.Pos},
		}
		s.commit(cmd, "DELETE", s.controllerID, ref)

	case ToolExtrude:
		hit, ok := s.resolveRay(f, ref)
		if !ok {
			return
		}
		if !s.resolver.IsExternalFace(hit) {
			s.actionResult(ref, false, protocol.ErrInvalidTarget, "internal face")
			return
		}
		s.drag = &dragState{kind: ToolExtrude, face: hit}

	case ToolMove:
		hit, ok := s.resolveRay(f, ref)
		if !ok {
			return
		}
		grabCell := s.cs.WorldToGrid(gesturePos(f.Primary))
		s.drag = &dragState{
			kind:      ToolMove,
			voxelID:   hit.Voxel.ID,
			origin:    hit.Voxel.Pos,
			grabDelta: hit.Voxel.Pos.Sub(grabCell),
			target:    hit.Voxel.Pos,
		}
	}
}

func (s *Session) resolveRay(f protocol.FrameMsg, ref string) (face.Face, bool) {
	ray, ok := frameRay(f)
	if !ok {
		s.actionResult(ref, false, protocol.ErrBadRequest, "no pointer ray")
		return face.Face{}, false
	}
	hit, found := s.resolver.Resolve(ray, s.reg.All())
	if !found {
		s.actionResult(ref, false, protocol.ErrInvalidTarget, "ray hits nothing")
		return face.Face{}, false
	}
	return hit, true
}

// updateDrag recomputes the speculative drag target from the current pointer
// and emits a preview event when it changes. The registry is never touched.
func (s *Session) updateDrag(f protocol.FrameMsg) {
	d := s.drag
	switch d.kind {
	case ToolExtrude:
		steps := s.extrudeSteps(d.face, gesturePos(f.Primary))
		if steps == d.steps {
			return
		}
		d.steps = steps
		s.pushEvent(protocol.Event{
			"type":  protocol.EventExtrudePreview,
			"id":    d.face.Voxel.ID,
			"dir":   d.face.Dir.ToArray(),
			"steps": steps,
		})
	case ToolMove:
		target := s.cs.WorldToGrid(gesturePos(f.Primary)).Add(d.grabDelta)
		if target == d.target {
			return
		}
		d.target = target
		s.pushEvent(protocol.Event{
			"type": protocol.EventMovePreview,
			"id":   d.voxelID,
			"pos":  target.ToArray(),
		})
	}
}

// extrudeSteps projects the pinch position onto the face normal and rounds to
// whole cells. Negative steps mean the drag pulled inward.
func (s *Session) extrudeSteps(fc face.Face, pointer grid.Vec3) int {
	dir := grid.Vec3{X: float64(fc.Dir.X), Y: float64(fc.Dir.Y), Z: float64(fc.Dir.Z)}
	along := pointer.Sub(fc.Center).Dot(dir) / s.cs.VoxelSize()
	return int(math.Round(along))
}

// commitDrag turns the speculative drag into a real command on release.
func (s *Session) commitDrag(f protocol.FrameMsg) {
	d := s.drag
	if d == nil {
		return
	}
	s.drag = nil
	tick := s.tick.Load()
	ref := fmt.Sprintf("%s@%d", d.kind, tick)
	s.pushEvent(protocol.Event{"type": protocol.EventPreviewCleared})

	switch d.kind {
	case ToolExtrude:
		steps := s.extrudeSteps(d.face, gesturePos(f.Primary))
		switch {
		case steps > 0:
			cmd := &history.ExtrudeCommand{
				Engine:    s.engine,
				Reg:       s.reg,
				Presenter: s,
				Face:      d.face,
				Distance:  steps,
				Material:  s.material,
				Tick:      tick,
			}
			if s.commit(cmd, "EXTRUDE", s.controllerID, ref) && cmd.Result.Blocked {
				s.actionResult(ref, true, protocol.ErrBlocked,
					fmt.Sprintf("stopped after %d of %d", cmd.Result.SuccessCount, steps))
			}
		case steps < 0:
			cmd := &history.IntrudeCommand{
				Engine:    s.engine,
				Reg:       s.reg,
				Presenter: s,
				Face:      d.face,
				Distance:  -steps,
			}
			s.commit(cmd, "INTRUDE", s.controllerID, ref)
		default:
			s.actionResult(ref, false, protocol.ErrZeroDistance, "released without moving")
		}

	case ToolMove:
		target := s.cs.WorldToGrid(gesturePos(f.Primary)).Add(d.grabDelta)
		if target == d.origin {
			s.actionResult(ref, false, protocol.ErrZeroDistance, "released at the original cell")
			return
		}
		cmd := &history.TransformCommand{
			Reg:       s.reg,
			Presenter: s,
			Entries:   []history.MoveEntry{{ID: d.voxelID, From: d.origin, To: target}},
		}
		s.commit(cmd, "MOVE", s.controllerID, ref)
	}
}

func (s *Session) cancelDrag() {
	if s.drag == nil {
		return
	}
	s.drag = nil
	s.pushEvent(protocol.Event{"type": protocol.EventPreviewCleared})
}
