package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"voxelstudio.app/internal/editor/extrude"
	"voxelstudio.app/internal/editor/face"
	"voxelstudio.app/internal/editor/grid"
	"voxelstudio.app/internal/editor/history"
	"voxelstudio.app/internal/editor/registry"
	"voxelstudio.app/internal/persistence/journal"
	"voxelstudio.app/internal/persistence/snapshot"
	"voxelstudio.app/internal/protocol"
)

// OpLog receives one entry per committed operation. *journal.Writer
// implements it; cmd/server layers the SQLite index on top.
type OpLog interface {
	Write(e journal.Entry) error
}

type FrameEnvelope struct {
	ClientID string
	Frame    protocol.FrameMsg
}

type ControlEnvelope struct {
	ClientID string
	Ctl      protocol.ControlMsg
}

type JoinRequest struct {
	Name   string
	Viewer bool
	Out    chan []byte
	Resp   chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type clientState struct {
	Out    chan []byte
	Viewer bool
}

// Session is the single-threaded authoritative editor for one document.
// All document state is accessed only from the session loop goroutine.
type Session struct {
	cfg    Config
	logger *log.Logger

	cs       *grid.CoordinateSystem
	reg      *registry.Registry
	resolver *face.Resolver
	engine   *extrude.Engine
	hist     *history.History

	tick     atomic.Uint64
	revision uint64

	clients       map[string]*clientState
	controllerID  string
	nextClientNum atomic.Uint64

	frames  chan FrameEnvelope
	control chan ControlEnvelope
	join    chan JoinRequest
	leave   chan string
	stop    chan struct{}

	// Optional sinks (may be nil). Snapshot writing happens off-thread.
	opLog        OpLog
	snapshotSink chan<- snapshot.DocumentV1

	// Editing state, controller-owned.
	tool     string
	material string
	gate     *gestureGate
	drag     *dragState

	// Per-tick outbound events and the effect record of the command being
	// executed right now.
	pendingEvents []protocol.Event
	curEffects    *journal.Entry
}

// dragState is a speculative, session-local operation in progress. Previews
// never touch the registry; only the commit on release does.
type dragState struct {
	kind string // ToolExtrude or ToolMove

	face  face.Face
	steps int

	voxelID   string
	origin    grid.Pos
	grabDelta grid.Pos
	target    grid.Pos
}

func New(cfg Config, logger *log.Logger) *Session {
	cfg.applyDefaults()
	cs := grid.NewCoordinateSystem(cfg.VoxelSize, logger)
	reg := registry.New(cs, cfg.MaxVoxelCount, logger)
	s := &Session{
		cfg:      cfg,
		logger:   logger,
		cs:       cs,
		reg:      reg,
		resolver: face.NewResolver(cs, reg),
		hist:     history.New(cfg.MaxHistorySize),
		clients:  map[string]*clientState{},
		frames:   make(chan FrameEnvelope, 256),
		control:  make(chan ControlEnvelope, 64),
		join:     make(chan JoinRequest, 8),
		leave:    make(chan string, 8),
		stop:     make(chan struct{}),
		tool:     ToolPlace,
		material: DefaultMaterial,
		gate:     newGestureGate(cfg.GestureVoteWindow, cfg.GestureMinConfidence),
	}
	// The session is its own presentation port: registry mutations fan out
	// as protocol events, strictly after the registry has changed.
	s.engine = extrude.NewEngine(reg, s)
	return s
}

func (s *Session) Frames() chan<- FrameEnvelope    { return s.frames }
func (s *Session) Control() chan<- ControlEnvelope { return s.control }
func (s *Session) Join() chan<- JoinRequest        { return s.join }
func (s *Session) Leave() chan<- string            { return s.leave }

func (s *Session) DocID() string       { return s.cfg.DocID }
func (s *Session) TickRateHz() int     { return s.cfg.TickRateHz }
func (s *Session) CurrentTick() uint64 { return s.tick.Load() }

// SetOpLog installs the journal sink. Call before Run.
func (s *Session) SetOpLog(l OpLog) { s.opLog = l }

// SetSnapshotSink installs the off-thread snapshot channel. Call before Run.
func (s *Session) SetSnapshotSink(ch chan<- snapshot.DocumentV1) { s.snapshotSink = ch }

// Presentation port. The registry is already consistent when these run; they
// only translate mutations into client events and journal effects.

func (s *Session) AddVisual(v *registry.Voxel) {
	if s.curEffects != nil {
		s.curEffects.Added = append(s.curEffects.Added, voxelV1(v))
	}
	s.pushEvent(protocol.Event{
		"type":     protocol.EventVoxelAdded,
		"id":       v.ID,
		"pos":      v.Pos.ToArray(),
		"world":    [3]float64{v.World.X, v.World.Y, v.World.Z},
		"material": v.Material,
	})
}

func (s *Session) RemoveVisual(v *registry.Voxel) {
	if s.curEffects != nil {
		s.curEffects.Removed = append(s.curEffects.Removed, voxelV1(v))
	}
	s.pushEvent(protocol.Event{
		"type": protocol.EventVoxelRemoved,
		"id":   v.ID,
		"pos":  v.Pos.ToArray(),
	})
}

func (s *Session) UpdateTransform(v *registry.Voxel, from grid.Pos) {
	if s.curEffects != nil {
		s.curEffects.Moved = append(s.curEffects.Moved, journal.MoveV1{
			ID:   v.ID,
			From: from.ToArray(),
			To:   v.Pos.ToArray(),
		})
	}
	s.pushEvent(protocol.Event{
		"type":  protocol.EventVoxelMoved,
		"id":    v.ID,
		"pos":   v.Pos.ToArray(),
		"world": [3]float64{v.World.X, v.World.Y, v.World.Z},
	})
}

func voxelV1(v *registry.Voxel) snapshot.VoxelV1 {
	return snapshot.VoxelV1{ID: v.ID, Pos: v.Pos.ToArray(), Material: v.Material, CreatedTick: v.CreatedTick}
}

func (s *Session) pushEvent(e protocol.Event) {
	s.pendingEvents = append(s.pendingEvents, e)
}

func (s *Session) actionResult(ref string, ok bool, code, message string) {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
		if message == "" {
			message = "unknown error code"
		}
	}
	e := protocol.Event{
		"type": protocol.EventActionResult,
		"ref":  ref,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	s.pushEvent(e)
}

func (s *Session) docStateEvent() protocol.Event {
	return protocol.Event{
		"type":        protocol.EventDocState,
		"revision":    s.revision,
		"voxel_count": s.reg.Count(),
		"can_undo":    s.hist.CanUndo(),
		"can_redo":    s.hist.CanRedo(),
		"tool":        s.tool,
		"material":    s.material,
	}
}

// commit executes cmd through history and, on success, journals its effects
// and bumps the revision. ref ties the ACTION_RESULT back to the trigger.
func (s *Session) commit(cmd history.Command, op, clientID, ref string) bool {
	s.curEffects = &journal.Entry{
		Tick:     s.tick.Load(),
		Op:       op,
		ClientID: clientID,
	}
	err := s.hist.Execute(cmd)
	entry := s.curEffects
	s.curEffects = nil

	if err != nil {
		s.actionResult(ref, false, commandErrCode(err), err.Error())
		return false
	}
	s.finishCommit(entry, ref, op)
	return true
}

func (s *Session) finishCommit(entry *journal.Entry, ref, op string) {
	s.revision++
	entry.Revision = s.revision
	entry.Digest = s.reg.Digest()
	if s.opLog != nil {
		if err := s.opLog.Write(*entry); err != nil && s.logger != nil {
			s.logger.Printf("journal: %s: %v", op, err)
		}
	}
	s.actionResult(ref, true, "", op)
	s.pushEvent(s.docStateEvent())
}

func commandErrCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, history.ErrNothingToDo):
		return protocol.ErrBlocked
	case errors.Is(err, history.ErrReentrantExecute):
		return protocol.ErrInternal
	case errors.Is(err, extrude.ErrZeroDistance):
		return protocol.ErrZeroDistance
	case errors.Is(err, registry.ErrCellOccupied):
		return protocol.ErrOccupied
	case errors.Is(err, registry.ErrVoxelLimit):
		return protocol.ErrVoxelLimit
	default:
		return protocol.ErrBadRequest
	}
}

// Export captures the document for persistence.
func (s *Session) Export() snapshot.DocumentV1 {
	states := s.reg.Snapshot()
	voxels := make([]snapshot.VoxelV1, 0, len(states))
	for _, st := range states {
		voxels = append(voxels, snapshot.VoxelV1{
			ID:          st.ID,
			Pos:         st.Pos.ToArray(),
			Material:    st.Material,
			CreatedTick: st.CreatedTick,
		})
	}
	return snapshot.DocumentV1{
		Header: snapshot.Header{
			Version:  1,
			DocID:    s.cfg.DocID,
			Revision: s.revision,
			Tick:     s.tick.Load(),
		},
		VoxelSize:      s.cfg.VoxelSize,
		MaxVoxelCount:  s.cfg.MaxVoxelCount,
		MaxHistorySize: s.hist.MaxSize(),
		Voxels:         voxels,
		NextVoxelNum:   s.reg.NextVoxelNum(),
		Digest:         s.reg.Digest(),
	}
}

// Import loads a snapshot into an empty session. History starts empty.
func (s *Session) Import(doc snapshot.DocumentV1) error {
	if s.reg.Count() != 0 {
		return fmt.Errorf("import into non-empty document")
	}
	for _, v := range doc.Voxels {
		st := registry.State{
			ID:          v.ID,
			Pos:         grid.Pos{X: v.Pos[0], Y: v.Pos[1], Z: v.Pos[2]},
			Material:    v.Material,
			CreatedTick: v.CreatedTick,
		}
		if _, err := s.reg.Restore(st); err != nil {
			return fmt.Errorf("restore %s: %w", v.ID, err)
		}
	}
	s.reg.RestoreCounter(doc.NextVoxelNum)
	s.revision = doc.Header.Revision
	s.tick.Store(doc.Header.Tick)
	if doc.Digest != "" && doc.Digest != s.reg.Digest() {
		return fmt.Errorf("snapshot digest mismatch")
	}
	return nil
}

// Registry exposes the occupancy index for read-only callers (tests, replay
// verification). Mutations must go through commands.
func (s *Session) Registry() *registry.Registry { return s.reg }

func (s *Session) History() *history.History { return s.hist }

func (s *Session) newClientID() string {
	n := s.nextClientNum.Add(1)
	return fmt.Sprintf("C%03d", n)
}

func (s *Session) handleJoin(req JoinRequest) {
	id := s.newClientID()
	s.clients[id] = &clientState{Out: req.Out, Viewer: req.Viewer}

	controller := false
	if !req.Viewer && s.controllerID == "" {
		s.controllerID = id
		s.gate.Reset()
		s.drag = nil
		controller = true
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ClientID:        id,
		DocID:           s.cfg.DocID,
		Revision:        s.revision,
		Controller:      controller,
		Params: protocol.DocParams{
			VoxelSize:      s.cfg.VoxelSize,
			TickRateHz:     s.cfg.TickRateHz,
			MaxVoxelCount:  s.cfg.MaxVoxelCount,
			MaxHistorySize: s.hist.MaxSize(),
		},
	}
	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: welcome}
	}
	if s.logger != nil {
		s.logger.Printf("session %s: client %s joined (viewer=%v controller=%v)", s.cfg.DocID, id, req.Viewer, controller)
	}
}

func (s *Session) handleLeave(id string) {
	delete(s.clients, id)
	if id != s.controllerID {
		return
	}
	// Abandon any in-flight drag; previews were never registered, so there
	// is nothing to roll back.
	s.drag = nil
	s.gate.Reset()
	s.controllerID = ""
	for cid, c := range s.clients {
		if !c.Viewer {
			s.controllerID = cid
			break
		}
	}
	if s.logger != nil {
		s.logger.Printf("session %s: controller left, now %q", s.cfg.DocID, s.controllerID)
	}
}

func (s *Session) flushEvents() {
	if len(s.pendingEvents) == 0 {
		return
	}
	msg := protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Tick:            s.tick.Load(),
		Revision:        s.revision,
		Events:          s.pendingEvents,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("session %s: marshal events: %v", s.cfg.DocID, err)
		}
		s.pendingEvents = nil
		return
	}
	for _, c := range s.clients {
		sendLatest(c.Out, b)
	}
	s.pendingEvents = nil
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
