package registry

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync/atomic"

	"voxelstudio.app/internal/editor/grid"
)

// Voxel is one placed solid occupying exactly one grid cell. Its Pos is only
// ever changed through Registry.Move, which re-keys the occupancy index in
// the same step.
type Voxel struct {
	ID          string
	Pos         grid.Pos
	World       grid.Vec3 // cached, always Pos * voxelSize
	Material    string
	CreatedTick uint64
}

// State is a by-value snapshot of a voxel, safe to capture in commands and
// persistence without aliasing the live arena entry.
type State struct {
	ID          string
	Pos         grid.Pos
	Material    string
	CreatedTick uint64
}

func (v *Voxel) State() State {
	return State{ID: v.ID, Pos: v.Pos, Material: v.Material, CreatedTick: v.CreatedTick}
}

var (
	ErrCellOccupied = errors.New("cell occupied")
	ErrVoxelLimit   = errors.New("voxel limit reached")
	ErrNotFound     = errors.New("voxel not found")
)

// Reasons reported by CanPlace.
const (
	ReasonOccupied   = "OCCUPIED"
	ReasonVoxelLimit = "VOXEL_LIMIT"
)

// Registry is the authoritative occupancy index of the document: an arena of
// voxels addressed by ID plus a cell index keyed by packed grid position.
// Accessed only from the session loop goroutine. It never touches the
// presentation layer; callers mutate the registry first, then presentation.
type Registry struct {
	cs     *grid.CoordinateSystem
	logger *log.Logger

	maxVoxels int

	cells  map[grid.Key]string // occupancy index: cell -> voxel ID
	voxels map[string]*Voxel   // arena

	nextVoxelNum      atomic.Uint64
	integrityWarnings atomic.Uint64
}

func New(cs *grid.CoordinateSystem, maxVoxels int, logger *log.Logger) *Registry {
	if maxVoxels <= 0 {
		maxVoxels = 1000
	}
	return &Registry{
		cs:        cs,
		logger:    logger,
		maxVoxels: maxVoxels,
		cells:     map[grid.Key]string{},
		voxels:    map[string]*Voxel{},
	}
}

func (r *Registry) Count() int     { return len(r.cells) }
func (r *Registry) MaxVoxels() int { return r.maxVoxels }

// IntegrityWarnings reports how many duplicate-key defects have been seen.
func (r *Registry) IntegrityWarnings() uint64 { return r.integrityWarnings.Load() }

// NewVoxel allocates a voxel value with a fresh ID. The voxel is not
// registered; creation commands register it when they apply.
func (r *Registry) NewVoxel(pos grid.Pos, material string, tick uint64) *Voxel {
	n := r.nextVoxelNum.Add(1)
	return &Voxel{
		ID:          fmt.Sprintf("V%06d", n),
		Pos:         pos,
		World:       r.cs.GridToWorld(pos),
		Material:    material,
		CreatedTick: tick,
	}
}

func (r *Registry) IsOccupied(pos grid.Pos) bool {
	_, ok := r.cells[grid.EncodeKey(pos)]
	return ok
}

// CanPlace reports whether a voxel may be created at pos, with a reason code
// when it may not. A full document refuses placement even on empty cells.
func (r *Registry) CanPlace(pos grid.Pos) (bool, string) {
	if r.IsOccupied(pos) {
		return false, ReasonOccupied
	}
	if len(r.cells) >= r.maxVoxels {
		return false, ReasonVoxelLimit
	}
	return true, ""
}

// Register inserts v under its grid position. Registering onto an occupied
// cell is an integrity violation: the index is left untouched and the call
// fails for that cell only.
func (r *Registry) Register(v *Voxel) error {
	k := grid.EncodeKey(v.Pos)
	if otherID, ok := r.cells[k]; ok {
		if otherID != v.ID {
			r.integrityWarnings.Add(1)
			if r.logger != nil {
				r.logger.Printf("registry: cell %v already held by %s, refusing %s", v.Pos, otherID, v.ID)
			}
		}
		return ErrCellOccupied
	}
	if len(r.cells) >= r.maxVoxels {
		return ErrVoxelLimit
	}
	r.cells[k] = v.ID
	r.voxels[v.ID] = v
	return nil
}

// Unregister removes the voxel at pos and returns it. No-op on empty cells.
func (r *Registry) Unregister(pos grid.Pos) *Voxel {
	k := grid.EncodeKey(pos)
	id, ok := r.cells[k]
	if !ok {
		return nil
	}
	v := r.voxels[id]
	delete(r.cells, k)
	delete(r.voxels, id)
	return v
}

func (r *Registry) Get(pos grid.Pos) (*Voxel, bool) {
	id, ok := r.cells[grid.EncodeKey(pos)]
	if !ok {
		return nil, false
	}
	v, ok := r.voxels[id]
	return v, ok
}

func (r *Registry) GetByID(id string) (*Voxel, bool) {
	v, ok := r.voxels[id]
	return v, ok
}

var faceDirs = [6]grid.Pos{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// IsAdjacentToAny reports whether any of the six face-adjacent neighbors of
// pos is occupied. Placement rules use this to require that every voxel after
// the first touches the existing structure.
func (r *Registry) IsAdjacentToAny(pos grid.Pos) bool {
	for _, d := range faceDirs {
		if r.IsOccupied(pos.Add(d)) {
			return true
		}
	}
	return false
}

// Restore rebuilds a voxel from a captured state and registers it, keeping
// the original ID. Undo of deletions and redo of creations go through here so
// the document is restored by value.
func (r *Registry) Restore(s State) (*Voxel, error) {
	v := &Voxel{
		ID:          s.ID,
		Pos:         s.Pos,
		World:       r.cs.GridToWorld(s.Pos),
		Material:    s.Material,
		CreatedTick: s.CreatedTick,
	}
	if err := r.Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Move re-keys a voxel to newPos atomically: either the voxel ends up indexed
// under newPos with Pos and World updated, or nothing changes.
func (r *Registry) Move(id string, newPos grid.Pos) error {
	v, ok := r.voxels[id]
	if !ok {
		return ErrNotFound
	}
	if v.Pos == newPos {
		return nil
	}
	nk := grid.EncodeKey(newPos)
	if otherID, occupied := r.cells[nk]; occupied {
		r.integrityWarnings.Add(1)
		if r.logger != nil {
			r.logger.Printf("registry: move %s to %v blocked by %s", id, newPos, otherID)
		}
		return ErrCellOccupied
	}
	delete(r.cells, grid.EncodeKey(v.Pos))
	r.cells[nk] = id
	v.Pos = newPos
	v.World = r.cs.GridToWorld(newPos)
	return nil
}

// Snapshot walks the registry in deterministic (key) order and returns
// by-value voxel states, for persistence and digests.
func (r *Registry) Snapshot() []State {
	keys := make([]grid.Key, 0, len(r.cells))
	for k := range r.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]State, 0, len(keys))
	for _, k := range keys {
		if v, ok := r.voxels[r.cells[k]]; ok {
			out = append(out, v.State())
		}
	}
	return out
}

// All returns the live voxels in deterministic key order, e.g. as ray-cast
// candidates. Callers must not hold the slice across mutations.
func (r *Registry) All() []*Voxel {
	keys := make([]grid.Key, 0, len(r.cells))
	for k := range r.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]*Voxel, 0, len(keys))
	for _, k := range keys {
		if v, ok := r.voxels[r.cells[k]]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Digest hashes the occupancy state in key order. Two documents with the
// same cells, materials, and IDs produce the same digest, which replay
// verification relies on.
func (r *Registry) Digest() string {
	h := sha256.New()
	var buf [8]byte
	for _, s := range r.Snapshot() {
		for _, c := range [3]int{s.Pos.X, s.Pos.Y, s.Pos.Z} {
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(c)))
			h.Write(buf[:])
		}
		h.Write([]byte(s.ID))
		h.Write([]byte{0})
		h.Write([]byte(s.Material))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NextVoxelNum exposes the ID allocator position for snapshots.
func (r *Registry) NextVoxelNum() uint64 { return r.nextVoxelNum.Load() }

// RestoreCounter advances the ID allocator past n, used when resuming a
// document from a snapshot so fresh IDs never collide with restored ones.
func (r *Registry) RestoreCounter(n uint64) {
	for {
		cur := r.nextVoxelNum.Load()
		if cur >= n {
			return
		}
		if r.nextVoxelNum.CompareAndSwap(cur, n) {
			return
		}
	}
}
