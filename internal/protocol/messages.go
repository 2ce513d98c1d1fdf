package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int  `json:"max_queue,omitempty"`
	Viewer   bool `json:"viewer,omitempty"` // receive events only, never control
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	ClientID        string    `json:"client_id"`
	DocID           string    `json:"doc_id"`
	Revision        uint64    `json:"revision"`
	Controller      bool      `json:"controller"`
	Params          DocParams `json:"params"`
}

type DocParams struct {
	VoxelSize      float64 `json:"voxel_size"`
	TickRateHz     int     `json:"tick_rate_hz"`
	MaxVoxelCount  int     `json:"max_voxel_count"`
	MaxHistorySize int     `json:"max_history_size"`
}

// FRAME (client -> server): one tick's worth of pointer and gesture input.
// The tracking pipeline runs client-side; the server only ever sees
// normalized rays and the classified gesture variant.
type FrameMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	LeftPointer     *RayJSON    `json:"left_pointer,omitempty"`
	RightPointer    *RayJSON    `json:"right_pointer,omitempty"`
	Primary         GestureJSON `json:"primary_gesture"`
	Secondary       GestureJSON `json:"secondary_gesture,omitempty"`
}

type RayJSON struct {
	Origin [3]float64 `json:"origin"`
	Dir    [3]float64 `json:"dir"`
}

// Gesture kinds. A tagged variant: which fields are meaningful depends on
// Kind, and KindNone carries none.
const (
	GestureNone         = "NONE"
	GestureSinglePinch  = "SINGLE_PINCH"
	GestureTwoHandPinch = "TWO_HAND_PINCH"
)

type GestureJSON struct {
	Kind       string     `json:"kind"`
	Active     bool       `json:"active,omitempty"`
	Strength   float64    `json:"strength,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Hand       string     `json:"hand,omitempty"` // LEFT or RIGHT, single pinch only
	Position   [3]float64 `json:"position,omitempty"`

	// Two-hand pinch only.
	Center     [3]float64 `json:"center,omitempty"`
	Separation float64    `json:"separation,omitempty"`
	Left       [3]float64 `json:"left,omitempty"`
	Right      [3]float64 `json:"right,omitempty"`
}

// CONTROL (client -> server): discrete editor operations.
const (
	ControlUndo           = "UNDO"
	ControlRedo           = "REDO"
	ControlSetTool        = "SET_TOOL"
	ControlSetMaterial    = "SET_MATERIAL"
	ControlSetHistorySize = "SET_HISTORY_SIZE"
	ControlSave           = "SAVE"
)

type ControlMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"` // echoed in the ACTION_RESULT event
	Op              string `json:"op"`
	Tool            string `json:"tool,omitempty"`
	Material        string `json:"material,omitempty"`
	HistorySize     int    `json:"history_size,omitempty"`
}

// EVENT (server -> client): a batch of scene mutations for one tick.
type EventMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	Revision        uint64  `json:"revision"`
	Events          []Event `json:"events"`
}

// Event is a loosely-typed scene event; "type" discriminates.
type Event map[string]any

// Event types carried inside EVENT batches.
const (
	EventVoxelAdded   = "VOXEL_ADDED"
	EventVoxelRemoved = "VOXEL_REMOVED"
	EventVoxelMoved   = "VOXEL_MOVED"
	EventActionResult = "ACTION_RESULT"
	EventDocState     = "DOC_STATE"

	// Drag previews: presentation-only, never registered server state.
	EventExtrudePreview = "EXTRUDE_PREVIEW"
	EventMovePreview    = "MOVE_PREVIEW"
	EventPreviewCleared = "PREVIEW_CLEARED"
)
