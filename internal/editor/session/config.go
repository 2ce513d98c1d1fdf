package session

// Tool modes.
const (
	ToolPlace   = "PLACE"
	ToolDelete  = "DELETE"
	ToolExtrude = "EXTRUDE"
	ToolMove    = "MOVE"
)

// Materials the editor ships with; SET_MATERIAL accepts any non-empty name
// so client palettes can grow without a server change.
const DefaultMaterial = "SLATE"

type Config struct {
	DocID      string
	TickRateHz int

	VoxelSize      float64
	MaxVoxelCount  int
	MaxHistorySize int

	SnapshotEveryTicks int

	GestureVoteWindow    int
	GestureMinConfidence float64
}

func (c *Config) applyDefaults() {
	if c.DocID == "" {
		c.DocID = "doc_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 30
	}
	if c.VoxelSize <= 0 {
		c.VoxelSize = 3.0
	}
	if c.MaxVoxelCount <= 0 {
		c.MaxVoxelCount = 1000
	}
	if c.MaxHistorySize <= 0 {
		c.MaxHistorySize = 50
	}
	if c.SnapshotEveryTicks <= 0 {
		c.SnapshotEveryTicks = 900
	}
	if c.GestureVoteWindow <= 0 {
		c.GestureVoteWindow = 5
	}
	if c.GestureMinConfidence <= 0 {
		c.GestureMinConfidence = 0.6
	}
}
