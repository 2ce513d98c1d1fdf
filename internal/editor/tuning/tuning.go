package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int     `yaml:"tick_rate_hz"`
	VoxelSize          float64 `yaml:"voxel_size"`
	MaxVoxelCount      int     `yaml:"max_voxel_count"`
	MaxHistorySize     int     `yaml:"max_history_size"`
	SnapshotEveryTicks int     `yaml:"snapshot_every_ticks"`

	Gesture GestureTuning `yaml:"gesture"`
}

// GestureTuning shapes the debounce gate between raw per-frame gesture flags
// and the engage/release edges that trigger edits.
type GestureTuning struct {
	VoteWindow    int     `yaml:"vote_window"`
	MinConfidence float64 `yaml:"min_confidence"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
