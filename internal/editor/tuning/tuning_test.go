package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := `
protocol_version: "1.0"
tick_rate_hz: 30
voxel_size: 3.0
max_voxel_count: 1000
max_history_size: 50
snapshot_every_ticks: 900
gesture:
  vote_window: 5
  min_confidence: 0.6
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tune, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.TickRateHz != 30 || tune.VoxelSize != 3.0 {
		t.Fatalf("core fields = %d/%v", tune.TickRateHz, tune.VoxelSize)
	}
	if tune.MaxVoxelCount != 1000 || tune.MaxHistorySize != 50 {
		t.Fatalf("limits = %d/%d", tune.MaxVoxelCount, tune.MaxHistorySize)
	}
	if tune.Gesture.VoteWindow != 5 || tune.Gesture.MinConfidence != 0.6 {
		t.Fatalf("gesture = %+v", tune.Gesture)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: [nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
