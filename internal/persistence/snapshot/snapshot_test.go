package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc_1-r000000007.snap.zst")

	doc := DocumentV1{
		Header:         Header{Version: 1, DocID: "doc_1", Revision: 7, Tick: 420},
		VoxelSize:      3.0,
		MaxVoxelCount:  1000,
		MaxHistorySize: 50,
		Voxels: []VoxelV1{
			{ID: "V000001", Pos: [3]int{0, 0, 0}, Material: "SLATE", CreatedTick: 10},
			{ID: "V000002", Pos: [3]int{1, 0, 0}, Material: "BRASS", CreatedTick: 12},
		},
		NextVoxelNum: 2,
		Digest:       "abc123",
	}
	if err := Write(path, doc); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header != doc.Header {
		t.Fatalf("header = %+v, want %+v", got.Header, doc.Header)
	}
	if len(got.Voxels) != 2 || got.Voxels[1] != doc.Voxels[1] {
		t.Fatalf("voxels = %+v", got.Voxels)
	}
	if got.NextVoxelNum != 2 || got.Digest != "abc123" {
		t.Fatalf("counter/digest = %d/%q", got.NextVoxelNum, got.Digest)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "nope.snap.zst")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
