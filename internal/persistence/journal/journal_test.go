package journal

import (
	"path/filepath"
	"testing"

	"voxelstudio.app/internal/persistence/snapshot"
)

func TestWriteReadRoundTrip(t *testing.T) {
	docDir := t.TempDir()
	w := NewWriter(docDir)

	entries := []Entry{
		{
			Tick: 1, Revision: 1, Op: "CREATE", ClientID: "C001",
			Added:  []snapshot.VoxelV1{{ID: "V000001", Pos: [3]int{0, 0, 0}, Material: "SLATE"}},
			Digest: "d1",
		},
		{
			Tick: 5, Revision: 2, Op: "MOVE", ClientID: "C001",
			Moved:  []MoveV1{{ID: "V000001", From: [3]int{0, 0, 0}, To: [3]int{2, 0, 0}}},
			Digest: "d2",
		},
		{
			Tick: 9, Revision: 3, Op: "UNDO", ClientID: "C001",
			Moved:  []MoveV1{{ID: "V000001", From: [3]int{2, 0, 0}, To: [3]int{0, 0, 0}}},
			Digest: "d1",
		},
	}
	for _, e := range entries {
		if err := w.Write(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(filepath.Join(docDir, "journal"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %v, want one", files)
	}

	var got []Entry
	err = ReadFile(files[0], func(e Entry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("entries = %d, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].Revision != entries[i].Revision || got[i].Op != entries[i].Op || got[i].Digest != entries[i].Digest {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], entries[i])
		}
	}
	if got[1].Moved[0].To != [3]int{2, 0, 0} {
		t.Fatalf("moved = %+v", got[1].Moved)
	}
}

func TestListFilesSorted(t *testing.T) {
	docDir := t.TempDir()
	w := NewWriter(docDir)
	if err := w.Write(Entry{Tick: 1, Revision: 1, Op: "CREATE"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()

	files, err := ListFiles(filepath.Join(docDir, "journal"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Fatalf("files not sorted: %v", files)
		}
	}
}
