package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version  int    `json:"version"`
	DocID    string `json:"doc_id"`
	Revision uint64 `json:"revision"`
	Tick     uint64 `json:"tick"`
}

// DocumentV1 is a full, self-contained capture of an editor document.
// Command history is deliberately not part of it: a loaded document starts
// with an empty undo log.
type DocumentV1 struct {
	Header Header `json:"header"`

	VoxelSize      float64 `json:"voxel_size"`
	MaxVoxelCount  int     `json:"max_voxel_count"`
	MaxHistorySize int     `json:"max_history_size"`

	Voxels []VoxelV1 `json:"voxels"`

	// NextVoxelNum restores the ID allocator so resumed documents never
	// reuse an ID.
	NextVoxelNum uint64 `json:"next_voxel_num"`

	// Digest of the registry state at capture time, for integrity checks on
	// load and replay verification.
	Digest string `json:"digest"`
}

type VoxelV1 struct {
	ID          string `json:"id"`
	Pos         [3]int `json:"pos"`
	Material    string `json:"material"`
	CreatedTick uint64 `json:"created_tick,omitempty"`
}

func Write(path string, doc DocumentV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	// Human-greppable header line, then the gob body.
	hb, _ := json.Marshal(doc.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&doc); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func Read(path string) (DocumentV1, error) {
	var doc DocumentV1
	f, err := os.Open(path)
	if err != nil {
		return doc, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return doc, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; the gob body carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&doc); err != nil {
		return doc, fmt.Errorf("gob decode: %w", err)
	}
	return doc, nil
}
