package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"voxelstudio.app/internal/editor/grid"
	"voxelstudio.app/internal/editor/registry"
	"voxelstudio.app/internal/persistence/journal"
	"voxelstudio.app/internal/persistence/snapshot"
)

// replay rebuilds a document from a snapshot plus its operation journal and
// verifies the registry digest after every entry. Journal entries record
// effects, not tools, so undos and redos replay as plain mutations.
func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst (optional; empty document when omitted)")
		journalDir = flag.String("journal", "", "journal dir containing ops-*.jsonl.zst")
		voxelSize  = flag.Float64("voxel_size", 3.0, "voxel size when starting without a snapshot")
		fromRev    = flag.Uint64("from_rev", 0, "start verifying at revision (inclusive, optional)")
		toRev      = flag.Uint64("to_rev", 0, "stop at revision (inclusive, optional)")
	)
	flag.Parse()

	if *journalDir == "" {
		fmt.Fprintln(os.Stderr, "missing -journal")
		os.Exit(2)
	}

	size := *voxelSize
	maxVoxels := 0
	startRev := uint64(0)

	var doc snapshot.DocumentV1
	if *snapPath != "" {
		var err error
		doc, err = snapshot.Read(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		size = doc.VoxelSize
		maxVoxels = doc.MaxVoxelCount
		startRev = doc.Header.Revision
		fmt.Printf("snapshot v%d doc=%s revision=%d tick=%d voxels=%d\n",
			doc.Header.Version, doc.Header.DocID, doc.Header.Revision, doc.Header.Tick, len(doc.Voxels))
	}

	cs := grid.NewCoordinateSystem(size, nil)
	reg := registry.New(cs, maxVoxels, nil)
	for _, v := range doc.Voxels {
		st := registry.State{
			ID:          v.ID,
			Pos:         grid.Pos{X: v.Pos[0], Y: v.Pos[1], Z: v.Pos[2]},
			Material:    v.Material,
			CreatedTick: v.CreatedTick,
		}
		if _, err := reg.Restore(st); err != nil {
			fmt.Fprintln(os.Stderr, "restore:", err)
			os.Exit(1)
		}
	}
	if doc.Digest != "" && reg.Digest() != doc.Digest {
		fmt.Fprintln(os.Stderr, "snapshot digest mismatch")
		os.Exit(1)
	}

	files, err := journal.ListFiles(*journalDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files in", *journalDir)
		os.Exit(1)
	}

	verifyFrom := *fromRev
	if verifyFrom == 0 {
		verifyFrom = startRev + 1
	}

	var checked uint64
	for _, path := range files {
		err := journal.ReadFile(path, func(e journal.Entry) error {
			if e.Revision <= startRev {
				return nil
			}
			if *toRev != 0 && e.Revision > *toRev {
				return errStop
			}
			if err := applyEntry(reg, e); err != nil {
				return fmt.Errorf("revision %d (%s): %w", e.Revision, e.Op, err)
			}
			if e.Revision >= verifyFrom && e.Digest != "" {
				checked++
				if got := reg.Digest(); got != e.Digest {
					return fmt.Errorf("digest mismatch at revision %d: got=%s want=%s", e.Revision, got, e.Digest)
				}
			}
			return nil
		})
		if err == errStop {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "replay %s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
	}

	fmt.Printf("replay ok: checked=%d entries, final voxels=%d digest=%s\n", checked, reg.Count(), reg.Digest())
}

var errStop = fmt.Errorf("stop")

func applyEntry(reg *registry.Registry, e journal.Entry) error {
	for _, v := range e.Removed {
		reg.Unregister(grid.Pos{X: v.Pos[0], Y: v.Pos[1], Z: v.Pos[2]})
	}
	for _, v := range e.Added {
		st := registry.State{
			ID:          v.ID,
			Pos:         grid.Pos{X: v.Pos[0], Y: v.Pos[1], Z: v.Pos[2]},
			Material:    v.Material,
			CreatedTick: v.CreatedTick,
		}
		if _, err := reg.Restore(st); err != nil {
			return err
		}
	}
	for _, m := range e.Moved {
		if err := reg.Move(m.ID, grid.Pos{X: m.To[0], Y: m.To[1], Z: m.To[2]}); err != nil {
			return err
		}
	}
	return nil
}
