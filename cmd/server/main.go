package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"voxelstudio.app/internal/editor/session"
	"voxelstudio.app/internal/editor/tuning"
	"voxelstudio.app/internal/persistence/indexdb"
	"voxelstudio.app/internal/persistence/journal"
	"voxelstudio.app/internal/persistence/snapshot"
	"voxelstudio.app/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		docID      = flag.String("doc", "doc_1", "document id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (journal and snapshots still written)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	docDir := filepath.Join(*dataDir, "docs", *docID)
	_ = os.MkdirAll(docDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(docDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	sess := session.New(session.Config{
		DocID:                *docID,
		TickRateHz:           tune.TickRateHz,
		VoxelSize:            tune.VoxelSize,
		MaxVoxelCount:        tune.MaxVoxelCount,
		MaxHistorySize:       tune.MaxHistorySize,
		SnapshotEveryTicks:   tune.SnapshotEveryTicks,
		GestureVoteWindow:    tune.Gesture.VoteWindow,
		GestureMinConfidence: tune.Gesture.MinConfidence,
	}, logger)

	// Resume from a snapshot when one is available.
	snapToLoad := strings.TrimSpace(*snapPath)
	if snapToLoad == "" && *loadLatest {
		snapToLoad = latestSnapshot(idx, docDir, *docID, logger)
	}
	if snapToLoad != "" {
		doc, err := snapshot.Read(snapToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if doc.Header.DocID != "" && doc.Header.DocID != *docID {
			logger.Fatalf("snapshot doc id mismatch: flag=%s snap=%s", *docID, doc.Header.DocID)
		}
		if err := sess.Import(doc); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s revision=%d voxels=%d",
			filepath.Base(snapToLoad), doc.Header.Revision, len(doc.Voxels))
	}

	// Journal is the source of truth for committed operations; the index is a
	// read model layered on top of the same entries.
	jw := journal.NewWriter(docDir)
	defer jw.Close()
	sess.SetOpLog(&indexedOpLog{docID: *docID, journal: jw, idx: idx})

	snapDir := filepath.Join(docDir, "snapshots")
	snapSink := make(chan snapshot.DocumentV1, 2)
	sess.SetSnapshotSink(snapSink)
	go snapshotWriter(snapSink, snapDir, idx, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		if err := sess.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("session: %v", err)
		}
	}()

	wsSrv := ws.NewServer(sess, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"ok":   true,
			"doc":  sess.DocID(),
			"tick": sess.CurrentTick(),
		})
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	httpSrv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (doc=%s tick_rate=%dhz)", *addr, sess.DocID(), sess.TickRateHz())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = httpSrv.Shutdown(shutCtx)
	<-sessionDone

	// Final capture so a restart resumes at the exact revision we stopped at.
	doc := sess.Export()
	close(snapSink)
	path := snapshotPath(snapDir, doc)
	if err := snapshot.Write(path, doc); err != nil {
		logger.Printf("final snapshot: %v", err)
	} else {
		idx.RecordSnapshot(path, doc)
		logger.Printf("final snapshot written rev=%d voxels=%d", doc.Header.Revision, len(doc.Voxels))
	}
	idx.Flush()
}

type indexedOpLog struct {
	docID   string
	journal *journal.Writer
	idx     *indexdb.SQLiteIndex
}

func (l *indexedOpLog) Write(e journal.Entry) error {
	l.idx.RecordOp(l.docID, e)
	return l.journal.Write(e)
}

func snapshotPath(dir string, doc snapshot.DocumentV1) string {
	return filepath.Join(dir, fmt.Sprintf("%s-r%09d.snap.zst", doc.Header.DocID, doc.Header.Revision))
}

func snapshotWriter(sink <-chan snapshot.DocumentV1, dir string, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	for doc := range sink {
		path := snapshotPath(dir, doc)
		if err := snapshot.Write(path, doc); err != nil {
			logger.Printf("snapshot: %v", err)
			continue
		}
		idx.RecordSnapshot(path, doc)
		logger.Printf("snapshot written rev=%d tick=%d voxels=%d", doc.Header.Revision, doc.Header.Tick, len(doc.Voxels))
	}
}

// latestSnapshot prefers the index; with the index disabled it falls back to
// a directory scan, which works because snapshot names sort by revision.
func latestSnapshot(idx *indexdb.SQLiteIndex, docDir, docID string, logger *log.Logger) string {
	if idx != nil {
		path, err := idx.LatestSnapshot(docID)
		if err != nil {
			logger.Printf("index: latest snapshot: %v", err)
		} else if path != "" {
			if _, err := os.Stat(path); err == nil {
				return path
			}
			logger.Printf("indexed snapshot missing on disk: %s", path)
		}
	}

	dir := filepath.Join(docDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".snap.zst") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}
