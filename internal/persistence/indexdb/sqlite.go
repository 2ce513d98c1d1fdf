package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelstudio.app/internal/persistence/journal"
	"voxelstudio.app/internal/persistence/snapshot"
)

// SQLiteIndex is a secondary index over documents, snapshots, and committed
// operations. Writes go through a single goroutine; the JSONL journal stays
// the source of truth, so a dropped index write is tolerable.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqOp reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	docID string
	op    journal.Entry
	snap  snapshotRow
}

type snapshotRow struct {
	Revision   uint64
	Tick       uint64
	Path       string
	VoxelCount int
	Digest     string
}

func Open(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL is enough durability for a
	// secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ops (
			doc_id TEXT NOT NULL,
			revision INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			op TEXT NOT NULL,
			client_id TEXT,
			added INTEGER NOT NULL,
			removed INTEGER NOT NULL,
			moved INTEGER NOT NULL,
			digest TEXT,
			PRIMARY KEY (doc_id, revision)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ops_doc_tick ON ops(doc_id, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			doc_id TEXT NOT NULL,
			revision INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			voxel_count INTEGER NOT NULL,
			digest TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (doc_id, revision)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_doc_tick ON snapshots(doc_id, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordOp indexes one committed operation. Non-blocking: if the indexer
// falls behind, the entry is dropped here but kept in the journal.
func (s *SQLiteIndex) RecordOp(docID string, e journal.Entry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqOp, docID: docID, op: e}:
	default:
	}
}

// RecordSnapshot indexes a written snapshot file.
func (s *SQLiteIndex) RecordSnapshot(path string, doc snapshot.DocumentV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Revision:   doc.Header.Revision,
		Tick:       doc.Header.Tick,
		Path:       path,
		VoxelCount: len(doc.Voxels),
		Digest:     doc.Digest,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, docID: doc.Header.DocID, snap: r}:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		switch r.kind {
		case reqOp:
			s.writeOp(r.docID, r.op)
		case reqSnapshot:
			s.writeSnapshot(r.docID, r.snap)
		}
	}
}

func (s *SQLiteIndex) writeOp(docID string, e journal.Entry) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, _ = s.db.Exec(`INSERT INTO documents(doc_id, created_at, updated_at) VALUES(?,?,?)
		ON CONFLICT(doc_id) DO UPDATE SET updated_at=excluded.updated_at`, docID, now, now)
	_, _ = s.db.Exec(`INSERT OR REPLACE INTO ops(doc_id, revision, tick, op, client_id, added, removed, moved, digest)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		docID, e.Revision, e.Tick, e.Op, e.ClientID, len(e.Added), len(e.Removed), len(e.Moved), e.Digest)
}

func (s *SQLiteIndex) writeSnapshot(docID string, r snapshotRow) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, _ = s.db.Exec(`INSERT OR REPLACE INTO snapshots(doc_id, revision, tick, path, voxel_count, digest, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		docID, r.Revision, r.Tick, r.Path, r.VoxelCount, r.Digest, now)
}

// Flush waits for the writer to drain, for tests and shutdown ordering.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	// A sentinel op would complicate the request type; polling the channel
	// length is fine at this write rate.
	go func() {
		for len(s.ch) > 0 {
			time.Sleep(5 * time.Millisecond)
		}
		close(done)
	}()
	<-done
}

// LatestSnapshot returns the newest indexed snapshot path for a document, or
// "" when none exists. Synchronous read path, safe alongside the writer.
func (s *SQLiteIndex) LatestSnapshot(docID string) (string, error) {
	if s == nil {
		return "", nil
	}
	row := s.db.QueryRow(`SELECT path FROM snapshots WHERE doc_id=? ORDER BY revision DESC LIMIT 1`, docID)
	var path string
	if err := row.Scan(&path); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return path, nil
}

// OpCount reports how many committed operations are indexed for a document.
func (s *SQLiteIndex) OpCount(docID string) (int, error) {
	if s == nil {
		return 0, nil
	}
	row := s.db.QueryRow(`SELECT COUNT(*) FROM ops WHERE doc_id=?`, docID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
