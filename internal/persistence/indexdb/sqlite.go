package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"rednet.ai/internal/sim/engine"
	"rednet.ai/internal/sim/tuning"
)

// SQLiteIndex is an asynchronous read-model of the tick stream. It never blocks the
// simulation: when the writer falls behind, entries are dropped and counted.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan engine.TickEntry
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	written   atomic.Uint64
	writeErrs atomic.Uint64
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTickTotal uint64 `json:"drop_tick_total"`
	WrittenTotal  uint64 `json:"written_total"`
	ErrorTotal    uint64 `json:"error_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
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
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan engine.TickEntry, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			networks INTEGER NOT NULL,
			ticking INTEGER NOT NULL,
			conduits INTEGER NOT NULL,
			sweeps INTEGER NOT NULL,
			merges INTEGER NOT NULL,
			notifications INTEGER NOT NULL,
			deferred INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS networks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			grid_id INTEGER NOT NULL,
			conduits INTEGER NOT NULL,
			nodes INTEGER NOT NULL,
			ticking INTEGER NOT NULL,
			levels_json TEXT NOT NULL,
			PRIMARY KEY (run_id, tick, grid_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_networks_grid_tick ON networks(grid_id, tick);`,
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

// WriteTick queues entry without blocking.
func (s *SQLiteIndex) WriteTick(entry engine.TickEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- entry:
	default:
		// The JSONL tick log stays the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTickTotal: s.dropTick.Load(),
		WrittenTotal:  s.written.Load(),
		ErrorTotal:    s.writeErrs.Load(),
	}
}

// UpsertRunMeta records the run id and the tuning actually applied.
func (s *SQLiteIndex) UpsertRunMeta(runID string, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows := [][2]string{
		{"schema_version", "1"},
		{"run_id", runID},
		{"tuning_json", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
		{"started_at", time.Now().UTC().Format(time.RFC3339Nano)},
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r[0], r[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,digest,networks,ticking,conduits,sweeps,merges,notifications,deferred,duration_ns,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertNetwork, _ := s.db.Prepare(`INSERT OR REPLACE INTO networks(run_id,tick,grid_id,conduits,nodes,ticking,levels_json) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertNetwork != nil {
			_ = insertNetwork.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrs.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrs.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for e := range s.ch {
		begin()
		if tx == nil || insertTick == nil || insertNetwork == nil {
			continue
		}
		raw, _ := json.Marshal(e)
		if _, err := tx.Stmt(insertTick).Exec(
			e.RunID,
			int64(e.Tick),
			e.Digest,
			e.Stats.Networks,
			e.Stats.Ticking,
			e.Stats.Conduits,
			e.Stats.Sweeps,
			e.Stats.Merges,
			e.Stats.Notifications,
			e.Stats.Deferred,
			int64(e.Stats.Duration),
			string(raw),
		); err != nil {
			rollback()
			continue
		}
		opCount++
		ok := true
		for _, n := range e.Networks {
			levels, _ := json.Marshal(n.Levels)
			if _, err := tx.Stmt(insertNetwork).Exec(e.RunID, int64(e.Tick), int64(n.ID), n.Conduits, n.Nodes, n.Ticking, string(levels)); err != nil {
				rollback()
				ok = false
				break
			}
			opCount++
		}
		if !ok {
			continue
		}
		s.written.Add(1)
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
