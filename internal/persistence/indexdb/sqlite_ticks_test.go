package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"rednet.ai/internal/sim/engine"
	"rednet.ai/internal/sim/grid"
	"rednet.ai/internal/sim/tuning"
)

func TestSQLiteIndex_PersistsTicksAndNetworks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertRunMeta("run-a", tuning.Defaults()); err != nil {
		t.Fatalf("UpsertRunMeta: %v", err)
	}

	var levels [grid.Channels]int
	levels[0] = 7
	levels[5] = 2
	for tick := uint64(0); tick < 3; tick++ {
		_ = idx.WriteTick(engine.TickEntry{
			RunID:  "run-a",
			Tick:   tick,
			Digest: "d",
			Stats:  grid.TickStats{Tick: tick, Networks: 2, Ticking: 1, Conduits: 5},
			Networks: []engine.NetworkSummary{
				{ID: 1, Conduits: 3, Nodes: 2, Ticking: true, Levels: levels},
				{ID: 2, Conduits: 2},
			},
		})
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var ticks int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ticks WHERE run_id=?`, "run-a").Scan(&ticks); err != nil {
		t.Fatalf("count ticks: %v", err)
	}
	if ticks != 3 {
		t.Fatalf("ticks=%d want=3", ticks)
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM networks`).Scan(&rows); err != nil {
		t.Fatalf("count networks: %v", err)
	}
	if rows != 6 {
		t.Fatalf("network rows=%d want=6", rows)
	}

	var levelsJSON string
	var ticking bool
	if err := db.QueryRow(`SELECT levels_json, ticking FROM networks WHERE tick=2 AND grid_id=1`).Scan(&levelsJSON, &ticking); err != nil {
		t.Fatalf("select network: %v", err)
	}
	if levelsJSON != "[7,0,0,0,0,2,0,0,0,0,0,0,0,0,0,0]" || !ticking {
		t.Fatalf("levels=%s ticking=%v", levelsJSON, ticking)
	}

	var runID, digest string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='run_id'`).Scan(&runID); err != nil {
		t.Fatalf("meta run_id: %v", err)
	}
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='tuning_digest'`).Scan(&digest); err != nil {
		t.Fatalf("meta tuning_digest: %v", err)
	}
	if runID != "run-a" || len(digest) != 64 {
		t.Fatalf("run_id=%q digest=%q", runID, digest)
	}
}
