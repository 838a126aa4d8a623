package indexdb

import (
	"path/filepath"
	"testing"

	"rednet.ai/internal/sim/engine"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan engine.TickEntry, 1)}
	s.ch <- engine.TickEntry{Tick: 1}

	_ = s.WriteTick(engine.TickEntry{Tick: 2})
	_ = s.WriteTick(engine.TickEntry{Tick: 3})

	st := s.Stats()
	if st.DropTickTotal != 2 {
		t.Fatalf("DropTickTotal=%d want=2", st.DropTickTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WriteAfterCloseIsNoop(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := idx.WriteTick(engine.TickEntry{Tick: 9}); err != nil {
		t.Fatalf("WriteTick after close: %v", err)
	}
	if got := idx.Stats().DropTickTotal; got != 0 {
		t.Fatalf("DropTickTotal=%d want=0", got)
	}
}

func TestSQLiteIndex_NilIsSafe(t *testing.T) {
	var s *SQLiteIndex
	if err := s.WriteTick(engine.TickEntry{}); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}
	if st := s.Stats(); st != (Stats{}) {
		t.Fatalf("stats=%+v", st)
	}
}
