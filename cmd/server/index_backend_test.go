package main

import (
	"io"
	"log"
	"path/filepath"
	"testing"

	"rednet.ai/internal/sim/tuning"
)

func TestOpenRuntimeIndex_Backends(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	tune := tuning.Defaults()
	tune.Index.SQLitePath = filepath.Join(t.TempDir(), "index.sqlite")

	idx, err := openRuntimeIndex(tune, true, logger)
	if err != nil || idx != nil {
		t.Fatalf("disable_db: idx=%v err=%v, want nil,nil", idx, err)
	}

	t.Setenv("RN_INDEX_BACKEND", "none")
	idx, err = openRuntimeIndex(tune, false, logger)
	if err != nil || idx != nil {
		t.Fatalf("backend none: idx=%v err=%v, want nil,nil", idx, err)
	}

	t.Setenv("RN_INDEX_BACKEND", "d1")
	if _, err := openRuntimeIndex(tune, false, logger); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}

	t.Setenv("RN_INDEX_BACKEND", "")
	idx, err = openRuntimeIndex(tune, false, logger)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if idx == nil {
		t.Fatalf("sqlite: nil index")
	}
	_ = idx.Close()
}

func TestEnvBool(t *testing.T) {
	t.Setenv("RN_TEST_BOOL", "true")
	if !envBool("RN_TEST_BOOL", false) {
		t.Fatalf("envBool=false, want true")
	}
	t.Setenv("RN_TEST_BOOL", "nope")
	if envBool("RN_TEST_BOOL", false) {
		t.Fatalf("envBool(invalid)=true, want default false")
	}
}
