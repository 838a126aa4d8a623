package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"rednet.ai/internal/persistence/indexdb"
	"rednet.ai/internal/sim/tuning"
)

func openRuntimeIndex(tune tuning.Tuning, disableDB bool, logger *log.Logger) (*indexdb.SQLiteIndex, error) {
	if disableDB || tune.Index.Disabled {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("RN_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		logger.Printf("index disabled (RN_INDEX_BACKEND=%s)", backend)
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(tune.Index.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported RN_INDEX_BACKEND: %s", backend)
	}
}
