package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"totemcraft.ai/internal/persistence/indexdb"
	"totemcraft.ai/internal/sim/service"
)

type runtimeIndex interface {
	service.Index
	service.AuditSink
	Close() error
}

func openRuntimeIndex(dataDir string, e serverEnv, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(e.IndexBackend))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "totems.sqlite"))
	case "d1":
		if strings.TrimSpace(e.D1IngestURL) == "" {
			return nil, fmt.Errorf("TOTEM_INDEX_BACKEND=d1 but TOTEM_INDEX_D1_INGEST_URL is empty")
		}
		return indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      e.D1IngestURL,
			Token:         e.D1Token,
			ServerID:      e.ServerID,
			BatchSize:     e.D1BatchSize,
			FlushInterval: time.Duration(e.D1FlushMS) * time.Millisecond,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported TOTEM_INDEX_BACKEND: %s", backend)
	}
}

// indexQueue is implemented by backends that expose queue metrics.
type indexQueue interface {
	QueueStats() (depth, capacity int, dropped uint64)
}
