// Package backend selects and constructs the durable snapshot store.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"registro/internal/core"
	"registro/internal/persist"
	"registro/internal/storage"
)

// SnapshotStore is the persistence port: whole-ledger load and save.
type SnapshotStore interface {
	Load(ctx context.Context) (core.Snapshot, error)
	Save(ctx context.Context, snap core.Snapshot) error
	Close() error
}

// Type names a persistence backend.
type Type string

const (
	FileBackend   Type = "file"
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

func (t Type) String() string { return string(t) }

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case FileBackend, SQLiteBackend, MemoryBackend:
		return true
	}
	return false
}

// Config holds what each backend needs to open.
type Config struct {
	Type Type

	// File backend
	DataDir string

	// SQLite backend
	SQLiteDBPath string
}

// Open builds the configured snapshot store.
func Open(ctx context.Context, logger *slog.Logger, cfg Config) (SnapshotStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}

	switch cfg.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		logger.InfoContext(ctx, "Initialized memory backend")
		return persist.NewMemoryStore(), nil
	default:
		store, err := persist.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("initialize file backend: %w", err)
		}
		logger.InfoContext(ctx, "Initialized file backend", "data_dir", cfg.DataDir)
		return store, nil
	}
}
