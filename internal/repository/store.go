// Package repository persists optimizer trials and named match snapshots.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/sim"
)

// ErrNotFound is returned when a named snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	Name      string    `json:"name"`
	MatchID   string    `json:"match_id"`
	Turn      int       `json:"turn"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is implemented by every backend.
type Store interface {
	sim.TrialSink
	ListTrials(ctx context.Context, runID string) ([]sim.Trial, error)
	SaveSnapshot(ctx context.Context, name string, snap *game.Snapshot) (*SnapshotInfo, error)
	LoadSnapshot(ctx context.Context, name string) (*game.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)
	Close() error
}

// Open connects to the configured backend and prepares its schema.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		logger.Info("using in-memory store")
		return NewMemoryStore(), nil
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn, logger)
	case DriverSQLite:
		return NewSQLiteStore(ctx, dsn, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// snapshotRecord is the encoded form shared by the SQL backends.
type snapshotRecord struct {
	info    SnapshotInfo
	payload []byte
}

func encodeSnapshot(name string, snap *game.Snapshot) (*snapshotRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("snapshot name is required")
	}
	sum, err := snap.ComputeChecksum()
	if err != nil {
		return nil, err
	}
	payload, err := game.MarshalSnapshotJSON(snap)
	if err != nil {
		return nil, err
	}
	return &snapshotRecord{
		info: SnapshotInfo{
			Name:      name,
			MatchID:   snap.MatchID,
			Turn:      snap.Turn,
			Checksum:  sum.Hash,
			CreatedAt: time.Now().UTC(),
		},
		payload: payload,
	}, nil
}

// decodeSnapshot rejects payloads whose checksum no longer matches.
func decodeSnapshot(name, checksum string, payload []byte) (*game.Snapshot, error) {
	snap, err := game.UnmarshalSnapshotJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", name, err)
	}
	ok, err := snap.VerifyChecksum(&game.SerializationChecksum{Hash: checksum})
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("snapshot %q: checksum mismatch", name)
	}
	return snap, nil
}
