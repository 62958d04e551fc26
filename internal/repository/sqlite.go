package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/sim"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS trials (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		iteration  INTEGER NOT NULL,
		label      TEXT NOT NULL,
		lands      INTEGER NOT NULL,
		nonlands   INTEGER NOT NULL,
		seed       INTEGER NOT NULL,
		stats      TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trials_run_id_idx ON trials (run_id, id)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		name       TEXT PRIMARY KEY,
		match_id   TEXT NOT NULL,
		turn       INTEGER NOT NULL,
		checksum   TEXT NOT NULL,
		payload    TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
}

// SQLiteStore stores trials and snapshots in a SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if missing) the database file at path.
func NewSQLiteStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store needs a file path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to commit schema: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", path))
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) SaveTrial(ctx context.Context, trial sim.Trial) error {
	stats, err := json.Marshal(trial.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode trial stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trials (run_id, iteration, label, lands, nonlands, seed, stats, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		trial.RunID, trial.Iteration, trial.Label, trial.Ratio.Lands, trial.Ratio.Nonlands,
		trial.Seed, string(stats), trial.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trial: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTrials(ctx context.Context, runID string) ([]sim.Trial, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, iteration, label, lands, nonlands, seed, stats, created_at
		FROM trials WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var out []sim.Trial
	for rows.Next() {
		var trial sim.Trial
		var stats string
		if err := rows.Scan(&trial.RunID, &trial.Iteration, &trial.Label,
			&trial.Ratio.Lands, &trial.Ratio.Nonlands, &trial.Seed, &stats, &trial.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		if err := json.Unmarshal([]byte(stats), &trial.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode trial stats: %w", err)
		}
		out = append(out, trial)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, name string, snap *game.Snapshot) (*SnapshotInfo, error) {
	rec, err := encodeSnapshot(name, snap)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (name, match_id, turn, checksum, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.info.Name, rec.info.MatchID, rec.info.Turn, rec.info.Checksum, string(rec.payload), rec.info.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return &rec.info, nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, name string) (*game.Snapshot, error) {
	var checksum, payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT checksum, payload FROM snapshots WHERE name = ?`, name,
	).Scan(&checksum, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return decodeSnapshot(name, checksum, []byte(payload))
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, match_id, turn, checksum, created_at FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]SnapshotInfo, 0)
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.Name, &info.MatchID, &info.Turn, &info.Checksum, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
