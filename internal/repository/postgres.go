package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/sim"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS trials (
		id         BIGSERIAL PRIMARY KEY,
		run_id     TEXT NOT NULL,
		iteration  INTEGER NOT NULL,
		label      TEXT NOT NULL,
		lands      INTEGER NOT NULL,
		nonlands   INTEGER NOT NULL,
		seed       BIGINT NOT NULL,
		stats      JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trials_run_id_idx ON trials (run_id, id)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		name       TEXT PRIMARY KEY,
		match_id   TEXT NOT NULL,
		turn       INTEGER NOT NULL,
		checksum   TEXT NOT NULL,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// PostgresStore stores trials and snapshots in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects, pings and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	logger.Info("postgres store ready")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) SaveTrial(ctx context.Context, trial sim.Trial) error {
	stats, err := json.Marshal(trial.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode trial stats: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO trials (run_id, iteration, label, lands, nonlands, seed, stats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		trial.RunID, trial.Iteration, trial.Label, trial.Ratio.Lands, trial.Ratio.Nonlands,
		trial.Seed, stats, trial.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trial: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTrials(ctx context.Context, runID string) ([]sim.Trial, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, iteration, label, lands, nonlands, seed, stats, created_at
		FROM trials WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var out []sim.Trial
	for rows.Next() {
		var trial sim.Trial
		var stats []byte
		if err := rows.Scan(&trial.RunID, &trial.Iteration, &trial.Label,
			&trial.Ratio.Lands, &trial.Ratio.Nonlands, &trial.Seed, &stats, &trial.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		if err := json.Unmarshal(stats, &trial.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode trial stats: %w", err)
		}
		out = append(out, trial)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, name string, snap *game.Snapshot) (*SnapshotInfo, error) {
	rec, err := encodeSnapshot(name, snap)
	if err != nil {
		return nil, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO snapshots (name, match_id, turn, checksum, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			match_id = EXCLUDED.match_id,
			turn = EXCLUDED.turn,
			checksum = EXCLUDED.checksum,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`,
		rec.info.Name, rec.info.MatchID, rec.info.Turn, rec.info.Checksum, rec.payload, rec.info.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return &rec.info, nil
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, name string) (*game.Snapshot, error) {
	var checksum string
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT checksum, payload FROM snapshots WHERE name = $1`, name,
	).Scan(&checksum, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return decodeSnapshot(name, checksum, payload)
}

func (s *PostgresStore) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.pool.Query(ctx,
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
