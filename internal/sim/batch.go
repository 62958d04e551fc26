// Package sim runs matches without a driver: single games, parallel batches
// and the deck-ratio optimizer.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/game/card"
)

// RunToCompletion switches the match to auto-play and runs it to game over.
// It returns the turn counter.
func RunToCompletion(m *game.Match) int {
	m.AutoPlay = true
	return m.RunToEnd()
}

// GameJob is one game of a batch.
type GameJob struct {
	SimID int
	Seed  int64
}

// GameResult is the outcome of one batch game.
type GameResult struct {
	SimID int
	Seed  int64
	Turns int
	Loser int
}

// BatchConfig describes a batch of games played with the same deck.
type BatchConfig struct {
	Players  int
	Lands    int
	Nonlands int
	Games    int
	Workers  int
	Seed     int64
}

// BatchStats aggregates a batch.
type BatchStats struct {
	Lands      int           `json:"lands"`
	Nonlands   int           `json:"nonlands"`
	Games      int           `json:"games"`
	TotalTurns int           `json:"total_turns"`
	AvgTurns   float64       `json:"avg_turns"`
	MinTurns   int           `json:"min_turns"`
	MaxTurns   int           `json:"max_turns"`
	Losses     []int         `json:"losses"`
	Duration   time.Duration `json:"duration_ns"`
}

// RunSingleGame plays one auto-play game with a deterministic shuffle.
func RunSingleGame(deck *card.Deck, players int, job GameJob) GameResult {
	m := game.NewMatch(players, deck, rand.New(rand.NewSource(job.Seed)), nil)
	turns := RunToCompletion(m)
	return GameResult{
		SimID: job.SimID,
		Seed:  job.Seed,
		Turns: turns,
		Loser: m.Loser,
	}
}

// RunBatch plays cfg.Games games across a worker pool. Game seeds are drawn
// from cfg.Seed up front, so results do not depend on the worker count.
func RunBatch(ctx context.Context, cfg BatchConfig, logger *zap.Logger) (BatchStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Games <= 0 {
		return BatchStats{}, fmt.Errorf("batch needs at least one game, got %d", cfg.Games)
	}
	if cfg.Lands < 0 || cfg.Nonlands < 0 {
		return BatchStats{}, fmt.Errorf("invalid deck ratio %d/%d", cfg.Lands, cfg.Nonlands)
	}
	if cfg.Players < game.MinPlayers {
		cfg.Players = game.MinPlayers
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > cfg.Games {
		workers = cfg.Games
	}

	start := time.Now()
	deck := card.ExampleDeck(cfg.Lands, cfg.Nonlands)

	jobs := make(chan GameJob, cfg.Games)
	results := make(chan GameResult, cfg.Games)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker(ctx, &wg, jobs, results, deck, cfg.Players)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < cfg.Games; i++ {
		jobs <- GameJob{SimID: i, Seed: rng.Int63()}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	all := make([]GameResult, 0, cfg.Games)
	for result := range results {
		all = append(all, result)
	}
	if err := ctx.Err(); err != nil {
		return BatchStats{}, fmt.Errorf("batch interrupted after %d of %d games: %w", len(all), cfg.Games, err)
	}

	stats := aggregate(all, cfg.Players)
	stats.Lands = cfg.Lands
	stats.Nonlands = cfg.Nonlands
	stats.Duration = time.Since(start)

	logger.Info("batch finished",
		zap.Int("lands", cfg.Lands),
		zap.Int("nonlands", cfg.Nonlands),
		zap.Int("games", stats.Games),
		zap.Int("workers", workers),
		zap.Float64("avg_turns", stats.AvgTurns),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan GameJob, results chan<- GameResult, deck *card.Deck, players int) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			continue
		}
		results <- RunSingleGame(deck, players, job)
	}
}

func aggregate(results []GameResult, players int) BatchStats {
	stats := BatchStats{
		Games:    len(results),
		MinTurns: math.MaxInt,
		Losses:   make([]int, players),
	}
	for _, r := range results {
		stats.TotalTurns += r.Turns
		stats.MinTurns = min(stats.MinTurns, r.Turns)
		stats.MaxTurns = max(stats.MaxTurns, r.Turns)
		if r.Loser >= 0 && r.Loser < players {
			stats.Losses[r.Loser]++
		}
	}
	if stats.Games == 0 {
		stats.MinTurns = 0
		return stats
	}
	stats.AvgTurns = float64(stats.TotalTurns) / float64(stats.Games)
	return stats
}
