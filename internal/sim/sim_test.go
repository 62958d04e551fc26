package sim

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
)

func TestRunToCompletionForcesAutoPlay(t *testing.T) {
	m := game.NewMatch(2, card.ExampleDeck(29, 31), rand.New(rand.NewSource(9)), zaptest.NewLogger(t))
	m.AutoPlay = false
	m.StepTurn()
	m.StepTurn()
	require.True(t, m.AwaitingDecision())

	turns := RunToCompletion(m)

	assert.True(t, m.IsGameOver())
	assert.Equal(t, m.Turn, turns)
	assert.True(t, m.AutoPlay)
}

func TestRunToCompletionManyTrials(t *testing.T) {
	trials := 10000
	if testing.Short() {
		trials = 500
	}
	deck := card.ExampleDeck(29, 31)
	rng := rand.New(rand.NewSource(1))

	total := 0
	for i := 0; i < trials; i++ {
		m := game.NewMatch(2, deck, rand.New(rand.NewSource(rng.Int63())), nil)
		turns := RunToCompletion(m)
		require.Positive(t, turns)
		require.Equal(t, rules.PhaseGameOver, m.Phase)
		total += turns
	}

	avg := float64(total) / float64(trials)
	assert.Greater(t, avg, 0.0)
	assert.Less(t, avg, 200.0)
}

func TestRunBatchAggregates(t *testing.T) {
	stats, err := RunBatch(context.Background(), BatchConfig{
		Players:  2,
		Lands:    29,
		Nonlands: 31,
		Games:    200,
		Workers:  4,
		Seed:     42,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 200, stats.Games)
	assert.Equal(t, 29, stats.Lands)
	assert.Equal(t, 31, stats.Nonlands)
	assert.Positive(t, stats.MinTurns)
	assert.GreaterOrEqual(t, stats.MaxTurns, stats.MinTurns)
	assert.InDelta(t, float64(stats.TotalTurns)/200, stats.AvgTurns, 1e-9)
	require.Len(t, stats.Losses, 2)
	assert.Equal(t, 200, stats.Losses[0]+stats.Losses[1])
}

func TestRunBatchIsDeterministicAcrossWorkerCounts(t *testing.T) {
	cfg := BatchConfig{Players: 2, Lands: 24, Nonlands: 36, Games: 64, Seed: 7}

	cfg.Workers = 1
	serial, err := RunBatch(context.Background(), cfg, nil)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := RunBatch(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, serial.TotalTurns, parallel.TotalTurns)
	assert.Equal(t, serial.MinTurns, parallel.MinTurns)
	assert.Equal(t, serial.MaxTurns, parallel.MaxTurns)
	assert.Equal(t, serial.Losses, parallel.Losses)
}

func TestRunBatchRejectsBadConfig(t *testing.T) {
	_, err := RunBatch(context.Background(), BatchConfig{Games: 0, Lands: 10}, nil)
	assert.Error(t, err)
	_, err = RunBatch(context.Background(), BatchConfig{Games: 1, Lands: -1}, nil)
	assert.Error(t, err)
}

func TestRunBatchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunBatch(ctx, BatchConfig{Lands: 29, Nonlands: 31, Games: 50, Workers: 2}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

type memorySink struct {
	mu     sync.Mutex
	trials []Trial
}

func (s *memorySink) SaveTrial(_ context.Context, trial Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trials = append(s.trials, trial)
	return nil
}

func TestOptimizerConverges(t *testing.T) {
	sink := &memorySink{}
	opt := NewOptimizer(OptimizerConfig{
		Start:         Ratio{Lands: 28, Nonlands: 32},
		ChangeSize:    2,
		ConsensusWins: 3,
		MaxIterations: 40,
		Batch:         BatchConfig{Players: 2, Games: 60, Workers: 2, Seed: 99},
	}, sink, zaptest.NewLogger(t))

	outcome, err := opt.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, outcome.RunID)
	assert.Positive(t, outcome.Iterations)
	assert.Equal(t, 60, outcome.Ratio.Lands+outcome.Ratio.Nonlands)
	if outcome.Converged {
		assert.GreaterOrEqual(t, outcome.Wins[outcome.Ratio], 3)
	}

	require.NotEmpty(t, sink.trials)
	assert.Equal(t, LabelCurrent, sink.trials[0].Label)
	assert.Equal(t, Ratio{28, 32}, sink.trials[0].Ratio)
	assert.Equal(t, Ratio{30, 30}, sink.trials[1].Ratio)
	assert.Equal(t, Ratio{26, 34}, sink.trials[2].Ratio)
	for _, trial := range sink.trials {
		assert.Equal(t, outcome.RunID, trial.RunID)
		assert.Equal(t, 60, trial.Stats.Games)
	}
}

func TestOptimizerStopsOnHookError(t *testing.T) {
	opt := NewOptimizer(OptimizerConfig{
		Start: Ratio{Lands: 20, Nonlands: 20},
		Batch: BatchConfig{Games: 5, Workers: 1},
	}, nil, nil)
	calls := 0
	opt.OnTrial = func(Trial) error {
		calls++
		return ErrStopped
	}

	_, err := opt.Run(context.Background())

	assert.True(t, errors.Is(err, ErrStopped))
	assert.Equal(t, 1, calls)
}

func TestOptimizerSkipsNegativeRatios(t *testing.T) {
	opt := NewOptimizer(OptimizerConfig{ChangeSize: 1}, nil, nil)

	got := opt.candidates(Ratio{Lands: 0, Nonlands: 10})

	require.Len(t, got, 2)
	assert.Equal(t, LabelCurrent, got[0].label)
	assert.Equal(t, LabelMoreLands, got[1].label)
}

func TestOptimizerConsensusOrdering(t *testing.T) {
	opt := NewOptimizer(OptimizerConfig{ConsensusWins: 2}, nil, nil)

	got := opt.consensus(map[Ratio]int{
		{30, 30}: 2,
		{28, 32}: 3,
		{29, 31}: 1,
	})

	assert.Equal(t, []Ratio{{28, 32}, {30, 30}}, got)
}

func TestParseCommand(t *testing.T) {
	cases := map[string]Command{
		"s":    CommandStepPhase,
		" t\n": CommandStepTurn,
		"G":    CommandRunGame,
		"d":    CommandRunDeck,
		"r":    CommandRunAll,
		"q":    CommandQuit,
		"":     CommandInvalid,
		"step": CommandInvalid,
	}
	for input, expected := range cases {
		assert.Equal(t, expected, ParseCommand(input), "input %q", input)
	}
	assert.Equal(t, "RUN_DECK", CommandRunDeck.String())
}
