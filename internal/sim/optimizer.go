package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrStopped is returned by an OnTrial hook to end the run early.
var ErrStopped = errors.New("optimizer stopped")

// Ratio is a deck composition.
type Ratio struct {
	Lands    int `json:"lands"`
	Nonlands int `json:"nonlands"`
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d lands, %d nonlands", r.Lands, r.Nonlands)
}

// Candidate labels, in tie-break priority order.
const (
	LabelCurrent      = "current"
	LabelMoreLands    = "more lands"
	LabelMoreNonlands = "more nonlands"
	LabelTiebreaker   = "tiebreaker"
)

// Trial is one batch run for one ratio.
type Trial struct {
	RunID     string     `json:"run_id"`
	Iteration int        `json:"iteration"`
	Label     string     `json:"label"`
	Ratio     Ratio      `json:"ratio"`
	Stats     BatchStats `json:"stats"`
	Seed      int64      `json:"seed"`
	CreatedAt time.Time  `json:"created_at"`
}

// Outcome is the final suggestion of an optimizer run.
type Outcome struct {
	RunID      string        `json:"run_id"`
	Ratio      Ratio         `json:"ratio"`
	Iterations int           `json:"iterations"`
	Wins       map[Ratio]int `json:"-"`
	Tiebreaker []Trial       `json:"tiebreaker,omitempty"`
	Converged  bool          `json:"converged"`
}

// TrialSink persists trials as they complete.
type TrialSink interface {
	SaveTrial(ctx context.Context, trial Trial) error
}

// OptimizerConfig controls the hill climb.
type OptimizerConfig struct {
	Start         Ratio
	ChangeSize    int
	ConsensusWins int
	MaxIterations int
	Batch         BatchConfig
}

// Optimizer hill-climbs the land/nonland ratio toward the fewest average
// turns to game over. Each iteration tries the current ratio and the ratios
// one step either side; the best earns a win. The first ratio to collect
// ConsensusWins wins is the answer, with a tiebreaker batch when several
// reach it in the same iteration.
type Optimizer struct {
	cfg    OptimizerConfig
	logger *zap.Logger
	sink   TrialSink

	// OnTrial is called after every trial. Returning an error ends the run.
	OnTrial func(Trial) error

	rng *rand.Rand
}

// NewOptimizer creates an optimizer. sink may be nil.
func NewOptimizer(cfg OptimizerConfig, sink TrialSink, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChangeSize <= 0 {
		cfg.ChangeSize = 1
	}
	if cfg.ConsensusWins <= 0 {
		cfg.ConsensusWins = 3
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	return &Optimizer{
		cfg:    cfg,
		logger: logger,
		sink:   sink,
		rng:    rand.New(rand.NewSource(cfg.Batch.Seed)),
	}
}

type candidate struct {
	label string
	ratio Ratio
}

func (o *Optimizer) candidates(current Ratio) []candidate {
	step := o.cfg.ChangeSize
	all := []candidate{
		{LabelCurrent, current},
		{LabelMoreLands, Ratio{current.Lands + step, current.Nonlands - step}},
		{LabelMoreNonlands, Ratio{current.Lands - step, current.Nonlands + step}},
	}
	out := all[:0]
	for _, c := range all {
		if c.ratio.Lands >= 0 && c.ratio.Nonlands >= 0 {
			out = append(out, c)
		}
	}
	return out
}

// Run climbs until consensus, MaxIterations, an OnTrial error or ctx ends.
func (o *Optimizer) Run(ctx context.Context) (*Outcome, error) {
	outcome := &Outcome{
		RunID: uuid.NewString(),
		Ratio: o.cfg.Start,
		Wins:  make(map[Ratio]int),
	}
	current := o.cfg.Start

	o.logger.Info("optimizer started",
		zap.String("run_id", outcome.RunID),
		zap.Stringer("start", current),
		zap.Int("games_per_trial", o.cfg.Batch.Games),
	)

	for iteration := 1; iteration <= o.cfg.MaxIterations; iteration++ {
		outcome.Iterations = iteration

		var best *Trial
		for _, c := range o.candidates(current) {
			trial, err := o.trial(ctx, outcome.RunID, iteration, c.label, c.ratio)
			if err != nil {
				return outcome, err
			}
			// Strictly better only: earlier candidates win ties.
			if best == nil || trial.Stats.AvgTurns < best.Stats.AvgTurns {
				best = trial
			}
		}

		outcome.Wins[best.Ratio]++
		o.logger.Info("iteration finished",
			zap.String("run_id", outcome.RunID),
			zap.Int("iteration", iteration),
			zap.String("best", best.Label),
			zap.Stringer("ratio", best.Ratio),
			zap.Float64("avg_turns", best.Stats.AvgTurns),
			zap.Int("wins", outcome.Wins[best.Ratio]),
		)

		winners := o.consensus(outcome.Wins)
		switch {
		case len(winners) == 0:
			current = best.Ratio
			outcome.Ratio = current
			continue
		case len(winners) == 1:
			outcome.Ratio = winners[0]
		default:
			ratio, trials, err := o.tiebreak(ctx, outcome.RunID, iteration, winners)
			if err != nil {
				return outcome, err
			}
			outcome.Ratio = ratio
			outcome.Tiebreaker = trials
		}
		outcome.Converged = true
		o.logger.Info("optimization complete",
			zap.String("run_id", outcome.RunID),
			zap.Stringer("suggestion", outcome.Ratio),
			zap.Int("iterations", iteration),
		)
		return outcome, nil
	}

	o.logger.Warn("optimizer reached iteration limit without consensus",
		zap.String("run_id", outcome.RunID),
		zap.Int("max_iterations", o.cfg.MaxIterations),
		zap.Stringer("last_best", outcome.Ratio),
	)
	return outcome, nil
}

// consensus returns the ratios with enough wins, in a stable order.
func (o *Optimizer) consensus(wins map[Ratio]int) []Ratio {
	var out []Ratio
	for r, n := range wins {
		if n >= o.cfg.ConsensusWins {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lands != out[j].Lands {
			return out[i].Lands < out[j].Lands
		}
		return out[i].Nonlands < out[j].Nonlands
	})
	return out
}

func (o *Optimizer) tiebreak(ctx context.Context, runID string, iteration int, ratios []Ratio) (Ratio, []Trial, error) {
	o.logger.Info("tiebreaker needed",
		zap.String("run_id", runID),
		zap.Int("candidates", len(ratios)),
	)
	trials := make([]Trial, 0, len(ratios))
	var best *Trial
	for _, r := range ratios {
		trial, err := o.trial(ctx, runID, iteration, LabelTiebreaker, r)
		if err != nil {
			return Ratio{}, trials, err
		}
		trials = append(trials, *trial)
		if best == nil || trial.Stats.AvgTurns < best.Stats.AvgTurns {
			best = trial
		}
	}
	return best.Ratio, trials, nil
}

func (o *Optimizer) trial(ctx context.Context, runID string, iteration int, label string, ratio Ratio) (*Trial, error) {
	cfg := o.cfg.Batch
	cfg.Lands = ratio.Lands
	cfg.Nonlands = ratio.Nonlands
	cfg.Seed = o.rng.Int63()

	stats, err := RunBatch(ctx, cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("trial %s (%s): %w", label, ratio, err)
	}
	trial := &Trial{
		RunID:     runID,
		Iteration: iteration,
		Label:     label,
		Ratio:     ratio,
		Stats:     stats,
		Seed:      cfg.Seed,
		CreatedAt: time.Now().UTC(),
	}

	if o.sink != nil {
		if err := o.sink.SaveTrial(ctx, *trial); err != nil {
			o.logger.Warn("failed to persist trial",
				zap.String("run_id", runID),
				zap.Stringer("ratio", ratio),
				zap.Error(err),
			)
		}
	}
	if o.OnTrial != nil {
		if err := o.OnTrial(*trial); err != nil {
			return nil, err
		}
	}
	return trial, nil
}
