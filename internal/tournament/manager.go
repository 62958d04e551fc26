// Package tournament runs deck-ratio optimizations in the background. Each
// tournament is one optimizer run: ratios compete round by round and the
// first to collect enough round wins is the suggestion.
package tournament

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/sim"
)

// ErrNotFound is returned for unknown tournament IDs.
var ErrNotFound = errors.New("tournament not found")

// State represents the state of a tournament
type State int

const (
	StateWaiting State = iota
	StateInProgress
	StateFinished
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateFinished:
		return "FINISHED"
	case StateCancelled:
		return "CANCELLED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateWaiting; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown tournament state %q", text)
}

// Standing is one ratio's record in a tournament.
type Standing struct {
	Ratio        sim.Ratio `json:"ratio"`
	Wins         int       `json:"wins"`
	Trials       int       `json:"trials"`
	BestAvgTurns float64   `json:"best_avg_turns"`
}

// Round is one optimizer iteration. Winner is provisional until the round's
// last candidate has played.
type Round struct {
	Number int         `json:"number"`
	Trials []sim.Trial `json:"trials"`
	Winner sim.Ratio   `json:"winner"`
}

// Snapshot captures a consistent view of a tournament.
type Snapshot struct {
	ID         string      `json:"id"`
	State      State       `json:"state"`
	Start      sim.Ratio   `json:"start"`
	Standings  []Standing  `json:"standings"`
	Rounds     []Round     `json:"rounds"`
	Tiebreaker []sim.Trial `json:"tiebreaker,omitempty"`
	RunID      string      `json:"run_id,omitempty"`
	Suggestion *sim.Ratio  `json:"suggestion,omitempty"`
	Converged  bool        `json:"converged"`
	Error      string      `json:"error,omitempty"`
	CreateTime time.Time   `json:"create_time"`
	StartTime  *time.Time  `json:"start_time,omitempty"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
}

// Tournament is one background optimizer run.
type Tournament struct {
	ID         string
	cfg        sim.OptimizerConfig
	state      State
	standings  map[sim.Ratio]*Standing
	order      []sim.Ratio
	rounds     []*Round
	tiebreaker []sim.Trial
	outcome    *sim.Outcome
	err        error
	createTime time.Time
	startTime  *time.Time
	endTime    *time.Time

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.RWMutex
}

func newTournament(cfg sim.OptimizerConfig) *Tournament {
	return &Tournament{
		cfg:        cfg,
		state:      StateWaiting,
		standings:  make(map[sim.Ratio]*Standing),
		createTime: time.Now(),
		done:       make(chan struct{}),
	}
}

// GetState returns the current tournament state
func (t *Tournament) GetState() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Done is closed when the run ends for any reason.
func (t *Tournament) Done() <-chan struct{} {
	return t.done
}

// Cancel stops a running tournament. It is a no-op once the run has ended.
func (t *Tournament) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Tournament) begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.state = StateInProgress
	t.startTime = &now
}

// recordTrial files a trial under its round and updates the standings.
func (t *Tournament) recordTrial(trial sim.Trial) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.standings[trial.Ratio]
	if !ok {
		st = &Standing{Ratio: trial.Ratio, BestAvgTurns: trial.Stats.AvgTurns}
		t.standings[trial.Ratio] = st
		t.order = append(t.order, trial.Ratio)
	}
	st.Trials++
	if trial.Stats.AvgTurns < st.BestAvgTurns {
		st.BestAvgTurns = trial.Stats.AvgTurns
	}

	if trial.Label == sim.LabelTiebreaker {
		t.tiebreaker = append(t.tiebreaker, trial)
		return
	}

	var round *Round
	if n := len(t.rounds); n > 0 && t.rounds[n-1].Number == trial.Iteration {
		round = t.rounds[n-1]
	} else {
		round = &Round{Number: trial.Iteration, Winner: trial.Ratio}
		t.rounds = append(t.rounds, round)
	}
	round.Trials = append(round.Trials, trial)

	best := round.Trials[0]
	for _, tr := range round.Trials[1:] {
		if tr.Stats.AvgTurns < best.Stats.AvgTurns {
			best = tr
		}
	}
	round.Winner = best.Ratio
}

func (t *Tournament) finish(outcome *sim.Outcome, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.endTime = &now
	t.outcome = outcome
	t.err = err
	switch {
	case err == nil:
		t.state = StateFinished
	case errors.Is(err, context.Canceled):
		t.state = StateCancelled
	default:
		t.state = StateFailed
	}
	close(t.done)
}

// Snapshot returns a consistent copy of the tournament state.
func (t *Tournament) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	wins := make(map[sim.Ratio]int)
	if t.outcome != nil && t.err == nil {
		for r, n := range t.outcome.Wins {
			wins[r] = n
		}
	} else {
		for _, r := range t.rounds {
			wins[r.Winner]++
		}
	}

	standings := make([]Standing, 0, len(t.order))
	for _, r := range t.order {
		st := *t.standings[r]
		st.Wins = wins[r]
		standings = append(standings, st)
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Wins > standings[j].Wins
	})

	rounds := make([]Round, 0, len(t.rounds))
	for _, r := range t.rounds {
		rounds = append(rounds, Round{
			Number: r.Number,
			Trials: append([]sim.Trial(nil), r.Trials...),
			Winner: r.Winner,
		})
	}

	snap := Snapshot{
		ID:         t.ID,
		State:      t.state,
		Start:      t.cfg.Start,
		Standings:  standings,
		Rounds:     rounds,
		Tiebreaker: append([]sim.Trial(nil), t.tiebreaker...),
		CreateTime: t.createTime,
		StartTime:  cloneTime(t.startTime),
		EndTime:    cloneTime(t.endTime),
	}
	if t.outcome != nil && t.err == nil {
		ratio := t.outcome.Ratio
		snap.Suggestion = &ratio
		snap.Converged = t.outcome.Converged
	}
	if t.outcome != nil {
		snap.RunID = t.outcome.RunID
	}
	if t.err != nil {
		snap.Error = t.err.Error()
	}
	return snap
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}

// Manager manages tournaments
type Manager struct {
	tournaments map[string]*Tournament
	sink        sim.TrialSink
	mu          sync.RWMutex
	wg          sync.WaitGroup
	logger      *zap.Logger
}

// NewManager creates a new tournament manager. Trials are also saved to
// sink when it is not nil.
func NewManager(sink sim.TrialSink, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tournaments: make(map[string]*Tournament),
		sink:        sink,
		logger:      logger.Named("tournament"),
	}
}

// Start launches an optimizer run in the background.
func (m *Manager) Start(cfg sim.OptimizerConfig) (*Tournament, error) {
	if cfg.Start.Lands < 0 || cfg.Start.Nonlands < 0 || cfg.Start.Lands+cfg.Start.Nonlands == 0 {
		return nil, fmt.Errorf("invalid starting ratio %s", cfg.Start)
	}
	if cfg.Batch.Games <= 0 {
		return nil, fmt.Errorf("games per trial must be positive, got %d", cfg.Batch.Games)
	}

	t := newTournament(cfg)
	opt := sim.NewOptimizer(cfg, m.sink, m.logger)
	opt.OnTrial = func(trial sim.Trial) error {
		t.recordTrial(trial)
		return nil
	}
	t.ID = uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	m.mu.Lock()
	m.tournaments[t.ID] = t
	m.mu.Unlock()

	m.logger.Info("tournament created",
		zap.String("tournament_id", t.ID),
		zap.Stringer("start", cfg.Start),
		zap.Int("games_per_trial", cfg.Batch.Games),
	)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		t.begin()
		outcome, err := opt.Run(ctx)
		t.finish(outcome, err)

		if err != nil {
			m.logger.Warn("tournament ended early",
				zap.String("tournament_id", t.ID),
				zap.Error(err),
			)
			return
		}
		m.logger.Info("tournament finished",
			zap.String("tournament_id", t.ID),
			zap.Stringer("suggestion", outcome.Ratio),
			zap.Bool("converged", outcome.Converged),
			zap.Int("rounds", outcome.Iterations),
		)
	}()
	return t, nil
}

// GetTournament retrieves a tournament by ID
func (m *Manager) GetTournament(id string) (*Tournament, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tournaments[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return t, nil
}

// RemoveTournament cancels and forgets a tournament.
func (m *Manager) RemoveTournament(id string) {
	m.mu.Lock()
	t, ok := m.tournaments[id]
	delete(m.tournaments, id)
	m.mu.Unlock()

	if ok {
		t.Cancel()
		m.logger.Info("tournament removed", zap.String("tournament_id", id))
	}
}

// GetAllTournaments returns all tournaments, oldest first.
func (m *Manager) GetAllTournaments() []*Tournament {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Tournament, 0, len(m.tournaments))
	for _, t := range m.tournaments {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].createTime.Before(out[j].createTime)
	})
	return out
}

// GetActiveTournamentCount returns the count of active tournaments
func (m *Manager) GetActiveTournamentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, t := range m.tournaments {
		switch t.GetState() {
		case StateWaiting, StateInProgress:
			count++
		}
	}
	return count
}

// Close cancels every running tournament and waits for them to stop.
func (m *Manager) Close() {
	m.mu.RLock()
	for _, t := range m.tournaments {
		t.Cancel()
	}
	m.mu.RUnlock()
	m.wg.Wait()
}
