// Package server exposes a single live match over HTTP, websocket and gRPC.
package server

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/config"
	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
	"github.com/tcgsim/tcgsim-go/internal/game/watchers"
	"github.com/tcgsim/tcgsim-go/internal/logging"
	"github.com/tcgsim/tcgsim-go/internal/repository"
	"github.com/tcgsim/tcgsim-go/internal/sim"
)

// Session owns the live match. Every operation holds the session lock for
// its whole duration, so callers never observe a half-applied step.
type Session struct {
	mu sync.Mutex

	sim         config.SimulationConfig
	verbosity   config.Verbosity
	logger      *zap.Logger
	matchLogger *zap.Logger
	store       repository.Store
	recorder    *game.ReplayRecorder
	rng         *rand.Rand

	lands    int
	nonlands int

	match    *game.Match
	watchers *watchers.Standard

	onChange func(View)
}

// NewSession deals the first match using the configured deck ratio. store
// may be nil, in which case snapshot operations fail.
func NewSession(cfg *config.Config, store repository.Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	verbosity := cfg.Logging.ParsedVerbosity()
	s := &Session{
		sim:         cfg.Simulation,
		verbosity:   verbosity,
		logger:      logger.Named("session"),
		matchLogger: logging.MatchLogger(logger, verbosity),
		store:       store,
		recorder:    game.NewReplayRecorder(logger.Named("replay"), cfg.Server.ReplayDir),
		rng:         rand.New(rand.NewSource(seed)),
		lands:       cfg.Simulation.Lands,
		nonlands:    cfg.Simulation.Nonlands,
	}
	s.install(game.NewMatch(s.sim.Players, s.deck(), s.rng, s.matchLogger))
	return s
}

// OnChange registers fn to receive the state after every mutation. fn runs
// outside the session lock.
func (s *Session) OnChange(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Recorder exposes the replay recorder.
func (s *Session) Recorder() *game.ReplayRecorder {
	return s.recorder
}

func (s *Session) deck() *card.Deck {
	return card.ExampleDeck(s.lands, s.nonlands)
}

// install wires a bus and fresh watchers to m and starts recording it.
// Caller holds the lock.
func (s *Session) install(m *game.Match) {
	bus := rules.NewEventBus()
	stats := watchers.NewStandard()
	stats.Registry.Attach(bus)
	m.SetEventBus(bus)

	s.match = m
	s.watchers = stats
	s.recorder.StartRecording(m.ID)
	s.recorder.Record(m)

	s.logger.Info("match installed",
		zap.String("match_id", m.ID),
		zap.Int("players", len(m.Players)),
		zap.Int("lands", s.lands),
		zap.Int("nonlands", s.nonlands),
	)
}

// retire saves or drops the current match's replay. Caller holds the lock.
func (s *Session) retire() {
	if s.match == nil {
		return
	}
	id := s.match.ID
	if s.recorder == nil || !s.recorder.IsRecording(id) {
		return
	}
	if s.replayDirConfigured() {
		if err := s.recorder.SaveReplay(id); err != nil {
			s.logger.Warn("failed to save replay", zap.String("match_id", id), zap.Error(err))
		}
		return
	}
	s.recorder.ClearReplay(id)
}

func (s *Session) replayDirConfigured() bool {
	return s.recorder != nil && s.recorder.Dir() != ""
}

func (s *Session) view() View {
	return newView(s.match, s.watchers)
}

// mutate runs fn under the lock, records the resulting state and notifies
// the change listener.
func (s *Session) mutate(fn func(m *game.Match) error) (View, error) {
	s.mu.Lock()
	if err := fn(s.match); err != nil {
		v := s.view()
		s.mu.Unlock()
		return v, err
	}
	s.recorder.Record(s.match)
	v := s.view()
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(v)
	}
	return v, nil
}

// State returns the current view.
func (s *Session) State() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// Describe renders the match as text.
func (s *Session) Describe(verbose bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match.Describe(verbose)
}

// Step performs one phase transition.
func (s *Session) Step() View {
	v, _ := s.mutate(func(m *game.Match) error {
		m.Step()
		return nil
	})
	return v
}

// StepTurn advances until the turn changes, the game ends or a decision parks.
func (s *Session) StepTurn() View {
	v, _ := s.mutate(func(m *game.Match) error {
		m.StepTurn()
		return nil
	})
	return v
}

// RunGame plays to game over or the next parked decision.
func (s *Session) RunGame() View {
	v, _ := s.mutate(func(m *game.Match) error {
		m.RunToEnd()
		return nil
	})
	return v
}

func (s *Session) DeclareAttackers(positions []int) (View, error) {
	return s.mutate(func(m *game.Match) error { return m.DeclareAttackers(positions) })
}

func (s *Session) DeclareBlockers(pairs map[int]int) (View, error) {
	return s.mutate(func(m *game.Match) error { return m.DeclareBlockers(pairs) })
}

func (s *Session) PlayLand(handIndex int) (View, error) {
	return s.mutate(func(m *game.Match) error { return m.PlayLand(handIndex) })
}

func (s *Session) CastCreature(handIndex int) (View, error) {
	return s.mutate(func(m *game.Match) error { return m.CastCreature(handIndex) })
}

func (s *Session) EndMain() (View, error) {
	return s.mutate(func(m *game.Match) error { return m.EndMain() })
}

// SetAutoPlay toggles automatic decisions for the live match.
func (s *Session) SetAutoPlay(enabled bool) View {
	v, _ := s.mutate(func(m *game.Match) error {
		m.AutoPlay = enabled
		return nil
	})
	return v
}

// Restart replaces the live match with a fresh deal of the current ratio.
func (s *Session) Restart() View {
	s.mu.Lock()
	s.retire()
	s.install(game.NewMatch(s.sim.Players, s.deck(), s.rng, s.matchLogger))
	v := s.view()
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(v)
	}
	return v
}

// RunDeck runs a batch for the given ratio, adopts it and deals a fresh
// match with it. Zero games means the configured games per trial.
func (s *Session) RunDeck(ctx context.Context, lands, nonlands, games int) (sim.BatchStats, View, error) {
	if games <= 0 {
		games = s.sim.GamesPerTrial
	}

	s.mu.Lock()
	stats, err := sim.RunBatch(ctx, sim.BatchConfig{
		Players:  s.sim.Players,
		Lands:    lands,
		Nonlands: nonlands,
		Games:    games,
		Workers:  s.sim.Workers,
		Seed:     s.rng.Int63(),
	}, s.logger)
	if err != nil {
		v := s.view()
		s.mu.Unlock()
		return sim.BatchStats{}, v, fmt.Errorf("failed to run deck %d/%d: %w", lands, nonlands, err)
	}
	s.lands, s.nonlands = lands, nonlands
	s.retire()
	s.install(game.NewMatch(s.sim.Players, s.deck(), s.rng, s.matchLogger))
	v := s.view()
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(v)
	}
	return stats, v, nil
}

// SaveSnapshot persists the live match under name.
func (s *Session) SaveSnapshot(ctx context.Context, name string) (*repository.SnapshotInfo, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no snapshot store configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.store.SaveSnapshot(ctx, name, s.match.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot %q: %w", name, err)
	}
	s.logger.Info("snapshot saved",
		zap.String("name", name),
		zap.String("match_id", info.MatchID),
		zap.String("checksum", info.Checksum),
	)
	return info, nil
}

// LoadSnapshot replaces the live match with the stored one.
func (s *Session) LoadSnapshot(ctx context.Context, name string) (View, error) {
	if s.store == nil {
		return View{}, fmt.Errorf("no snapshot store configured")
	}
	s.mu.Lock()
	snap, err := s.store.LoadSnapshot(ctx, name)
	if err != nil {
		v := s.view()
		s.mu.Unlock()
		return v, fmt.Errorf("failed to load snapshot %q: %w", name, err)
	}
	m, err := game.Restore(snap, s.matchLogger)
	if err != nil {
		v := s.view()
		s.mu.Unlock()
		return v, fmt.Errorf("failed to restore snapshot %q: %w", name, err)
	}
	s.retire()
	s.install(m)
	v := s.view()
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(v)
	}
	return v, nil
}

// ListSnapshots lists stored snapshots.
func (s *Session) ListSnapshots(ctx context.Context) ([]repository.SnapshotInfo, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no snapshot store configured")
	}
	return s.store.ListSnapshots(ctx)
}

// Replay returns the in-memory replay of the live match.
func (s *Session) Replay() (*game.Replay, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder.Replay(s.match.ID)
}

// Close saves the live match's replay.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retire()
}
