package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/config"
	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/logging"
	"github.com/tcgsim/tcgsim-go/internal/sim"
)

// driver runs the interactive console loop. s, t and g play a preview match
// of the starting deck; d and r run the ratio optimizer.
type driver struct {
	in        *bufio.Scanner
	out       io.Writer
	sim       config.SimulationConfig
	verbosity config.Verbosity
	logger    *zap.Logger
	sink      sim.TrialSink
	rng       *rand.Rand

	// deck overrides the example deck for preview matches when set.
	deck  *card.Deck
	match *game.Match
}

func newDriver(in io.Reader, out io.Writer, cfg *config.Config, sink sim.TrialSink, logger *zap.Logger) *driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &driver{
		in:        bufio.NewScanner(in),
		out:       out,
		sim:       cfg.Simulation,
		verbosity: cfg.Logging.ParsedVerbosity(),
		logger:    logger,
		sink:      sink,
		rng:       rand.New(rand.NewSource(cfg.Simulation.Seed)),
	}
}

func (d *driver) printf(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}

// prompt reads the next command. End of input quits.
func (d *driver) prompt() sim.Command {
	d.printf("> ")
	if !d.in.Scan() {
		return sim.CommandQuit
	}
	return sim.ParseCommand(d.in.Text())
}

func (d *driver) run(ctx context.Context) error {
	d.printf("TCG Simulator\n%s\n\n", sim.Help)

	for {
		switch cmd := d.prompt(); cmd {
		case sim.CommandStepPhase:
			d.preview().Step()
			d.show()
		case sim.CommandStepTurn:
			d.preview().StepTurn()
			d.show()
		case sim.CommandRunGame:
			d.preview().RunToEnd()
			d.show()
		case sim.CommandRunDeck:
			return d.optimize(ctx, true)
		case sim.CommandRunAll:
			return d.optimize(ctx, false)
		case sim.CommandQuit:
			return nil
		default:
			d.printf("Unknown command.\n%s\n", sim.Help)
		}
	}
}

// preview returns the preview match, dealing a new one when needed.
func (d *driver) preview() *game.Match {
	if d.match == nil {
		deck := d.deck
		if deck == nil {
			deck = card.ExampleDeck(d.sim.Lands, d.sim.Nonlands)
		}
		d.match = game.NewMatch(d.sim.Players, deck, d.rng, logging.MatchLogger(d.logger, d.verbosity))
		d.printf("New game: %d cards per player\n", deck.Len())
	}
	return d.match
}

func (d *driver) show() {
	m := d.match
	if d.verbosity.Allows(config.VerbosityNormal) {
		d.printf("%s", m.Describe(d.verbosity.Allows(config.VerbosityVerbose)))
	}
	if m.IsGameOver() {
		if m.Loser != game.NoLoser {
			d.printf("Game over after %d turns. %s lost.\n", m.Turn, m.Players[m.Loser].Name)
		}
		d.match = nil
	}
}

func (d *driver) optimize(ctx context.Context, pause bool) error {
	opt := sim.NewOptimizer(sim.OptimizerConfig{
		Start:         sim.Ratio{Lands: d.sim.Lands, Nonlands: d.sim.Nonlands},
		ChangeSize:    d.sim.ChangeSize,
		ConsensusWins: d.sim.ConsensusWins,
		MaxIterations: d.sim.MaxIterations,
		Batch: sim.BatchConfig{
			Players: d.sim.Players,
			Games:   d.sim.GamesPerTrial,
			Workers: d.sim.Workers,
			Seed:    d.rng.Int63(),
		},
	}, d.sink, d.logger)

	iteration := 0
	opt.OnTrial = func(t sim.Trial) error {
		if t.Iteration != iteration {
			iteration = t.Iteration
			d.printf("\n=== Iteration %d ===\n", iteration)
		}
		d.printf("  %-14s %2d lands, %2d nonlands -> %.4f avg turns (min %d, max %d)\n",
			t.Label+":", t.Ratio.Lands, t.Ratio.Nonlands, t.Stats.AvgTurns, t.Stats.MinTurns, t.Stats.MaxTurns)
		if !pause {
			return nil
		}
		switch d.prompt() {
		case sim.CommandQuit:
			return sim.ErrStopped
		case sim.CommandRunAll:
			pause = false
		}
		return nil
	}

	outcome, err := opt.Run(ctx)
	if errors.Is(err, sim.ErrStopped) {
		d.printf("Stopped after %d iterations.\n", outcome.Iterations)
		return nil
	}
	if err != nil {
		return fmt.Errorf("optimizer failed: %w", err)
	}

	if len(outcome.Tiebreaker) > 0 {
		d.printf("\nTiebreaker needed between %d decks!\n", len(outcome.Tiebreaker))
		for _, t := range outcome.Tiebreaker {
			d.printf("  %s -> %.4f avg turns\n", t.Ratio, t.Stats.AvgTurns)
		}
	}
	if outcome.Converged {
		d.printf("\n=== Optimization Complete ===\nFinal suggestion: %d lands, %d nonlands (%d wins)\n",
			outcome.Ratio.Lands, outcome.Ratio.Nonlands, outcome.Wins[outcome.Ratio])
	} else {
		d.printf("\nNo consensus after %d iterations. Last best: %d lands, %d nonlands\n",
			outcome.Iterations, outcome.Ratio.Lands, outcome.Ratio.Nonlands)
	}
	d.printf("Run ID: %s\n", outcome.RunID)
	return nil
}
