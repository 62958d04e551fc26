// Package game runs a single match: players, zones and the phase state machine.
package game

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
)

const (
	StartingLife     = 20
	StartingHandSize = 7
	MinPlayers       = 2
	NoLoser          = -1
)

var (
	// ErrNotAwaiting is returned by a decision entry point called outside the
	// phase that accepts it.
	ErrNotAwaiting = errors.New("match is not awaiting this decision")
	// ErrLandAlreadyPlayed is returned by PlayLand after the turn's land drop.
	ErrLandAlreadyPlayed = errors.New("land already played this turn")
	// ErrInvalidCard is returned when a hand index does not name a suitable card.
	ErrInvalidCard = errors.New("invalid card selection")
	// ErrCannotPay is returned when the battlefield cannot cover a cost.
	ErrCannotPay = errors.New("insufficient untapped lands")
)

// Match is the state of one game. It is not safe for concurrent use.
type Match struct {
	ID            string
	Players       []*Player
	CurrentPlayer int
	Turn          int
	Phase         rules.Phase

	// Attackers and Blocking hold positions on the active player's battlefield.
	// Blocking maps blocker position to attacker position.
	Attackers []int
	Blocking  map[int]int

	AutoPlay      bool
	MainPending   bool
	AttackPending bool
	BlockPending  bool
	LandPlayed    bool

	Loser int

	logger *zap.Logger
	bus    *rules.EventBus
}

// NewMatch deals a fresh match. Every player receives a shuffled clone of
// deck and draws an opening hand. playerCount below MinPlayers is raised to
// MinPlayers; a nil rng is seeded from the clock.
func NewMatch(playerCount int, deck *card.Deck, rng *rand.Rand, logger *zap.Logger) *Match {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deck == nil {
		deck = &card.Deck{}
	}
	if playerCount < MinPlayers {
		logger.Warn("player count below minimum, using minimum",
			zap.Int("requested", playerCount),
			zap.Int("players", MinPlayers),
		)
		playerCount = MinPlayers
	}

	m := newMatch(uuid.NewString(), logger)
	m.Players = make([]*Player, playerCount)
	for i := range m.Players {
		p := NewPlayer(fmt.Sprintf("Player %d", i+1), deck.ShuffledClone(rng))
		for j := 0; j < StartingHandSize; j++ {
			if _, ok := p.Draw(); !ok {
				break
			}
		}
		m.Players[i] = p
	}

	logger.Debug("match created",
		zap.String("match_id", m.ID),
		zap.Int("players", playerCount),
		zap.Int("deck_size", deck.Len()),
	)
	return m
}

func newMatch(id string, logger *zap.Logger) *Match {
	return &Match{
		ID:       id,
		Phase:    rules.PhaseStartTurn,
		Blocking: make(map[int]int),
		AutoPlay: true,
		Loser:    NoLoser,
		logger:   logger,
	}
}

// SetEventBus attaches a bus that receives every state change. A nil bus
// disables publishing.
func (m *Match) SetEventBus(bus *rules.EventBus) {
	m.bus = bus
}

// EventBus returns the attached bus, or nil.
func (m *Match) EventBus() *rules.EventBus {
	return m.bus
}

// Active returns the player whose turn it is.
func (m *Match) Active() *Player {
	return m.Players[m.CurrentPlayer]
}

// IsGameOver reports whether the match reached its terminal phase.
func (m *Match) IsGameOver() bool {
	return m.Phase == rules.PhaseGameOver
}

// AwaitingDecision reports whether a manual decision is parked.
func (m *Match) AwaitingDecision() bool {
	return m.MainPending || m.AttackPending || m.BlockPending
}

// Step performs exactly one phase transition, or parks on a manual decision.
func (m *Match) Step() {
	switch m.Phase {
	case rules.PhaseStartTurn:
		m.startTurn()
	case rules.PhaseUntap:
		m.untap()
	case rules.PhaseUpkeep:
		m.upkeep()
	case rules.PhaseDraw:
		m.draw()
	case rules.PhaseMain:
		m.main()
	case rules.PhaseDeclareAttackers:
		m.declareAttackers()
	case rules.PhaseDeclareBlockers:
		m.declareBlockers()
	case rules.PhaseAssignDamage:
		m.assignDamage()
	case rules.PhaseEndTurn:
		m.endTurn()
	case rules.PhaseGameOver:
	}
}

// StepTurn steps until the turn counter changes, the game ends or a manual
// decision is parked.
func (m *Match) StepTurn() {
	start := m.Turn
	for m.Turn == start && !m.IsGameOver() {
		m.Step()
		if m.AwaitingDecision() {
			return
		}
	}
}

// RunToEnd steps until game over or a parked decision and returns the turn
// counter.
func (m *Match) RunToEnd() int {
	for !m.IsGameOver() {
		m.Step()
		if m.AwaitingDecision() {
			break
		}
	}
	return m.Turn
}

func (m *Match) setPhase(next rules.Phase) {
	prev := m.Phase
	m.Phase = next
	if m.logger.Core().Enabled(zap.DebugLevel) {
		m.logger.Debug("phase changed",
			zap.String("match_id", m.ID),
			zap.Int("turn", m.Turn),
			zap.String("player", m.Active().Name),
			zap.Stringer("from", prev),
			zap.Stringer("to", next),
		)
	}
	if m.bus != nil {
		evt := m.event(rules.EventPhaseChanged, next.String(), prev.String())
		evt.Detail = fmt.Sprintf("%s -> %s", prev, next)
		m.bus.Publish(evt)
	}
}

func (m *Match) event(eventType rules.EventType, subject, source string) rules.Event {
	evt := rules.NewEvent(eventType, m.Active().Name, subject, source)
	evt.Turn = m.Turn
	evt.Phase = m.Phase
	return evt
}

func (m *Match) publish(eventType rules.EventType, subject, source string, amount int) {
	if m.bus == nil {
		return
	}
	evt := m.event(eventType, subject, source)
	evt.Amount = amount
	m.bus.Publish(evt)
}

func (m *Match) endGame(loser int, reason string) {
	m.Loser = loser
	m.clearPending()
	m.setPhase(rules.PhaseGameOver)
	m.logger.Debug("game over",
		zap.String("match_id", m.ID),
		zap.Int("turn", m.Turn),
		zap.String("loser", m.Players[loser].Name),
		zap.String("reason", reason),
	)
	if m.bus != nil {
		evt := m.event(rules.EventGameOver, m.Players[loser].Name, "")
		evt.Detail = reason
		m.bus.Publish(evt)
	}
}

func (m *Match) clearPending() {
	m.MainPending = false
	m.AttackPending = false
	m.BlockPending = false
}
