package game

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/creature"
	"github.com/tcgsim/tcgsim-go/internal/game/mana"
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
	"github.com/tcgsim/tcgsim-go/internal/game/tappable"
	"github.com/tcgsim/tcgsim-go/internal/game/watchers"
)

func TestNewMatchDealsOpeningHands(t *testing.T) {
	deck := card.ExampleDeck(29, 31)
	m := NewMatch(2, deck, rand.New(rand.NewSource(7)), zaptest.NewLogger(t))

	require.Len(t, m.Players, 2)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, rules.PhaseStartTurn, m.Phase)
	assert.Equal(t, 0, m.Turn)
	assert.Equal(t, NoLoser, m.Loser)
	assert.True(t, m.AutoPlay)

	seen := make(map[*card.Card]bool)
	for _, p := range m.Players {
		assert.Equal(t, StartingLife, p.Life)
		assert.Equal(t, StartingHandSize, p.Count(ZoneHand))
		assert.Equal(t, deck.Len()-StartingHandSize, p.Count(ZoneLibrary))
		for _, z := range AllZones {
			for _, c := range p.Cards(z) {
				assert.False(t, seen[c], "card shared between zones or players")
				seen[c] = true
				for _, tmpl := range deck.Cards {
					assert.NotSame(t, tmpl, c)
				}
			}
		}
	}
}

func TestNewMatchNormalisesPlayerCount(t *testing.T) {
	for _, requested := range []int{-1, 0, 1} {
		m := NewMatch(requested, card.ExampleDeck(1, 1), nil, nil)
		assert.Len(t, m.Players, MinPlayers)
	}
	m := NewMatch(4, card.ExampleDeck(1, 1), nil, nil)
	assert.Len(t, m.Players, 4)
}

func TestStepFollowsPhaseSequence(t *testing.T) {
	h := newHarness(t, 2)
	h.put(0, ZoneLibrary, rocks(3)...)

	expected := []rules.Phase{
		rules.PhaseUntap,
		rules.PhaseUpkeep,
		rules.PhaseDraw,
		rules.PhaseMain,
		rules.PhaseDeclareAttackers,
		rules.PhaseDeclareBlockers,
		rules.PhaseAssignDamage,
		rules.PhaseEndTurn,
		rules.PhaseStartTurn,
	}
	for _, phase := range expected {
		h.match.Step()
		h.requirePhase(phase)
	}
	assert.Equal(t, 1, h.match.Turn)
	assert.Equal(t, 1, h.match.CurrentPlayer)
}

func TestEndTurnRotatesPlayers(t *testing.T) {
	h := newHarness(t, 3)
	for i := 0; i < 3; i++ {
		h.at(rules.PhaseEndTurn)
		h.match.Step()
		assert.Equal(t, (i+1)%3, h.match.CurrentPlayer)
	}
}

func TestDrawFromEmptyLibraryEndsGame(t *testing.T) {
	h := newHarness(t, 2)
	h.put(0, ZoneHand, card.GrizzlyBears())

	h.step(4)

	h.requirePhase(rules.PhaseGameOver)
	assert.True(t, h.match.IsGameOver())
	assert.Equal(t, 0, h.match.Loser)
	assert.Equal(t, 1, h.player(0).Count(ZoneHand))
	assert.Equal(t, StartingLife, h.player(0).Life)

	h.step(5)
	h.requirePhase(rules.PhaseGameOver)
	assert.Equal(t, 1, h.match.Turn)
}

func TestDrawMovesTopOfLibrary(t *testing.T) {
	h := newHarness(t, 2)
	top := card.Forest()
	h.put(0, ZoneLibrary, rock(), top)

	h.step(4)

	h.requirePhase(rules.PhaseMain)
	require.Equal(t, 1, h.player(0).Count(ZoneHand))
	assert.Same(t, top, h.player(0).Hand()[0])
	assert.Equal(t, 1, h.player(0).Count(ZoneLibrary))
}

func TestUntapOnlyAffectsActivePlayer(t *testing.T) {
	h := newHarness(t, 2)
	h.put(0, ZoneBattlefield, tappedForest(), tappedForest())
	h.put(1, ZoneBattlefield, tappedForest())

	h.step(2)

	h.requirePhase(rules.PhaseUpkeep)
	for _, c := range h.player(0).Battlefield() {
		assert.False(t, tappable.IsTapped(c))
	}
	assert.True(t, tappable.IsTapped(h.player(1).Battlefield()[0]))
}

func TestUpkeepClearsSicknessForActivePlayerOnly(t *testing.T) {
	h := newHarness(t, 2)
	h.put(0, ZoneBattlefield, sickBears())
	h.put(1, ZoneBattlefield, sickBears())

	h.step(3)

	h.requirePhase(rules.PhaseDraw)
	assert.False(t, creature.HasSummoningSickness(h.player(0).Battlefield()[0]))
	assert.True(t, creature.HasSummoningSickness(h.player(1).Battlefield()[0]))
}

func TestAutoMainPlaysAtMostOneLand(t *testing.T) {
	h := newHarness(t, 2)
	h.put(0, ZoneHand, card.Forest(), card.Forest(), card.Forest())
	h.at(rules.PhaseMain)

	h.match.Step()

	h.requirePhase(rules.PhaseDeclareAttackers)
	assert.Equal(t, 1, h.player(0).Count(ZoneBattlefield))
	assert.Equal(t, 2, h.player(0).Count(ZoneHand))
	assert.True(t, h.match.LandPlayed)
}

func TestAutoMainCastsUntilUnaffordable(t *testing.T) {
	h := newHarness(t, 2)
	h.put(0, ZoneBattlefield, card.Forest(), card.Forest(), card.Forest(), card.Forest())
	h.put(0, ZoneHand, card.GrizzlyBears(), card.GrizzlyBears(), card.GrizzlyBears())
	h.at(rules.PhaseMain)

	h.match.Step()

	p := h.player(0)
	assert.Equal(t, 1, p.Count(ZoneHand))
	assert.Equal(t, 6, p.Count(ZoneBattlefield))
	assert.Equal(t, 0, mana.Available(p.Battlefield()))

	bears := 0
	for _, c := range p.Battlefield() {
		if creature.IsCreature(c) {
			bears++
			assert.True(t, creature.HasSummoningSickness(c))
			assert.False(t, tappable.IsTapped(c))
		}
	}
	assert.Equal(t, 2, bears)
}

func TestAutoMainSkipsUnaffordableForLaterCreature(t *testing.T) {
	h := newHarness(t, 2)
	expensive := card.New("Giant", 5, card.TypeCreature)
	creature.Add(expensive, 5, 5)
	h.put(0, ZoneBattlefield, card.Forest(), card.Forest())
	h.put(0, ZoneHand, expensive, card.GrizzlyBears())
	h.at(rules.PhaseMain)

	h.match.Step()

	p := h.player(0)
	require.Equal(t, 1, p.Count(ZoneHand))
	assert.Same(t, expensive, p.Hand()[0])
	assert.Equal(t, 3, p.Count(ZoneBattlefield))
}

func TestLandInHandEnablesTwoCostCreature(t *testing.T) {
	h := newHarness(t, 2)
	bears := card.GrizzlyBears()
	h.put(0, ZoneBattlefield, card.Forest())
	h.put(0, ZoneHand, bears, card.Forest())
	h.at(rules.PhaseMain)

	h.match.Step()

	p := h.player(0)
	assert.Equal(t, 0, p.Count(ZoneHand))
	require.Equal(t, 3, p.Count(ZoneBattlefield))
	assert.Same(t, bears, p.Battlefield()[2])
	assert.True(t, tappable.IsTapped(p.Battlefield()[0]))
	assert.True(t, tappable.IsTapped(p.Battlefield()[1]))
}

func TestCreatureWaitsForSecondLand(t *testing.T) {
	h := newHarness(t, 2)
	bears := card.GrizzlyBears()
	h.put(0, ZoneHand, bears, card.Forest())
	h.put(0, ZoneLibrary, card.Forest(), rock())
	h.put(1, ZoneLibrary, rocks(3)...)

	// First turn: one land played, creature stays in hand.
	h.step(5)
	p := h.player(0)
	assert.Equal(t, 1, p.Count(ZoneBattlefield))
	assert.Contains(t, p.Hand(), bears)

	// Rest of the first turn and the opponent's turn.
	h.step(4 + 9)
	require.Equal(t, 0, h.match.CurrentPlayer)
	h.requirePhase(rules.PhaseStartTurn)

	// Second turn: the drawn Forest makes two lands.
	h.step(5)
	assert.NotContains(t, p.Hand(), bears)
	assert.Equal(t, 3, p.Count(ZoneBattlefield))
	assert.Equal(t, 0, mana.Available(p.Battlefield()))
	assert.True(t, creature.HasSummoningSickness(bears))
}

func TestSummoningSickCreatureDealsNoDamageUntilNextTurn(t *testing.T) {
	h := newHarness(t, 2)
	h.put(0, ZoneBattlefield, card.Forest(), card.Forest())
	h.put(0, ZoneHand, card.GrizzlyBears())
	h.put(0, ZoneLibrary, rocks(5)...)
	h.put(1, ZoneLibrary, rocks(5)...)

	h.step(8)
	h.requirePhase(rules.PhaseEndTurn)
	assert.Equal(t, StartingLife, h.player(1).Life)

	h.step(1 + 9)
	require.Equal(t, 0, h.match.CurrentPlayer)

	h.step(8)
	h.requirePhase(rules.PhaseEndTurn)
	assert.Equal(t, StartingLife-2, h.player(1).Life)
	assert.Equal(t, StartingLife, h.player(0).Life)
}

func TestManualMainDecisions(t *testing.T) {
	h := newHarness(t, 2)
	m := h.match
	m.AutoPlay = false
	h.put(0, ZoneBattlefield, card.Forest())
	h.put(0, ZoneHand, card.GrizzlyBears(), card.Forest())

	err := m.EndMain()
	require.ErrorIs(t, err, ErrNotAwaiting)

	h.at(rules.PhaseMain)
	m.Step()
	assert.True(t, m.MainPending)
	assert.True(t, m.AwaitingDecision())
	m.Step()
	h.requirePhase(rules.PhaseMain)

	assert.ErrorIs(t, m.CastCreature(0), ErrCannotPay)
	assert.ErrorIs(t, m.CastCreature(1), ErrInvalidCard)
	assert.ErrorIs(t, m.PlayLand(0), ErrInvalidCard)
	assert.ErrorIs(t, m.PlayLand(7), ErrInvalidCard)

	require.NoError(t, m.PlayLand(1))
	h.put(0, ZoneHand, card.Forest())
	assert.ErrorIs(t, m.PlayLand(1), ErrLandAlreadyPlayed)

	require.NoError(t, m.CastCreature(0))
	assert.Equal(t, 3, h.player(0).Count(ZoneBattlefield))

	require.NoError(t, m.EndMain())
	h.requirePhase(rules.PhaseDeclareAttackers)
	assert.False(t, m.MainPending)
	assert.ErrorIs(t, m.EndMain(), ErrNotAwaiting)
}

func TestDecisionInWrongPhaseLeavesMatchUntouched(t *testing.T) {
	h := newHarness(t, 2)
	h.put(0, ZoneBattlefield, card.GrizzlyBears())
	h.at(rules.PhaseMain)

	err := h.match.DeclareAttackers([]int{0})
	require.True(t, errors.Is(err, ErrNotAwaiting))
	err = h.match.DeclareBlockers(map[int]int{0: 0})
	require.True(t, errors.Is(err, ErrNotAwaiting))

	h.requirePhase(rules.PhaseMain)
	assert.Empty(t, h.match.Attackers)
	assert.False(t, tappable.IsTapped(h.player(0).Battlefield()[0]))
}

func TestStepTurnStopsAtParkedDecision(t *testing.T) {
	m := NewMatch(2, card.ExampleDeck(29, 31), rand.New(rand.NewSource(3)), zaptest.NewLogger(t))
	m.AutoPlay = false

	m.StepTurn()
	assert.Equal(t, rules.PhaseUntap, m.Phase)
	m.StepTurn()

	assert.Equal(t, rules.PhaseMain, m.Phase)
	assert.True(t, m.MainPending)
	assert.Equal(t, 1, m.Turn)

	m.RunToEnd()
	assert.Equal(t, rules.PhaseMain, m.Phase)

	m.AutoPlay = true
	m.RunToEnd()
	assert.True(t, m.IsGameOver())
	assert.False(t, m.AwaitingDecision())
}

func TestStepTurnAdvancesOneTurn(t *testing.T) {
	m := NewMatch(2, card.ExampleDeck(29, 31), rand.New(rand.NewSource(5)), zap.NewNop())

	m.StepTurn()
	assert.Equal(t, 1, m.Turn)
	assert.Equal(t, rules.PhaseUntap, m.Phase)

	m.StepTurn()
	assert.Equal(t, 2, m.Turn)
	assert.Equal(t, 1, m.CurrentPlayer)
}

func TestRunToEndFinishesExampleDeck(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		m := NewMatch(2, card.ExampleDeck(29, 31), rand.New(rand.NewSource(seed)), zap.NewNop())

		turns := m.RunToEnd()

		require.True(t, m.IsGameOver())
		assert.Positive(t, turns)
		assert.Contains(t, []int{0, 1}, m.Loser)
	}
}

func TestMatchPublishesEvents(t *testing.T) {
	m := NewMatch(2, card.ExampleDeck(29, 31), rand.New(rand.NewSource(11)), zaptest.NewLogger(t))
	bus := rules.NewEventBus()
	m.SetEventBus(bus)

	stats := watchers.NewStandard()
	stats.Registry.Attach(bus)

	phases := 0
	gameOver := 0
	bus.SubscribeTyped(rules.EventPhaseChanged, func(rules.Event) { phases++ })
	bus.SubscribeTyped(rules.EventGameOver, func(evt rules.Event) {
		gameOver++
		assert.Equal(t, m.Players[m.Loser].Name, evt.Subject)
	})

	m.RunToEnd()

	assert.Equal(t, 1, gameOver)
	assert.Positive(t, phases)

	names := []string{m.Players[0].Name, m.Players[1].Name}
	perPlayer := stats.Stats(names)
	require.Len(t, perPlayer, 2)
	assert.Positive(t, perPlayer[0].CardsDrawn)
	assert.Positive(t, stats.Cast.GetTotal())
	assert.Positive(t, stats.Damage.GetTotal())
}

func TestDescribe(t *testing.T) {
	h := newHarness(t, 2)
	h.put(0, ZoneHand, card.Forest(), card.Forest(), card.GrizzlyBears())
	h.put(0, ZoneBattlefield, sickBears(), tappedForest())

	summary := h.match.Describe(false)
	assert.Contains(t, summary, "Turn: 0")
	assert.Contains(t, summary, "Phase: START_TURN")
	assert.Contains(t, summary, "Player 1 *: life 20")
	assert.Contains(t, summary, "HAND: 3 cards")

	verbose := h.match.Describe(true)
	assert.Contains(t, verbose, "Forest x2, Grizzly Bears")
	assert.Contains(t, verbose, "Grizzly Bears 2/2 (sick)")
	assert.Contains(t, verbose, "Forest (tapped)")
}
