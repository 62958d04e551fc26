package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/creature"
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
	"github.com/tcgsim/tcgsim-go/internal/game/tappable"
)

// harness sets up matches with hand-placed zones for scenario tests.
type harness struct {
	t     *testing.T
	match *Match
}

// newHarness builds a match whose players start with empty zones.
func newHarness(t *testing.T, players int) *harness {
	t.Helper()
	m := NewMatch(players, &card.Deck{}, rand.New(rand.NewSource(1)), zaptest.NewLogger(t))
	return &harness{t: t, match: m}
}

func (h *harness) player(i int) *Player {
	return h.match.Players[i]
}

// put appends cards to a zone. Library cards are drawn from the end.
func (h *harness) put(player int, z Zone, cards ...*card.Card) {
	p := h.player(player)
	p.setZone(z, append(p.Cards(z), cards...))
}

// at jumps the match to a phase without running the phases in between.
func (h *harness) at(phase rules.Phase) {
	h.match.Phase = phase
}

func (h *harness) step(n int) {
	for i := 0; i < n; i++ {
		h.match.Step()
	}
}

func (h *harness) requirePhase(expected rules.Phase) {
	h.t.Helper()
	require.Equal(h.t, expected, h.match.Phase)
}

// rock has no tags and no fragments; it fills libraries without affecting play.
func rock() *card.Card {
	return card.New("Rock", 0)
}

func rocks(n int) []*card.Card {
	out := make([]*card.Card, n)
	for i := range out {
		out[i] = rock()
	}
	return out
}

func tappedForest() *card.Card {
	c := card.Forest()
	tappable.SetTapped(c, true)
	return c
}

func sickBears() *card.Card {
	c := card.GrizzlyBears()
	creature.SetSummoningSickness(c, true)
	return c
}

// wall can block but not attack: it has stats but no Creature tag.
func wall(power, toughness uint8) *card.Card {
	c := card.New("Wall", 0)
	creature.Add(c, power, toughness)
	tappable.Add(c)
	return c
}
