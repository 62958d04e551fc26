package tappable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tcgsim/tcgsim-go/internal/game/card"
)

func TestTapState(t *testing.T) {
	f := card.Forest()
	assert.True(t, IsTappable(f))
	assert.False(t, IsTapped(f))

	SetTapped(f, true)
	assert.True(t, IsTapped(f))

	SetTapped(f, false)
	assert.False(t, IsTapped(f))
}

func TestCardWithoutFragmentIsNeverTapped(t *testing.T) {
	c := card.New("Rock", 0, card.TypeLand)
	SetTapped(c, true)
	assert.False(t, IsTapped(c))
	assert.False(t, IsTappable(c))

	Add(c)
	SetTapped(c, true)
	assert.True(t, IsTapped(c))

	Remove(c)
	assert.False(t, IsTapped(c))
}

func TestUntapAll(t *testing.T) {
	cards := []*card.Card{card.Forest(), card.Forest(), card.New("Rock", 0)}
	SetTapped(cards[0], true)

	assert.Equal(t, 1, UntapAll(cards))
	assert.False(t, IsTapped(cards[0]))
}
