// Package creature owns the creature capability: stats and summoning sickness.
package creature

import "github.com/tcgsim/tcgsim-go/internal/game/card"

// Stats is a creature's power and toughness.
type Stats struct {
	Power     uint8
	Toughness uint8
}

// IsCreature reports whether the card is tagged Creature or carries a
// creature fragment.
func IsCreature(c *card.Card) bool {
	if c.IsType(card.TypeCreature) {
		return true
	}
	_, ok := c.Fragment(card.FragmentCreature)
	return ok
}

func fragment(c *card.Card) *card.CreatureFragment {
	f, ok := c.Fragment(card.FragmentCreature)
	if !ok {
		return nil
	}
	cf, _ := f.(*card.CreatureFragment)
	return cf
}

// GetStats reads the creature fragment. A creature-tagged card without a
// fragment has no stats.
func GetStats(c *card.Card) (Stats, bool) {
	cf := fragment(c)
	if cf == nil {
		return Stats{}, false
	}
	return Stats{Power: cf.Power, Toughness: cf.Toughness}, true
}

// Power returns the card's power, or 0 without a fragment.
func Power(c *card.Card) int {
	s, _ := GetStats(c)
	return int(s.Power)
}

// Toughness returns the card's toughness, or 0 without a fragment.
func Toughness(c *card.Card) int {
	s, _ := GetStats(c)
	return int(s.Toughness)
}

// Add attaches a fresh creature fragment, replacing any existing one.
func Add(c *card.Card, power, toughness uint8) {
	c.Attach(&card.CreatureFragment{Power: power, Toughness: toughness})
}

// Remove detaches the creature fragment. The Creature tag is left alone.
func Remove(c *card.Card) {
	c.Detach(card.FragmentCreature)
}

// HasSummoningSickness reports the fragment's sickness flag.
func HasSummoningSickness(c *card.Card) bool {
	cf := fragment(c)
	return cf != nil && cf.SummoningSickness
}

// SetSummoningSickness is a no-op for cards without a creature fragment.
func SetSummoningSickness(c *card.Card, sick bool) {
	if cf := fragment(c); cf != nil {
		cf.SummoningSickness = sick
	}
}
