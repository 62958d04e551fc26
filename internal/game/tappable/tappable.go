// Package tappable owns the tapped/untapped capability.
package tappable

import "github.com/tcgsim/tcgsim-go/internal/game/card"

func fragment(c *card.Card) *card.TappableFragment {
	f, ok := c.Fragment(card.FragmentTappable)
	if !ok {
		return nil
	}
	tf, _ := f.(*card.TappableFragment)
	return tf
}

// IsTappable reports whether the card carries a tappable fragment.
func IsTappable(c *card.Card) bool {
	return fragment(c) != nil
}

// IsTapped is always false for cards without a tappable fragment.
func IsTapped(c *card.Card) bool {
	tf := fragment(c)
	return tf != nil && tf.Tapped
}

// SetTapped is a no-op for cards without a tappable fragment.
func SetTapped(c *card.Card, tapped bool) {
	if tf := fragment(c); tf != nil {
		tf.Tapped = tapped
	}
}

// Add attaches an untapped fragment, replacing any existing one.
func Add(c *card.Card) {
	c.Attach(&card.TappableFragment{})
}

// Remove detaches the tappable fragment.
func Remove(c *card.Card) {
	c.Detach(card.FragmentTappable)
}

// UntapAll untaps every card in cards and returns how many changed state.
func UntapAll(cards []*card.Card) int {
	n := 0
	for _, c := range cards {
		if IsTapped(c) {
			SetTapped(c, false)
			n++
		}
	}
	return n
}
