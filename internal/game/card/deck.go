package card

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Deck is an ordered template of cards. Libraries are built from clones.
type Deck struct {
	Cards []*Card
}

// Count returns the number of cards carrying the tag.
func (d *Deck) Count(t Type) int {
	n := 0
	for _, c := range d.Cards {
		if c.IsType(t) {
			n++
		}
	}
	return n
}

// Len returns the deck size.
func (d *Deck) Len() int {
	return len(d.Cards)
}

// ShuffledClone returns a deep copy of the deck's cards in shuffled order.
func (d *Deck) ShuffledClone(rng *rand.Rand) []*Card {
	library := make([]*Card, len(d.Cards))
	for i, c := range d.Cards {
		library[i] = c.Clone()
	}
	rng.Shuffle(len(library), func(i, j int) {
		library[i], library[j] = library[j], library[i]
	})
	return library
}

// ExampleDeck builds a deck of Forests and Grizzly Bears.
func ExampleDeck(lands, nonlands int) *Deck {
	deck := &Deck{Cards: make([]*Card, 0, max(lands, 0)+max(nonlands, 0))}
	for i := 0; i < lands; i++ {
		deck.Cards = append(deck.Cards, Forest())
	}
	for i := 0; i < nonlands; i++ {
		deck.Cards = append(deck.Cards, GrizzlyBears())
	}
	return deck
}

// Factory builds a fresh card.
type Factory func() *Card

var registry = map[string]Factory{
	"Forest":        Forest,
	"Grizzly Bears": GrizzlyBears,
}

// ByName builds the named card from the registry.
func ByName(name string) (*Card, bool) {
	f, ok := registry[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	return f(), true
}

// Names lists the registered card names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Forest is a basic land.
func Forest() *Card {
	c := New("Forest", 0, TypeLand)
	c.Attach(&TappableFragment{})
	return c
}

// GrizzlyBears is a vanilla 2/2 for two.
func GrizzlyBears() *Card {
	c := New("Grizzly Bears", 2, TypeCreature)
	c.Attach(&CreatureFragment{Power: 2, Toughness: 2})
	c.Attach(&TappableFragment{})
	return c
}

// ParseDeckList reads "count,name" rows into a deck. Blank lines and rows
// starting with '#' are ignored.
func ParseDeckList(r io.Reader) (*Deck, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	deck := &Deck{}
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read deck list: %w", err)
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("deck list row %d: expected count,name", line)
		}
		count, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil || count < 0 {
			return nil, fmt.Errorf("deck list row %d: invalid count %q", line, record[0])
		}
		name := strings.TrimSpace(record[1])
		if _, ok := registry[name]; !ok {
			return nil, fmt.Errorf("deck list row %d: unknown card %q", line, name)
		}
		for i := 0; i < count; i++ {
			c, _ := ByName(name)
			deck.Cards = append(deck.Cards, c)
		}
	}
	return deck, nil
}
