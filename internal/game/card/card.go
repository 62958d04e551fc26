package card

import (
	"fmt"
	"sort"
	"strings"
)

// Type is a card type tag.
type Type int

const (
	TypeLand Type = iota
	TypeCreature
)

var typeNames = map[Type]string{
	TypeLand:     "LAND",
	TypeCreature: "CREATURE",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE_%d", int(t))
}

// ParseType converts a type name back into a Type.
func ParseType(name string) (Type, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown card type %q", name)
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Card is a name, a set of type tags, a generic mana cost and the capability
// fragments attached to it. Tags and fragments are independent: tagging a card
// as a creature does not give it stats, and attaching stats does not tag it.
type Card struct {
	Name      string
	Cost      int
	types     []Type
	fragments map[FragmentKind]Fragment
}

// New creates a card with the given tags and no fragments.
func New(name string, cost int, types ...Type) *Card {
	if cost < 0 {
		cost = 0
	}
	c := &Card{
		Name:      name,
		Cost:      cost,
		fragments: make(map[FragmentKind]Fragment),
	}
	for _, t := range types {
		c.AddType(t)
	}
	return c
}

// IsType reports whether the card carries the tag.
func (c *Card) IsType(t Type) bool {
	for _, ct := range c.types {
		if ct == t {
			return true
		}
	}
	return false
}

// AddType tags the card. Adding a present tag is a no-op.
func (c *Card) AddType(t Type) {
	if !c.IsType(t) {
		c.types = append(c.types, t)
	}
}

// RemoveType untags the card. Removing an absent tag is a no-op.
func (c *Card) RemoveType(t Type) {
	for i, ct := range c.types {
		if ct == t {
			c.types = append(c.types[:i], c.types[i+1:]...)
			return
		}
	}
}

// Types returns the card's tags in the order they were added.
func (c *Card) Types() []Type {
	out := make([]Type, len(c.types))
	copy(out, c.types)
	return out
}

// Fragment looks up the fragment of the given kind.
func (c *Card) Fragment(kind FragmentKind) (Fragment, bool) {
	f, ok := c.fragments[kind]
	return f, ok
}

// Attach adds f to the card, replacing any fragment of the same kind.
func (c *Card) Attach(f Fragment) {
	if f == nil {
		return
	}
	if c.fragments == nil {
		c.fragments = make(map[FragmentKind]Fragment)
	}
	c.fragments[f.Kind()] = f
}

// Detach removes the fragment of the given kind, if any.
func (c *Card) Detach(kind FragmentKind) {
	delete(c.fragments, kind)
}

// FragmentKinds returns the kinds attached to the card in ascending order.
func (c *Card) FragmentKinds() []FragmentKind {
	kinds := make([]FragmentKind, 0, len(c.fragments))
	for k := range c.fragments {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Clone returns a deep copy of the card. Fragments are copied, never shared.
func (c *Card) Clone() *Card {
	clone := &Card{
		Name:      c.Name,
		Cost:      c.Cost,
		types:     c.Types(),
		fragments: make(map[FragmentKind]Fragment, len(c.fragments)),
	}
	for k, f := range c.fragments {
		clone.fragments[k] = f.clone()
	}
	return clone
}

func (c *Card) String() string {
	return c.Name
}
