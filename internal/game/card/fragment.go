package card

import "fmt"

// FragmentKind identifies a capability a card may carry.
type FragmentKind int

const (
	FragmentCreature FragmentKind = iota
	FragmentTappable
)

var fragmentKindNames = map[FragmentKind]string{
	FragmentCreature: "CREATURE",
	FragmentTappable: "TAPPABLE",
}

func (k FragmentKind) String() string {
	if name, ok := fragmentKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FRAGMENT_%d", int(k))
}

// Fragment is a capability record attached to a card. The set of fragments is
// closed: *CreatureFragment and *TappableFragment are the only implementations.
type Fragment interface {
	Kind() FragmentKind
	clone() Fragment
}

// CreatureFragment carries combat stats and summoning sickness.
type CreatureFragment struct {
	Power             uint8
	Toughness         uint8
	SummoningSickness bool
}

func (f *CreatureFragment) Kind() FragmentKind { return FragmentCreature }

func (f *CreatureFragment) clone() Fragment {
	cp := *f
	return &cp
}

// TappableFragment carries tapped state.
type TappableFragment struct {
	Tapped bool
}

func (f *TappableFragment) Kind() FragmentKind { return FragmentTappable }

func (f *TappableFragment) clone() Fragment {
	cp := *f
	return &cp
}
