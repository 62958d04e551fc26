package game

import (
	"fmt"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
)

// Zone is one of the card containers a player owns.
type Zone int

const (
	ZoneLibrary Zone = iota
	ZoneHand
	ZoneBattlefield
	ZoneGraveyard
	ZoneExile
)

var zoneNames = map[Zone]string{
	ZoneLibrary:     "LIBRARY",
	ZoneHand:        "HAND",
	ZoneBattlefield: "BATTLEFIELD",
	ZoneGraveyard:   "GRAVEYARD",
	ZoneExile:       "EXILE",
}

// AllZones lists the zones in display order.
var AllZones = []Zone{ZoneLibrary, ZoneHand, ZoneBattlefield, ZoneGraveyard, ZoneExile}

func (z Zone) String() string {
	if name, ok := zoneNames[z]; ok {
		return name
	}
	return fmt.Sprintf("ZONE_%d", int(z))
}

// MarshalText encodes the zone by name so it can key JSON objects.
func (z Zone) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// UnmarshalText decodes a zone name.
func (z *Zone) UnmarshalText(text []byte) error {
	for zone, name := range zoneNames {
		if name == string(text) {
			*z = zone
			return nil
		}
	}
	return fmt.Errorf("unknown zone %q", string(text))
}

// Player is one participant: a life total and five zones. A card is held by
// exactly one zone; moving it relocates the pointer.
type Player struct {
	Name  string
	Life  int
	zones map[Zone][]*card.Card
}

// NewPlayer creates a player at starting life with the given library.
// The top of the library is the last element.
func NewPlayer(name string, library []*card.Card) *Player {
	p := &Player{
		Name:  name,
		Life:  StartingLife,
		zones: make(map[Zone][]*card.Card, len(AllZones)),
	}
	for _, z := range AllZones {
		p.zones[z] = make([]*card.Card, 0)
	}
	p.zones[ZoneLibrary] = library
	return p
}

// Cards returns the zone's cards. Callers may mutate card state but must not
// reorder or resize the slice.
func (p *Player) Cards(z Zone) []*card.Card {
	return p.zones[z]
}

// Battlefield is shorthand for Cards(ZoneBattlefield).
func (p *Player) Battlefield() []*card.Card {
	return p.zones[ZoneBattlefield]
}

// Hand is shorthand for Cards(ZoneHand).
func (p *Player) Hand() []*card.Card {
	return p.zones[ZoneHand]
}

// Count returns the number of cards in the zone.
func (p *Player) Count(z Zone) int {
	return len(p.zones[z])
}

// Draw moves the top library card to the hand. It reports false when the
// library is empty.
func (p *Player) Draw() (*card.Card, bool) {
	library := p.zones[ZoneLibrary]
	if len(library) == 0 {
		return nil, false
	}
	top := library[len(library)-1]
	p.zones[ZoneLibrary] = library[:len(library)-1]
	p.zones[ZoneHand] = append(p.zones[ZoneHand], top)
	return top, true
}

// Move relocates the card at index in from to the end of to. Out-of-range
// indices report false and leave the zones untouched.
func (p *Player) Move(from Zone, index int, to Zone) (*card.Card, bool) {
	c, ok := p.remove(from, index)
	if !ok {
		return nil, false
	}
	p.zones[to] = append(p.zones[to], c)
	return c, true
}

func (p *Player) remove(z Zone, index int) (*card.Card, bool) {
	cards := p.zones[z]
	if index < 0 || index >= len(cards) {
		return nil, false
	}
	c := cards[index]
	p.zones[z] = append(cards[:index], cards[index+1:]...)
	return c, true
}

// setZone replaces a zone wholesale. Used when restoring snapshots.
func (p *Player) setZone(z Zone, cards []*card.Card) {
	if cards == nil {
		cards = make([]*card.Card, 0)
	}
	p.zones[z] = cards
}
