package game

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is a self-contained copy of a match. It shares no pointers with
// the match it was taken from.
type Snapshot struct {
	Version       int              `json:"version"`
	MatchID       string           `json:"match_id"`
	Players       []PlayerSnapshot `json:"players"`
	CurrentPlayer int              `json:"current_player"`
	Turn          int              `json:"turn"`
	Phase         rules.Phase      `json:"phase"`
	Attackers     []int            `json:"attackers"`
	Blocking      map[int]int      `json:"blocking"`
	AutoPlay      bool             `json:"auto_play"`
	MainPending   bool             `json:"main_pending"`
	AttackPending bool             `json:"attack_pending"`
	BlockPending  bool             `json:"block_pending"`
	LandPlayed    bool             `json:"land_played"`
	Loser         int              `json:"loser"`
	Timestamp     time.Time        `json:"timestamp"`
}

// PlayerSnapshot holds a player's life and zones in order.
type PlayerSnapshot struct {
	Name  string                  `json:"name"`
	Life  int                     `json:"life"`
	Zones map[Zone][]CardSnapshot `json:"zones"`
}

// CardSnapshot is a card with its fragments flattened.
type CardSnapshot struct {
	Name     string         `json:"name"`
	Cost     int            `json:"cost"`
	Types    []card.Type    `json:"types"`
	Creature *CreatureState `json:"creature,omitempty"`
	Tappable *TappableState `json:"tappable,omitempty"`
}

type CreatureState struct {
	Power             uint8 `json:"power"`
	Toughness         uint8 `json:"toughness"`
	SummoningSickness bool  `json:"summoning_sickness"`
}

type TappableState struct {
	Tapped bool `json:"tapped"`
}

// Snapshot captures the full match state.
func (m *Match) Snapshot() *Snapshot {
	snap := &Snapshot{
		Version:       SnapshotVersion,
		MatchID:       m.ID,
		Players:       make([]PlayerSnapshot, len(m.Players)),
		CurrentPlayer: m.CurrentPlayer,
		Turn:          m.Turn,
		Phase:         m.Phase,
		Attackers:     append([]int{}, m.Attackers...),
		Blocking:      make(map[int]int, len(m.Blocking)),
		AutoPlay:      m.AutoPlay,
		MainPending:   m.MainPending,
		AttackPending: m.AttackPending,
		BlockPending:  m.BlockPending,
		LandPlayed:    m.LandPlayed,
		Loser:         m.Loser,
		Timestamp:     time.Now().UTC(),
	}
	for b, a := range m.Blocking {
		snap.Blocking[b] = a
	}
	for i, p := range m.Players {
		ps := PlayerSnapshot{
			Name:  p.Name,
			Life:  p.Life,
			Zones: make(map[Zone][]CardSnapshot, len(AllZones)),
		}
		for _, z := range AllZones {
			cards := p.Cards(z)
			out := make([]CardSnapshot, len(cards))
			for j, c := range cards {
				out[j] = snapshotCard(c)
			}
			ps.Zones[z] = out
		}
		snap.Players[i] = ps
	}
	return snap
}

func snapshotCard(c *card.Card) CardSnapshot {
	cs := CardSnapshot{Name: c.Name, Cost: c.Cost, Types: c.Types()}
	for _, kind := range c.FragmentKinds() {
		f, _ := c.Fragment(kind)
		switch frag := f.(type) {
		case *card.CreatureFragment:
			cs.Creature = &CreatureState{
				Power:             frag.Power,
				Toughness:         frag.Toughness,
				SummoningSickness: frag.SummoningSickness,
			}
		case *card.TappableFragment:
			cs.Tappable = &TappableState{Tapped: frag.Tapped}
		}
	}
	return cs
}

func (cs CardSnapshot) build() *card.Card {
	c := card.New(cs.Name, cs.Cost, cs.Types...)
	if cs.Creature != nil {
		c.Attach(&card.CreatureFragment{
			Power:             cs.Creature.Power,
			Toughness:         cs.Creature.Toughness,
			SummoningSickness: cs.Creature.SummoningSickness,
		})
	}
	if cs.Tappable != nil {
		c.Attach(&card.TappableFragment{Tapped: cs.Tappable.Tapped})
	}
	return c
}

// Restore rebuilds a match from a snapshot. The result shares nothing with
// the snapshot and has no event bus attached.
func Restore(snap *Snapshot, logger *zap.Logger) (*Match, error) {
	if snap == nil {
		return nil, fmt.Errorf("restore match: nil snapshot")
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("restore match: unsupported snapshot version %d", snap.Version)
	}
	if len(snap.Players) < MinPlayers {
		return nil, fmt.Errorf("restore match: %d players, need at least %d", len(snap.Players), MinPlayers)
	}
	if snap.CurrentPlayer < 0 || snap.CurrentPlayer >= len(snap.Players) {
		return nil, fmt.Errorf("restore match: current player %d out of range", snap.CurrentPlayer)
	}
	if snap.Loser != NoLoser && (snap.Loser < 0 || snap.Loser >= len(snap.Players)) {
		return nil, fmt.Errorf("restore match: loser %d out of range", snap.Loser)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := newMatch(snap.MatchID, logger)
	m.CurrentPlayer = snap.CurrentPlayer
	m.Turn = snap.Turn
	m.Phase = snap.Phase
	m.Attackers = append([]int{}, snap.Attackers...)
	for b, a := range snap.Blocking {
		m.Blocking[b] = a
	}
	m.AutoPlay = snap.AutoPlay
	m.MainPending = snap.MainPending
	m.AttackPending = snap.AttackPending
	m.BlockPending = snap.BlockPending
	m.LandPlayed = snap.LandPlayed
	m.Loser = snap.Loser

	m.Players = make([]*Player, len(snap.Players))
	for i, ps := range snap.Players {
		p := NewPlayer(ps.Name, nil)
		p.Life = ps.Life
		for _, z := range AllZones {
			cards := make([]*card.Card, len(ps.Zones[z]))
			for j, cs := range ps.Zones[z] {
				cards[j] = cs.build()
			}
			p.setZone(z, cards)
		}
		m.Players[i] = p
	}

	logger.Debug("match restored",
		zap.String("match_id", m.ID),
		zap.Int("turn", m.Turn),
		zap.Stringer("phase", m.Phase),
	)
	return m, nil
}
