package game

import (
	"fmt"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/creature"
	"github.com/tcgsim/tcgsim-go/internal/game/mana"
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
)

// DeclareAttackers records the eligible positions among positions, taps them
// and advances to DeclareBlockers. Ineligible or unknown positions are dropped.
func (m *Match) DeclareAttackers(positions []int) error {
	if m.Phase != rules.PhaseDeclareAttackers {
		return fmt.Errorf("declare attackers during %s: %w", m.Phase, ErrNotAwaiting)
	}
	m.AttackPending = false
	m.recordAttackers(positions)
	m.setPhase(rules.PhaseDeclareBlockers)
	return nil
}

// DeclareBlockers records the resolvable blocker-to-attacker pairs and
// advances to AssignDamage.
func (m *Match) DeclareBlockers(pairs map[int]int) error {
	if m.Phase != rules.PhaseDeclareBlockers {
		return fmt.Errorf("declare blockers during %s: %w", m.Phase, ErrNotAwaiting)
	}
	m.BlockPending = false
	m.recordBlockers(pairs)
	m.setPhase(rules.PhaseAssignDamage)
	return nil
}

// PlayLand moves the Land at handIndex to the battlefield. One land per turn.
func (m *Match) PlayLand(handIndex int) error {
	if m.Phase != rules.PhaseMain {
		return fmt.Errorf("play land during %s: %w", m.Phase, ErrNotAwaiting)
	}
	if m.LandPlayed {
		return ErrLandAlreadyPlayed
	}
	hand := m.Active().Hand()
	if handIndex < 0 || handIndex >= len(hand) || !hand[handIndex].IsType(card.TypeLand) {
		return fmt.Errorf("hand index %d is not a land: %w", handIndex, ErrInvalidCard)
	}
	m.playLand(handIndex)
	return nil
}

// CastCreature pays for and casts the creature at handIndex.
func (m *Match) CastCreature(handIndex int) error {
	if m.Phase != rules.PhaseMain {
		return fmt.Errorf("cast creature during %s: %w", m.Phase, ErrNotAwaiting)
	}
	p := m.Active()
	hand := p.Hand()
	if handIndex < 0 || handIndex >= len(hand) || !creature.IsCreature(hand[handIndex]) {
		return fmt.Errorf("hand index %d is not a creature: %w", handIndex, ErrInvalidCard)
	}
	if !mana.CanPay(hand[handIndex].Cost, p.Battlefield()) {
		return fmt.Errorf("cast %s for %d with %d available: %w",
			hand[handIndex].Name, hand[handIndex].Cost, mana.Available(p.Battlefield()), ErrCannotPay)
	}
	m.castCreature(handIndex)
	return nil
}

// EndMain finishes the main phase and advances to DeclareAttackers.
func (m *Match) EndMain() error {
	if m.Phase != rules.PhaseMain {
		return fmt.Errorf("end main during %s: %w", m.Phase, ErrNotAwaiting)
	}
	m.MainPending = false
	m.setPhase(rules.PhaseDeclareAttackers)
	return nil
}
