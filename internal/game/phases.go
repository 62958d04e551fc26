package game

import (
	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/creature"
	"github.com/tcgsim/tcgsim-go/internal/game/mana"
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
	"github.com/tcgsim/tcgsim-go/internal/game/tappable"
)

func (m *Match) startTurn() {
	m.Turn++
	m.LandPlayed = false
	m.publish(rules.EventTurnStarted, m.Active().Name, "", m.Turn)
	m.setPhase(rules.PhaseUntap)
}

func (m *Match) untap() {
	n := tappable.UntapAll(m.Active().Battlefield())
	if n > 0 {
		m.publish(rules.EventUntapped, m.Active().Name, "", n)
	}
	m.setPhase(rules.PhaseUpkeep)
}

func (m *Match) upkeep() {
	for _, c := range m.Active().Battlefield() {
		creature.SetSummoningSickness(c, false)
	}
	m.setPhase(rules.PhaseDraw)
}

func (m *Match) draw() {
	c, ok := m.Active().Draw()
	if !ok {
		m.endGame(m.CurrentPlayer, "drew from an empty library")
		return
	}
	m.publish(rules.EventCardDrawn, c.Name, "", 1)
	m.setPhase(rules.PhaseMain)
}

func (m *Match) main() {
	if !m.AutoPlay {
		if !m.MainPending {
			m.MainPending = true
			m.publish(rules.EventDecisionPending, rules.PhaseMain.String(), "", 0)
		}
		return
	}

	m.MainPending = false
	m.autoPlayLand()
	for m.autoCastCreature() {
	}
	m.setPhase(rules.PhaseDeclareAttackers)
}

func (m *Match) endTurn() {
	m.CurrentPlayer = (m.CurrentPlayer + 1) % len(m.Players)
	m.setPhase(rules.PhaseStartTurn)
}

// autoPlayLand plays the first Land in hand order, once per turn.
func (m *Match) autoPlayLand() {
	if m.LandPlayed {
		return
	}
	for i, c := range m.Active().Hand() {
		if c.IsType(card.TypeLand) {
			m.playLand(i)
			return
		}
	}
}

// autoCastCreature casts the first affordable creature in hand order.
func (m *Match) autoCastCreature() bool {
	p := m.Active()
	for i, c := range p.Hand() {
		if !creature.IsCreature(c) {
			continue
		}
		if !mana.CanPay(c.Cost, p.Battlefield()) {
			continue
		}
		return m.castCreature(i)
	}
	return false
}

func (m *Match) playLand(handIndex int) bool {
	p := m.Active()
	c, ok := p.Move(ZoneHand, handIndex, ZoneBattlefield)
	if !ok {
		return false
	}
	m.LandPlayed = true
	m.logger.Debug("land played",
		zap.String("match_id", m.ID),
		zap.String("player", p.Name),
		zap.String("card", c.Name),
	)
	m.publish(rules.EventLandPlayed, c.Name, "", 0)
	return true
}

func (m *Match) castCreature(handIndex int) bool {
	p := m.Active()
	hand := p.Hand()
	if handIndex < 0 || handIndex >= len(hand) {
		return false
	}
	if !mana.Pay(hand[handIndex].Cost, p.Battlefield()) {
		return false
	}
	c, _ := p.Move(ZoneHand, handIndex, ZoneBattlefield)
	creature.SetSummoningSickness(c, true)
	m.logger.Debug("creature cast",
		zap.String("match_id", m.ID),
		zap.String("player", p.Name),
		zap.String("card", c.Name),
		zap.Int("cost", c.Cost),
	)
	m.publish(rules.EventCreatureCast, c.Name, "", c.Cost)
	return true
}
