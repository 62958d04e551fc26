package game

import (
	"sort"

	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/creature"
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
	"github.com/tcgsim/tcgsim-go/internal/game/tappable"
)

// canAttack requires the Creature tag; a bare creature fragment is not enough.
func canAttack(c *card.Card) bool {
	return c.IsType(card.TypeCreature) &&
		!tappable.IsTapped(c) &&
		!creature.HasSummoningSickness(c)
}

// canBlock admits sick creatures; they block but deal no damage.
func canBlock(c *card.Card) bool {
	return creature.IsCreature(c) && !tappable.IsTapped(c)
}

// combatPower is the damage a creature deals in combat. Sick creatures deal none.
func combatPower(c *card.Card) int {
	if creature.HasSummoningSickness(c) {
		return 0
	}
	return creature.Power(c)
}

func (m *Match) isAttacking(pos int) bool {
	for _, a := range m.Attackers {
		if a == pos {
			return true
		}
	}
	return false
}

func (m *Match) declareAttackers() {
	if !m.AutoPlay {
		if !m.AttackPending {
			m.AttackPending = true
			m.publish(rules.EventDecisionPending, rules.PhaseDeclareAttackers.String(), "", 0)
		}
		return
	}

	m.AttackPending = false
	positions := make([]int, 0)
	for i, c := range m.Active().Battlefield() {
		if canAttack(c) {
			positions = append(positions, i)
		}
	}
	m.recordAttackers(positions)
	m.setPhase(rules.PhaseDeclareBlockers)
}

// recordAttackers taps and stores every eligible position, skipping
// duplicates and positions off the battlefield.
func (m *Match) recordAttackers(positions []int) {
	battlefield := m.Active().Battlefield()
	m.Attackers = m.Attackers[:0]
	for _, pos := range positions {
		if pos < 0 || pos >= len(battlefield) || m.isAttacking(pos) {
			continue
		}
		c := battlefield[pos]
		if !canAttack(c) {
			continue
		}
		tappable.SetTapped(c, true)
		m.Attackers = append(m.Attackers, pos)
		m.publish(rules.EventAttackerDeclared, c.Name, "", creature.Power(c))
	}
}

func (m *Match) declareBlockers() {
	if !m.AutoPlay {
		if !m.BlockPending {
			m.BlockPending = true
			m.publish(rules.EventDecisionPending, rules.PhaseDeclareBlockers.String(), "", 0)
		}
		return
	}

	m.BlockPending = false
	battlefield := m.Active().Battlefield()
	pairs := make(map[int]int)
	for _, a := range m.Attackers {
		if a < 0 || a >= len(battlefield) {
			continue
		}
		toughness := creature.Toughness(battlefield[a])
		for i, c := range battlefield {
			if _, used := pairs[i]; used || m.isAttacking(i) || !canBlock(c) {
				continue
			}
			if creature.Power(c) >= toughness {
				pairs[i] = a
				break
			}
		}
	}
	m.recordBlockers(pairs)
	m.setPhase(rules.PhaseAssignDamage)
}

// recordBlockers keeps the pairs whose blocker can block and whose attacker
// is declared.
func (m *Match) recordBlockers(pairs map[int]int) {
	battlefield := m.Active().Battlefield()
	m.Blocking = make(map[int]int, len(pairs))
	for _, b := range sortedKeys(pairs) {
		a := pairs[b]
		if b < 0 || b >= len(battlefield) || m.isAttacking(b) || !m.isAttacking(a) {
			continue
		}
		if !canBlock(battlefield[b]) {
			continue
		}
		m.Blocking[b] = a
		if m.bus != nil {
			evt := m.event(rules.EventBlockerDeclared, battlefield[b].Name, "")
			if a < len(battlefield) {
				evt.Source = battlefield[a].Name
			}
			m.bus.Publish(evt)
		}
	}
}

func (m *Match) assignDamage() {
	p := m.Active()
	battlefield := p.Battlefield()

	blockedBy := make(map[int][]int)
	for _, b := range sortedKeys(m.Blocking) {
		a := m.Blocking[b]
		if b < 0 || b >= len(battlefield) || a < 0 || a >= len(battlefield) {
			continue
		}
		blockedBy[a] = append(blockedBy[a], b)
	}

	lethal := make(map[int]bool)
	for _, a := range m.Attackers {
		if a < 0 || a >= len(battlefield) {
			continue
		}
		attacker := battlefield[a]

		if blockers := blockedBy[a]; len(blockers) > 0 {
			for _, b := range blockers {
				blocker := battlefield[b]
				if combatPower(attacker) >= creature.Toughness(blocker) {
					lethal[b] = true
				}
				if combatPower(blocker) >= creature.Toughness(attacker) {
					lethal[a] = true
				}
			}
			continue
		}

		damage := combatPower(attacker)
		if damage <= 0 {
			continue
		}
		for i, other := range m.Players {
			if i == m.CurrentPlayer {
				continue
			}
			other.Life -= damage
			if m.bus != nil {
				evt := m.event(rules.EventDamagedPlayer, other.Name, attacker.Name)
				evt.Amount = damage
				m.bus.Publish(evt)
			}
		}
	}

	m.destroy(lethal)
	m.Attackers = m.Attackers[:0]
	m.Blocking = make(map[int]int)

	for i, player := range m.Players {
		if player.Life <= 0 {
			m.endGame(i, "life reached zero")
			return
		}
	}
	m.setPhase(rules.PhaseEndTurn)
}

// destroy moves the marked battlefield positions to the graveyard, highest
// position first so lower positions stay valid.
func (m *Match) destroy(positions map[int]bool) {
	p := m.Active()
	for _, pos := range sortedSetDesc(positions) {
		c, ok := p.Move(ZoneBattlefield, pos, ZoneGraveyard)
		if !ok {
			continue
		}
		m.logger.Debug("creature died",
			zap.String("match_id", m.ID),
			zap.String("player", p.Name),
			zap.String("card", c.Name),
		)
		m.publish(rules.EventCreatureDied, c.Name, "", 0)
	}
}

func sortedKeys(pairs map[int]int) []int {
	keys := make([]int, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedSetDesc(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))
	return keys
}
