package game

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/creature"
	"github.com/tcgsim/tcgsim-go/internal/game/tappable"
)

var describeOrder = []Zone{ZoneHand, ZoneBattlefield, ZoneLibrary, ZoneGraveyard, ZoneExile}

// Describe renders the match as text. The summary lists zone counts per
// player; verbose groups the cards by name.
func (m *Match) Describe(verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Turn: %d\n", m.Turn)
	fmt.Fprintf(&b, "Phase: %s\n", m.Phase)
	if m.IsGameOver() && m.Loser != NoLoser {
		fmt.Fprintf(&b, "Loser: %s\n", m.Players[m.Loser].Name)
	}
	for i, p := range m.Players {
		marker := ""
		if i == m.CurrentPlayer {
			marker = " *"
		}
		fmt.Fprintf(&b, "%s%s: life %d\n", p.Name, marker, p.Life)
		if verbose {
			describeVerbose(&b, p)
		} else {
			for _, z := range describeOrder {
				fmt.Fprintf(&b, "  %s: %d cards\n", z, p.Count(z))
			}
		}
	}
	return b.String()
}

func describeVerbose(b *strings.Builder, p *Player) {
	for _, z := range describeOrder {
		cards := p.Cards(z)
		if len(cards) == 0 && z != ZoneHand && z != ZoneLibrary {
			continue
		}
		fmt.Fprintf(b, "  %s: (%d cards)\n", z, len(cards))
		if z == ZoneBattlefield {
			for _, line := range battlefieldLines(cards) {
				fmt.Fprintf(b, "    %s\n", line)
			}
			continue
		}
		if parts := groupNames(cards); len(parts) > 0 {
			fmt.Fprintf(b, "    %s\n", strings.Join(parts, ", "))
		}
	}
}

func groupNames(cards []*card.Card) []string {
	counts := make(map[string]int)
	for _, c := range cards {
		counts[c.Name]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		if counts[name] > 1 {
			parts = append(parts, fmt.Sprintf("%s x%d", name, counts[name]))
		} else {
			parts = append(parts, name)
		}
	}
	return parts
}

// battlefieldLines groups permanents that render identically.
func battlefieldLines(cards []*card.Card) []string {
	counts := make(map[string]int)
	for _, c := range cards {
		label := c.Name
		if creature.IsCreature(c) {
			label = fmt.Sprintf("%s %d/%d", c.Name, creature.Power(c), creature.Toughness(c))
			if creature.HasSummoningSickness(c) {
				label += " (sick)"
			}
		}
		if tappable.IsTapped(c) {
			label += " (tapped)"
		}
		counts[label]++
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	lines := make([]string, 0, len(labels))
	for _, label := range labels {
		if counts[label] > 1 {
			lines = append(lines, fmt.Sprintf("%s x%d", label, counts[label]))
		} else {
			lines = append(lines, label)
		}
	}
	return lines
}
