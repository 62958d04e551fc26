package watchers

import (
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
)

// Registry keys of the standard match watchers.
const (
	KeyCreaturesCast = "CreaturesCastWatcher"
	KeyCreaturesDied = "CreaturesDiedWatcher"
	KeyCardsDrawn    = "CardsDrawnWatcher"
	KeyCombatDamage  = "CombatDamageWatcher"
)

// playerCounter tallies one integer per player.
type playerCounter struct {
	*rules.BaseWatcher
	eventType rules.EventType
	useAmount bool
	counts    map[string]int
}

func newPlayerCounter(key string, eventType rules.EventType, useAmount bool) *playerCounter {
	return &playerCounter{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch, key),
		eventType:   eventType,
		useAmount:   useAmount,
		counts:      make(map[string]int),
	}
}

// Watch implements the Watcher interface.
func (w *playerCounter) Watch(event rules.Event) {
	if event.Type != w.eventType || event.Player == "" {
		return
	}
	n := 1
	if w.useAmount {
		n = event.Amount
	}
	w.counts[event.Player] += n
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *playerCounter) Reset() {
	w.BaseWatcher.Reset()
	w.counts = make(map[string]int)
}

// GetCount returns the tally for a player.
func (w *playerCounter) GetCount(playerID string) int {
	return w.counts[playerID]
}

// GetTotal returns the tally over all players.
func (w *playerCounter) GetTotal() int {
	total := 0
	for _, n := range w.counts {
		total += n
	}
	return total
}

// CreaturesCastWatcher counts creatures cast per player.
type CreaturesCastWatcher struct{ *playerCounter }

// NewCreaturesCastWatcher creates a new creatures cast watcher.
func NewCreaturesCastWatcher() *CreaturesCastWatcher {
	return &CreaturesCastWatcher{newPlayerCounter(KeyCreaturesCast, rules.EventCreatureCast, false)}
}

// CreaturesDiedWatcher counts creatures put into a player's graveyard from
// their battlefield.
type CreaturesDiedWatcher struct{ *playerCounter }

// NewCreaturesDiedWatcher creates a new creatures died watcher.
func NewCreaturesDiedWatcher() *CreaturesDiedWatcher {
	return &CreaturesDiedWatcher{newPlayerCounter(KeyCreaturesDied, rules.EventCreatureDied, false)}
}

// CardsDrawnWatcher counts draw-step draws per player.
type CardsDrawnWatcher struct{ *playerCounter }

// NewCardsDrawnWatcher creates a new cards drawn watcher.
func NewCardsDrawnWatcher() *CardsDrawnWatcher {
	return &CardsDrawnWatcher{newPlayerCounter(KeyCardsDrawn, rules.EventCardDrawn, false)}
}

// CombatDamageWatcher sums combat damage dealt to players, keyed by the
// attacking player.
type CombatDamageWatcher struct{ *playerCounter }

// NewCombatDamageWatcher creates a new combat damage watcher.
func NewCombatDamageWatcher() *CombatDamageWatcher {
	return &CombatDamageWatcher{newPlayerCounter(KeyCombatDamage, rules.EventDamagedPlayer, true)}
}

// PlayerStats is the per-player view of the standard watchers.
type PlayerStats struct {
	Player        string `json:"player"`
	CreaturesCast int    `json:"creatures_cast"`
	CreaturesDied int    `json:"creatures_died"`
	CardsDrawn    int    `json:"cards_drawn"`
	DamageDealt   int    `json:"damage_dealt"`
}

// Standard bundles the standard watchers for one match.
type Standard struct {
	Registry *rules.WatcherRegistry
	Cast     *CreaturesCastWatcher
	Died     *CreaturesDiedWatcher
	Drawn    *CardsDrawnWatcher
	Damage   *CombatDamageWatcher
}

// NewStandard creates and registers the standard watchers.
func NewStandard() *Standard {
	s := &Standard{
		Registry: rules.NewWatcherRegistry(),
		Cast:     NewCreaturesCastWatcher(),
		Died:     NewCreaturesDiedWatcher(),
		Drawn:    NewCardsDrawnWatcher(),
		Damage:   NewCombatDamageWatcher(),
	}
	s.Registry.Add(s.Cast)
	s.Registry.Add(s.Died)
	s.Registry.Add(s.Drawn)
	s.Registry.Add(s.Damage)
	return s
}

// Stats returns one entry per named player, in the given order.
func (s *Standard) Stats(players []string) []PlayerStats {
	out := make([]PlayerStats, 0, len(players))
	for _, p := range players {
		out = append(out, PlayerStats{
			Player:        p,
			CreaturesCast: s.Cast.GetCount(p),
			CreaturesDied: s.Died.GetCount(p),
			CardsDrawn:    s.Drawn.GetCount(p),
			DamageDealt:   s.Damage.GetCount(p),
		})
	}
	return out
}
