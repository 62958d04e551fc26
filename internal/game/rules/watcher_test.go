package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// castWatcher flags the first creature cast.
type castWatcher struct {
	*BaseWatcher
	seen int
}

func (w *castWatcher) Watch(event Event) {
	if event.Type == EventCreatureCast {
		w.seen++
		w.SetCondition(true)
	}
}

func (w *castWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.seen = 0
}

func TestWatcherRegistry(t *testing.T) {
	registry := NewWatcherRegistry()

	w := &castWatcher{BaseWatcher: NewBaseWatcher(WatcherScopeMatch, "CastWatcher")}
	registry.Add(w)
	registry.Add(nil)

	require.NotNil(t, registry.Get("CastWatcher"))
	assert.Len(t, registry.All(), 1)

	registry.Notify(NewEvent(EventCreatureCast, "Alice", "Grizzly Bears", ""))
	assert.True(t, w.ConditionMet())

	registry.Notify(NewEvent(EventTurnStarted, "Bob", "Bob", ""))
	assert.True(t, w.ConditionMet(), "match-scoped watcher survives turn start")

	registry.ResetScope(WatcherScopeMatch)
	assert.False(t, w.ConditionMet())
	assert.Zero(t, w.seen)
}

func TestAddWatcherReplacesSameKey(t *testing.T) {
	registry := NewWatcherRegistry()
	first := &castWatcher{BaseWatcher: NewBaseWatcher(WatcherScopeMatch, "Casts")}
	second := &castWatcher{BaseWatcher: NewBaseWatcher(WatcherScopeMatch, "Casts")}
	registry.Add(first)
	registry.Add(second)

	assert.Len(t, registry.All(), 1)
	assert.Same(t, second, registry.Get("Casts"))
}

func TestTurnScopedWatcherResetsOnTurnStart(t *testing.T) {
	bus := NewEventBus()
	registry := NewWatcherRegistry()
	w := &castWatcher{BaseWatcher: NewBaseWatcher(WatcherScopeTurn, "TurnCasts")}
	registry.Add(w)
	registry.Attach(bus)

	bus.Publish(NewEvent(EventCreatureCast, "Alice", "Grizzly Bears", ""))
	bus.Publish(NewEvent(EventCreatureCast, "Alice", "Grizzly Bears", ""))
	assert.Equal(t, 2, w.seen)

	bus.Publish(NewEvent(EventTurnStarted, "Bob", "Bob", ""))
	assert.Zero(t, w.seen)
	assert.False(t, w.ConditionMet())
}

func TestWatcherScopeString(t *testing.T) {
	assert.Equal(t, "MATCH", WatcherScopeMatch.String())
	assert.Equal(t, "TURN", WatcherScopeTurn.String())
	assert.Equal(t, "UNKNOWN", WatcherScope(9).String())
}
