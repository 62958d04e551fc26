package rules

import "sync"

// WatcherScope says how long a watcher's tally lives.
type WatcherScope int

const (
	// WatcherScopeMatch keeps the tally for the whole match.
	WatcherScopeMatch WatcherScope = iota
	// WatcherScopeTurn clears the tally whenever a player-turn starts.
	WatcherScopeTurn
)

var watcherScopeNames = map[WatcherScope]string{
	WatcherScopeMatch: "MATCH",
	WatcherScopeTurn:  "TURN",
}

func (ws WatcherScope) String() string {
	if name, ok := watcherScopeNames[ws]; ok {
		return name
	}
	return "UNKNOWN"
}

// Watcher accumulates a tally or condition from match events.
type Watcher interface {
	Watch(event Event)
	Reset()
	// ConditionMet is true once the watched thing has happened in scope.
	ConditionMet() bool
	Scope() WatcherScope
	Key() string
}

// BaseWatcher holds the scope, key and condition flag. Concrete watchers
// embed it and add their own tallies.
type BaseWatcher struct {
	scope     WatcherScope
	key       string
	condition bool
}

func NewBaseWatcher(scope WatcherScope, key string) *BaseWatcher {
	return &BaseWatcher{scope: scope, key: key}
}

func (bw *BaseWatcher) Scope() WatcherScope         { return bw.scope }
func (bw *BaseWatcher) Key() string                 { return bw.key }
func (bw *BaseWatcher) ConditionMet() bool          { return bw.condition }
func (bw *BaseWatcher) SetCondition(condition bool) { bw.condition = condition }
func (bw *BaseWatcher) Reset()                      { bw.condition = false }

// WatcherRegistry holds one match's watchers in registration order.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers []Watcher
	index    map[string]int
}

func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{index: make(map[string]int)}
}

// Add registers w. A watcher with the same key is replaced in place.
func (wr *WatcherRegistry) Add(w Watcher) {
	if w == nil {
		return
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if i, ok := wr.index[w.Key()]; ok {
		wr.watchers[i] = w
		return
	}
	wr.index[w.Key()] = len(wr.watchers)
	wr.watchers = append(wr.watchers, w)
}

// Get returns the watcher registered under key, or nil.
func (wr *WatcherRegistry) Get(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	if i, ok := wr.index[key]; ok {
		return wr.watchers[i]
	}
	return nil
}

// All returns the watchers in registration order.
func (wr *WatcherRegistry) All() []Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return append([]Watcher(nil), wr.watchers...)
}

// ResetScope resets every watcher with the given scope.
func (wr *WatcherRegistry) ResetScope(scope WatcherScope) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, w := range wr.watchers {
		if w.Scope() == scope {
			w.Reset()
		}
	}
}

// Notify forwards event to every watcher. A turn start clears turn-scoped
// watchers before they see it.
func (wr *WatcherRegistry) Notify(event Event) {
	if event.Type == EventTurnStarted {
		wr.ResetScope(WatcherScopeTurn)
	}
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, w := range wr.watchers {
		w.Watch(event)
	}
}

// Attach subscribes the registry to bus and returns the subscription handle.
func (wr *WatcherRegistry) Attach(bus *EventBus) int {
	return bus.Subscribe(wr.Notify)
}
