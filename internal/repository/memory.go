package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/sim"
)

// MemoryStore keeps everything in process. Snapshots are stored encoded so
// callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	trials    map[string][]sim.Trial
	snapshots map[string]*snapshotRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trials:    make(map[string][]sim.Trial),
		snapshots: make(map[string]*snapshotRecord),
	}
}

func (s *MemoryStore) SaveTrial(_ context.Context, trial sim.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trials[trial.RunID] = append(s.trials[trial.RunID], trial)
	return nil
}

func (s *MemoryStore) ListTrials(_ context.Context, runID string) ([]sim.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]sim.Trial(nil), s.trials[runID]...), nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, name string, snap *game.Snapshot) (*SnapshotInfo, error) {
	rec, err := encodeSnapshot(name, snap)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[name] = rec
	info := rec.info
	return &info, nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context, name string) (*game.Snapshot, error) {
	s.mu.RLock()
	rec, ok := s.snapshots[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("snapshot %q: %w", name, ErrNotFound)
	}
	return decodeSnapshot(name, rec.info.Checksum, rec.payload)
}

func (s *MemoryStore) ListSnapshots(_ context.Context) ([]SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SnapshotInfo, 0, len(s.snapshots))
	for _, rec := range s.snapshots {
		out = append(out, rec.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
