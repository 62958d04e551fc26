package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const replayVersion = 2

// Replay is the recorded history of one match with a playback cursor.
type Replay struct {
	MatchID string
	States  []*Snapshot

	mu     sync.RWMutex
	cursor int
}

// NewReplay creates an empty replay.
func NewReplay(matchID string) *Replay {
	return &Replay{MatchID: matchID}
}

// RecordState appends a snapshot.
func (r *Replay) RecordState(snap *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, snap)
}

// Rewind moves the cursor back to the first state.
func (r *Replay) Rewind() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = 0
}

// Cursor is the index Next will return.
func (r *Replay) Cursor() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cursor
}

// Next returns the state under the cursor and advances it, or nil at the end.
func (r *Replay) Next() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.States) {
		return nil
	}
	r.cursor++
	return r.States[r.cursor-1]
}

// Previous steps the cursor back and returns that state, or nil at the start.
func (r *Replay) Previous() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == 0 {
		return nil
	}
	r.cursor--
	return r.States[r.cursor]
}

// Size returns the number of recorded states.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

// At returns the state at index, or nil.
func (r *Replay) At(index int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.States) {
		return nil
	}
	return r.States[index]
}

// replayFile is the on-disk form. Each frame carries the checksum of its
// state so a damaged file is rejected on load.
type replayFile struct {
	Version int
	MatchID string
	SavedAt time.Time
	Frames  []replayFrame
}

type replayFrame struct {
	Checksum SerializationChecksum
	State    []byte
}

func replayPath(directory, matchID string) string {
	return filepath.Join(directory, matchID+".replay")
}

// SaveToFile writes the replay as gzip-compressed gob to directory. The file
// is written under a temporary name and renamed into place.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	file := replayFile{
		Version: replayVersion,
		MatchID: r.MatchID,
		SavedAt: time.Now().UTC(),
		Frames:  make([]replayFrame, 0, len(r.States)),
	}
	for i, snap := range r.States {
		sum, err := snap.ComputeChecksum()
		if err != nil {
			r.mu.RUnlock()
			return fmt.Errorf("state %d: %w", i, err)
		}
		data, err := snap.SerializeToBytes()
		if err != nil {
			r.mu.RUnlock()
			return fmt.Errorf("state %d: %w", i, err)
		}
		file.Frames = append(file.Frames, replayFrame{Checksum: *sum, State: data})
	}
	r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(directory, r.MatchID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if err := gob.NewEncoder(zw).Encode(&file); err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("failed to encode replay: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close replay: %w", err)
	}
	return os.Rename(tmp.Name(), replayPath(directory, r.MatchID))
}

// LoadReplayFromFile reads a replay written by SaveToFile and verifies every
// state against its checksum.
func LoadReplayFromFile(directory, matchID string) (*Replay, error) {
	f, err := os.Open(replayPath(directory, matchID))
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	var file replayFile
	if err := gob.NewDecoder(zr).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode replay: %w", err)
	}
	if file.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", file.Version)
	}

	replay := NewReplay(file.MatchID)
	for i, frame := range file.Frames {
		snap, err := DeserializeFromBytes(frame.State)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		ok, err := snap.VerifyChecksum(&frame.Checksum)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		if !ok {
			return nil, fmt.Errorf("state %d: checksum mismatch", i)
		}
		replay.States = append(replay.States, snap)
	}
	return replay, nil
}

// ReplayRecorder keeps the in-memory replays of the matches being recorded.
type ReplayRecorder struct {
	logger  *zap.Logger
	saveDir string

	mu      sync.RWMutex
	replays map[string]*Replay
}

// NewReplayRecorder creates a recorder that saves into saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		saveDir: saveDir,
		replays: make(map[string]*Replay),
	}
}

// Dir is the directory replays are saved to. Empty means replays are kept
// in memory only.
func (rr *ReplayRecorder) Dir() string {
	return rr.saveDir
}

// StartRecording begins a fresh replay for the match, dropping any previous one.
func (rr *ReplayRecorder) StartRecording(matchID string) {
	rr.mu.Lock()
	rr.replays[matchID] = NewReplay(matchID)
	rr.mu.Unlock()
	rr.logger.Debug("replay recording started", zap.String("match_id", matchID))
}

// IsRecording reports whether the match has an active replay.
func (rr *ReplayRecorder) IsRecording(matchID string) bool {
	_, ok := rr.Replay(matchID)
	return ok
}

// Record snapshots the match if it is being recorded.
func (rr *ReplayRecorder) Record(m *Match) {
	replay, ok := rr.Replay(m.ID)
	if !ok {
		return
	}
	replay.RecordState(m.Snapshot())
}

// Replay returns the in-memory replay for the match.
func (rr *ReplayRecorder) Replay(matchID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, ok := rr.replays[matchID]
	return replay, ok
}

// SaveReplay writes the replay to disk and stops recording it.
func (rr *ReplayRecorder) SaveReplay(matchID string) error {
	rr.mu.Lock()
	replay, ok := rr.replays[matchID]
	delete(rr.replays, matchID)
	rr.mu.Unlock()
	if !ok {
		return fmt.Errorf("no replay recorded for match %s", matchID)
	}

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	rr.logger.Info("replay saved",
		zap.String("match_id", matchID),
		zap.Int("states", replay.Size()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// LoadReplay reads a saved replay from the recorder's directory.
func (rr *ReplayRecorder) LoadReplay(matchID string) (*Replay, error) {
	return LoadReplayFromFile(rr.saveDir, matchID)
}

// ClearReplay stops recording the match without saving.
func (rr *ReplayRecorder) ClearReplay(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.replays, matchID)
}
