package game

import (
	"compress/gzip"
	"encoding/gob"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/creature"
	"github.com/tcgsim/tcgsim-go/internal/game/rules"
	"github.com/tcgsim/tcgsim-go/internal/game/tappable"
)

func midGameMatch(t *testing.T) *Match {
	t.Helper()
	m := NewMatch(2, card.ExampleDeck(29, 31), rand.New(rand.NewSource(21)), zaptest.NewLogger(t))
	for i := 0; i < 6; i++ {
		m.StepTurn()
	}
	m.AutoPlay = false
	for !m.AwaitingDecision() {
		m.Step()
	}
	require.False(t, m.IsGameOver())
	return m
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m := midGameMatch(t)
	m.Attackers = []int{0}
	m.Blocking = map[int]int{1: 0}

	snap := m.Snapshot()
	restored, err := Restore(snap, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, m.ID, restored.ID)
	assert.Equal(t, m.Turn, restored.Turn)
	assert.Equal(t, m.Phase, restored.Phase)
	assert.Equal(t, m.CurrentPlayer, restored.CurrentPlayer)
	assert.Equal(t, m.Attackers, restored.Attackers)
	assert.Equal(t, m.Blocking, restored.Blocking)
	assert.Equal(t, m.AutoPlay, restored.AutoPlay)
	assert.Equal(t, m.MainPending, restored.MainPending)
	assert.Equal(t, m.LandPlayed, restored.LandPlayed)
	assert.Equal(t, m.Describe(true), restored.Describe(true))

	for i, p := range m.Players {
		rp := restored.Players[i]
		assert.Equal(t, p.Life, rp.Life)
		for _, z := range AllZones {
			require.Equal(t, p.Count(z), rp.Count(z), "zone %s", z)
			for j, c := range p.Cards(z) {
				rc := rp.Cards(z)[j]
				assert.NotSame(t, c, rc)
				assert.Equal(t, c.Name, rc.Name)
				assert.Equal(t, c.Types(), rc.Types())
				assert.Equal(t, c.FragmentKinds(), rc.FragmentKinds())
				assert.Equal(t, tappable.IsTapped(c), tappable.IsTapped(rc))
				assert.Equal(t, creature.HasSummoningSickness(c), creature.HasSummoningSickness(rc))
			}
		}
	}

	original, err := snap.ComputeChecksum()
	require.NoError(t, err)
	again, err := restored.Snapshot().ComputeChecksum()
	require.NoError(t, err)
	assert.Equal(t, original.Hash, again.Hash)
}

func TestRestoredMatchIsIndependent(t *testing.T) {
	m := midGameMatch(t)
	snap := m.Snapshot()
	restored, err := Restore(snap, nil)
	require.NoError(t, err)

	restored.AutoPlay = true
	restored.RunToEnd()

	assert.True(t, restored.IsGameOver())
	assert.False(t, m.IsGameOver())
	assert.Equal(t, snap.Turn, m.Turn)
}

func TestRestoreRejectsInvalidSnapshots(t *testing.T) {
	_, err := Restore(nil, nil)
	assert.Error(t, err)

	m := newHarness(t, 2).match
	cases := map[string]func(*Snapshot){
		"version":        func(s *Snapshot) { s.Version = 99 },
		"players":        func(s *Snapshot) { s.Players = s.Players[:1] },
		"current player": func(s *Snapshot) { s.CurrentPlayer = 5 },
		"loser":          func(s *Snapshot) { s.Loser = 7 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			snap := m.Snapshot()
			mutate(snap)
			_, err := Restore(snap, nil)
			assert.Error(t, err)
		})
	}
}

func TestChecksumIgnoresTimestamp(t *testing.T) {
	snap := midGameMatch(t).Snapshot()
	first, err := snap.ComputeChecksum()
	require.NoError(t, err)

	snap.Timestamp = snap.Timestamp.Add(time.Hour)
	second, err := snap.ComputeChecksum()
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.NotEqual(t, first.Timestamp, second.Timestamp)
}

func TestChecksumDetectsChanges(t *testing.T) {
	m := midGameMatch(t)
	base, err := m.Snapshot().ComputeChecksum()
	require.NoError(t, err)

	m.Players[1].Life--
	changed, err := m.Snapshot().ComputeChecksum()
	require.NoError(t, err)
	assert.NotEqual(t, base.Hash, changed.Hash)

	m.Players[1].Life++
	c := m.Players[0].Cards(ZoneLibrary)[0]
	tappable.SetTapped(c, !tappable.IsTapped(c))
	changed, err = m.Snapshot().ComputeChecksum()
	require.NoError(t, err)
	assert.NotEqual(t, base.Hash, changed.Hash)
}

func TestChecksumZoneOrderMatters(t *testing.T) {
	h := newHarness(t, 2)
	h.put(0, ZoneHand, card.Forest(), card.GrizzlyBears())
	first, err := h.match.Snapshot().ComputeChecksum()
	require.NoError(t, err)

	h2 := newHarness(t, 2)
	h2.match.ID = h.match.ID
	h2.put(0, ZoneHand, card.GrizzlyBears(), card.Forest())
	second, err := h2.match.Snapshot().ComputeChecksum()
	require.NoError(t, err)

	assert.NotEqual(t, first.Hash, second.Hash)
}

func TestVerifyChecksum(t *testing.T) {
	snap := midGameMatch(t).Snapshot()
	sum, err := snap.ComputeChecksum()
	require.NoError(t, err)

	ok, err := snap.VerifyChecksum(sum)
	require.NoError(t, err)
	assert.True(t, ok)

	snap.Turn++
	ok, err = snap.VerifyChecksum(sum)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSerializationRoundtrip(t *testing.T) {
	m := midGameMatch(t)
	m.Blocking = map[int]int{2: 0}
	snap := m.Snapshot()

	require.NoError(t, ValidateSerializationRoundtrip(snap))

	data, err := MarshalSnapshotJSON(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"phase":"`+m.Phase.String()+`"`)
	assert.Contains(t, string(data), `"HAND":`)

	decoded, err := UnmarshalSnapshotJSON(data)
	require.NoError(t, err)
	restored, err := Restore(decoded, nil)
	require.NoError(t, err)
	assert.Equal(t, m.Describe(true), restored.Describe(true))

	_, err = DeserializeFromBytes([]byte("not gob"))
	assert.Error(t, err)
	_, err = UnmarshalSnapshotJSON([]byte("{"))
	assert.Error(t, err)
}

func TestReplayNavigation(t *testing.T) {
	replay := NewReplay("match-1")
	for turn := 1; turn <= 3; turn++ {
		replay.RecordState(&Snapshot{MatchID: "match-1", Turn: turn})
	}
	require.Equal(t, 3, replay.Size())

	assert.Equal(t, 1, replay.Next().Turn)
	assert.Equal(t, 2, replay.Next().Turn)
	assert.Equal(t, 2, replay.Previous().Turn)
	assert.Equal(t, 1, replay.Previous().Turn)
	assert.Nil(t, replay.Previous())

	replay.Next()
	replay.Rewind()
	assert.Equal(t, 0, replay.Cursor())
	assert.Equal(t, 3, replay.At(2).Turn)
	assert.Nil(t, replay.At(3))
}

func TestReplayRecorderSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	recorder := NewReplayRecorder(zaptest.NewLogger(t), dir)

	m := NewMatch(2, card.ExampleDeck(29, 31), rand.New(rand.NewSource(4)), nil)
	recorder.Record(m)
	_, ok := recorder.Replay(m.ID)
	assert.False(t, ok)

	recorder.StartRecording(m.ID)
	assert.True(t, recorder.IsRecording(m.ID))
	recorder.Record(m)
	for !m.IsGameOver() {
		m.StepTurn()
		recorder.Record(m)
	}

	replay, ok := recorder.Replay(m.ID)
	require.True(t, ok)
	states := replay.Size()
	require.Greater(t, states, 2)

	require.NoError(t, recorder.SaveReplay(m.ID))
	assert.False(t, recorder.IsRecording(m.ID))
	_, err := os.Stat(filepath.Join(dir, m.ID+".replay"))
	require.NoError(t, err)

	loaded, err := recorder.LoadReplay(m.ID)
	require.NoError(t, err)
	require.Equal(t, states, loaded.Size())
	assert.Equal(t, rules.PhaseStartTurn, loaded.At(0).Phase)
	assert.Equal(t, rules.PhaseGameOver, loaded.At(states-1).Phase)

	last, err := Restore(loaded.At(states-1), nil)
	require.NoError(t, err)
	assert.True(t, last.IsGameOver())
	assert.Equal(t, m.Loser, last.Loser)
}

func TestReplayRecorderErrors(t *testing.T) {
	recorder := NewReplayRecorder(nil, t.TempDir())

	assert.Error(t, recorder.SaveReplay("missing"))
	_, err := recorder.LoadReplay("missing")
	assert.Error(t, err)

	recorder.StartRecording("m")
	recorder.ClearReplay("m")
	assert.False(t, recorder.IsRecording("m"))
}

func TestLoadReplayRejectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	m := NewMatch(2, card.ExampleDeck(10, 10), rand.New(rand.NewSource(2)), nil)
	data, err := m.Snapshot().SerializeToBytes()
	require.NoError(t, err)

	f, err := os.Create(replayPath(dir, "bad"))
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	require.NoError(t, gob.NewEncoder(zw).Encode(&replayFile{
		Version: replayVersion,
		MatchID: "bad",
		Frames:  []replayFrame{{Checksum: SerializationChecksum{Hash: "deadbeef"}, State: data}},
	}))
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = LoadReplayFromFile(dir, "bad")
	assert.ErrorContains(t, err, "checksum mismatch")
}
