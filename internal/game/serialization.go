package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
)

// SerializationChecksum is a deterministic digest of a snapshot.
type SerializationChecksum struct {
	Hash      string // SHA-256 of the canonical rendering
	Timestamp string // when the snapshot was taken
	Version   int
}

// ComputeChecksum hashes the canonical rendering of the snapshot. The
// timestamp does not contribute to the hash.
func (snap *Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(snap.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: snap.Timestamp.Format("2006-01-02T15:04:05.000Z"),
		Version:   snap.Version,
	}, nil
}

// canonical renders every field that affects play, in a fixed order.
// Zone order is significant and preserved.
func (snap *Snapshot) canonical() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "MATCH:%s|%d|%d|%s|%t|%t|%t|%t|%t|%d\n",
		snap.MatchID,
		snap.CurrentPlayer,
		snap.Turn,
		snap.Phase,
		snap.AutoPlay,
		snap.MainPending,
		snap.AttackPending,
		snap.BlockPending,
		snap.LandPlayed,
		snap.Loser,
	)

	attackers := make([]string, len(snap.Attackers))
	for i, a := range snap.Attackers {
		attackers[i] = fmt.Sprint(a)
	}
	buf.WriteString("ATTACKERS:")
	buf.WriteString(strings.Join(attackers, ","))
	buf.WriteString("\n")

	buf.WriteString("BLOCKING:")
	blocks := make([]string, 0, len(snap.Blocking))
	for _, b := range sortedKeys(snap.Blocking) {
		blocks = append(blocks, fmt.Sprintf("%d>%d", b, snap.Blocking[b]))
	}
	buf.WriteString(strings.Join(blocks, ","))
	buf.WriteString("\n")

	for i, p := range snap.Players {
		fmt.Fprintf(&buf, "PLAYER:%d|%s|%d\n", i, p.Name, p.Life)
		for _, z := range AllZones {
			fmt.Fprintf(&buf, "  %s:%d\n", z, len(p.Zones[z]))
			for _, c := range p.Zones[z] {
				buf.WriteString("    ")
				buf.WriteString(c.canonical())
				buf.WriteString("\n")
			}
		}
	}

	return buf.String()
}

func (cs CardSnapshot) canonical() string {
	types := make([]string, len(cs.Types))
	for i, t := range cs.Types {
		types[i] = t.String()
	}
	out := fmt.Sprintf("%s|%d|%s", cs.Name, cs.Cost, strings.Join(types, "+"))
	if cs.Creature != nil {
		out += fmt.Sprintf("|%s=%d/%d/%t", card.FragmentCreature,
			cs.Creature.Power, cs.Creature.Toughness, cs.Creature.SummoningSickness)
	}
	if cs.Tappable != nil {
		out += fmt.Sprintf("|%s=%t", card.FragmentTappable, cs.Tappable.Tapped)
	}
	return out
}

// VerifyChecksum reports whether the snapshot still hashes to expected.
func (snap *Snapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := snap.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}

	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes encodes the snapshot with gob. Replay files use this form.
func (snap *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromBytes decodes a gob-encoded snapshot.
func DeserializeFromBytes(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// MarshalSnapshotJSON encodes the snapshot as JSON for the HTTP API and the
// stores.
func MarshalSnapshotJSON(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshotJSON decodes a JSON snapshot.
func UnmarshalSnapshotJSON(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// ValidateSerializationRoundtrip checks that gob and JSON encodings both
// reproduce the snapshot's checksum.
func ValidateSerializationRoundtrip(snap *Snapshot) error {
	original, err := snap.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}

	data, err := snap.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	fromGob, err := DeserializeFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	if ok, err := fromGob.VerifyChecksum(original); err != nil || !ok {
		return fmt.Errorf("gob checksum mismatch: original=%s", original.Hash)
	}

	data, err = MarshalSnapshotJSON(snap)
	if err != nil {
		return err
	}
	fromJSON, err := UnmarshalSnapshotJSON(data)
	if err != nil {
		return err
	}
	if ok, err := fromJSON.VerifyChecksum(original); err != nil || !ok {
		return fmt.Errorf("json checksum mismatch: original=%s", original.Hash)
	}

	return nil
}
