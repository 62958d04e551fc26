package rules

import "fmt"

// Phase is one stage of a player-turn.
type Phase int

const (
	PhaseStartTurn Phase = iota
	PhaseUntap
	PhaseUpkeep
	PhaseDraw
	PhaseMain
	PhaseDeclareAttackers
	PhaseDeclareBlockers
	PhaseAssignDamage
	PhaseEndTurn
	PhaseGameOver
)

var phaseNames = map[Phase]string{
	PhaseStartTurn:        "START_TURN",
	PhaseUntap:            "UNTAP",
	PhaseUpkeep:           "UPKEEP",
	PhaseDraw:             "DRAW",
	PhaseMain:             "MAIN",
	PhaseDeclareAttackers: "DECLARE_ATTACKERS",
	PhaseDeclareBlockers:  "DECLARE_BLOCKERS",
	PhaseAssignDamage:     "ASSIGN_DAMAGE",
	PhaseEndTurn:          "END_TURN",
	PhaseGameOver:         "GAME_OVER",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// ParsePhase converts a phase name back into a Phase.
func ParsePhase(name string) (Phase, error) {
	for p, n := range phaseNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// turnSequence is the fixed per-player-turn order. GameOver is not part of the
// cycle; it is entered only from Draw or AssignDamage.
var turnSequence = []Phase{
	PhaseStartTurn,
	PhaseUntap,
	PhaseUpkeep,
	PhaseDraw,
	PhaseMain,
	PhaseDeclareAttackers,
	PhaseDeclareBlockers,
	PhaseAssignDamage,
	PhaseEndTurn,
}

// Sequence returns a copy of the per-turn phase order.
func Sequence() []Phase {
	out := make([]Phase, len(turnSequence))
	copy(out, turnSequence)
	return out
}

// Next returns the phase that follows p in the cycle. EndTurn wraps to
// StartTurn and GameOver is absorbing.
func Next(p Phase) Phase {
	if p == PhaseGameOver {
		return PhaseGameOver
	}
	for i, entry := range turnSequence {
		if entry == p {
			return turnSequence[(i+1)%len(turnSequence)]
		}
	}
	return PhaseGameOver
}

// IsDecisionPoint reports whether p suspends for external input when the
// match is not auto-playing.
func IsDecisionPoint(p Phase) bool {
	switch p {
	case PhaseMain, PhaseDeclareAttackers, PhaseDeclareBlockers:
		return true
	default:
		return false
	}
}
