package sim

import "strings"

// Command is a console driver instruction.
type Command int

const (
	CommandInvalid Command = iota
	CommandStepPhase
	CommandStepTurn
	CommandRunGame
	CommandRunDeck
	CommandRunAll
	CommandQuit
)

var commandNames = map[Command]string{
	CommandInvalid:   "INVALID",
	CommandStepPhase: "STEP_PHASE",
	CommandStepTurn:  "STEP_TURN",
	CommandRunGame:   "RUN_GAME",
	CommandRunDeck:   "RUN_DECK",
	CommandRunAll:    "RUN_ALL",
	CommandQuit:      "QUIT",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "INVALID"
}

// ParseCommand maps console input to a command. Input is trimmed and
// case-insensitive.
func ParseCommand(input string) Command {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "s":
		return CommandStepPhase
	case "t":
		return CommandStepTurn
	case "g":
		return CommandRunGame
	case "d":
		return CommandRunDeck
	case "r":
		return CommandRunAll
	case "q":
		return CommandQuit
	default:
		return CommandInvalid
	}
}

// Help lists the console commands.
const Help = `Commands:
  s  -> step one phase
  t  -> step one whole turn
  g  -> run the current game to completion
  d  -> run the simulation to completion for the current deck
  r  -> run the whole simulation to completion (all decks)
  q  -> quit`
