package config

import (
	"fmt"
	"strings"
)

// Verbosity controls how much the simulation driver reports.
type Verbosity int

const (
	VerbosityError Verbosity = iota
	VerbosityWarning
	VerbosityNormal
	VerbosityVerbose
	VerbosityVeryVerbose
)

var verbosityNames = map[Verbosity]string{
	VerbosityError:       "error",
	VerbosityWarning:     "warning",
	VerbosityNormal:      "normal",
	VerbosityVerbose:     "verbose",
	VerbosityVeryVerbose: "very_verbose",
}

func (v Verbosity) String() string {
	if name, ok := verbosityNames[v]; ok {
		return name
	}
	return fmt.Sprintf("verbosity(%d)", int(v))
}

// ParseVerbosity accepts the names above; empty means normal.
func ParseVerbosity(name string) (Verbosity, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return VerbosityNormal, nil
	}
	for v, n := range verbosityNames {
		if n == name {
			return v, nil
		}
	}
	return VerbosityNormal, fmt.Errorf("unknown verbosity %q", name)
}

// ParsedVerbosity returns the parsed verbosity. Load has validated it.
func (c LoggingConfig) ParsedVerbosity() Verbosity {
	v, _ := ParseVerbosity(c.Verbosity)
	return v
}

// Allows reports whether a message at level should be shown.
func (v Verbosity) Allows(level Verbosity) bool {
	return level <= v
}
