package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/tcgsim/tcgsim-go/internal/config"
)

func TestLevel(t *testing.T) {
	cases := []struct {
		level, verbosity string
		expected         zapcore.Level
	}{
		{"info", "normal", zapcore.InfoLevel},
		{"warn", "normal", zapcore.WarnLevel},
		{"bogus", "normal", zapcore.InfoLevel},
		{"info", "error", zapcore.ErrorLevel},
		{"debug", "warning", zapcore.WarnLevel},
		{"info", "verbose", zapcore.DebugLevel},
		{"error", "very_verbose", zapcore.DebugLevel},
	}
	for _, c := range cases {
		got := Level(config.LoggingConfig{Level: c.level, Verbosity: c.verbosity})
		assert.Equal(t, c.expected, got, "%s/%s", c.level, c.verbosity)
	}
}

func TestNew(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "json", Verbosity: "normal"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New(config.LoggingConfig{Level: "info", Format: "console", Verbosity: "error"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestMatchLogger(t *testing.T) {
	base := zaptest.NewLogger(t)

	quiet := MatchLogger(base, config.VerbosityVerbose)
	assert.False(t, quiet.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, quiet.Core().Enabled(zapcore.InfoLevel))

	loud := MatchLogger(base, config.VerbosityVeryVerbose)
	assert.True(t, loud.Core().Enabled(zapcore.DebugLevel))

	assert.NotNil(t, MatchLogger(nil, config.VerbosityNormal))
}
