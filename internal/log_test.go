package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LogLevelWarn)

	logger.Info("hidden %d", 1)
	logger.Debug("hidden")
	logger.Warn("shown %s", "warn")
	logger.Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn")
	assert.Contains(t, out, "[ERROR] shown error")
	assert.True(t, logger.Enabled(LogLevelWarn))
	assert.False(t, logger.Enabled(LogLevelInfo))
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LogLevelTrace).With("bootstrap")

	logger.Trace("round %d", 3)
	assert.Contains(t, buf.String(), "[TRACE] [bootstrap] round 3")
	assert.Equal(t, LogLevelTrace, logger.GetLevel())
}

func TestNilLoggerIsSilent(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() { logger.Error("nothing") })
	assert.False(t, logger.Enabled(LogLevelError))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"error": LogLevelError,
		"WARN":  LogLevelWarn,
		"":      LogLevelInfo,
		"Debug": LogLevelDebug,
		"TRACE": LogLevelTrace,
	}
	for in, expected := range tests {
		level, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, level, in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}
