package log

import (
	"bytes"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGologLogger(t *testing.T) {
	logger := NewGologLogger(golog.New())

	assert.NotNil(t, logger)
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}

func TestGologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewGologLoggerWithLevel(LogLevelWarn)
	logger.SetOutput(&buf)

	logger.Debug("debug %d", 1)
	logger.Info("info %d", 2)
	logger.Warn("loader skipped %s", "page-3")
	logger.Error("store failed: %v", "boom")

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "loader skipped page-3")
	assert.Contains(t, out, "store failed: boom")
}

func TestGologLogger_None(t *testing.T) {
	var buf bytes.Buffer
	logger := NewGologLoggerWithLevel(LogLevelNone)
	logger.SetOutput(&buf)

	logger.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"":        LogLevelInfo,
		"INFO":    LogLevelInfo,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"off":     LogLevelNone,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestDefaultLoggerSwap(t *testing.T) {
	prev := GetDefaultLogger()
	defer SetDefaultLogger(prev)

	var buf bytes.Buffer
	logger := NewGologLoggerWithLevel(LogLevelDebug)
	logger.SetOutput(&buf)
	SetDefaultLogger(logger)
	Info("indexed %d chunks", 63)
	assert.Contains(t, buf.String(), "indexed 63 chunks")
	assert.Contains(t, buf.String(), "[ragagents]")

	SetDefaultLogger(nil)
	assert.IsType(t, &NoOpLogger{}, GetDefaultLogger())
	assert.Equal(t, GetDefaultLogger(), OrDefault(nil))
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "UNKNOWN(9)", LogLevel(9).String())
}
