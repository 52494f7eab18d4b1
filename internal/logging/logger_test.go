package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerValidatesConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")
}

func TestNewLoggerRequiresAnOutput(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLoggerAppliesLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = zapcore.WarnLevel
	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	assert.True(t, logger.Enabled(zapcore.WarnLevel))
	assert.False(t, logger.Enabled(zapcore.InfoLevel))
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"trace", TraceLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := LevelFromString(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTestLoggerObservation(t *testing.T) {
	tl := NewTestLogger()
	tl.Underlying().Info("mounted workspace", zap.String("target", "/tmp/t"))

	tl.AssertLogged(t, zapcore.InfoLevel, "mounted workspace")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "mounted workspace")
	assert.Equal(t, 1, tl.FilterMessage("mounted workspace").Len())

	tl.Reset()
	assert.Empty(t, tl.All())
}

func TestNamedAndWithKeepConfig(t *testing.T) {
	tl := NewTestLogger()
	child := tl.Named("mount").With(zap.String("target", "/tmp/t"))
	child.Underlying().Info("hello")

	entries := tl.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "mount", entries[0].LoggerName)
}
