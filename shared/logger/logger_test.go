package logger

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{
			name: "json format",
			config: &Config{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
		},
		{
			name: "console format",
			config: &Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
		},
		{
			name: "with source enabled",
			config: &Config{
				Level:        "warn",
				Format:       "json",
				EnableSource: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			require.NoError(t, err)
			assert.NotNil(t, log)
			assert.NotNil(t, log.Logger)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("test message")

	assert.FileExists(t, path)
}

func TestNew_InvalidFilePath(t *testing.T) {
	_, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: filepath.Join(t.TempDir(), "missing", "app.log"),
	})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNewDefault(t *testing.T) {
	log := NewDefault()
	assert.NotNil(t, log)
}

func TestWith(t *testing.T) {
	log := NewDefault()

	child := log.With(slog.String("component", "test"))
	assert.NotNil(t, child)
	assert.NotSame(t, log, child)
}
