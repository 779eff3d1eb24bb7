package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workshop.log")

	logger, err := New("debug", path)
	assert.NilError(t, err)

	logger.With("team_id", 3).Debug("simulation started")
	assert.NilError(t, logger.Close())

	data, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(data), "simulation started"))
	assert.Assert(t, strings.Contains(string(data), "team_id=3"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, parseLevel("DEBUG"), slog.LevelDebug)
	assert.Equal(t, parseLevel("warning"), slog.LevelWarn)
	assert.Equal(t, parseLevel("error"), slog.LevelError)
	assert.Equal(t, parseLevel(""), slog.LevelInfo)
}
