package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestColorHandlerFiltersAndRenders(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := slog.New(NewColorHandler(&buf, slog.LevelInfo)).With("session", "s-1")

	logger.Debug("hidden")
	logger.Info("quiz finished", "grade", 5)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO: quiz finished")
	assert.Contains(t, out, "session=s-1")
	assert.Contains(t, out, "grade=5")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
