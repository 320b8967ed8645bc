package slogcustom

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestHandlerWritesAttrsAndGroups(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := slog.New(NewCustomHandler(&buf, slog.LevelInfo))

	logger.With("component", "http").WithGroup("req").Info("handled", "status", 200)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INFO: handled")
	assert.Contains(t, out, "component=http")
	assert.Contains(t, out, "req.status=200")
	assert.NotContains(t, out, "hidden")
}
