package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		logger := New(level, "production")
		assert.NotNil(t, logger, "level %q", level)
		assert.NotNil(t, logger.Logger, "level %q", level)
	}
}

func TestNewDevelopmentHandler(t *testing.T) {
	logger := New("debug", "development")
	assert.NotNil(t, logger)

	// Must not panic when logging through the text handler.
	logger.Debug("dev handler smoke test", "key", "value")
}

func TestDefault(t *testing.T) {
	logger := Default()
	assert.NotNil(t, logger)
	logger.Info("default logger smoke test")
}
