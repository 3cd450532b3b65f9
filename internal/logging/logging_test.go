package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesKnownLevel(t *testing.T) {
	logger := New("warn", "json")
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestNewFallsBackToInfoOnUnknownLevel(t *testing.T) {
	logger := New("not-a-level", "json")
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
