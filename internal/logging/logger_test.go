package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/oneonone-bot/internal/config"
	"github.com/Rrens/oneonone-bot/internal/logging"
)

func TestSetup_Level(t *testing.T) {
	closer, err := logging.Setup(config.LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	closer, err = logging.Setup(config.LoggingConfig{Level: "nonsense"})
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")

	closer, err := logging.Setup(config.LoggingConfig{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	log.Info().Str("user_id", "u1").Msg("Session started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Session started")
}
