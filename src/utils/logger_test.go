package utils_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"autoinvest/src/config"
	"autoinvest/src/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	logger, err := utils.NewLogger(config.LoggingConfig{Level: "warn", ToFile: true, FilePath: path})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.WithField("rule_id", "r-1").Warn("kept")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "r-1", entry["rule_id"])

	_, err = utils.NewLogger(config.LoggingConfig{ToFile: true, FilePath: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, utils.ParseLevel("debug"))
	assert.Equal(t, logrus.InfoLevel, utils.ParseLevel("loud"))
}

func TestLoggerFromContext(t *testing.T) {
	logger := logrus.New()
	ctx := utils.WithLogger(context.Background(), logger)
	assert.Same(t, logger, utils.LoggerFromContext(ctx))

	fallback := utils.LoggerFromContext(context.Background())
	require.NotNil(t, fallback)
	assert.Same(t, fallback, utils.LoggerFromContext(context.Background()))
}
