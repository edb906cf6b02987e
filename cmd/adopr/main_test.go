package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/J03Fr0st/ado-pr-review/internal/sanitize"
)

func TestSetupLogging_Level(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	ctx := context.Background()

	setupLogging(false)
	assert.False(t, slog.Default().Enabled(ctx, slog.LevelDebug))
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelInfo))

	setupLogging(true)
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelDebug))
}

func TestSetupLogging_InstallsSanitizingHandler(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	setupLogging(false)
	_, ok := slog.Default().Handler().(*sanitize.LogHandler)
	assert.True(t, ok, "default logger must redact secrets")
}

func TestVerboseFlagReachesPreRun(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)
	defer func() { verbose = false }()

	// Parse the persistent flag the way cobra would for "--verbose=true",
	// a form the old os.Args scan missed.
	require.NoError(t, rootCmd.PersistentFlags().Parse([]string{"--verbose=true"}))
	rootCmd.PersistentPreRun(rootCmd, nil)

	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}
