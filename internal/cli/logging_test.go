package cli

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewLoggerConsoleLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, closer := newLogger(buf, &RootOptions{})
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "k=v")

	buf.Reset()
	logger, closer = newLogger(buf, &RootOptions{Verbose: true})
	defer closer.Close()
	logger.Debug("now shown")
	assert.Contains(t, buf.String(), "now shown")
}

func TestNewLoggerFansOutToFile(t *testing.T) {
	buf := &bytes.Buffer{}
	path := filepath.Join(t.TempDir(), "run.log")
	logger, closer := newLogger(buf, &RootOptions{LogFile: path})

	logger.With("run", "r1").Debug("debug line")
	logger.Info("info line")
	require.NoError(t, closer.Close())

	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")

	data := readFile(t, path)
	assert.Contains(t, data, "debug line")
	assert.Contains(t, data, "run=r1")
	assert.Contains(t, data, "info line")
}

func TestNewLoggerFileRotationLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, closer := newLogger(&bytes.Buffer{}, &RootOptions{LogFile: path})
	defer closer.Close()

	tee, ok := logger.Handler().(teeHandler)
	require.True(t, ok)
	assert.True(t, tee.Enabled(context.Background(), slog.LevelDebug), "the file takes Debug")

	file, ok := closer.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, file.Filename)
	assert.Equal(t, logMaxSizeMB, file.MaxSize)
	assert.Equal(t, logMaxBackups, file.MaxBackups)
}
