package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json"}, &buf)
	l.Info().Str("route", "sandbox").Msg("Relay started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "sandbox", entry["route"])
	assert.Equal(t, "Relay started", entry["message"])
}

func TestNewConsoleHasNoColorForBuffers(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "console"}, &buf)
	l.Warn().Msg("Queue full")

	assert.Contains(t, buf.String(), "Queue full")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestWriterFor(t *testing.T) {
	assert.Equal(t, os.Stdout, writerFor(Config{Output: "stdout"}))
	assert.Equal(t, os.Stderr, writerFor(Config{Output: "stderr"}))

	path := filepath.Join(t.TempDir(), "relay.log")
	w := writerFor(Config{Output: path, MaxSize: 1})
	lj, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, lj.Filename)

	_, err := lj.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, lj.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}
