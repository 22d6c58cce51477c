package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewWritesJSONWithSessionFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := New("debug", path)
	require.NoError(t, err)

	l.Named("session").WithSession("u1", "c1").Info("reply finished", zap.String("outcome", "completed"))
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "session", entry["logger"])
	assert.Equal(t, "reply finished", entry["msg"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "c1", entry["conversation_id"])
	assert.Equal(t, "completed", entry["outcome"])
}

func TestOrGlobal(t *testing.T) {
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	nop := NewNop()
	SetGlobal(nop)
	assert.Same(t, nop, OrGlobal(nil))

	other := NewNop()
	assert.Same(t, other, OrGlobal(other))
}
