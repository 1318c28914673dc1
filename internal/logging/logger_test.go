package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithSinkJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSink("info", FormatJSON, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Connection registered", zap.String("connectionId", "abc"))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "debug must be filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Connection registered", entry["msg"])
	assert.Equal(t, "abc", entry["connectionId"])
	assert.Contains(t, entry, "caller")
}

func TestNewWithSinkConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSink("debug", "", zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("Message relayed", zap.Int("recipients", 3))
	require.NoError(t, logger.Sync())

	assert.Contains(t, buf.String(), "Message relayed")
	assert.Contains(t, buf.String(), `"recipients": 3`)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("loud", FormatConsole)
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
