package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", "warn")

	logger.Info("dropped", "k", 1)
	logger.Warn("kept", "worker_id", "w1")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	require.Equal(t, "kept", record["msg"])
	require.Equal(t, "w1", record["worker_id"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "text", "debug").With("component", "hub").Debug("hello")

	require.Contains(t, buf.String(), "msg=hello")
	require.Contains(t, buf.String(), "component=hub")
}

func TestFormatKeyValues(t *testing.T) {
	require.Equal(t, "a=1 b=<missing>", formatKeyValues([]any{"a", 1, "b"}))
	require.Empty(t, formatKeyValues(nil))
}
