package log_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/intelicar/pkg/log"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNamedLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	p := log.NewZerologProviderWithWriter(&buf, log.DebugLevel)

	logger := p.GetLoggerWithName("tabular").With(log.ComponentKey, "predictor")
	logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, 120,
		log.ErrorKey, fmt.Errorf("boom"),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "Training completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "tabular", entry["logger"])
	assert.Equal(t, "predictor", entry["component"])
	assert.Equal(t, "fit", entry["operation"])
	assert.EqualValues(t, 120, entry["samples"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	p := log.NewZerologProviderWithWriter(&buf, log.WarnLevel)
	logger := p.GetLogger()

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown too")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])

	buf.Reset()
	p.SetLevel(log.DebugLevel)
	p.GetLogger().Debug("now visible")
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestOddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	p := log.NewZerologProviderWithWriter(&buf, log.InfoLevel)
	p.GetLogger().Info("dangling", "key", "value", "orphan")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "value", lines[0]["key"])
	assert.Equal(t, "orphan", lines[0]["extra"])
}

func TestToLogLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		"INFO":    log.InfoLevel,
		"warning": log.WarnLevel,
		"error":   log.ErrorLevel,
		"off":     log.Disabled,
		"bogus":   log.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, log.ToLogLevel(in), in)
	}
}

func TestGlobalProvider(t *testing.T) {
	var buf bytes.Buffer
	log.SetProvider(log.NewZerologProviderWithWriter(&buf, log.InfoLevel))
	defer log.SetupLogger("info")

	log.LogError(fmt.Errorf("disk full"), "Failed to save model", log.PathKey, "/tmp/m")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "disk full", lines[0]["error"])
	assert.Equal(t, "/tmp/m", lines[0]["path"])
}
