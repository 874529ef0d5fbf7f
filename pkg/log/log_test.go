package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Msg("hidden")
	Logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestContextLoggers(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	componentLogger := WithComponent("rest")
	componentLogger.Info().Msg("a")
	cseLogger := WithCse("cse1")
	cseLogger.Info().Msg("b")
	requestLogger := WithRequestID("rqi-1")
	requestLogger.Info().Msg("c")
	resourceLogger := WithResourceID("10001")
	resourceLogger.Info().Msg("d")

	var entries []map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var e map[string]any
		require.NoError(t, dec.Decode(&e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 4)
	assert.Equal(t, "rest", entries[0]["component"])
	assert.Equal(t, "cse1", entries[1]["cse"])
	assert.Equal(t, "rqi-1", entries[2]["request_id"])
	assert.Equal(t, "10001", entries[3]["resource_id"])
}
