package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

func TestLogger_IncludesStackAndServiceOnError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("legallens-test", &buf)
	log.Error().Stack().Err(errors.New("boom")).Msg("something failed")

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(lastLine(buf.String())), &payload))

	assert.Equal(t, "legallens-test", payload["service"])
	assert.Equal(t, "error", payload["level"])
	assert.Contains(t, payload, "stack")
}

func TestConfigure_Level(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	log := Configure(NewWithWriter("svc", &buf), "warn", "json")
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestConfigure_UnknownLevelFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	log := Configure(NewWithWriter("svc", &bytes.Buffer{}), "loud", "json")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
