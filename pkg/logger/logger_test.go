package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("production", &buf)
	l.Info().Str("conversation_id", "c1").Msg("sent")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "messaging", line["service"])
	assert.Equal(t, "c1", line["conversation_id"])
	assert.Equal(t, "sent", line["message"])
	assert.Contains(t, line, "time")
}

func TestNewWithWriterDevelopmentIsConsole(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("development", &buf)
	l.Warn().Msg("slow fetch")

	out := buf.String()
	assert.Contains(t, out, "slow fetch")
	assert.Contains(t, out, "WRN")
	assert.False(t, json.Valid(buf.Bytes()))
}
