package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriterJSON(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	var buf bytes.Buffer
	InitWithWriter("production", &buf)
	Warn().Str("user_id", "abc").Msg("level drift")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "level drift", line["message"])
	assert.Equal(t, "abc", line["user_id"])
	assert.Equal(t, "barakah", line["service"])
}

func TestDefaultLoggerIsSilent(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, Log.GetLevel())
}
