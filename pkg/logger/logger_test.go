package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	require.Error(t, err)
}

func TestWriterEmitsTypedFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug")

	l.Warn("poll degraded",
		String("table", "b7"),
		Int("count", 50),
		Float64("price", 65000.5),
		Bool("degraded", true),
		Duration("took_ms", 1500*time.Millisecond),
		Error(errors.New("upstream status 500")),
	)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "warn", m["level"])
	assert.Equal(t, "poll degraded", m["message"])
	assert.Equal(t, "b7", m["table"])
	assert.EqualValues(t, 50, m["count"])
	assert.EqualValues(t, 65000.5, m["price"])
	assert.Equal(t, true, m["degraded"])
	assert.EqualValues(t, 1500, m["took_ms"])
	assert.Equal(t, "upstream status 500", m["error"])
}

func TestWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len())
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "info").With(String("component", "pipeline"))
	l.Info("tick")

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "pipeline", m["component"])
}
