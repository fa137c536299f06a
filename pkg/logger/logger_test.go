package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("gportal", &Config{Level: "info", Format: "json"}, &buf)

	log.Info("Routing item", "item", 0, "output", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Routing item", entry["msg"])
	assert.Equal(t, "gportal", entry["service"])
	assert.Equal(t, float64(1), entry["output"])
}

func TestLoggerLevel(t *testing.T) {
	t.Run("debug suppressed at info", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("svc", &Config{Level: "info"}, &buf)
		log.Debug("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("SetLevel enables debug", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("svc", &Config{Level: "info"}, &buf)
		log.SetLevel("debug")
		log.Debug("shown")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("With shares level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("svc", &Config{Level: "error"}, &buf)
		child := log.With("node", "jumper")
		log.SetLevel("info")
		child.Info("routed")
		assert.Contains(t, buf.String(), `"node":"jumper"`)
	})
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("svc", &Config{Level: "info", Format: "text"}, &buf)
	log.Info("hello", "key", "value")
	assert.Contains(t, buf.String(), "key=value")
}

func TestWithContextWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("svc", nil, &buf)
	log.WithContext(context.Background()).Info("plain")
	assert.NotContains(t, buf.String(), "trace_id")
}
