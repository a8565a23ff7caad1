package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "recognition", "info", "json")

	log.WithField("user_id", 2).Info("log validated")
	log.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "log validated", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "recognition", line["service"])
	assert.EqualValues(t, 2, line["user_id"])
	assert.Contains(t, line, "timestamp")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "recognition", "debug", "text")

	log.Debug("scheduler tick")

	assert.Contains(t, buf.String(), "msg=\"scheduler tick\"")
	assert.Contains(t, buf.String(), "service=recognition")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"INFO", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "recognition", "info", "json")

	WithRequestID(log, "abc-123").Info("request")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "abc-123", line["request_id"])
	assert.Equal(t, log, WithRequestID(log, ""))
}
