package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Debug("debug message")
	assert.Zero(t, buf.Len(), "debug must be filtered at info level")

	logger.Info("info message")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "info message", entry["msg"])

	buf.Reset()
	logger.Error("error message")
	assert.Equal(t, "error", decodeLine(t, &buf)["level"])

	buf.Reset()
	NewLogger(ErrorLevel, &buf).Info("filtered")
	assert.Zero(t, buf.Len())
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("file", "a.ifc").
		WithFields(map[string]interface{}{"issues": 4, "project": "Neubau"}).
		WithError(errors.New("disk full")).
		Info("written")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "a.ifc", entry["file"])
	assert.Equal(t, float64(4), entry["issues"])
	assert.Equal(t, "Neubau", entry["project"])
	assert.Equal(t, "disk full", entry["error"])
}

func TestLogger_WithNilError(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	assert.Same(t, logger, logger.WithError(nil))
}

func TestLogger_EntrySharesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithField("component", "checker")

	logger.Entry().WithField("file", "a.ifc").Info("via entry")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "checker", entry["component"])
	assert.Equal(t, "a.ifc", entry["file"])
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{" Error ", ErrorLevel, false},
		{"trace", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "LEVEL(9)", LogLevel(9).String())
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}
