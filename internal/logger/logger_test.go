package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starter/internal/models"
	"starter/internal/version"
)

var testVersion = version.Info{Version: "1.2.3", GitCommit: "abc1234", BuildDate: "2026-02-21T10:00:00Z"}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  slog.Level
		expectErr bool
	}{
		{name: "debug", input: "debug", expected: slog.LevelDebug},
		{name: "info", input: "info", expected: slog.LevelInfo},
		{name: "warn", input: "warn", expected: slog.LevelWarn},
		{name: "error", input: "error", expected: slog.LevelError},
		{name: "uppercase", input: "DEBUG", expected: slog.LevelDebug},
		{name: "invalid", input: "invalid", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestSetup_StdStreams(t *testing.T) {
	for _, output := range []string{"stdout", "stderr"} {
		t.Run(output, func(t *testing.T) {
			cfg := models.LoggingConfig{Level: "info", Format: "json", Output: output}

			logger, closer, err := Setup(cfg, testVersion)
			require.NoError(t, err)
			assert.Nil(t, closer)
			assert.NotNil(t, logger)
		})
	}
}

func TestSetup_FileOutputIncludesVersion(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")
	cfg := models.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: logFile}

	logger, closer, err := Setup(cfg, testVersion)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()

	logger.Info("Rate limit exceeded", "limiter", "general")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "Rate limit exceeded", record["msg"])
	assert.Equal(t, "general", record["limiter"])
	assert.Equal(t, "1.2.3", record["version"])
	assert.Equal(t, "abc1234", record["git_commit"])
}

func TestSetup_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.LoggingConfig
	}{
		{"file without path", models.LoggingConfig{Level: "info", Format: "json", Output: "file"}},
		{"unwritable file", models.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: "/nonexistent/dir/test.log"}},
		{"invalid level", models.LoggingConfig{Level: "invalid", Format: "json", Output: "stdout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Setup(tt.cfg, testVersion)
			assert.Error(t, err)
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, models.LoggingConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)

	logger.Info("should not appear")
	logger.Warn("should appear")

	assert.NotContains(t, buf.String(), "should not appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestNew_ReplaceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, models.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	reset := time.Date(2024, 1, 1, 12, 15, 0, 0, time.FixedZone("CET", 3600))
	logger.Info("window", "window", 15*time.Minute, "reset_at", reset)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "15m0s", record["window"])
	assert.Equal(t, "2024-01-01T11:15:00Z", record["reset_at"])
}

func TestNew_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, models.LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)

	logger.Debug("sweep")
	assert.Contains(t, buf.String(), `"source"`)
}

func TestOpenWriter(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		filePath  string
		expectErr bool
	}{
		{name: "stdout", output: "stdout"},
		{name: "stderr", output: "stderr"},
		{name: "default fallback", output: "anything"},
		{name: "file missing path", output: "file", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, closer, err := openWriter(tt.output, tt.filePath)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, writer)
			if closer != nil {
				closer.Close()
			}
		})
	}
}
