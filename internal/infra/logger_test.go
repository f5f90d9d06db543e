package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "api", "")
	logger.Info().Msg("ready")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["component"] != "api" || line["message"] != "ready" {
		t.Fatalf("unexpected log line %v", line)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %s, want info", logger.GetLevel())
	}
}

func TestNewLoggerLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "api", "warn")
	logger.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn, got %q", buf.String())
	}
	if newLogger(&buf, "development", "api", "").GetLevel() != zerolog.DebugLevel {
		t.Fatalf("development should default to debug")
	}
}
