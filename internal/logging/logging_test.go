package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	logger := NewLogger(Config{Level: "debug", Output: path})
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	componentLogger := Component(logger, "test")
	componentLogger.Info().Msg("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"component":"test"`) {
		t.Fatalf("component field missing: %s", data)
	}
}

func TestNewLoggerUnknownLevelDefaultsToInfo(t *testing.T) {
	logger := NewLogger(Config{Level: "loud", Output: filepath.Join(t.TempDir(), "x.log")})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", logger.GetLevel())
	}
}
