package logging

import (
	"testing"

	"github.com/gramwatch/gramwatch/pkg/config"
)

func TestInitLogger(t *testing.T) {
	cfg := &config.LoggingConfig{
		Level:  "INFO",
		Format: "json",
	}

	err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	if Logger == nil {
		t.Fatal("Expected Logger to be set after InitLogger")
	}

	// Invalid level falls back to info instead of failing
	cfg.Level = "not-a-level"
	if err := InitLogger(cfg); err != nil {
		t.Errorf("Invalid level should fall back, got error: %v", err)
	}
}

func TestGetLoggerFallback(t *testing.T) {
	oldLogger := Logger
	defer func() { Logger = oldLogger }()

	Logger = nil
	if got := GetLogger(); got == nil {
		t.Fatal("GetLogger must never return nil")
	}
}

func TestWithComponent(t *testing.T) {
	logger := WithComponent("dispatcher")
	if logger == nil {
		t.Fatal("WithComponent returned nil")
	}
}
