package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestInit(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")

	if err := Init(Config{ConfigDir: configDir}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	logDir := filepath.Join(configDir, "logs")
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		t.Errorf("Log directory was not created: %s", logDir)
	}
	if Logger == nil {
		t.Fatal("Logger is nil after initialization")
	}
	if Logger.GetLevel() != log.WarnLevel {
		t.Errorf("default level = %v, want warn", Logger.GetLevel())
	}

	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message", "habit_id", "abc")
	Error("Test error message")
}

func TestInitLevels(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want log.Level
	}{
		{name: "debug", cfg: Config{Debug: true}, want: log.DebugLevel},
		{name: "console", cfg: Config{Console: true}, want: log.InfoLevel},
		{name: "debug wins over console", cfg: Config{Debug: true, Console: true}, want: log.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ConfigDir = t.TempDir()
			if err := Init(tt.cfg); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if got := Logger.GetLevel(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogFunctionsWithoutInit(t *testing.T) {
	Logger = nil

	// These should not panic when Logger is nil
	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}

func TestJSONOutput(t *testing.T) {
	configDir := t.TempDir()
	if err := Init(Config{ConfigDir: configDir, JSON: true}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { Logger = nil })
	Warn("Strike logged", "habit_id", "pushups", "strike_count", 2)

	data, err := os.ReadFile(FilePath(configDir))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("log line is not JSON: %q: %v", line, err)
	}
	if rec["msg"] != "Strike logged" || rec["habit_id"] != "pushups" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestFilePath(t *testing.T) {
	got := FilePath("/etc/habitenforcer")
	want := filepath.Join("/etc/habitenforcer", "logs", "habitenforcer.log")
	if got != want {
		t.Errorf("FilePath = %q, want %q", got, want)
	}
}
