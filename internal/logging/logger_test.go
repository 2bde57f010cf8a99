package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"grimm.is/lancfg/internal/clock"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  LevelDebug,
		Output: &buf,
		JSON:   true,
	})
	if logger == nil {
		t.Fatal("New logger should not be nil")
	}

	t.Run("Levels", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug msg")
		if !strings.Contains(buf.String(), "debug msg") {
			t.Error("debug logging failed")
		}

		buf.Reset()
		logger.Error("error msg")
		if !strings.Contains(buf.String(), "error msg") {
			t.Error("error logging failed")
		}
	})

	t.Run("DynamicLevel", func(t *testing.T) {
		logger.SetLevel(LevelError)
		if logger.GetLevel() != LevelError {
			t.Error("SetLevel failed")
		}

		buf.Reset()
		logger.Info("should not appear")
		if buf.Len() > 0 {
			t.Error("Logged info message when level was Error")
		}

		logger.SetLevel(LevelDebug)
	})

	t.Run("WithComponent", func(t *testing.T) {
		buf.Reset()
		logger.WithComponent("udev").Info("msg")
		if !strings.Contains(buf.String(), "udev") {
			t.Error("WithComponent missing component field")
		}
	})

	t.Run("Audit", func(t *testing.T) {
		restore := clock.Set(clock.NewMockClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
		defer restore()

		buf.Reset()
		logger.Audit("write", "ifcfg-eth0", map[string]any{"mode": "0600"})

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("audit output is not JSON: %v", err)
		}
		if entry["action"] != "write" || entry["resource"] != "ifcfg-eth0" {
			t.Errorf("unexpected audit entry: %v", entry)
		}
		if entry["timestamp"] != "2025-01-02T03:04:05Z" {
			t.Errorf("timestamp = %v", entry["timestamp"])
		}
	})
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Output: &buf})

	logger.WithComponent("LAN").Info("renamed device", "from", "eth0", "to", "lan 0")

	line := buf.String()
	if !strings.Contains(line, "[info] lan: renamed device") {
		t.Errorf("unexpected header: %q", line)
	}
	if !strings.Contains(line, `from=eth0`) || !strings.Contains(line, `to="lan 0"`) {
		t.Errorf("unexpected attributes: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Errorf("component should be promoted to the header: %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"", LevelInfo, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
