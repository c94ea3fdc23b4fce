package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewLoggerLevelAndFormat(t *testing.T) {
	log, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(&config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, err := NewLogger(&config.LoggingConfig{
		Level:  "info",
		Output: "file",
		File:   config.FileConfig{Path: path, MaxSize: 1},
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("hello")
}

func TestNewLoggerOutputs(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		output string
		check  func(out interface{}) bool
	}{
		{"stdout", func(out interface{}) bool { return out == os.Stdout }},
		{"", func(out interface{}) bool { return out == os.Stdout }},
		{"stderr", func(out interface{}) bool { return out == os.Stderr }},
		{"file", func(out interface{}) bool { _, ok := out.(*lumberjack.Logger); return ok }},
		{"both", func(out interface{}) bool { _, ok := out.(*lumberjack.Logger); return !ok && out != os.Stdout }},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			log, err := NewLogger(&config.LoggingConfig{
				Level:  "info",
				Output: tt.output,
				File:   config.FileConfig{Path: filepath.Join(dir, tt.output, "app.log"), MaxSize: 1},
			})
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			if !tt.check(log.Out) {
				t.Errorf("output %q gave writer %T", tt.output, log.Out)
			}
		})
	}
}

func TestWithRequestFields(t *testing.T) {
	entry := WithRequest(Discard(), "req-1", "u1")
	if entry.Data["request_id"] != "req-1" || entry.Data["uid"] != "u1" {
		t.Fatalf("fields = %v", entry.Data)
	}
}
