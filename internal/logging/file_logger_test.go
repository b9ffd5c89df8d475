package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readEntries(t *testing.T, path string) []LogEntry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	var entries []LogEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to parse log entry %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestFileLogger_WritesJSONLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "run.log")

	logger, err := NewFileLogger(FileLoggerConfig{FilePath: logPath, Level: DEBUG})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	logger.Debug("scan started", F("root", "/data/in"))
	logger.Info("upload finished", F("modified", 3))
	logger.Warn("upload rejected")
	logger.Error("timeout", F("final", true))

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	entries := readEntries(t, logPath)
	if len(entries) != 4 {
		t.Fatalf("Expected 4 log entries, got %d", len(entries))
	}
	if entries[0].Level != "DEBUG" || entries[0].Message != "scan started" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[0].Fields["root"] != "/data/in" {
		t.Errorf("Fields[root] = %v", entries[0].Fields["root"])
	}
	if entries[2].Fields != nil {
		t.Errorf("expected no fields on entry without fields, got %v", entries[2].Fields)
	}
}

func TestFileLogger_LevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")

	logger, err := NewFileLogger(FileLoggerConfig{FilePath: logPath, Level: WARN})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.SetLevel(ERROR)
	logger.Warn("filtered after SetLevel")
	logger.Error("error message")
	logger.Close()

	if got := len(readEntries(t, logPath)); got != 2 {
		t.Errorf("Expected 2 log entries, got %d", got)
	}
}

func TestFileLogger_TraceIDSharesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")

	logger, err := NewFileLogger(FileLoggerConfig{FilePath: logPath, Level: INFO})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	logger.WithTraceID("trace-123-456").Info("explicit")
	ctx := ContextWithTraceID(context.Background(), "ctx-trace-789")
	logger.WithContext(ctx).Info("from context")
	logger.Close()

	entries := readEntries(t, logPath)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	if entries[0].TraceID != "trace-123-456" {
		t.Errorf("TraceID = %q", entries[0].TraceID)
	}
	if entries[1].TraceID != "ctx-trace-789" {
		t.Errorf("TraceID = %q", entries[1].TraceID)
	}
}

func TestFileLogger_Redaction(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")

	logger, err := NewFileLogger(FileLoggerConfig{FilePath: logPath, Level: INFO, RedactSensitive: true})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	logger.Info("sending Authorization: Bearer abc123", F("body", `{"password":"s3cret"}`))
	logger.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "abc123") || strings.Contains(string(data), "s3cret") {
		t.Errorf("secret written to log: %s", data)
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "run.log")

	logger, err := NewFileLogger(FileLoggerConfig{
		FilePath:      logPath,
		Level:         INFO,
		MaxFileSize:   100,
		RotateEnabled: true,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		logger.Info("This is a test message that should trigger rotation")
		time.Sleep(2 * time.Millisecond)
	}
	logger.Close()

	files, err := filepath.Glob(filepath.Join(tempDir, "run.log*"))
	if err != nil {
		t.Fatalf("Failed to glob log files: %v", err)
	}
	if len(files) < 2 {
		t.Errorf("Expected at least 2 log files (original + rotated), got %d", len(files))
	}
}
