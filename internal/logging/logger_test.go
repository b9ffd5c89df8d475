package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != INFO {
		t.Errorf("Expected Level=INFO, got %v", config.Level)
	}
	if !config.EnableConsole {
		t.Error("Expected EnableConsole=true")
	}
	if !config.RedactSensitive {
		t.Error("Expected RedactSensitive=true")
	}
	if config.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected MaxFileSize=104857600, got %v", config.MaxFileSize)
	}
}

func TestNewLogger_SelectsSink(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")

	tests := []struct {
		name   string
		config LogConfig
		check  func(Logger) bool
	}{
		{"console only", LogConfig{Level: INFO, EnableConsole: true}, func(l Logger) bool { _, ok := l.(*ConsoleLogger); return ok }},
		{"file only", LogConfig{Level: INFO, OutputFile: logPath}, func(l Logger) bool { _, ok := l.(*FileLogger); return ok }},
		{"both", LogConfig{Level: INFO, EnableConsole: true, OutputFile: logPath}, func(l Logger) bool { _, ok := l.(*MultiLogger); return ok }},
		{"neither", LogConfig{Level: INFO}, func(l Logger) bool { _, ok := l.(*NoOpLogger); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			t.Cleanup(func() { logger.Close() })

			if !tt.check(logger) {
				t.Errorf("unexpected logger type %T", logger)
			}
		})
	}
}

func TestNewLogger_InvalidPath(t *testing.T) {
	invalidPath := "/invalid/path/that/does/not/exist/test.log"
	if runtime.GOOS == "windows" {
		invalidPath = `Z:\nonexistent\path\test.log`
	}

	if _, err := NewLogger(LogConfig{Level: INFO, OutputFile: invalidPath}); err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"verbose": DEBUG,
		"normal":  INFO,
		"":        INFO,
		"WARN":    WARN,
		"quiet":   ERROR,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(ConsoleLoggerConfig{
		Writer:          &buf,
		Level:           DEBUG,
		RedactSensitive: true,
	})

	logger.Info("login body", F("body", `{"username":"admin","password":"hunter2"}`))
	logger.Info("upload header Authorization: Bearer abc.def.ghi")
	logger.Info("login response", F("raw", `{"success":true,"data":{"token":"tok-123"}}`))

	out := buf.String()
	for _, secret := range []string{"hunter2", "abc.def.ghi", "tok-123"} {
		if strings.Contains(out, secret) {
			t.Errorf("output leaked %q:\n%s", secret, out)
		}
	}
	if !strings.Contains(out, "admin") {
		t.Errorf("expected username to survive redaction:\n%s", out)
	}
}

func TestConsoleLogger_ShortTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(ConsoleLoggerConfig{Writer: &buf, Level: INFO})

	logger.WithTraceID("abc").Info("short")
	logger.WithTraceID("0123456789abcdef").Info("long")

	out := buf.String()
	if !strings.Contains(out, "[abc] short") {
		t.Errorf("missing short trace id: %s", out)
	}
	if !strings.Contains(out, "[01234567] long") {
		t.Errorf("long trace id not truncated: %s", out)
	}
}

func TestMultiLogger_FansOutAndFilters(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	multi := NewMultiLogger(
		NewConsoleLogger(ConsoleLoggerConfig{Writer: &buf1, Level: DEBUG}),
		NewConsoleLogger(ConsoleLoggerConfig{Writer: &buf2, Level: DEBUG}),
	)

	multi.Info("first")
	multi.SetLevel(ERROR)
	multi.Info("dropped")
	multi.Error("second")

	if buf1.String() != buf2.String() {
		t.Errorf("loggers diverged:\n%s\n%s", buf1.String(), buf2.String())
	}
	if strings.Contains(buf1.String(), "dropped") {
		t.Error("SetLevel was not propagated")
	}
	if !strings.Contains(buf1.String(), "second") {
		t.Error("error line missing")
	}
}

func TestMultiLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiLogger(NewConsoleLogger(ConsoleLoggerConfig{Writer: &buf, Level: INFO}))

	ctx := ContextWithTraceID(context.Background(), "run-42-trace")
	multi.WithContext(ctx).Info("traced")

	if !strings.Contains(buf.String(), "[run-42-t]") {
		t.Errorf("trace id missing: %s", buf.String())
	}
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context returned %q", got)
	}
}

func TestNewDebugLoggerWithTransport(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")

	logger, transport, err := NewDebugLoggerWithTransport(LogConfig{Level: DEBUG, OutputFile: logPath, EnableDebug: true})
	if err != nil {
		t.Fatalf("NewDebugLoggerWithTransport() error = %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	if transport == nil {
		t.Fatal("DebugTransport is nil")
	}

	logger2, transport2, err := NewDebugLoggerWithTransport(LogConfig{Level: INFO, EnableConsole: true})
	if err != nil {
		t.Fatalf("NewDebugLoggerWithTransport() error = %v", err)
	}
	t.Cleanup(func() { logger2.Close() })
	if transport2 != nil {
		t.Error("Expected nil DebugTransport when EnableDebug=false")
	}
}

func TestDebugTransport_LogsExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := NewConsoleLogger(ConsoleLoggerConfig{Writer: &buf, Level: DEBUG, RedactSensitive: true})
	client := &http.Client{Transport: NewDebugTransport(nil, logger)}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/admin/patent/import", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	out := buf.String()
	if !strings.Contains(out, "status=202") {
		t.Errorf("status not logged: %s", out)
	}
	if strings.Contains(out, "secret-token") {
		t.Errorf("token leaked: %s", out)
	}
}
