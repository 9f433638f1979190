package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("json: %v %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("empty: %v %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil || parsed != level {
			t.Errorf("LevelString(%v) does not round trip", level)
		}
	}
}

func TestJSONOutputRedactsTypedText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{
		Level:     LevelDebug,
		Format:    FormatJSON,
		Writer:    &buf,
		Component: "engine",
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Debug("auto-restore", "rendered", "tẽt", "literal", "text", "scheme", "telex")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if entry["rendered"] != "[REDACTED]" || entry["literal"] != "[REDACTED]" {
		t.Errorf("typed text leaked: %v", entry)
	}
	if entry["scheme"] != "telex" || entry["component"] != "engine" {
		t.Errorf("unexpected attributes: %v", entry)
	}
}

func TestLogTextKeepsTypedText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Writer: &buf, LogText: true})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("commit", "text", "việt")
	if !strings.Contains(buf.String(), "text=việt") {
		t.Errorf("expected text in %q", buf.String())
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelWarn, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("level filter failed: %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.WithComponent("ibus").Info("started")
	if !strings.Contains(buf.String(), "component=ibus") {
		t.Errorf("component missing: %q", buf.String())
	}
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "vnime.log")
	logger, err := New(&Config{Level: LevelInfo, Output: "file", FilePath: logPath, MaxSize: 1})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("hello")
	if err := logger.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "msg=hello") {
		t.Errorf("log file content %q", data)
	}
}

func TestFileRotatorRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSize:    1,
		MaxBackups: 3,
	})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	chunk := bytes.Repeat([]byte("x"), 64*1024)
	for i := 0; i < 20; i++ {
		n, err := rotator.Write(chunk)
		if err != nil || n != len(chunk) {
			t.Fatalf("write %d: n=%d err=%v", i, n, err)
		}
	}
	if err := rotator.Close(); err != nil {
		t.Fatal(err)
	}

	files, err := rotator.GetLogFiles()
	if err != nil {
		t.Fatalf("failed to get log files: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected current + 1 rotated file, got %v", files)
	}
}

func TestFileRotatorCompressAndPrune(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")
	cfg := &Config{FilePath: logPath, MaxSize: 1, MaxBackups: 1, Compress: true}

	for round := 0; round < 3; round++ {
		rotator, err := NewFileRotator(cfg)
		if err != nil {
			t.Fatal(err)
		}
		rotator.Write(bytes.Repeat([]byte("y"), 1024*1024))
		rotator.Write([]byte("next\n"))
		rotator.Close()
	}

	gz, _ := filepath.Glob(filepath.Join(dir, "test.log.*"))
	if len(gz) != 1 || filepath.Base(gz[0]) != "test.log.1.gz" {
		t.Errorf("expected only test.log.1.gz after pruning, got %v", gz)
	}
}

func TestCrashHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(&Config{Level: LevelInfo, Writer: &buf})
	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:  t.TempDir(),
		Version:   "1.0.0",
		Component: "test",
		Logger:    logger.Logger,
	})

	handler.HandlePanic("test panic value", map[string]string{"context": "ctx-1"})

	reports, err := handler.GetCrashReports()
	if err != nil {
		t.Fatalf("failed to get crash reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	report := reports[0]
	if report.PanicValue != "test panic value" || report.Version != "1.0.0" || report.Component != "test" {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Context["context"] != "ctx-1" {
		t.Errorf("context lost: %v", report.Context)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("panic not logged: %q", buf.String())
	}
}

func TestCrashHandlerRecovery(t *testing.T) {
	handler := NewCrashHandler(&CrashHandlerConfig{CrashDir: t.TempDir(), Component: "test"})

	ran := false
	handler.Recover(func() {
		ran = true
		panic("intentional test panic")
	})
	if !ran {
		t.Error("function did not run")
	}

	handler.HandlePanic("second", nil)
	reports, _ := handler.GetCrashReports()
	if len(reports) != 2 {
		t.Errorf("expected 2 reports, got %d", len(reports))
	}

	time.Sleep(10 * time.Millisecond)
	if err := handler.CleanupOldCrashReports(time.Millisecond); err != nil {
		t.Errorf("CleanupOldCrashReports failed: %v", err)
	}
	reports, _ = handler.GetCrashReports()
	if len(reports) != 0 {
		t.Errorf("expected cleanup to remove reports, got %d", len(reports))
	}
}
