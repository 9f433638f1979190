package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// CrashReport represents information about a recovered panic.
type CrashReport struct {
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	GOOS       string            `json:"goos"`
	GOARCH     string            `json:"goarch"`
	PanicValue string            `json:"panic_value"`
	StackTrace string            `json:"stack_trace"`
	Component  string            `json:"component,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
}

// CrashHandler writes crash reports for panics recovered in long-running
// hosts, so a bug in one keystroke does not take the input method down.
type CrashHandler struct {
	mu        sync.Mutex
	crashDir  string
	version   string
	component string
	logger    *slog.Logger
	seq       int
}

// CrashHandlerConfig configures the crash handler.
type CrashHandlerConfig struct {
	CrashDir  string
	Version   string
	Component string
	Logger    *slog.Logger
}

// DefaultCrashDir returns the platform-specific default crash directory.
func DefaultCrashDir() string {
	switch runtime.GOOS {
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Logs", "DiagnosticReports", "vnime")
	default:
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			homeDir, _ := os.UserHomeDir()
			stateHome = filepath.Join(homeDir, ".local", "state")
		}
		return filepath.Join(stateHome, "vnime", "crashes")
	}
}

// NewCrashHandler creates a new CrashHandler.
func NewCrashHandler(cfg *CrashHandlerConfig) *CrashHandler {
	if cfg == nil {
		cfg = &CrashHandlerConfig{}
	}
	if cfg.CrashDir == "" {
		cfg.CrashDir = DefaultCrashDir()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CrashHandler{
		crashDir:  cfg.CrashDir,
		version:   cfg.Version,
		component: cfg.Component,
		logger:    logger,
	}
}

// Recover runs fn and reports a panic instead of propagating it.
func (h *CrashHandler) Recover(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.HandlePanic(r, nil)
		}
	}()
	fn()
}

// HandlePanic writes a crash report for panicValue.
func (h *CrashHandler) HandlePanic(panicValue any, contextInfo map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	report := CrashReport{
		Timestamp:  time.Now().UTC(),
		Version:    h.version,
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(debug.Stack()),
		Component:  h.component,
		Context:    contextInfo,
	}

	path, err := h.writeCrashDump(report)
	if err != nil {
		h.logger.Error("panic recovered, crash dump failed", "panic", report.PanicValue, "error", err)
		return
	}
	h.logger.Error("panic recovered", "panic", report.PanicValue, "report", path)
}

func (h *CrashHandler) writeCrashDump(report CrashReport) (string, error) {
	if err := os.MkdirAll(h.crashDir, 0750); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	h.seq++
	name := fmt.Sprintf("crash-%s-%s-%d.json",
		report.Component, report.Timestamp.Format("20060102-150405"), h.seq)
	path := filepath.Join(h.crashDir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// GetCrashReports returns the crash reports on disk.
func (h *CrashHandler) GetCrashReports() ([]CrashReport, error) {
	files, err := filepath.Glob(filepath.Join(h.crashDir, "crash-*.json"))
	if err != nil {
		return nil, err
	}

	reports := make([]CrashReport, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var report CrashReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// CleanupOldCrashReports removes crash reports older than maxAge.
func (h *CrashHandler) CleanupOldCrashReports(maxAge time.Duration) error {
	files, err := filepath.Glob(filepath.Join(h.crashDir, "crash-*.json"))
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
		}
	}
	return nil
}
