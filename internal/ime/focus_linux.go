//go:build linux

package ime

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// FocusInfo contains information about the focused window.
type FocusInfo struct {
	AppID       string
	WindowTitle string
	WindowClass string
	PID         int
}

// FocusTracker identifies the focused application so per-application input
// methods can be applied.
type FocusTracker struct {
	isWayland bool
	run       func(name string, args ...string) ([]byte, error)
}

// NewFocusTracker creates a focus tracker for the current display server.
func NewFocusTracker() *FocusTracker {
	return &FocusTracker{
		isWayland: os.Getenv("WAYLAND_DISPLAY") != "",
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
	}
}

// GetFocusInfo returns information about the currently focused window.
func (f *FocusTracker) GetFocusInfo() (*FocusInfo, error) {
	if f.isWayland {
		return f.waylandFocusInfo()
	}
	return f.x11FocusInfo()
}

func (f *FocusTracker) x11FocusInfo() (*FocusInfo, error) {
	out, err := f.run("xdotool", "getactivewindow", "getwindowclassname")
	if err != nil {
		return f.xpropFocusInfo()
	}
	windowClass := strings.TrimSpace(string(out))

	var pid int
	if out, err := f.run("xdotool", "getactivewindow", "getwindowpid"); err == nil {
		fmt.Sscanf(strings.TrimSpace(string(out)), "%d", &pid)
	}

	appID := appIDFromClass(windowClass)
	if appID == "" {
		appID = appIDFromPID(pid)
	}
	return &FocusInfo{AppID: appID, WindowClass: windowClass, PID: pid}, nil
}

// xpropFocusInfo is the fallback when xdotool is not installed.
func (f *FocusTracker) xpropFocusInfo() (*FocusInfo, error) {
	out, err := f.run("xprop", "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return nil, fmt.Errorf("xprop failed: %w", err)
	}
	parts := strings.Fields(string(out))
	if len(parts) < 5 {
		return nil, errors.New("could not parse window ID")
	}
	windowID := parts[len(parts)-1]

	classOut, _ := f.run("xprop", "-id", windowID, "WM_CLASS")
	windowClass := parseXpropString(string(classOut))
	return &FocusInfo{AppID: appIDFromClass(windowClass), WindowClass: windowClass}, nil
}

// parseXpropString extracts the string value from xprop output.
func parseXpropString(output string) string {
	idx := strings.Index(output, "=")
	if idx == -1 {
		return ""
	}
	value := strings.Trim(strings.TrimSpace(output[idx+1:]), "\"")
	// WM_CLASS format: "instance", "class"
	if parts := strings.Split(value, "\", \""); len(parts) > 1 {
		return strings.Trim(parts[1], "\"")
	}
	return value
}

func (f *FocusTracker) waylandFocusInfo() (*FocusInfo, error) {
	out, err := f.run("gdbus", "call", "--session",
		"--dest", "org.gnome.Shell",
		"--object-path", "/org/gnome/Shell",
		"--method", "org.gnome.Shell.Eval",
		"global.display.focus_window?.get_wm_class() || ''")
	if err == nil {
		if class := parseGnomeShellOutput(string(out)); class != "" {
			return &FocusInfo{AppID: appIDFromClass(class), WindowClass: class}, nil
		}
	}
	if app := os.Getenv("GIO_LAUNCHED_DESKTOP_FILE"); app != "" {
		return &FocusInfo{AppID: app}, nil
	}
	return nil, errors.New("focused application unknown")
}

// parseGnomeShellOutput parses the output from GNOME Shell Eval.
func parseGnomeShellOutput(output string) string {
	// Output format: (true, "'ClassName'")
	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "(true,") {
		return ""
	}
	start := strings.Index(output, "'")
	end := strings.LastIndex(output, "'")
	if start != -1 && end > start {
		return output[start+1 : end]
	}
	return ""
}

var classAppIDs = map[string]string{
	"Google-chrome":  "google-chrome",
	"Code":           "code",
	"Gnome-terminal": "gnome-terminal",
}

func appIDFromClass(windowClass string) string {
	if appID, ok := classAppIDs[windowClass]; ok {
		return appID
	}
	return strings.ToLower(windowClass)
}

func appIDFromPID(pid int) string {
	if pid <= 0 {
		return ""
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
