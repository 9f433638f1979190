package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnime/internal/config"
	"vnime/internal/store"
)

func TestCmdType(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-method", "telex", "vieejt", "nam"}, "việt nam"},
		{[]string{"-method", "vni", "vie65t"}, "việt"},
		{[]string{"-method", "telex", "ab<"}, "a"},
		{[]string{"-method", "telex", "-no-restore", "text"}, "tẽt"},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		require.NoError(t, cmdType(&out, tt.args), "args %v", tt.args)
		assert.Equal(t, tt.want+"\n", out.String(), "args %v", tt.args)
	}
}

func TestCmdTypeTrace(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, cmdType(&out, []string{"-method", "telex", "-trace", "as"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "KEY"))
	assert.Contains(t, lines[2], `"á"`)
	assert.Equal(t, "á", lines[3])
}

func TestCmdTypeErrors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, cmdType(&out, []string{"-method", "viqr", "a"}))
	assert.Error(t, cmdType(&out, []string{"-method", "telex"}))
}

func TestPrintStats(t *testing.T) {
	var out bytes.Buffer
	printStats(&out, nil)
	assert.Contains(t, out.String(), "No words")

	out.Reset()
	printStats(&out, []store.DailyStat{
		{Day: "2026-10-14", App: "code", Commits: 3, Restores: 1, Chars: 12},
		{Day: "2026-10-13", App: "firefox", Commits: 2, Chars: 7},
	})
	s := out.String()
	assert.Contains(t, s, "firefox")
	assert.Regexp(t, `total\s+5\s+1\s+19`, s)
}

func TestPrintAppsConfigWins(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Apps = map[string]string{"code": "vni", "kitty": "telex"}

	var out bytes.Buffer
	printApps(&out, cfg, []store.AppMethod{
		{App: "code", Method: store.MethodTelex},
		{App: "firefox", Method: store.MethodVNI},
	})
	s := out.String()
	assert.Regexp(t, `code\s+vni\s+config`, s)
	assert.Regexp(t, `firefox\s+vni\s+remembered`, s)
	assert.Regexp(t, `kitty\s+telex\s+config`, s)
}

func TestCmdConfig(t *testing.T) {
	t.Setenv("VNIME_METHOD", "")
	old := *configPath
	*configPath = filepath.Join(t.TempDir(), "missing.toml")
	defer func() { *configPath = old }()

	var out bytes.Buffer
	require.NoError(t, cmdConfig(&out, []string{"-format", "json"}))
	assert.Contains(t, out.String(), `"method": "telex"`)

	assert.Error(t, cmdConfig(&out, []string{"-format", "ini"}))
}
