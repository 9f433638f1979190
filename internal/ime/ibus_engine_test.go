//go:build linux

package ime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"vnime/internal/metrics"
)

type emitted struct {
	path dbus.ObjectPath
	name string
	args []interface{}
}

type fakeEmitter struct {
	mu      sync.Mutex
	signals []emitted
	err     error
}

func (f *fakeEmitter) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.signals = append(f.signals, emitted{path, name, values})
	return nil
}

func (f *fakeEmitter) take() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.signals
	f.signals = nil
	return out
}

type fakeFocus struct{ app string }

func (f fakeFocus) GetFocusInfo() (*FocusInfo, error) {
	if f.app == "" {
		return nil, errors.New("no focus")
	}
	return &FocusInfo{AppID: f.app}, nil
}

type fakePrefs map[string]int

func (p fakePrefs) AppMethod(app string) (int, bool, error) {
	m, ok := p[app]
	return m, ok, nil
}

type fakeSink struct {
	mu      sync.Mutex
	commits []string
}

func (s *fakeSink) RecordCommit(app, text string, restored bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, app+":"+text)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commits)
}

func commitText(t *testing.T, sig emitted) string {
	t.Helper()
	v, ok := sig.args[0].(dbus.Variant)
	if !ok {
		t.Fatalf("CommitText arg is %T", sig.args[0])
	}
	txt, ok := v.Value().(ibusText)
	if !ok {
		t.Fatalf("CommitText variant holds %T", v.Value())
	}
	return txt.Text
}

func press(t *testing.T, c *IBusContext, keyval uint32) bool {
	t.Helper()
	consumed, dErr := c.ProcessKeyEvent(keyval, 0, 0)
	if dErr != nil {
		t.Fatalf("ProcessKeyEvent: %v", dErr)
	}
	return consumed
}

// TestKeyvalToRune tests the X11 keysym to rune conversion.
func TestKeyvalToRune(t *testing.T) {
	tests := []struct {
		name   string
		keyval uint32
		want   rune
	}{
		{"space", 0x20, ' '},
		{"letter A", 0x41, 'A'},
		{"letter a", 0x61, 'a'},
		{"digit 9", 0x39, '9'},
		{"pound", 0xa3, '£'},
		{"unicode a-breve", 0x01000103, 'ă'},
		{"backspace", GDKBackSpace, 0},
		{"function key", 0xffbe, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keyvalToRune(tt.keyval); got != tt.want {
				t.Errorf("keyvalToRune(0x%x) = %q, want %q", tt.keyval, got, tt.want)
			}
		})
	}
}

func TestKeysymToKey(t *testing.T) {
	code, upper, ok := keysymToKey('A')
	if !ok || !upper || code != 0x00 {
		t.Errorf("A -> %v %v %v", code, upper, ok)
	}
	code, _, ok = keysymToKey(GDKBackSpace)
	if !ok || code != 0x33 {
		t.Errorf("BackSpace -> %v %v", code, ok)
	}
	if _, _, ok := keysymToKey(0xffbe); ok {
		t.Error("F1 should not map")
	}
	if !isModifierKeysym(0xffe1) || isModifierKeysym('a') {
		t.Error("modifier keysym classification")
	}
}

func TestIBusCommitWithSurroundingText(t *testing.T) {
	em := &fakeEmitter{}
	h := NewIBusHost(DefaultIBusConfig(), em)
	c := h.NewContext()
	c.SetCapabilities(IBusCapSurroundingText)

	if press(t, c, 'a') {
		t.Error("plain letter should pass through")
	}
	if len(em.take()) != 0 {
		t.Error("no signals expected for a plain letter")
	}

	if !press(t, c, 's') {
		t.Error("tone key should be consumed")
	}
	sigs := em.take()
	if len(sigs) != 2 {
		t.Fatalf("got %d signals, want 2", len(sigs))
	}
	if sigs[0].name != IBusEngineInterface+".DeleteSurroundingText" {
		t.Errorf("first signal = %s", sigs[0].name)
	}
	if sigs[0].args[0] != int32(-1) || sigs[0].args[1] != uint32(1) {
		t.Errorf("DeleteSurroundingText args = %v", sigs[0].args)
	}
	if got := commitText(t, sigs[1]); got != "á" {
		t.Errorf("committed %q", got)
	}
	if sigs[1].path != c.Path() {
		t.Errorf("signal path = %s", sigs[1].path)
	}
}

func TestIBusForwardsBackSpaceWithoutSurroundingText(t *testing.T) {
	em := &fakeEmitter{}
	h := NewIBusHost(DefaultIBusConfig(), em)
	c := h.NewContext()

	press(t, c, 'a')
	press(t, c, 'a')
	sigs := em.take()
	if len(sigs) != 3 {
		t.Fatalf("got %d signals, want press+release+commit", len(sigs))
	}
	for _, s := range sigs[:2] {
		if s.name != IBusEngineInterface+".ForwardKeyEvent" || s.args[0] != uint32(GDKBackSpace) {
			t.Errorf("unexpected signal %+v", s)
		}
	}
	if sigs[1].args[2] != IBusReleaseMask {
		t.Error("second forwarded event should be a release")
	}
	if got := commitText(t, sigs[2]); got != "â" {
		t.Errorf("committed %q", got)
	}
}

func TestIBusBoundaryRestoreForwardsKey(t *testing.T) {
	em := &fakeEmitter{}
	h := NewIBusHost(DefaultIBusConfig(), em)
	c := h.NewContext()
	c.SetCapabilities(IBusCapSurroundingText)

	for _, k := range "text" {
		press(t, c, uint32(k))
	}
	em.take()
	if press(t, c, GDKSpace) {
		t.Error("space must reach the client after the correction")
	}
	sigs := em.take()
	if len(sigs) != 2 || commitText(t, sigs[1]) != "ext" {
		t.Errorf("unexpected restore signals %+v", sigs)
	}
}

func TestIBusReleaseAndShortcuts(t *testing.T) {
	em := &fakeEmitter{}
	h := NewIBusHost(DefaultIBusConfig(), em)
	c := h.NewContext()

	press(t, c, 'a')
	if consumed, _ := c.ProcessKeyEvent('s', 0, IBusReleaseMask); consumed {
		t.Error("release events pass through")
	}
	if consumed, _ := c.ProcessKeyEvent('c', 0, IBusControlMask); consumed {
		t.Error("Ctrl+C passes through")
	}
	// Ctrl+C reset the composition, so s is a plain letter now.
	press(t, c, 's')
	if len(em.take()) != 0 {
		t.Error("no edit expected after reset")
	}
	if got := h.Stats().KeysProcessed; got != 3 {
		t.Errorf("KeysProcessed = %d", got)
	}
}

func TestIBusFocusAppliesAppMethod(t *testing.T) {
	em := &fakeEmitter{}
	cfg := DefaultIBusConfig()
	cfg.Focus = fakeFocus{app: "gnome-terminal"}
	cfg.Preferences = fakePrefs{"gnome-terminal": MethodVNI}
	h := NewIBusHost(cfg, em)
	c := h.NewContext()
	c.SetCapabilities(IBusCapSurroundingText)
	c.FocusIn()

	press(t, c, 'a')
	if !press(t, c, '1') {
		t.Error("VNI tone digit should be consumed")
	}
	sigs := em.take()
	if len(sigs) != 2 || commitText(t, sigs[1]) != "á" {
		t.Errorf("unexpected signals %+v", sigs)
	}
	if h.Stats().FocusChanges != 1 {
		t.Error("focus change not counted")
	}
}

func TestIBusPropertyActivate(t *testing.T) {
	h := NewIBusHost(DefaultIBusConfig(), &fakeEmitter{})
	c := h.NewContext()

	c.PropertyActivate(PropMethodVNI, 1)
	if h.sessions.Scheme() != VNI {
		t.Error("method not switched to VNI")
	}
	c.PropertyActivate(PropToggle, 1)
	if h.sessions.Enabled() {
		t.Error("toggle should disable")
	}
	if press(t, c, 'a') || press(t, c, '1') {
		t.Error("disabled engine consumes nothing")
	}
	c.PropertyActivate(PropMethodTelex, 1)
	if h.sessions.Scheme() != Telex {
		t.Error("method not switched to Telex")
	}
}

func TestIBusRecordsCommits(t *testing.T) {
	sink := &fakeSink{}
	cfg := DefaultIBusConfig()
	cfg.Commits = sink
	cfg.Focus = fakeFocus{app: "gedit"}
	h := NewIBusHost(cfg, &fakeEmitter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c := h.NewContext()
	c.FocusIn()
	for _, k := range "vieejt " {
		press(t, c, uint32(k))
	}

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.commits) != 1 || sink.commits[0] != "gedit:việt" {
		t.Errorf("commits = %v", sink.commits)
	}
}

func TestIBusEmitErrorPassesKey(t *testing.T) {
	em := &fakeEmitter{err: errors.New("bus gone")}
	h := NewIBusHost(DefaultIBusConfig(), em)
	c := h.NewContext()
	press(t, c, 'a')
	if press(t, c, 's') {
		t.Error("key must pass through when signals cannot be sent")
	}
}

func TestIBusFactory(t *testing.T) {
	h := NewIBusHost(DefaultIBusConfig(), &fakeEmitter{})
	f := &IBusFactory{host: h}

	path, dErr := f.CreateEngine(VnimeEngineName)
	if dErr != nil || path == "" {
		t.Fatalf("CreateEngine: %v %q", dErr, path)
	}
	if _, dErr := f.CreateEngine("other"); dErr == nil {
		t.Error("unknown engine name should fail")
	}
	h.mu.Lock()
	c := h.contexts[path]
	h.mu.Unlock()
	c.Destroy()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.contexts) != 0 {
		t.Error("Destroy should drop the context")
	}
}

func TestParseXpropString(t *testing.T) {
	tests := map[string]string{
		`WM_CLASS(STRING) = "gedit", "Gedit"`:  "Gedit",
		`WM_NAME(UTF8_STRING) = "Untitled 1"`: "Untitled 1",
		"garbage":                              "",
	}
	for in, want := range tests {
		if got := parseXpropString(in); got != want {
			t.Errorf("parseXpropString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseGnomeShellOutput(t *testing.T) {
	if got := parseGnomeShellOutput(`(true, "'firefox'")`); got != "firefox" {
		t.Errorf("got %q", got)
	}
	if got := parseGnomeShellOutput(`(false, "")`); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestFocusTrackerFallsBackToXprop(t *testing.T) {
	f := &FocusTracker{run: func(name string, args ...string) ([]byte, error) {
		switch {
		case name == "xdotool":
			return nil, errors.New("not installed")
		case name == "xprop" && args[0] == "-root":
			return []byte("_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007"), nil
		case name == "xprop":
			return []byte(`WM_CLASS(STRING) = "code", "Code"`), nil
		}
		return nil, errors.New("unexpected")
	}}
	info, err := f.GetFocusInfo()
	if err != nil {
		t.Fatalf("GetFocusInfo: %v", err)
	}
	if info.AppID != "code" || info.WindowClass != "Code" {
		t.Errorf("info = %+v", info)
	}
}

func TestIBusSurroundingTextDisabled(t *testing.T) {
	em := &fakeEmitter{}
	cfg := DefaultIBusConfig()
	cfg.NoSurroundingText = true
	c := NewIBusHost(cfg, em).NewContext()
	c.SetCapabilities(IBusCapSurroundingText)

	press(t, c, 'a')
	press(t, c, 's')
	sigs := em.take()
	if len(sigs) != 3 || sigs[0].name != IBusEngineInterface+".ForwardKeyEvent" {
		t.Errorf("expected forwarded BackSpace, got %+v", sigs)
	}
}

type panicEmitter struct{}

func (panicEmitter) Emit(dbus.ObjectPath, string, ...interface{}) error {
	panic("emit exploded")
}

func TestIBusRecoversFromPanic(t *testing.T) {
	var got any
	cfg := DefaultIBusConfig()
	cfg.OnPanic = func(v any, ctx map[string]string) { got = v }
	h := NewIBusHost(cfg, panicEmitter{})
	c := h.NewContext()

	press(t, c, 'a')
	if press(t, c, 'a') {
		t.Error("key should pass through after a panic")
	}
	if got != "emit exploded" {
		t.Errorf("OnPanic received %v", got)
	}
	if r := h.sessions.Rendering(c.id); r != "" {
		t.Errorf("composition not reset: %q", r)
	}
}

func TestIBusSharedMetrics(t *testing.T) {
	cfg := DefaultIBusConfig()
	cfg.Metrics = metrics.NewHostMetrics(nil)
	h := NewIBusHost(cfg, &fakeEmitter{})

	c := h.NewContext()
	other := h.NewContext()
	press(t, c, 'a')
	press(t, c, 's')
	press(t, c, ' ')

	m := h.Metrics()
	if m != cfg.Metrics {
		t.Fatal("host should use the configured metrics")
	}
	if m.Keys.Value() != 3 || m.Commits.Value() != 1 {
		t.Errorf("keys=%d commits=%d", m.Keys.Value(), m.Commits.Value())
	}
	if m.KeyLatency.Count() != 3 {
		t.Errorf("latency observations = %d, want 3", m.KeyLatency.Count())
	}
	if m.ContextsOpen.Value() != 2 {
		t.Errorf("open contexts = %d, want 2", m.ContextsOpen.Value())
	}
	other.Destroy()
	other.Destroy()
	if m.ContextsOpen.Value() != 1 || h.Stats().Contexts != 2 {
		t.Errorf("open=%d total=%d", m.ContextsOpen.Value(), h.Stats().Contexts)
	}
}
