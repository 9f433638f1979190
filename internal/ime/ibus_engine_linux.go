//go:build linux

package ime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"

	"vnime/internal/keys"
	"vnime/internal/metrics"
)

// IBus D-Bus constants
const (
	IBusFactoryPath      = "/org/freedesktop/IBus/Factory"
	IBusFactoryInterface = "org.freedesktop.IBus.Factory"
	IBusEngineInterface  = "org.freedesktop.IBus.Engine"
	IBusServiceInterface = "org.freedesktop.IBus.Service"
	VnimeBusName         = "org.freedesktop.IBus.Vnime"
	VnimeEngineName      = "vnime"
)

// IBus key event state masks
const (
	IBusShiftMask   uint32 = 1 << 0
	IBusLockMask    uint32 = 1 << 1
	IBusControlMask uint32 = 1 << 2
	IBusMod1Mask    uint32 = 1 << 3 // Alt
	IBusMod4Mask    uint32 = 1 << 6 // Super/Meta
	IBusReleaseMask uint32 = 1 << 30
)

// IBusCapSurroundingText is set by clients that accept DeleteSurroundingText.
const IBusCapSurroundingText uint32 = 1 << 5

// GDK key symbols the engine cares about
const (
	GDKBackSpace = 0xff08
	GDKTab       = 0xff09
	GDKReturn    = 0xff0d
	GDKEscape    = 0xff1b
	GDKHome      = 0xff50
	GDKLeft      = 0xff51
	GDKUp        = 0xff52
	GDKRight     = 0xff53
	GDKDown      = 0xff54
	GDKPageUp    = 0xff55
	GDKPageDown  = 0xff56
	GDKEnd       = 0xff57
	GDKKPEnter   = 0xff8d
	GDKDelete    = 0xffff
	GDKSpace     = 0x0020
)

// evdev keycode of BackSpace, used for forwarded key events.
const evdevBackSpace = 14

// Property names handled by PropertyActivate.
const (
	PropMethodTelex = "vnime.method.telex"
	PropMethodVNI   = "vnime.method.vni"
	PropToggle      = "vnime.toggle"
)

// SignalEmitter sends D-Bus signals. *dbus.Conn satisfies it.
type SignalEmitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// AppPreferences supplies remembered per-application methods.
type AppPreferences interface {
	AppMethod(app string) (method int, ok bool, err error)
}

// CommitSink receives finished words for statistics.
type CommitSink interface {
	RecordCommit(app, text string, restored bool) error
}

// FocusSource reports the focused application.
type FocusSource interface {
	GetFocusInfo() (*FocusInfo, error)
}

// IBusConfig configures the IBus host.
type IBusConfig struct {
	Method      int
	Enabled     bool
	AutoRestore bool

	// NoSurroundingText forces BackSpace forwarding even for clients
	// that advertise surrounding text support.
	NoSurroundingText bool

	Preferences AppPreferences
	Commits     CommitSink
	Focus       FocusSource
	Logger      *slog.Logger

	// Metrics receives host counters. Nil keeps a private set.
	Metrics *metrics.HostMetrics

	// OnPanic receives panics recovered while handling a key. The key is
	// then passed through to the client.
	OnPanic func(v any, context map[string]string)
}

// DefaultIBusConfig returns a Telex host with auto-restore and no persistence.
func DefaultIBusConfig() IBusConfig {
	return IBusConfig{
		Method:      MethodTelex,
		Enabled:     true,
		AutoRestore: true,
	}
}

// IBusEngineStats is a snapshot of the host counters.
type IBusEngineStats struct {
	KeysProcessed uint64
	KeysConsumed  uint64
	Commits       uint64
	Restores      uint64
	FocusChanges  uint64
	Contexts      uint64
}

type commitEvent struct {
	app    string
	commit Commit
}

// IBusHost bridges IBus input contexts to composition engines.
type IBusHost struct {
	conn     *dbus.Conn
	emitter  SignalEmitter
	sessions *Sessions
	config   IBusConfig
	logger   *slog.Logger

	mu       sync.Mutex
	contexts map[dbus.ObjectPath]*IBusContext
	nextID   uint32
	metrics  *metrics.HostMetrics

	focusApp atomic.Pointer[string]
	commits  chan commitEvent
}

// NewIBusHost creates a host that emits signals through emitter. Pass nil to
// have Start connect to the session bus.
func NewIBusHost(config IBusConfig, emitter SignalEmitter) *IBusHost {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := config.Metrics
	if m == nil {
		m = metrics.NewHostMetrics(nil)
	}
	h := &IBusHost{
		metrics:  m,
		emitter:  emitter,
		config:   config,
		logger:   logger,
		contexts: make(map[dbus.ObjectPath]*IBusContext),
		commits:  make(chan commitEvent, 64),
	}
	empty := ""
	h.focusApp.Store(&empty)
	h.sessions = NewSessions(
		WithLogger(logger),
		WithAutoRestore(config.AutoRestore),
		WithCommitObserver(h.observeCommit),
	)
	h.sessions.SetMethod(config.Method)
	h.sessions.SetEnabled(config.Enabled)
	return h
}

// Start connects to the session bus, claims the engine bus name and exports
// the factory. It returns once registration is complete; commit recording
// runs until ctx is cancelled.
func (h *IBusHost) Start(ctx context.Context) error {
	if h.emitter == nil {
		conn, err := dbus.SessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		h.conn = conn
		h.emitter = conn

		reply, err := conn.RequestName(VnimeBusName, dbus.NameFlagDoNotQueue)
		if err != nil {
			return fmt.Errorf("failed to request bus name: %w", err)
		}
		if reply != dbus.RequestNameReplyPrimaryOwner {
			return errors.New("bus name already taken")
		}
		if err := conn.Export(&IBusFactory{host: h}, IBusFactoryPath, IBusFactoryInterface); err != nil {
			return fmt.Errorf("failed to export factory: %w", err)
		}
	}

	go h.recordLoop(ctx)

	h.logger.Info("ibus engine started", "method", h.sessions.Scheme().String())
	return nil
}

// Stop closes the bus connection.
func (h *IBusHost) Stop() error {
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}

// ApplySettings updates method, enable state and auto-restore for every
// context, e.g. after a configuration reload.
func (h *IBusHost) ApplySettings(method int, enabled, autoRestore bool) {
	h.sessions.SetMethod(method)
	h.sessions.SetEnabled(enabled)
	h.sessions.SetAutoRestore(autoRestore)
	h.logger.Info("settings applied",
		"method", h.sessions.Scheme().String(),
		"enabled", enabled,
		"auto_restore", autoRestore)
}

// Stats returns host statistics.
func (h *IBusHost) Stats() IBusEngineStats {
	m := h.metrics
	return IBusEngineStats{
		KeysProcessed: m.Keys.Value(),
		KeysConsumed:  m.KeysConsumed.Value(),
		Commits:       m.Commits.Value(),
		Restores:      m.Restores.Value(),
		FocusChanges:  m.FocusChanges.Value(),
		Contexts:      m.ContextsTotal.Value(),
	}
}

// Metrics returns the host counters.
func (h *IBusHost) Metrics() *metrics.HostMetrics { return h.metrics }

// NewContext registers a new input context and returns it.
func (h *IBusHost) NewContext() *IBusContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.metrics.ContextsTotal.Inc()
	h.metrics.ContextsOpen.Inc()
	path := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/IBus/Engine/%d", h.nextID))
	c := &IBusContext{host: h, path: path, id: string(path)}
	h.contexts[path] = c
	return c
}

func (h *IBusHost) dropContext(c *IBusContext) {
	h.mu.Lock()
	if _, ok := h.contexts[c.path]; ok {
		delete(h.contexts, c.path)
		h.metrics.ContextsOpen.Dec()
	}
	h.mu.Unlock()
	h.sessions.Drop(c.id)
}

func (h *IBusHost) observeCommit(c Commit) {
	app := *h.focusApp.Load()
	h.metrics.Commits.Inc()
	if c.Restored {
		h.metrics.Restores.Inc()
	}
	select {
	case h.commits <- commitEvent{app: app, commit: c}:
	default:
		h.logger.Warn("commit queue full, dropping stats entry")
	}
}

func (h *IBusHost) recordLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.commits:
			if h.config.Commits == nil {
				continue
			}
			if err := h.config.Commits.RecordCommit(ev.app, ev.commit.Text, ev.commit.Restored); err != nil {
				h.logger.Error("failed to record commit", "error", err)
			}
		}
	}
}

// IBusFactory implements the IBus Factory D-Bus interface.
type IBusFactory struct {
	host *IBusHost
}

// CreateEngine creates a new engine instance for IBus.
func (f *IBusFactory) CreateEngine(engineName string) (dbus.ObjectPath, *dbus.Error) {
	f.host.logger.Debug("CreateEngine", "name", engineName)

	if engineName != VnimeEngineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine",
			[]interface{}{"Unknown engine: " + engineName})
	}

	c := f.host.NewContext()
	if f.host.conn != nil {
		if err := f.host.conn.Export(c, c.path, IBusEngineInterface); err != nil {
			return "", dbus.MakeFailedError(err)
		}
		if err := f.host.conn.Export(c, c.path, IBusServiceInterface); err != nil {
			return "", dbus.MakeFailedError(err)
		}
	}
	return c.path, nil
}

// IBusContext is the engine object IBus creates for one input context.
type IBusContext struct {
	host *IBusHost
	path dbus.ObjectPath
	id   string

	mu          sync.Mutex
	focused     bool
	surrounding bool
	app         string
}

// Path returns the D-Bus object path of the context.
func (c *IBusContext) Path() dbus.ObjectPath { return c.path }

// ProcessKeyEvent handles key press/release events from IBus.
// Returns true if the key was consumed, false to pass through.
func (c *IBusContext) ProcessKeyEvent(keyval, keycode, state uint32) (handled bool, dbusErr *dbus.Error) {
	defer func() {
		if r := recover(); r != nil {
			c.host.sessions.Reset(c.id)
			if c.host.config.OnPanic != nil {
				c.host.config.OnPanic(r, map[string]string{
					"context": c.id,
					"keyval":  fmt.Sprintf("0x%x", keyval),
				})
			}
			handled, dbusErr = false, nil
		}
	}()
	if state&IBusReleaseMask != 0 {
		return false, nil
	}
	modifier := state&(IBusControlMask|IBusMod1Mask|IBusMod4Mask) != 0

	code, upper, ok := keysymToKey(keyval)
	if !ok {
		// Keys the engine does not know about may still move the caret.
		if !isModifierKeysym(keyval) {
			c.host.sessions.Reset(c.id)
		}
		return false, nil
	}

	start := time.Now()
	res := c.host.sessions.OnKey(c.id, code, upper, modifier)
	c.host.metrics.Keys.Inc()
	defer c.host.metrics.KeyLatency.Since(start)

	consumed, err := c.apply(res)
	if err != nil {
		c.host.logger.Error("failed to apply edit", "error", err)
		return false, nil
	}
	if consumed {
		c.host.metrics.KeysConsumed.Inc()
	}
	return consumed, nil
}

// apply emits the signals that perform res in the client and reports
// whether the key was consumed.
func (c *IBusContext) apply(res EditResult) (bool, error) {
	if res.Action == ActionNone {
		return false, nil
	}
	c.mu.Lock()
	surrounding := c.surrounding
	c.mu.Unlock()

	emit := c.host.emitter
	if res.Backspace > 0 {
		if surrounding {
			n := res.Backspace
			if err := emit.Emit(c.path, IBusEngineInterface+".DeleteSurroundingText", int32(-n), uint32(n)); err != nil {
				return false, err
			}
		} else {
			for i := 0; i < res.Backspace; i++ {
				if err := emit.Emit(c.path, IBusEngineInterface+".ForwardKeyEvent", uint32(GDKBackSpace), uint32(evdevBackSpace), uint32(0)); err != nil {
					return false, err
				}
				if err := emit.Emit(c.path, IBusEngineInterface+".ForwardKeyEvent", uint32(GDKBackSpace), uint32(evdevBackSpace), IBusReleaseMask); err != nil {
					return false, err
				}
			}
		}
	}
	if res.Count > 0 {
		if err := emit.Emit(c.path, IBusEngineInterface+".CommitText", newIBusText(res.Text())); err != nil {
			return false, err
		}
	}
	return !res.Forward, nil
}

// FocusIn is called when the context gains input focus.
func (c *IBusContext) FocusIn() *dbus.Error {
	c.mu.Lock()
	c.focused = true
	c.mu.Unlock()

	c.host.sessions.Reset(c.id)
	c.host.metrics.FocusChanges.Inc()

	focus := c.host.config.Focus
	if focus == nil {
		return nil
	}
	info, err := focus.GetFocusInfo()
	if err != nil {
		c.host.logger.Debug("focus info unavailable", "error", err)
		return nil
	}
	c.mu.Lock()
	c.app = info.AppID
	c.mu.Unlock()
	app := info.AppID
	c.host.focusApp.Store(&app)

	scheme := c.host.sessions.Scheme()
	if prefs := c.host.config.Preferences; prefs != nil && app != "" {
		m, ok, err := prefs.AppMethod(app)
		switch {
		case err != nil:
			c.host.logger.Error("failed to load app method", "app", app, "error", err)
		case ok && m == MethodVNI:
			scheme = VNI
		case ok:
			scheme = Telex
		}
	}
	c.host.sessions.SetContextScheme(c.id, scheme)
	c.host.logger.Debug("FocusIn", "app", app, "method", scheme.String())
	return nil
}

// FocusOut is called when the context loses input focus.
func (c *IBusContext) FocusOut() *dbus.Error {
	c.mu.Lock()
	c.focused = false
	c.mu.Unlock()
	c.host.sessions.Reset(c.id)
	return nil
}

// Reset resets the composition, e.g. after a mouse click.
func (c *IBusContext) Reset() *dbus.Error {
	c.host.sessions.Reset(c.id)
	return nil
}

// Enable is called when the engine is switched on.
func (c *IBusContext) Enable() *dbus.Error {
	c.host.sessions.Reset(c.id)
	return nil
}

// Disable is called when the engine is switched off.
func (c *IBusContext) Disable() *dbus.Error {
	c.host.sessions.Reset(c.id)
	return nil
}

// SetCapabilities informs about client capabilities.
func (c *IBusContext) SetCapabilities(caps uint32) *dbus.Error {
	c.mu.Lock()
	c.surrounding = caps&IBusCapSurroundingText != 0 && !c.host.config.NoSurroundingText
	c.mu.Unlock()
	return nil
}

// SetContentType informs about the type of content being edited.
func (c *IBusContext) SetContentType(purpose, hints uint32) *dbus.Error {
	return nil
}

// SetCursorLocation informs about cursor position.
func (c *IBusContext) SetCursorLocation(x, y, w, h int32) *dbus.Error {
	return nil
}

// SetSurroundingText provides context around the cursor.
func (c *IBusContext) SetSurroundingText(text dbus.Variant, cursorPos, anchorPos uint32) *dbus.Error {
	return nil
}

// PropertyActivate switches method or toggles composition.
func (c *IBusContext) PropertyActivate(propName string, state uint32) *dbus.Error {
	h := c.host
	switch propName {
	case PropMethodTelex:
		h.sessions.SetMethod(MethodTelex)
	case PropMethodVNI:
		h.sessions.SetMethod(MethodVNI)
	case PropToggle:
		h.sessions.SetEnabled(!h.sessions.Enabled())
	default:
		return nil
	}
	h.logger.Info("property activated", "name", propName,
		"method", h.sessions.Scheme().String(), "enabled", h.sessions.Enabled())
	return nil
}

// PageUp handles page up in candidate list.
func (c *IBusContext) PageUp() *dbus.Error { return nil }

// PageDown handles page down in candidate list.
func (c *IBusContext) PageDown() *dbus.Error { return nil }

// CursorUp handles cursor up in candidate list.
func (c *IBusContext) CursorUp() *dbus.Error { return nil }

// CursorDown handles cursor down in candidate list.
func (c *IBusContext) CursorDown() *dbus.Error { return nil }

// CandidateClicked handles candidate selection.
func (c *IBusContext) CandidateClicked(index, button, state uint32) *dbus.Error {
	return nil
}

// Destroy releases the context.
func (c *IBusContext) Destroy() *dbus.Error {
	c.host.dropContext(c)
	if c.host.conn != nil {
		c.host.conn.Export(nil, c.path, IBusEngineInterface)
		c.host.conn.Export(nil, c.path, IBusServiceInterface)
	}
	return nil
}

type ibusAttrList struct {
	Name        string
	Attachments map[string]dbus.Variant
	Attrs       []dbus.Variant
}

type ibusText struct {
	Name        string
	Attachments map[string]dbus.Variant
	Text        string
	Attrs       dbus.Variant
}

// newIBusText wraps s in the serialized IBusText struct IBus expects.
func newIBusText(s string) dbus.Variant {
	attrs := ibusAttrList{
		Name:        "IBusAttrList",
		Attachments: map[string]dbus.Variant{},
		Attrs:       []dbus.Variant{},
	}
	return dbus.MakeVariant(ibusText{
		Name:        "IBusText",
		Attachments: map[string]dbus.Variant{},
		Text:        s,
		Attrs:       dbus.MakeVariant(attrs),
	})
}

// keyvalToRune converts X11 keysym to Unicode rune.
func keyvalToRune(keyval uint32) rune {
	// Direct Unicode mapping for Latin-1 range
	if keyval >= 0x20 && keyval <= 0x7e {
		return rune(keyval)
	}
	if keyval >= 0xa0 && keyval <= 0xff {
		return rune(keyval)
	}
	// Unicode keysyms (0x01000000 + codepoint)
	if keyval >= 0x01000000 {
		return rune(keyval - 0x01000000)
	}
	return 0
}

var keysymCodes = map[uint32]keys.KeyCode{
	GDKBackSpace: keys.Delete,
	GDKTab:       keys.Tab,
	GDKReturn:    keys.Return,
	GDKKPEnter:   keys.Return,
	GDKEscape:    keys.Escape,
	GDKHome:      keys.Home,
	GDKLeft:      keys.Left,
	GDKUp:        keys.Up,
	GDKRight:     keys.Right,
	GDKDown:      keys.Down,
	GDKPageUp:    keys.PageUp,
	GDKPageDown:  keys.PageDown,
	GDKEnd:       keys.End,
	GDKDelete:    keys.ForwardDelete,
}

// keysymToKey maps an X11 keysym to the engine's key code. The keysym
// already reflects Shift and Caps Lock, so case comes from the character.
func keysymToKey(keyval uint32) (keys.KeyCode, bool, bool) {
	if code, ok := keysymCodes[keyval]; ok {
		return code, false, true
	}
	r := keyvalToRune(keyval)
	if r == 0 {
		return 0, false, false
	}
	return keys.FromRune(r)
}

// isModifierKeysym reports Shift, Control, Alt, Super and lock keys, which
// arrive as separate events and must not reset the composition.
func isModifierKeysym(keyval uint32) bool {
	return keyval >= 0xffe1 && keyval <= 0xffee
}
