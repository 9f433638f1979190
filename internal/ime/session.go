package ime

import (
	"sync"

	"vnime/internal/keys"
)

// MaxSessions bounds the engines kept by Sessions; the least recently used
// one is dropped first.
const MaxSessions = 64

type sessionEntry struct {
	engine   *Engine
	lastUsed uint64
}

// Sessions keeps one Engine per input context for hosts that receive events
// from several text fields. All methods are safe for concurrent use.
type Sessions struct {
	mu          sync.Mutex
	opts        []Option
	sessions    map[string]*sessionEntry
	tick        uint64
	scheme      Scheme
	enabled     bool
	autoRestore bool
}

// NewSessions creates a session set whose engines are built with opts.
func NewSessions(opts ...Option) *Sessions {
	proto := NewEngine(opts...)
	return &Sessions{
		opts:        opts,
		sessions:    make(map[string]*sessionEntry),
		scheme:      proto.Scheme(),
		enabled:     proto.Enabled(),
		autoRestore: proto.AutoRestore(),
	}
}

func (s *Sessions) getLocked(id string) *Engine {
	s.tick++
	if se, ok := s.sessions[id]; ok {
		se.lastUsed = s.tick
		return se.engine
	}
	if len(s.sessions) >= MaxSessions {
		s.evictLocked()
	}
	e := NewEngine(s.opts...)
	e.SetScheme(s.scheme)
	e.SetEnabled(s.enabled)
	e.SetAutoRestore(s.autoRestore)
	s.sessions[id] = &sessionEntry{engine: e, lastUsed: s.tick}
	return e
}

func (s *Sessions) evictLocked() {
	var oldestID string
	var oldest uint64
	first := true
	for id, se := range s.sessions {
		if first || se.lastUsed < oldest {
			oldestID, oldest, first = id, se.lastUsed, false
		}
	}
	delete(s.sessions, oldestID)
}

// OnKey routes a key to the engine of context id.
func (s *Sessions) OnKey(id string, code keys.KeyCode, isUpper, modifier bool) EditResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id).OnKey(code, isUpper, modifier)
}

// Reset abandons the composition of context id.
func (s *Sessions) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if se, ok := s.sessions[id]; ok {
		se.engine.Reset()
	}
}

// Rendering returns the composition on screen in context id.
func (s *Sessions) Rendering(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if se, ok := s.sessions[id]; ok {
		return se.engine.Rendering()
	}
	return ""
}

// Drop forgets context id.
func (s *Sessions) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live contexts.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SetMethod switches every context, and contexts created later, to Telex
// (0) or VNI (1).
func (s *Sessions) SetMethod(m int) {
	switch m {
	case MethodTelex:
		s.SetScheme(Telex)
	case MethodVNI:
		s.SetScheme(VNI)
	}
}

// SetScheme switches every context to scheme.
func (s *Sessions) SetScheme(scheme Scheme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheme = scheme
	for _, se := range s.sessions {
		se.engine.SetScheme(scheme)
	}
}

// SetContextScheme overrides the scheme of one context, e.g. from a
// per-application preference.
func (s *Sessions) SetContextScheme(id string, scheme Scheme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getLocked(id).SetScheme(scheme)
}

// Scheme returns the default scheme for new contexts.
func (s *Sessions) Scheme() Scheme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheme
}

// SetEnabled turns composition on or off everywhere.
func (s *Sessions) SetEnabled(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = on
	for _, se := range s.sessions {
		se.engine.SetEnabled(on)
	}
}

// Enabled reports whether composition is on.
func (s *Sessions) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetAutoRestore toggles auto-restore everywhere.
func (s *Sessions) SetAutoRestore(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoRestore = on
	for _, se := range s.sessions {
		se.engine.SetAutoRestore(on)
	}
}
