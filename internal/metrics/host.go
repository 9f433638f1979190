package metrics

// HostMetrics are the counters an input-method host maintains.
type HostMetrics struct {
	registry *Registry

	Keys          *Counter
	KeysConsumed  *Counter
	Commits       *Counter
	Restores      *Counter
	FocusChanges  *Counter
	ContextsTotal *Counter
	ContextsOpen  *Gauge
	KeyLatency    *Histogram
}

// NewHostMetrics registers the host metrics in r. A nil r gets a fresh
// registry in the "vnime" namespace.
func NewHostMetrics(r *Registry) *HostMetrics {
	if r == nil {
		r = NewRegistry("vnime")
	}
	return &HostMetrics{
		registry:      r,
		Keys:          r.Counter("keys_total", "Key presses handed to the engine."),
		KeysConsumed:  r.Counter("keys_consumed_total", "Key presses the host swallowed."),
		Commits:       r.Counter("commits_total", "Words finished at a boundary."),
		Restores:      r.Counter("restores_total", "Words reverted to the typed keys."),
		FocusChanges:  r.Counter("focus_changes_total", "Focus-in events."),
		ContextsTotal: r.Counter("contexts_total", "Input contexts created."),
		ContextsOpen:  r.Gauge("contexts_open", "Input contexts currently alive."),
		KeyLatency:    r.Histogram("key_duration_seconds", "Time to handle one key press.", KeyLatencyBuckets),
	}
}

// Registry returns the registry the metrics live in.
func (m *HostMetrics) Registry() *Registry { return m.registry }
