package types

import "time"

// Snapshot is one periodic capture of agent-observed activity. It is built
// once by a collector and never mutated afterwards; ownership passes to the
// delivery pipeline on enqueue.
type Snapshot struct {
	// ClientID uniquely identifies the reporting endpoint.
	ClientID string `json:"client_id"`

	// ClientType describes the endpoint class, e.g. "host" or "node".
	ClientType string `json:"client_type,omitempty"`

	// Timestamp is the capture time in UTC.
	Timestamp time.Time `json:"timestamp"`

	// ActiveWindow is the foreground window at capture time, when the
	// platform collector can observe it.
	ActiveWindow *WindowInfo `json:"active_window,omitempty"`

	// Processes lists running processes, when the platform collector can
	// enumerate them.
	Processes []ProcessInfo `json:"processes,omitempty"`

	// SystemMetrics holds numeric gauges keyed by metric name.
	SystemMetrics map[string]float64 `json:"system_metrics,omitempty"`

	// Platform holds static host facts (os, arch, hostname, ...).
	Platform map[string]string `json:"platform,omitempty"`

	// AdditionalData carries collector-specific extras not covered above.
	AdditionalData map[string]any `json:"additional_data,omitempty"`
}

// WindowInfo describes the foreground window of the endpoint.
type WindowInfo struct {
	Title   string `json:"title"`
	Class   string `json:"class,omitempty"`
	Focused bool   `json:"focused"`
}

// ProcessInfo describes one running process.
type ProcessInfo struct {
	PID       int     `json:"pid"`
	Name      string  `json:"name"`
	CPUPct    float64 `json:"cpu_pct,omitempty"`
	MemoryPct float64 `json:"memory_pct,omitempty"`
}
