package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents the health state of a component.
type Status string

const (
	StatusUnknown   Status = "UNKNOWN"
	StatusHealthy   Status = "HEALTHY"
	StatusDegraded  Status = "DEGRADED"
	StatusUnhealthy Status = "UNHEALTHY"

	// DefaultUnhealthyThreshold is the number of consecutive failures
	// before a component is considered unhealthy.
	DefaultUnhealthyThreshold = 5

	// DefaultDegradedLatencyThreshold is the P95 latency threshold
	// before a component is considered degraded.
	DefaultDegradedLatencyThreshold = 30 * time.Second

	latencyWindowSize = 10
)

// Component tracks the health of one long-running loop: a scan horizon,
// the generator or the collector.
type Component struct {
	mu                       sync.RWMutex
	name                     string
	status                   Status
	consecutiveFailures      int
	lastSuccessAt            *time.Time
	lastFailureAt            *time.Time
	lastError                string
	unhealthyThreshold       int
	recentLatencies          []time.Duration
	degradedLatencyThreshold time.Duration
	nowFn                    func() time.Time
}

func NewComponent(name string) *Component {
	return &Component{
		name:                     name,
		status:                   StatusUnknown,
		unhealthyThreshold:       DefaultUnhealthyThreshold,
		recentLatencies:          make([]time.Duration, 0, latencyWindowSize),
		degradedLatencyThreshold: DefaultDegradedLatencyThreshold,
		nowFn:                    time.Now,
	}
}

// WithDegradedLatency overrides the P95 latency threshold.
func (c *Component) WithDegradedLatency(d time.Duration) *Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.degradedLatencyThreshold = d
	return c
}

func (c *Component) Name() string {
	return c.name
}

// RecordSuccess records a successful cycle and its latency. It returns true
// when the call recovers the component from UNHEALTHY.
func (c *Component) RecordSuccess(latency time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFn()
	wasUnhealthy := c.status == StatusUnhealthy
	if len(c.recentLatencies) >= latencyWindowSize {
		c.recentLatencies = c.recentLatencies[1:]
	}
	c.recentLatencies = append(c.recentLatencies, latency)
	c.consecutiveFailures = 0
	c.lastSuccessAt = &now
	c.lastError = ""
	if c.isLatencyDegraded() {
		c.status = StatusDegraded
	} else {
		c.status = StatusHealthy
	}
	return wasUnhealthy
}

// RecordFailure records a failed cycle. Returns true if the component
// transitioned to unhealthy on this call.
func (c *Component) RecordFailure(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFn()
	c.consecutiveFailures++
	c.lastFailureAt = &now
	if err != nil {
		c.lastError = err.Error()
	}
	if c.consecutiveFailures >= c.unhealthyThreshold && c.status != StatusUnhealthy {
		c.status = StatusUnhealthy
		return true
	}
	return false
}

// isLatencyDegraded returns true if the P95 latency exceeds the threshold.
// Must be called with mu held.
func (c *Component) isLatencyDegraded() bool {
	n := len(c.recentLatencies)
	if n < 2 {
		return false
	}
	sorted := make([]time.Duration, n)
	copy(sorted, c.recentLatencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (95*n - 1) / 100
	return sorted[idx] > c.degradedLatencyThreshold
}

func (c *Component) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Name:                c.name,
		Status:              string(c.status),
		ConsecutiveFailures: c.consecutiveFailures,
		LastSuccessAt:       c.lastSuccessAt,
		LastFailureAt:       c.lastFailureAt,
		LastError:           c.lastError,
	}
}

// Snapshot is a point-in-time view of component health (JSON-safe).
type Snapshot struct {
	Name                string     `json:"name"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// Registry aggregates the components of one process for /healthz.
type Registry struct {
	mu         sync.RWMutex
	components []*Component
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register creates and registers a component.
func (r *Registry) Register(name string) *Component {
	c := NewComponent(name)
	r.mu.Lock()
	r.components = append(r.components, c)
	r.mu.Unlock()
	return c
}

// Report is the /healthz body.
type Report struct {
	Status     string     `json:"status"`
	Components []Snapshot `json:"components"`
}

// Report folds component states: any UNHEALTHY makes the process UNHEALTHY,
// otherwise any DEGRADED makes it DEGRADED.
func (r *Registry) Report() Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep := Report{Status: string(StatusHealthy), Components: make([]Snapshot, 0, len(r.components))}
	for _, c := range r.components {
		snap := c.Snapshot()
		rep.Components = append(rep.Components, snap)
		switch Status(snap.Status) {
		case StatusUnhealthy:
			rep.Status = string(StatusUnhealthy)
		case StatusDegraded:
			if rep.Status != string(StatusUnhealthy) {
				rep.Status = string(StatusDegraded)
			}
		}
	}
	return rep
}

// Handler serves the report as JSON, with 503 when unhealthy.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		rep := r.Report()
		w.Header().Set("Content-Type", "application/json")
		if rep.Status == string(StatusUnhealthy) {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(rep)
	})
}
