// Package connectivity decides whether operations run against the resource
// server or the local mirror.
package connectivity

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/logger"
)

type State int

const (
	Unknown State = iota
	Online
	Offline
)

func (s State) String() string {
	switch s {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Prober reports a nil error when the resource server answers.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProbe asks the users endpoint for a single record.
type HTTPProbe struct {
	Client *api.Client
}

func (p HTTPProbe) Probe(ctx context.Context) error {
	return p.Client.Get(ctx, "/"+api.CollectionUsers, url.Values{"_limit": {"1"}}, nil)
}

// Monitor is a two-state machine. Probe results and remote failures drive the
// transitions; a result is reused until it is older than the interval.
type Monitor struct {
	mu        sync.Mutex
	prober    Prober
	interval  time.Duration
	now       func() time.Time
	state     State
	checkedAt time.Time
}

// NewMonitor creates a Monitor. An interval of zero probes on every Check.
func NewMonitor(p Prober, interval time.Duration) *Monitor {
	return &Monitor{prober: p, interval: interval, now: time.Now}
}

// State returns the last known state without probing.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Check returns the current state, probing when the last result is stale.
func (m *Monitor) Check(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Unknown && m.interval > 0 && m.now().Sub(m.checkedAt) < m.interval {
		return m.state
	}

	next := Online
	err := m.prober.Probe(ctx)
	if err != nil {
		next = Offline
	}
	m.transition(next, err)
	m.checkedAt = m.now()
	return m.state
}

// MarkOffline records a remote call that failed as unreachable. The next
// Check probes again.
func (m *Monitor) MarkOffline(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transition(Offline, err)
	m.checkedAt = time.Time{}
}

func (m *Monitor) transition(next State, cause error) {
	if next == m.state {
		return
	}
	details := map[string]interface{}{"from": m.state.String(), "to": next.String()}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	logger.Info("connectivity_changed", details)
	m.state = next
}
