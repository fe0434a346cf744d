package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hytun/internal/node"
	"hytun/internal/service"
	"hytun/internal/storage/sqlite"
)

// Status is the most recent observation of the managed service.
type Status struct {
	ServiceActive bool      `json:"service_active"`
	TunUp         bool      `json:"tun_up"`
	CurrentNode   string    `json:"current_node,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Monitor polls service state on a fixed interval into a shared cache that
// request handlers read without issuing commands of their own. Samples are
// also appended to the history database.
type Monitor struct {
	mu       sync.RWMutex
	status   Status
	svc      *service.Controller
	registry *node.Registry
	history  *sqlite.DB
}

// New creates a monitor. history may be nil in tests.
func New(svc *service.Controller, registry *node.Registry, history *sqlite.DB) *Monitor {
	return &Monitor{
		svc:      svc,
		registry: registry,
		history:  history,
	}
}

// Poll takes one observation and updates the cache.
func (m *Monitor) Poll(ctx context.Context) Status {
	s := Status{
		ServiceActive: m.svc.IsActive(ctx),
		TunUp:         m.svc.TunUp(ctx),
		CheckedAt:     time.Now(),
	}
	if cur := m.registry.Current(); cur != nil {
		s.CurrentNode = cur.ID
	}

	m.mu.Lock()
	m.status = s
	m.mu.Unlock()

	if m.history != nil {
		sample := &sqlite.StatusSample{
			ServiceActive: s.ServiceActive,
			TunUp:         s.TunUp,
			CurrentNode:   s.CurrentNode,
			SampledAt:     s.CheckedAt,
		}
		if err := m.history.RecordStatus(ctx, sample); err != nil {
			slog.Warn("failed to record status sample", "error", err)
		}
	}

	return s
}

// Status returns the cached observation.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
