package workflow

import (
	"context"

	"github.com/NovoNihilo/clipforge/internal/queue"
)

// Status is a point-in-time snapshot for operator surfaces.
type Status struct {
	Running   bool
	Owner     string
	Workers   int
	Queue     queue.HealthSummary
	LastError string
}

// Status summarizes the manager and queue state.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	health, err := m.store.Health(ctx)
	if err != nil {
		return Status{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		Running: m.running,
		Owner:   m.owner,
		Workers: m.cfg.Workflow.Workers,
		Queue:   health,
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status, nil
}
