package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NovoNihilo/clipforge/internal/config"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/queue"
	"github.com/NovoNihilo/clipforge/internal/stageexec"
)

// Manager coordinates queue processing across a pool of stage workers.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	executor *stageexec.Executor
	logger   *slog.Logger

	owner        string
	pollInterval time.Duration
	errorRetry   time.Duration
	leaseTTL     time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager. The owner identity scopes every
// lease this manager takes, so two daemons pointed at the same database
// cannot trample each other's jobs.
func NewManager(cfg *config.Config, store *queue.Store, executor *stageexec.Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		executor:     executor,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		owner:        "clipforged-" + uuid.NewString(),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetry:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		leaseTTL:     time.Duration(cfg.Workflow.LeaseTTL) * time.Second,
	}
}

// Owner exposes the lease identity, mainly for tests and status output.
func (m *Manager) Owner() string {
	return m.owner
}

// Start begins background processing until the context is cancelled or
// Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	jobs := make(chan *queue.Job)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(jobs)
		m.dispatch(runCtx, jobs)
	}()

	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer m.wg.Done()
			for job := range jobs {
				m.process(runCtx, job)
			}
		}()
	}

	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Int("workers", workers),
		logging.String("owner", m.owner))
	return nil
}

// Stop terminates background processing and waits for in-flight stages.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped",
		logging.String(logging.FieldEventType, "workflow_stop"))
}

// Running reports whether the manager is processing.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent dispatch error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
