package workflow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediaprep/internal/codec"
	"mediaprep/internal/config"
	"mediaprep/internal/logging"
	"mediaprep/internal/notifications"
	"mediaprep/internal/pipeline"
	"mediaprep/internal/plan"
	"mediaprep/internal/queue"
	"mediaprep/internal/sink"
	"mediaprep/internal/workerpool"
)

// Manager coordinates the full item lifecycle: enqueue with synchronous
// planning, step scheduling through the worker pool, upload hand-off, and
// lifecycle notifications. A single scheduler goroutine owns all dispatch
// decisions; workers report back over an internal channel.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	bus      *notifications.Bus
	registry *codec.Registry
	pool     *workerpool.Pool
	sink     sink.Sink
	policy   pipeline.RetryPolicy

	pollInterval       time.Duration
	errorRetryInterval time.Duration

	results chan stepResult

	mu       sync.Mutex
	running  bool
	stop     func()
	wg       sync.WaitGroup
	inFlight map[int64]struct{}
	lastErr  error
}

type stepResult struct {
	itemID int64
	step   plan.Step
	output codec.Output
	err    error

	upload bool
	record sink.RemoteRecord
}

// ManagerOption overrides a collaborator, primarily for tests.
type ManagerOption func(*Manager)

// WithSink replaces the upload sink.
func WithSink(s sink.Sink) ManagerOption {
	return func(m *Manager) { m.sink = s }
}

// WithRegistry replaces the codec adapter registry.
func WithRegistry(r *codec.Registry) ManagerOption {
	return func(m *Manager) { m.registry = r }
}

// WithBus replaces the notification bus.
func WithBus(b *notifications.Bus) ManagerOption {
	return func(m *Manager) { m.bus = b }
}

// NewManager constructs a workflow manager wired from configuration.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	m := &Manager{
		cfg:                cfg,
		store:              store,
		logger:             logger.With(logging.String(logging.FieldComponent, "workflow")),
		registry:           codec.NewRegistry(),
		policy:             pipeline.PolicyFromConfig(cfg),
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		results:            make(chan stepResult),
		inFlight:           make(map[int64]struct{}),
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	if m.errorRetryInterval <= 0 {
		m.errorRetryInterval = 5 * time.Second
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.bus == nil {
		m.bus = notifications.NewBus(logger)
		if webhook := notifications.NewWebhook(cfg, logger); webhook != nil {
			m.bus.Attach(webhook)
		}
	}
	if m.sink == nil {
		configured, err := sink.New(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("configure upload sink: %w", err)
		}
		m.sink = configured
	}
	if m.pool == nil {
		handles := codec.NewHandles(cfg.FFmpegBinary())
		timeout := time.Duration(cfg.Processing.StepTimeout) * time.Second
		m.pool = workerpool.New(cfg.Processing.MaxConcurrency, timeout, m.registry, handles, logger)
	}

	return m, nil
}

// Bus exposes the notification bus so callers can attach subscribers.
func (m *Manager) Bus() *notifications.Bus {
	return m.bus
}

// LastError returns the most recent scheduler error, for status displays.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) markInFlight(id int64) {
	m.mu.Lock()
	m.inFlight[id] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) clearInFlight(id int64) {
	m.mu.Lock()
	delete(m.inFlight, id)
	m.mu.Unlock()
}

func (m *Manager) isInFlight(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inFlight[id]
	return ok
}

func (m *Manager) inFlightIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.inFlight))
	for id := range m.inFlight {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) inFlightCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight)
}
