package testsupport

import (
	"path/filepath"
	"testing"

	"mediaprep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DBPath = filepath.Join(base, "queue.db")
	cfg.Paths.LockPath = filepath.Join(base, "mediaprep.lock")
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Processing.RetryBaseDelay = 1
	cfg.Processing.RetryMaxDelay = 10

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxConcurrency overrides the worker pool slot count.
func WithMaxConcurrency(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Processing.MaxConcurrency = n
	}
}

// WithMaxRetries overrides the automatic retry budget.
func WithMaxRetries(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Processing.MaxRetries = n
	}
}
