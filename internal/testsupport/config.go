// Package testsupport provides shared builders for package tests: temp-dir
// configs, opened stores, and seeded jobs.
package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/NovoNihilo/clipforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "outputs")
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers overrides the worker count on the test config.
func WithWorkers(n int) ConfigOption {
	return func(c *config.Config) {
		c.Workflow.Workers = n
	}
}

// WithMaxAttempts overrides the retry limit on the test config.
func WithMaxAttempts(n int) ConfigOption {
	return func(c *config.Config) {
		c.Workflow.MaxAttempts = n
	}
}
