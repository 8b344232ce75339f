package config

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validateProfile(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Workflow.LeaseTTL <= 0 {
		return errors.New("workflow.lease_ttl must be positive")
	}
	if c.Workflow.MaxAttempts <= 0 {
		return errors.New("workflow.max_attempts must be positive")
	}
	if c.Workflow.RetryBackoffBase <= 0 {
		return errors.New("workflow.retry_backoff_base must be positive")
	}
	if c.Workflow.RetryBackoffMax < c.Workflow.RetryBackoffBase {
		return errors.New("workflow.retry_backoff_max must be >= retry_backoff_base")
	}
	if c.Workflow.BatchSize < 0 {
		return errors.New("workflow.batch_size must not be negative")
	}
	return nil
}

func (c *Config) validateStages() error {
	timeouts := map[string]int{
		"stages.download_timeout":   c.Stages.DownloadTimeout,
		"stages.transcribe_timeout": c.Stages.TranscribeTimeout,
		"stages.decide_timeout":     c.Stages.DecideTimeout,
		"stages.render_timeout":     c.Stages.RenderTimeout,
		"stages.package_timeout":    c.Stages.PackageTimeout,
	}
	for key, value := range timeouts {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func (c *Config) validateProfile() error {
	if c.Profile.Slug == "" {
		return errors.New("profile.slug must be set")
	}
	if c.Profile.LengthMinSeconds <= 0 || c.Profile.LengthMaxSeconds <= c.Profile.LengthMinSeconds {
		return errors.New("profile length band must satisfy 0 < min < max")
	}
	if c.Profile.SilenceRatioMax < 0 || c.Profile.SilenceRatioMax > 1 {
		return errors.New("profile.silence_ratio_max must be between 0 and 1")
	}
	for _, raw := range c.Profile.Languages {
		if _, err := language.Parse(raw); err != nil {
			return fmt.Errorf("profile.languages entry %q is not a valid BCP 47 tag: %w", raw, err)
		}
	}
	return nil
}
