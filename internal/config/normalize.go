package config

import (
	"os"
	"strconv"
	"strings"
)

// normalize expands path fields and applies environment overrides.
func (c *Config) normalize() error {
	c.applyEnvOverrides()

	paths := []*string{
		&c.Paths.DataDir,
		&c.Paths.LogDir,
		&c.Paths.StagingDir,
		&c.Paths.OutputDir,
	}
	for _, p := range paths {
		if strings.TrimSpace(*p) == "" {
			continue
		}
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// applyEnvOverrides lets CLIPFORGE_* environment variables override the file.
// An .env file read by the run command feeds this through os.Setenv.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CLIPFORGE_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("CLIPFORGE_LOG_DIR"); v != "" {
		c.Paths.LogDir = v
	}
	if v := os.Getenv("CLIPFORGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CLIPFORGE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workflow.Workers = n
		}
	}
}
