package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NovoNihilo/clipforge/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Workflow.Workers != 2 {
		t.Fatalf("expected default workers, got %d", cfg.Workflow.Workers)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipforge.toml")
	content := `
[workflow]
workers = 4
max_attempts = 5

[profile]
languages = ["en", "de"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved existing path %s, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Workflow.Workers != 4 || cfg.Workflow.MaxAttempts != 5 {
		t.Fatalf("overrides not applied: %+v", cfg.Workflow)
	}
	if len(cfg.Profile.Languages) != 2 {
		t.Fatalf("expected two languages, got %v", cfg.Profile.Languages)
	}
	// untouched sections keep defaults
	if cfg.Stages.DownloadTimeout <= 0 {
		t.Fatal("expected default stage timeouts to survive overrides")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipforge.toml")
	if err := os.WriteFile(path, []byte("[workflow]\nworkers = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for workers=0")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CLIPFORGE_WORKERS", "7")
	t.Setenv("CLIPFORGE_LOG_LEVEL", "debug")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workflow.Workers != 7 {
		t.Fatalf("expected env workers override, got %d", cfg.Workflow.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env log level override, got %s", cfg.Logging.Level)
	}
}

func TestEnsureDirectoriesAndDerivedPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "outputs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.StagingDir, cfg.Paths.OutputDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist", dir)
		}
	}
	if filepath.Dir(cfg.DatabasePath()) != cfg.Paths.DataDir {
		t.Fatalf("database path not under data dir: %s", cfg.DatabasePath())
	}
	if filepath.Dir(cfg.SocketPath()) != cfg.Paths.DataDir {
		t.Fatalf("socket path not under data dir: %s", cfg.SocketPath())
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
}

func TestValidateRejectsBadLanguageTag(t *testing.T) {
	cfg := config.Default()
	cfg.Profile.Languages = []string{"en", "not a tag"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected invalid language tag to fail validation")
	}
	if !strings.Contains(err.Error(), "profile.languages") {
		t.Fatalf("error should name the offending key, got %q", err)
	}
}
