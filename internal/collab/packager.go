package collab

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NovoNihilo/clipforge/internal/config"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/services"
)

const packageStage = "package"

// Manifest describes a packaged clip bundle for whoever publishes it.
type Manifest struct {
	JobID      string   `json:"job_id"`
	Title      string   `json:"title"`
	Language   string   `json:"language"`
	ViralScore int      `json:"viral_score"`
	Hashtags   []string `json:"hashtags,omitempty"`
	ClipFile   string   `json:"clip_file"`
	PackagedAt string   `json:"packaged_at"`
}

// DirPackager assembles the final bundle directory: the rendered clip plus
// a manifest built from the decision artifact. Packaging only moves local
// bytes around, so there is nothing worth retrying; failures are final.
type DirPackager struct {
	outputDir string
	logger    *slog.Logger
}

// NewDirPackager builds the production packaging collaborator.
func NewDirPackager(cfg *config.Config, logger *slog.Logger) *DirPackager {
	return &DirPackager{
		outputDir: cfg.Paths.OutputDir,
		logger:    logging.NewComponentLogger(logger, "packager"),
	}
}

// Package copies the rendered clip into the output bundle and writes the
// manifest, returning the bundle directory path.
func (p *DirPackager) Package(ctx context.Context, jobID, renderedPath, decisionPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(renderedPath) == "" {
		return "", services.Wrap(services.ErrValidation, packageStage, "resolve rendered clip",
			"rendered path is empty", nil)
	}

	decision, err := LoadDecision(decisionPath)
	if err != nil {
		return "", services.Wrap(services.ErrFatal, packageStage, "load decision",
			"decision artifact is missing or malformed", err)
	}

	bundleDir := filepath.Join(p.outputDir, jobID)
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrFatal, packageStage, "prepare bundle",
			"create bundle directory", err)
	}

	clipName := "clip.mp4"
	if err := copyFile(renderedPath, filepath.Join(bundleDir, clipName)); err != nil {
		return "", services.Wrap(services.ErrFatal, packageStage, "copy clip",
			"copy rendered clip into bundle", err)
	}

	manifest := Manifest{
		JobID:      jobID,
		Title:      decision.Title,
		Language:   decision.Language,
		ViralScore: decision.ViralScore,
		Hashtags:   decision.Hashtags,
		ClipFile:   clipName,
		PackagedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrFatal, packageStage, "encode manifest",
			"marshal manifest", err)
	}
	if err := os.WriteFile(filepath.Join(bundleDir, "manifest.json"), data, 0o644); err != nil {
		return "", services.Wrap(services.ErrFatal, packageStage, "write manifest",
			"write manifest file", err)
	}

	p.logger.Info("bundle packaged",
		logging.String(logging.FieldJobID, jobID),
		logging.String("bundle", bundleDir))
	return bundleDir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
