package collab

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/NovoNihilo/clipforge/internal/config"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/services"
)

const renderStage = "render"

var ffmpegFatalMarkers = []string{
	"invalid data found",
	"does not contain any stream",
	"no such file or directory",
	"invalid argument",
}

// FFmpegRenderer produces the vertical cut with ffmpeg.
type FFmpegRenderer struct {
	binary     string
	stagingDir string
	logger     *slog.Logger
	run        commandRunner
}

// NewFFmpegRenderer builds the production render collaborator.
func NewFFmpegRenderer(cfg *config.Config, logger *slog.Logger) *FFmpegRenderer {
	return &FFmpegRenderer{
		binary:     cfg.Tools.FFmpegBinary,
		stagingDir: cfg.Paths.StagingDir,
		logger:     logging.NewComponentLogger(logger, "ffmpeg"),
		run:        runCommand,
	}
}

// WithCommandRunner substitutes the process launcher, for tests.
func (r *FFmpegRenderer) WithCommandRunner(run commandRunner) *FFmpegRenderer {
	r.run = run
	return r
}

// Render transcodes the source clip into the 9:16 deliverable next to the
// other staging artifacts and returns its path.
func (r *FFmpegRenderer) Render(ctx context.Context, jobID, mediaPath, decisionPath string) (string, error) {
	if strings.TrimSpace(mediaPath) == "" {
		return "", services.Wrap(services.ErrValidation, renderStage, "resolve media",
			"media path is empty", nil)
	}
	if _, err := os.Stat(mediaPath); err != nil {
		return "", services.Wrap(services.ErrFatal, renderStage, "resolve media",
			"downloaded media file is missing", err)
	}
	if _, err := LoadDecision(decisionPath); err != nil {
		return "", services.Wrap(services.ErrFatal, renderStage, "load decision",
			"decision artifact is missing or malformed", err)
	}

	renderedPath := filepath.Join(r.stagingDir, jobID, "rendered.mp4")
	args := []string{
		"-y",
		"-i", mediaPath,
		"-vf", "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		renderedPath,
	}

	r.logger.Debug("invoking ffmpeg",
		logging.String(logging.FieldJobID, jobID),
		logging.String("media", mediaPath))

	output, err := r.run(ctx, r.binary, args...)
	if err != nil {
		return "", classifyToolError(ctx, renderStage, "render clip", "ffmpeg", err, output, ffmpegFatalMarkers)
	}

	if _, err := os.Stat(renderedPath); err != nil {
		return "", services.Wrap(services.ErrTransient, renderStage, "verify output",
			"ffmpeg reported success but output file is missing", err)
	}
	return renderedPath, nil
}
