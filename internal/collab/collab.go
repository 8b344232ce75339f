package collab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/NovoNihilo/clipforge/internal/config"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/services"
)

// DownloadResult is what the download collaborator hands back for the
// job's payload patch.
type DownloadResult struct {
	MediaPath       string
	DurationSeconds float64
}

// TranscribeResult carries the transcript artifact and detected language.
type TranscribeResult struct {
	TranscriptPath string
	Language       string
}

// DecideResult carries the decision artifact and the score recorded on
// the job payload.
type DecideResult struct {
	DecisionPath string
	ViralScore   int
}

// Downloader fetches the source clip into the staging area.
type Downloader interface {
	Download(ctx context.Context, jobID, sourceURL string) (DownloadResult, error)
}

// Transcriber produces a transcript JSON file for a downloaded clip.
type Transcriber interface {
	Transcribe(ctx context.Context, jobID, mediaPath string) (TranscribeResult, error)
}

// Decider evaluates a transcript against the active profile.
type Decider interface {
	Decide(ctx context.Context, jobID, transcriptPath string) (DecideResult, error)
}

// Renderer produces the final cut from the source media and decision.
type Renderer interface {
	Render(ctx context.Context, jobID, mediaPath, decisionPath string) (string, error)
}

// Packager assembles the publishable bundle from a rendered clip.
type Packager interface {
	Package(ctx context.Context, jobID, renderedPath, decisionPath string) (string, error)
}

// Set bundles one collaborator per stage for the executor.
type Set struct {
	Downloader  Downloader
	Transcriber Transcriber
	Decider     Decider
	Renderer    Renderer
	Packager    Packager
}

// NewSet wires the default production collaborators from config.
func NewSet(cfg *config.Config, logger *slog.Logger) *Set {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Set{
		Downloader:  NewYtDlpClient(cfg, logger),
		Transcriber: NewWhisperXClient(cfg, logger),
		Decider:     NewProfileDecider(cfg, logger),
		Renderer:    NewFFmpegRenderer(cfg, logger),
		Packager:    NewDirPackager(cfg, logger),
	}
}

// commandRunner mirrors exec.CommandContext for test substitution.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// classifyToolError tags a tool invocation failure as transient or fatal.
// Deadline and cancellation map to transient so the driver can retry once
// the tool is healthy again; fatalMarkers are substrings of tool output
// that indicate the input itself is bad and retrying cannot help.
// exec.CommandContext kills the child on expiry and surfaces a plain exit
// error, so the context has to be consulted directly.
func classifyToolError(ctx context.Context, stage, operation, tool string, err error, output []byte, fatalMarkers []string) error {
	trimmed := strings.TrimSpace(string(output))
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransient, stage, operation,
			fmt.Sprintf("%s timed out", tool), err)
	}
	lowered := strings.ToLower(trimmed)
	for _, marker := range fatalMarkers {
		if strings.Contains(lowered, strings.ToLower(marker)) {
			return services.Wrap(services.ErrFatal, stage, operation,
				fmt.Sprintf("%s rejected input: %s", tool, firstLine(trimmed)), err)
		}
	}
	message := fmt.Sprintf("%s failed", tool)
	if trimmed != "" {
		message = fmt.Sprintf("%s failed: %s", tool, firstLine(trimmed))
	}
	return services.Wrap(services.ErrTransient, stage, operation, message, err)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
