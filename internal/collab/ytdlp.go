package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/NovoNihilo/clipforge/internal/config"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/services"
)

const downloadStage = "download"

// ytDlpFatalMarkers are tool outputs that mean the source itself is gone
// or unusable. Everything else is assumed to be network weather.
var ytDlpFatalMarkers = []string{
	"unsupported url",
	"video unavailable",
	"this video is private",
	"http error 404",
	"http error 410",
	"account terminated",
}

// YtDlpClient shells out to yt-dlp to fetch source clips into staging.
type YtDlpClient struct {
	binary     string
	stagingDir string
	logger     *slog.Logger
	run        commandRunner
}

// NewYtDlpClient builds the production download collaborator.
func NewYtDlpClient(cfg *config.Config, logger *slog.Logger) *YtDlpClient {
	return &YtDlpClient{
		binary:     cfg.Tools.YtDlpBinary,
		stagingDir: cfg.Paths.StagingDir,
		logger:     logging.NewComponentLogger(logger, "ytdlp"),
		run:        runCommand,
	}
}

// WithCommandRunner substitutes the process launcher, for tests.
func (c *YtDlpClient) WithCommandRunner(run commandRunner) *YtDlpClient {
	c.run = run
	return c
}

// Download fetches sourceURL into the job's staging directory and returns
// the media path plus the duration reported by the tool's info JSON.
func (c *YtDlpClient) Download(ctx context.Context, jobID, sourceURL string) (DownloadResult, error) {
	var result DownloadResult
	if strings.TrimSpace(sourceURL) == "" {
		return result, services.Wrap(services.ErrValidation, downloadStage, "resolve source",
			"source url is empty", nil)
	}

	jobDir := filepath.Join(c.stagingDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrTransient, downloadStage, "prepare staging",
			"create job staging directory", err)
	}

	mediaPath := filepath.Join(jobDir, "source.mp4")
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--merge-output-format", "mp4",
		"--write-info-json",
		"-o", filepath.Join(jobDir, "source.%(ext)s"),
		sourceURL,
	}

	c.logger.Debug("invoking yt-dlp",
		logging.String(logging.FieldJobID, jobID),
		logging.String("url", sourceURL))

	output, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return result, classifyToolError(ctx, downloadStage, "fetch media", "yt-dlp", err, output, ytDlpFatalMarkers)
	}

	if _, err := os.Stat(mediaPath); err != nil {
		return result, services.Wrap(services.ErrTransient, downloadStage, "verify media",
			"yt-dlp reported success but media file is missing", err)
	}

	result.MediaPath = mediaPath
	result.DurationSeconds = readInfoDuration(filepath.Join(jobDir, "source.info.json"))
	return result, nil
}

// readInfoDuration pulls the duration out of yt-dlp's info JSON. A missing
// or malformed sidecar is not an error; the transcript supplies timing later.
func readInfoDuration(path string) float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	var info struct {
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return 0
	}
	return info.Duration
}

// FormatDuration renders the payload value for duration_seconds.
func FormatDuration(seconds float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", seconds), "0"), ".")
}
