package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/NovoNihilo/clipforge/internal/config"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/services"
)

const transcribeStage = "transcribe"

var whisperXFatalMarkers = []string{
	"invalid audio",
	"unable to open",
	"no audio stream",
	"unsupported format",
}

// WhisperXClient shells out to whisperx for transcription.
type WhisperXClient struct {
	binary     string
	stagingDir string
	logger     *slog.Logger
	run        commandRunner
}

// NewWhisperXClient builds the production transcription collaborator.
func NewWhisperXClient(cfg *config.Config, logger *slog.Logger) *WhisperXClient {
	return &WhisperXClient{
		binary:     cfg.Tools.WhisperXBinary,
		stagingDir: cfg.Paths.StagingDir,
		logger:     logging.NewComponentLogger(logger, "whisperx"),
		run:        runCommand,
	}
}

// WithCommandRunner substitutes the process launcher, for tests.
func (c *WhisperXClient) WithCommandRunner(run commandRunner) *WhisperXClient {
	c.run = run
	return c
}

// Transcribe runs whisperx over the downloaded media and returns the
// transcript JSON path plus the language the model detected.
func (c *WhisperXClient) Transcribe(ctx context.Context, jobID, mediaPath string) (TranscribeResult, error) {
	var result TranscribeResult
	if strings.TrimSpace(mediaPath) == "" {
		return result, services.Wrap(services.ErrValidation, transcribeStage, "resolve media",
			"media path is empty", nil)
	}
	if _, err := os.Stat(mediaPath); err != nil {
		return result, services.Wrap(services.ErrFatal, transcribeStage, "resolve media",
			"downloaded media file is missing", err)
	}

	outDir := filepath.Join(c.stagingDir, jobID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrTransient, transcribeStage, "prepare staging",
			"create transcript output directory", err)
	}

	args := []string{
		mediaPath,
		"--output_dir", outDir,
		"--output_format", "json",
	}

	c.logger.Debug("invoking whisperx",
		logging.String(logging.FieldJobID, jobID),
		logging.String("media", mediaPath))

	output, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return result, classifyToolError(ctx, transcribeStage, "transcribe media", "whisperx", err, output, whisperXFatalMarkers)
	}

	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	transcriptPath := filepath.Join(outDir, base+".json")
	language, err := readTranscriptLanguage(transcriptPath)
	if err != nil {
		return result, services.Wrap(services.ErrFatal, transcribeStage, "read transcript",
			"whisperx produced no usable transcript", err)
	}

	result.TranscriptPath = transcriptPath
	result.Language = language
	return result, nil
}

// Transcript is the whisperx JSON document the decide stage consumes.
type Transcript struct {
	Language string              `json:"language"`
	Segments []TranscriptSegment `json:"segments"`
}

// TranscriptSegment is one timed span of speech.
type TranscriptSegment struct {
	Text  string           `json:"text"`
	Start float64          `json:"start"`
	End   float64          `json:"end"`
	Words []TranscriptWord `json:"words,omitempty"`
}

// TranscriptWord is word-level timing when the model emits it.
type TranscriptWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// LoadTranscript parses a whisperx transcript JSON file.
func LoadTranscript(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var transcript Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, err
	}
	return &transcript, nil
}

func readTranscriptLanguage(path string) (string, error) {
	transcript, err := LoadTranscript(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(transcript.Language), nil
}
