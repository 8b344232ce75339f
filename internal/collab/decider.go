package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"github.com/NovoNihilo/clipforge/internal/config"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/services"
)

const decideStage = "decide"

// Decision is the artifact the decide stage writes for downstream stages.
type Decision struct {
	JobID             string   `json:"job_id"`
	Accepted          bool     `json:"accepted"`
	ViralScore        int      `json:"viral_score"`
	Title             string   `json:"title"`
	Language          string   `json:"language"`
	DurationSeconds   float64  `json:"duration_seconds"`
	HookDelaySeconds  float64  `json:"hook_delay_seconds"`
	SilenceRatio      float64  `json:"silence_ratio"`
	WordCount         int      `json:"word_count"`
	Hashtags          []string `json:"hashtags,omitempty"`
	RejectionReasons  []string `json:"rejection_reasons,omitempty"`
}

// ProfileDecider evaluates transcripts against the configured clip profile.
// Deciding is pure computation over the transcript, so every failure is
// final: a clip the rules reject today will be rejected tomorrow too.
type ProfileDecider struct {
	profile    config.Profile
	stagingDir string
	matcher    language.Matcher
	logger     *slog.Logger
}

// NewProfileDecider builds the decision collaborator from config. Language
// tags that fail to parse were already rejected by config validation.
func NewProfileDecider(cfg *config.Config, logger *slog.Logger) *ProfileDecider {
	var tags []language.Tag
	for _, raw := range cfg.Profile.Languages {
		if tag, err := language.Parse(raw); err == nil {
			tags = append(tags, tag)
		}
	}
	var matcher language.Matcher
	if len(tags) > 0 {
		matcher = language.NewMatcher(tags)
	}
	return &ProfileDecider{
		profile:    cfg.Profile,
		stagingDir: cfg.Paths.StagingDir,
		matcher:    matcher,
		logger:     logging.NewComponentLogger(logger, "decider"),
	}
}

// Decide scores the transcript against the profile and writes the decision
// artifact. A clip that violates any profile rule fails fatally with the
// rejection reasons as the error message.
func (d *ProfileDecider) Decide(ctx context.Context, jobID, transcriptPath string) (DecideResult, error) {
	var result DecideResult
	if err := ctx.Err(); err != nil {
		return result, err
	}

	transcript, err := LoadTranscript(transcriptPath)
	if err != nil {
		return result, services.Wrap(services.ErrFatal, decideStage, "load transcript",
			"transcript artifact is missing or malformed", err)
	}

	decision := d.evaluate(jobID, transcript)

	if !decision.Accepted {
		d.logger.Info("clip rejected",
			logging.String(logging.FieldJobID, jobID),
			logging.String("reasons", strings.Join(decision.RejectionReasons, "; ")))
		return result, services.Wrap(services.ErrFatal, decideStage, "evaluate profile",
			fmt.Sprintf("clip rejected: %s", strings.Join(decision.RejectionReasons, "; ")), nil)
	}

	decisionPath := filepath.Join(d.stagingDir, jobID, "decision.json")
	if err := writeDecision(decisionPath, decision); err != nil {
		return result, services.Wrap(services.ErrFatal, decideStage, "persist decision",
			"write decision artifact", err)
	}

	d.logger.Info("clip accepted",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("viral_score", decision.ViralScore))

	result.DecisionPath = decisionPath
	result.ViralScore = decision.ViralScore
	return result, nil
}

func (d *ProfileDecider) evaluate(jobID string, transcript *Transcript) *Decision {
	duration := transcriptDuration(transcript)
	hookDelay := transcriptHookDelay(transcript)
	silenceRatio := transcriptSilenceRatio(transcript, duration)
	wordCount := transcriptWordCount(transcript)

	decision := &Decision{
		JobID:            jobID,
		Title:            d.renderTitle(jobID),
		Language:         transcript.Language,
		DurationSeconds:  duration,
		HookDelaySeconds: hookDelay,
		SilenceRatio:     silenceRatio,
		WordCount:        wordCount,
		Hashtags:         append([]string(nil), d.profile.Hashtags...),
	}

	var reasons []string
	if duration < d.profile.LengthMinSeconds || duration > d.profile.LengthMaxSeconds {
		reasons = append(reasons, fmt.Sprintf("duration %.1fs outside [%.1f, %.1f]",
			duration, d.profile.LengthMinSeconds, d.profile.LengthMaxSeconds))
	}
	if !d.languageAllowed(transcript.Language) {
		reasons = append(reasons, fmt.Sprintf("language %q not in profile", transcript.Language))
	}
	if hookDelay > d.profile.HookMaxDelaySeconds {
		reasons = append(reasons, fmt.Sprintf("hook starts at %.1fs, limit %.1fs",
			hookDelay, d.profile.HookMaxDelaySeconds))
	}
	if silenceRatio > d.profile.SilenceRatioMax {
		reasons = append(reasons, fmt.Sprintf("silence ratio %.2f above %.2f",
			silenceRatio, d.profile.SilenceRatioMax))
	}

	if len(reasons) > 0 {
		decision.RejectionReasons = reasons
		return decision
	}

	decision.Accepted = true
	decision.ViralScore = scoreClip(d.profile, duration, hookDelay, silenceRatio)
	return decision
}

// languageAllowed matches the detected language against the profile set.
// An empty profile set admits everything; an undetected language only
// passes when the profile does not care.
func (d *ProfileDecider) languageAllowed(detected string) bool {
	if d.matcher == nil {
		return true
	}
	detected = strings.TrimSpace(detected)
	if detected == "" {
		return false
	}
	tag, err := language.Parse(detected)
	if err != nil {
		return false
	}
	_, _, confidence := d.matcher.Match(tag)
	return confidence >= language.High
}

func (d *ProfileDecider) renderTitle(jobID string) string {
	template := d.profile.TitleTemplate
	if template == "" {
		template = "{job}"
	}
	return strings.NewReplacer(
		"{job}", jobID,
		"{slug}", d.profile.Slug,
	).Replace(template)
}

// scoreClip produces a 1..10 heuristic: a fast hook and dense speech push
// the score up from a baseline of 5.
func scoreClip(profile config.Profile, duration, hookDelay, silenceRatio float64) int {
	score := 5
	if profile.HookMaxDelaySeconds > 0 && hookDelay <= profile.HookMaxDelaySeconds/2 {
		score += 2
	}
	if profile.SilenceRatioMax > 0 && silenceRatio <= profile.SilenceRatioMax/2 {
		score += 2
	}
	mid := (profile.LengthMinSeconds + profile.LengthMaxSeconds) / 2
	if duration > 0 && mid > 0 {
		span := (profile.LengthMaxSeconds - profile.LengthMinSeconds) / 4
		if duration >= mid-span && duration <= mid+span {
			score++
		}
	}
	if score > 10 {
		score = 10
	}
	if score < 1 {
		score = 1
	}
	return score
}

func transcriptDuration(t *Transcript) float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

func transcriptHookDelay(t *Transcript) float64 {
	for _, segment := range t.Segments {
		if strings.TrimSpace(segment.Text) == "" {
			continue
		}
		if len(segment.Words) > 0 {
			return segment.Words[0].Start
		}
		return segment.Start
	}
	return 0
}

func transcriptSilenceRatio(t *Transcript, duration float64) float64 {
	if duration <= 0 {
		return 1
	}
	var speech float64
	for _, segment := range t.Segments {
		if span := segment.End - segment.Start; span > 0 {
			speech += span
		}
	}
	ratio := 1 - speech/duration
	if ratio < 0 {
		return 0
	}
	return ratio
}

func transcriptWordCount(t *Transcript) int {
	count := 0
	for _, segment := range t.Segments {
		if len(segment.Words) > 0 {
			count += len(segment.Words)
			continue
		}
		count += len(strings.Fields(segment.Text))
	}
	return count
}

func writeDecision(path string, decision *Decision) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadDecision parses a decision artifact written by the decide stage.
func LoadDecision(path string) (*Decision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var decision Decision
	if err := json.Unmarshal(data, &decision); err != nil {
		return nil, err
	}
	return &decision, nil
}
