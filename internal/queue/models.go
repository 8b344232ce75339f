package queue

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NovoNihilo/clipforge/internal/services"
)

// Stage represents a clip job's position in the pipeline.
type Stage string

const (
	StageDiscovered  Stage = "discovered"
	StageDownloaded  Stage = "downloaded"
	StageTranscribed Stage = "transcribed"
	StageDecided     Stage = "decided"
	StageRendered    Stage = "rendered"
	StagePackaged    Stage = "packaged"
	StageFailed      Stage = "failed"
)

var pipelineOrder = []Stage{
	StageDiscovered,
	StageDownloaded,
	StageTranscribed,
	StageDecided,
	StageRendered,
	StagePackaged,
}

// forwardTransitions is the only legal success path. Failed is reachable
// sideways from any non-terminal stage; packaged has no outgoing edge.
var forwardTransitions = map[Stage]Stage{
	StageDiscovered:  StageDownloaded,
	StageDownloaded:  StageTranscribed,
	StageTranscribed: StageDecided,
	StageDecided:     StageRendered,
	StageRendered:    StagePackaged,
}

// stagePayloadKeys maps the stage being executed to the payload keys its
// collaborator is allowed to write. Keys from earlier stages are immutable.
var stagePayloadKeys = map[Stage]map[string]struct{}{
	StageDiscovered:  {"media_path": {}, "duration_seconds": {}},
	StageDownloaded:  {"transcript_path": {}, "language": {}},
	StageTranscribed: {"decision_path": {}, "viral_score": {}},
	StageDecided:     {"rendered_path": {}},
	StageRendered:    {"package_path": {}},
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(pipelineOrder)+1)
	for _, stage := range pipelineOrder {
		set[stage] = struct{}{}
	}
	set[StageFailed] = struct{}{}
	return set
}()

// Job is one clip's progress through the pipeline.
type Job struct {
	ID             string
	SourceURL      string
	Stage          Stage
	FailureStage   Stage
	AttemptCount   int
	Payload        map[string]string
	ErrorMessage   string
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	NextAttemptAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Leased reports whether the job carries an unexpired lease at the given time.
func (j *Job) Leased(now time.Time) bool {
	return j.LeaseOwner != "" && j.LeaseExpiresAt != nil && j.LeaseExpiresAt.After(now)
}

// Terminal reports whether no further mutation is permitted.
func (j *Job) Terminal() bool {
	return j.Stage == StagePackaged
}

// AllStages returns the ordered pipeline stages plus failed.
func AllStages() []Stage {
	cp := make([]Stage, len(pipelineOrder), len(pipelineOrder)+1)
	copy(cp, pipelineOrder)
	return append(cp, StageFailed)
}

// RunnableStages returns the stages the driver polls: everything with a
// forward transition left to make.
func RunnableStages() []Stage {
	stages := make([]Stage, 0, len(forwardTransitions))
	for _, stage := range pipelineOrder {
		if _, ok := forwardTransitions[stage]; ok {
			stages = append(stages, stage)
		}
	}
	return stages
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// NextStage returns the successor of a stage on the success path.
func NextStage(stage Stage) (Stage, bool) {
	next, ok := forwardTransitions[stage]
	return next, ok
}

// ValidTransition reports whether from→to is a legal success transition.
func ValidTransition(from, to Stage) bool {
	next, ok := forwardTransitions[from]
	return ok && next == to
}

// ValidatePatch rejects payload patches that touch keys not owned by the
// stage being executed.
func ValidatePatch(stage Stage, patch map[string]string) error {
	if len(patch) == 0 {
		return nil
	}
	owned := stagePayloadKeys[stage]
	var illegal []string
	for key := range patch {
		if _, ok := owned[key]; !ok {
			illegal = append(illegal, key)
		}
	}
	if len(illegal) == 0 {
		return nil
	}
	sort.Strings(illegal)
	return services.Wrap(services.ErrValidation, string(stage), "apply payload patch",
		fmt.Sprintf("keys not owned by stage: %s", strings.Join(illegal, ", ")), nil)
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total    int
	Runnable int
	Failed   int
	Packaged int
}
