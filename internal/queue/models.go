package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mediaprep/internal/plan"
	"mediaprep/internal/services"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPlanning       Status = "planning"
	StatusProcessing     Status = "processing"
	StatusAwaitingUpload Status = "awaiting_upload"
	StatusUploading      Status = "uploading"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusPlanning,
	StatusProcessing,
	StatusAwaitingUpload,
	StatusUploading,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// Artifact is one step output: either a staged file or an inline scalar
// such as a hex color or a blur placeholder string.
type Artifact struct {
	Kind  string `json:"kind"`
	Path  string `json:"path,omitempty"`
	Mime  string `json:"mime,omitempty"`
	Size  int64  `json:"size,omitempty"`
	Value string `json:"value,omitempty"`
}

const (
	ArtifactBlob  = "blob"
	ArtifactValue = "value"
)

// Warning records an optional-step failure that did not fail the item.
type Warning struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID           int64
	Key          string
	SourcePath   string
	MimeType     string
	SourceSize   int64
	Status       Status
	PlanJSON     string
	StepIndex    int
	OutputsJSON  string
	AttemptsJSON string
	WarningsJSON string
	ErrorKind    string
	ErrorStep    string
	ErrorMessage string
	RemoteURL    string
	RetryAt      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends an item's lifecycle.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// Plan decodes the item's step sequence. A missing plan decodes to nil.
func (i *Item) Plan() ([]plan.Step, error) {
	if strings.TrimSpace(i.PlanJSON) == "" {
		return nil, nil
	}
	var steps []plan.Step
	if err := json.Unmarshal([]byte(i.PlanJSON), &steps); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return steps, nil
}

// SetPlan serializes and stores the step sequence. Plans are written once at
// enqueue time and never rewritten.
func (i *Item) SetPlan(steps []plan.Step) error {
	encoded, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	i.PlanJSON = string(encoded)
	return nil
}

// ActiveStep returns the step at the current index, if any remain.
func (i *Item) ActiveStep() (plan.Step, bool) {
	steps, err := i.Plan()
	if err != nil || i.StepIndex < 0 || i.StepIndex >= len(steps) {
		return plan.Step{}, false
	}
	return steps[i.StepIndex], true
}

// Outputs decodes the append-only step output map.
func (i *Item) Outputs() map[string]Artifact {
	outputs := map[string]Artifact{}
	if strings.TrimSpace(i.OutputsJSON) != "" {
		_ = json.Unmarshal([]byte(i.OutputsJSON), &outputs)
	}
	return outputs
}

// RecordOutput stores a step's artifact. A retry overwrites only its own
// step's prior attempt; other entries are untouched.
func (i *Item) RecordOutput(step string, artifact Artifact) error {
	outputs := i.Outputs()
	outputs[step] = artifact
	encoded, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("encode outputs: %w", err)
	}
	i.OutputsJSON = string(encoded)
	return nil
}

// Attempts decodes the per-step retry counters.
func (i *Item) Attempts() map[string]int {
	attempts := map[string]int{}
	if strings.TrimSpace(i.AttemptsJSON) != "" {
		_ = json.Unmarshal([]byte(i.AttemptsJSON), &attempts)
	}
	return attempts
}

// IncrementAttempt bumps and returns the retry counter for a step.
func (i *Item) IncrementAttempt(step string) int {
	attempts := i.Attempts()
	attempts[step]++
	encoded, err := json.Marshal(attempts)
	if err != nil {
		return attempts[step]
	}
	i.AttemptsJSON = string(encoded)
	return attempts[step]
}

// ResetAttempt clears the retry counter for a step (manual retry).
func (i *Item) ResetAttempt(step string) {
	attempts := i.Attempts()
	delete(attempts, step)
	if encoded, err := json.Marshal(attempts); err == nil {
		i.AttemptsJSON = string(encoded)
	}
}

// Warnings decodes recorded optional-step failures.
func (i *Item) Warnings() []Warning {
	var warnings []Warning
	if strings.TrimSpace(i.WarningsJSON) != "" {
		_ = json.Unmarshal([]byte(i.WarningsJSON), &warnings)
	}
	return warnings
}

// AddWarning appends an optional-step failure record.
func (i *Item) AddWarning(step, message string) {
	warnings := append(i.Warnings(), Warning{Step: step, Message: message})
	if encoded, err := json.Marshal(warnings); err == nil {
		i.WarningsJSON = string(encoded)
	}
}

// SetFailed marks the item as failed with classification detail.
func (i *Item) SetFailed(kind services.Kind, step, message string) {
	i.Status = StatusFailed
	i.ErrorKind = string(kind)
	i.ErrorStep = step
	i.ErrorMessage = message
	i.RetryAt = nil
	i.ProgressStage = "Failed"
	i.ProgressMessage = message
	i.ProgressPercent = 0
}

// ClearError resets failure detail, typically before a retry.
func (i *Item) ClearError() {
	i.ErrorKind = ""
	i.ErrorStep = ""
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}
