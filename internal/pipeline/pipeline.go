package pipeline

import (
	"time"

	"mediaprep/internal/config"
	"mediaprep/internal/plan"
	"mediaprep/internal/queue"
	"mediaprep/internal/services"
)

// RetryPolicy bounds automatic per-step retries and shapes their backoff.
// MaxRetries is the number of failing runs a step gets before the item
// fails; a step failing with MaxRetries of 2 runs twice and then stops.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// PolicyFromConfig derives the retry policy from processing settings.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.Processing.MaxRetries,
		BaseDelay:  time.Duration(cfg.Processing.RetryBaseDelay) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.Processing.RetryMaxDelay) * time.Millisecond,
	}
}

// Outcome is the decision ApplyResult reached for one step result.
type Outcome int

const (
	// OutcomeAdvanced means the step succeeded and another step remains.
	OutcomeAdvanced Outcome = iota
	// OutcomeAwaitingUpload means the plan is exhausted and the item is
	// ready for the sink.
	OutcomeAwaitingUpload
	// OutcomeRetryScheduled means the step failed transiently; retry_at
	// gates its next dispatch.
	OutcomeRetryScheduled
	// OutcomeWarned means an optional step failed and was skipped with a
	// recorded warning.
	OutcomeWarned
	// OutcomeFailed means the item reached a terminal failure.
	OutcomeFailed
	// OutcomeCancelled means cancellation won the race against the result.
	OutcomeCancelled
	// OutcomeCompleted means the upload finished and the item is done.
	OutcomeCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeAwaitingUpload:
		return "awaiting-upload"
	case OutcomeRetryScheduled:
		return "retry-scheduled"
	case OutcomeWarned:
		return "warned"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// StartStep marks the item in-flight for its active step and returns that
// step. Returns false when no step remains at the current index.
func StartStep(item *queue.Item) (plan.Step, bool) {
	step, ok := item.ActiveStep()
	if !ok {
		return plan.Step{}, false
	}
	item.Status = queue.StatusProcessing
	item.RetryAt = nil

	steps, _ := item.Plan()
	percent := 0.0
	if len(steps) > 0 {
		percent = float64(item.StepIndex) / float64(len(steps)) * 100
	}
	item.SetProgress("Processing", string(step.Name), percent)
	return step, true
}

// ApplyResult folds one step result into the item and decides what happens
// next. It mutates only the item; persistence and notification belong to the
// caller. The clock is passed in so retry schedules are testable.
func ApplyResult(item *queue.Item, step plan.Step, artifact queue.Artifact, stepErr error, policy RetryPolicy, now time.Time) (Outcome, error) {
	if item.Status == queue.StatusCancelled {
		return OutcomeCancelled, nil
	}

	if stepErr == nil {
		if err := item.RecordOutput(string(step.Name), artifact); err != nil {
			return OutcomeFailed, err
		}
		item.ClearError()
		item.RetryAt = nil
		return advance(item), nil
	}

	kind := services.ClassifyKind(stepErr)
	if kind == services.KindCancelled {
		Cancel(item)
		return OutcomeCancelled, nil
	}

	if step.Optional {
		item.AddWarning(string(step.Name), stepErr.Error())
		item.RetryAt = nil
		if advance(item) == OutcomeAwaitingUpload {
			return OutcomeAwaitingUpload, nil
		}
		return OutcomeWarned, nil
	}

	if !services.Retryable(stepErr) {
		item.SetFailed(kind, string(step.Name), stepErr.Error())
		return OutcomeFailed, nil
	}

	attempt := item.IncrementAttempt(string(step.Name))
	// Resource exhaustion is environmental, not the item's fault; it backs
	// off without consuming the retry budget.
	if kind != services.KindResourceExhausted && attempt >= policy.MaxRetries {
		item.SetFailed(kind, string(step.Name), stepErr.Error())
		return OutcomeFailed, nil
	}

	scheduleRetry(item, attempt, policy, now)
	item.Status = queue.StatusProcessing
	return OutcomeRetryScheduled, nil
}

// ApplyUploadResult folds a sink result into the item. Upload failures retry
// under the same policy as plan steps, keyed by the upload pseudo-step.
func ApplyUploadResult(item *queue.Item, remoteURL string, uploadErr error, policy RetryPolicy, now time.Time) (Outcome, error) {
	if item.Status == queue.StatusCancelled {
		return OutcomeCancelled, nil
	}

	if uploadErr == nil {
		item.Status = queue.StatusCompleted
		item.RemoteURL = remoteURL
		item.RetryAt = nil
		item.ClearError()
		item.SetProgress("Completed", "", 100)
		return OutcomeCompleted, nil
	}

	kind := services.ClassifyKind(uploadErr)
	if kind == services.KindCancelled {
		Cancel(item)
		return OutcomeCancelled, nil
	}

	stepName := string(plan.StepUpload)
	attempt := item.IncrementAttempt(stepName)
	if kind != services.KindResourceExhausted && attempt >= policy.MaxRetries {
		item.SetFailed(kind, stepName, uploadErr.Error())
		return OutcomeFailed, nil
	}

	scheduleRetry(item, attempt, policy, now)
	item.Status = queue.StatusAwaitingUpload
	return OutcomeRetryScheduled, nil
}

// Cancel moves a non-terminal item to cancelled. Terminal items are left
// untouched so completed or failed state is never rewritten.
func Cancel(item *queue.Item) bool {
	if queue.IsTerminal(item.Status) {
		return false
	}
	item.Status = queue.StatusCancelled
	item.RetryAt = nil
	item.SetProgress("Cancelled", "", 0)
	return true
}

func scheduleRetry(item *queue.Item, attempt int, policy RetryPolicy, now time.Time) {
	delay := Backoff(attempt, policy.BaseDelay, policy.MaxDelay, item.ID)
	retryAt := now.Add(delay)
	item.RetryAt = &retryAt
}

func advance(item *queue.Item) Outcome {
	item.StepIndex++
	steps, _ := item.Plan()
	if item.StepIndex >= len(steps) {
		item.Status = queue.StatusAwaitingUpload
		item.SetProgress("Awaiting upload", "", 100)
		return OutcomeAwaitingUpload
	}
	item.Status = queue.StatusProcessing
	next := steps[item.StepIndex]
	percent := float64(item.StepIndex) / float64(len(steps)) * 100
	item.SetProgress("Processing", string(next.Name), percent)
	return OutcomeAdvanced
}
