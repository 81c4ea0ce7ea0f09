package workflow

import (
	"context"
	"time"

	"mediaprep/internal/codec"
	"mediaprep/internal/logging"
	"mediaprep/internal/notifications"
	"mediaprep/internal/pipeline"
	"mediaprep/internal/plan"
	"mediaprep/internal/queue"
	"mediaprep/internal/services"
)

// handleResult folds a worker report back into queue state. The item is
// reloaded first so a cancellation that happened while the worker ran wins
// over the late result.
func (m *Manager) handleResult(ctx context.Context, res stepResult) {
	m.clearInFlight(res.itemID)

	item, err := m.store.GetByID(ctx, res.itemID)
	if err != nil {
		m.setLastError(err)
		m.logger.Error("reload queue item failed",
			logging.Int64(logging.FieldItemID, res.itemID),
			logging.Error(err))
		return
	}
	if item == nil {
		return
	}
	if item.Status == queue.StatusCancelled {
		m.logger.Info("discarding result for cancelled item",
			logging.Int64(logging.FieldItemID, item.ID))
		m.removeStaging(item)
		return
	}

	prev := item.Status
	now := time.Now().UTC()
	stepName := string(res.step.Name)

	var (
		outcome  pipeline.Outcome
		applyErr error
	)
	if res.upload {
		stepName = string(plan.StepUpload)
		outcome, applyErr = pipeline.ApplyUploadResult(item, res.record.URL, res.err, m.policy, now)
	} else {
		outcome, applyErr = pipeline.ApplyResult(item, res.step, artifactFrom(res.output), res.err, m.policy, now)
	}
	if applyErr != nil {
		item.SetFailed(services.KindUnknown, stepName, applyErr.Error())
		outcome = pipeline.OutcomeFailed
	}

	if !m.persistTransition(ctx, item, prev, stepName, res.err) {
		return
	}

	m.logOutcome(item, outcome, stepName, res.err)

	switch outcome {
	case pipeline.OutcomeAdvanced, pipeline.OutcomeWarned, pipeline.OutcomeAwaitingUpload:
		// Continue the item straight away, reusing the slot its previous
		// step just released.
		m.dispatch(ctx, item)
	case pipeline.OutcomeCompleted, pipeline.OutcomeCancelled:
		m.removeStaging(item)
	}
}

func (m *Manager) logOutcome(item *queue.Item, outcome pipeline.Outcome, stepName string, cause error) {
	attrs := []logging.Attr{
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldStep, stepName),
		logging.String("outcome", outcome.String()),
	}

	switch outcome {
	case pipeline.OutcomeFailed:
		attrs = append(attrs,
			logging.String(logging.FieldErrorKind, item.ErrorKind),
			logging.Error(cause))
		m.logger.Error("item failed", logging.Args(attrs...)...)
	case pipeline.OutcomeRetryScheduled:
		if item.RetryAt != nil {
			attrs = append(attrs, logging.String("retry_at", item.RetryAt.Format(time.RFC3339)))
		}
		attrs = append(attrs, logging.Error(cause))
		m.logger.Warn("step retry scheduled", logging.Args(attrs...)...)
	case pipeline.OutcomeWarned:
		attrs = append(attrs, logging.Error(cause))
		m.logger.Warn("optional step skipped", logging.Args(attrs...)...)
	case pipeline.OutcomeCompleted:
		m.logger.Info("item completed", logging.Args(attrs...)...)
	default:
		m.logger.Debug("step applied", logging.Args(attrs...)...)
	}
}

func (m *Manager) publishTransition(item *queue.Item, prev queue.Status, step string, cause error) {
	event := notifications.Event{
		ItemID:         item.ID,
		Key:            item.Key,
		PreviousStatus: prev,
		NewStatus:      item.Status,
		Step:           step,
	}
	if cause != nil {
		event.Err = cause.Error()
	}
	m.bus.Publish(event)
}

func artifactFrom(output codec.Output) queue.Artifact {
	if output.Path != "" {
		return queue.Artifact{
			Kind: queue.ArtifactBlob,
			Path: output.Path,
			Mime: output.Mime,
			Size: output.Size,
		}
	}
	return queue.Artifact{Kind: queue.ArtifactValue, Value: output.Value}
}
