package workflow

import (
	"context"
	"fmt"
	"strings"

	"mediaprep/internal/config"
	"mediaprep/internal/logging"
	"mediaprep/internal/media"
	"mediaprep/internal/pipeline"
	"mediaprep/internal/plan"
	"mediaprep/internal/queue"
	"mediaprep/internal/services"
)

// Enqueue probes and plans a source file, then inserts it. Planning happens
// synchronously so the caller sees immediately whether the file is workable:
// unplannable files land as failed, files needing no work go straight to
// awaiting upload, everything else waits as pending with its plan attached.
func (m *Manager) Enqueue(ctx context.Context, sourcePath, mimeType string) (*queue.Item, error) {
	resolved, err := config.ExpandPath(sourcePath)
	if err != nil {
		return nil, err
	}

	item := &queue.Item{
		SourcePath: resolved,
		MimeType:   strings.ToLower(strings.TrimSpace(mimeType)),
	}

	var steps []plan.Step
	meta, planErr := media.ProbeSource(ctx, m.cfg, resolved, item.MimeType)
	if planErr == nil {
		item.SourceSize = meta.SizeBytes
		steps, planErr = plan.Build(item.MimeType, meta, m.cfg)
	}

	switch {
	case planErr != nil:
		item.SetFailed(services.ClassifyKind(planErr), "", planErr.Error())
	case len(steps) == 0:
		item.Status = queue.StatusAwaitingUpload
		item.SetProgress("Awaiting upload", "no processing required", 100)
	default:
		if err := item.SetPlan(steps); err != nil {
			return nil, err
		}
		item.Status = queue.StatusPending
		item.SetProgress("Pending", string(steps[0].Name), 0)
	}

	stored, err := m.store.NewItem(ctx, item)
	if err != nil {
		return nil, err
	}

	m.logger.Info("item enqueued",
		logging.Int64(logging.FieldItemID, stored.ID),
		logging.String("source", stored.SourcePath),
		logging.String("status", string(stored.Status)),
		logging.Any("steps", plan.Names(steps)))
	m.publishTransition(stored, queue.StatusPlanning, "", planErr)
	return stored, nil
}

// Cancel moves a non-terminal item to cancelled. A result already in flight
// for the item is discarded when it arrives; the running adapter is not
// interrupted. Staging artifacts are removed once no worker can be touching
// them.
func (m *Manager) Cancel(ctx context.Context, id int64) (*queue.Item, error) {
	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d not found", id)
	}

	prev := item.Status
	if !pipeline.Cancel(item) {
		return item, fmt.Errorf("item %d is already %s", id, item.Status)
	}
	if err := m.store.Update(ctx, item); err != nil {
		return nil, err
	}

	m.logger.Info("item cancelled",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("previous_status", string(prev)))
	m.publishTransition(item, prev, "", nil)

	if !m.isInFlight(id) {
		m.removeStaging(item)
	}
	return item, nil
}

// Retry requeues a failed item. Upload failures resume at the sink hand-off;
// step failures resume at the failed step with its attempt counter reset.
// Planning failures stay terminal because there is no plan to resume.
func (m *Manager) Retry(ctx context.Context, id int64) (*queue.Item, error) {
	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d not found", id)
	}
	if item.Status != queue.StatusFailed {
		return item, fmt.Errorf("item %d is %s; only failed items can be retried", id, item.Status)
	}

	kind := services.Kind(item.ErrorKind)
	if kind == services.KindPlanning {
		return item, fmt.Errorf("item %d failed planning; re-add the file instead", id)
	}

	prev := item.Status
	if item.ErrorStep != "" {
		item.ResetAttempt(item.ErrorStep)
	}
	item.ClearError()
	item.RetryAt = nil

	if kind == services.KindUpload {
		item.Status = queue.StatusAwaitingUpload
		item.SetProgress("Awaiting upload", "", 100)
	} else {
		item.Status = queue.StatusPending
		item.SetProgress("Pending", "", 0)
	}

	if err := m.store.Update(ctx, item); err != nil {
		return nil, err
	}

	m.logger.Info("item requeued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("status", string(item.Status)))
	m.publishTransition(item, prev, item.ErrorStep, nil)
	return item, nil
}
