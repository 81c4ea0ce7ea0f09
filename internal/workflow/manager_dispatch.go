package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mediaprep/internal/codec"
	"mediaprep/internal/logging"
	"mediaprep/internal/pipeline"
	"mediaprep/internal/plan"
	"mediaprep/internal/queue"
	"mediaprep/internal/services"
	"mediaprep/internal/sink"
	"mediaprep/internal/workerpool"
	"time"
)

// dispatch hands the item's next unit of work to a worker goroutine. Items
// whose plan is exhausted go to the sink; everything else runs its active
// step through the pool.
func (m *Manager) dispatch(ctx context.Context, item *queue.Item) {
	steps, err := item.Plan()
	if err != nil {
		// A plan that no longer decodes is a planning failure, published the
		// same way as one caught at enqueue.
		item.SetFailed(services.KindPlanning, "", err.Error())
		m.persistTransition(ctx, item, queue.StatusPlanning, "", err)
		return
	}

	if item.Status == queue.StatusAwaitingUpload || item.Status == queue.StatusUploading || item.StepIndex >= len(steps) {
		m.dispatchUpload(ctx, item)
		return
	}
	m.dispatchStep(ctx, item)
}

func (m *Manager) dispatchStep(ctx context.Context, item *queue.Item) {
	prev := item.Status
	step, ok := pipeline.StartStep(item)
	if !ok {
		m.dispatchUpload(ctx, item)
		return
	}

	input, err := m.stepInput(item, step)
	if err != nil {
		now := time.Now().UTC()
		outcome, applyErr := pipeline.ApplyResult(item, step, queue.Artifact{}, err, m.policy, now)
		if applyErr != nil {
			item.SetFailed(services.KindUnknown, string(step.Name), applyErr.Error())
			outcome = pipeline.OutcomeFailed
		}
		m.persistTransition(ctx, item, prev, string(step.Name), err)
		m.logOutcome(item, outcome, string(step.Name), err)
		return
	}

	if !m.persistTransition(ctx, item, prev, string(step.Name), nil) {
		return
	}

	m.markInFlight(item.ID)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		out, runErr := m.pool.Submit(ctx, workerpool.Task{ItemID: item.ID, Step: step, Input: input})
		select {
		case m.results <- stepResult{itemID: item.ID, step: step, output: out, err: runErr}:
		case <-ctx.Done():
		}
	}()
}

func (m *Manager) dispatchUpload(ctx context.Context, item *queue.Item) {
	prev := item.Status
	item.Status = queue.StatusUploading
	item.RetryAt = nil
	item.SetProgress("Uploading", "", 100)

	if !m.persistTransition(ctx, item, prev, string(plan.StepUpload), nil) {
		return
	}

	snapshot := *item
	m.markInFlight(item.ID)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		assets, err := m.collectAssets(&snapshot)
		var record sink.RemoteRecord
		if err == nil {
			record, err = m.sink.Store(ctx, &snapshot, assets)
		}
		select {
		case m.results <- stepResult{itemID: snapshot.ID, upload: true, record: record, err: err}:
		case <-ctx.Done():
		}
	}()
}

// persistTransition updates the item and publishes the transition when the
// status changed. Illegal status changes are refused before touching the
// store. Returns false when nothing was persisted; the item will be retried
// by stale recovery or the next scheduler pass.
func (m *Manager) persistTransition(ctx context.Context, item *queue.Item, prev queue.Status, step string, cause error) bool {
	if item.Status != prev && !queue.CanTransition(prev, item.Status) {
		err := fmt.Errorf("illegal status transition %s -> %s", prev, item.Status)
		m.setLastError(err)
		m.logger.Error("refusing status transition",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("from", string(prev)),
			logging.String("to", string(item.Status)))
		return false
	}
	if err := m.store.Update(ctx, item); err != nil {
		m.setLastError(err)
		m.logger.Error("persist queue item failed",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Error(err))
		return false
	}
	if item.Status != prev {
		m.publishTransition(item, prev, step, cause)
	}
	return true
}

// stepInput resolves the step's input artifact and prepares the staging
// directory for its output.
func (m *Manager) stepInput(item *queue.Item, step plan.Step) (codec.Input, error) {
	workDir := m.stagingDir(item)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return codec.Input{}, services.Wrap(services.ErrResourceExhausted, "workflow", "staging", workDir, err)
	}

	if step.InputRef == "" || step.InputRef == plan.SourceRef {
		return codec.Input{InputPath: item.SourcePath, Mime: item.MimeType, WorkDir: workDir}, nil
	}

	artifact, ok := item.Outputs()[step.InputRef]
	if !ok || artifact.Path == "" {
		return codec.Input{}, services.Wrap(services.ErrCodec, "workflow", "resolve input", fmt.Sprintf("missing artifact %q", step.InputRef), nil)
	}
	return codec.Input{InputPath: artifact.Path, Mime: artifact.Mime, WorkDir: workDir}, nil
}

// collectAssets picks the blobs worth keeping: outputs not consumed by a
// later required step. Items with nothing to upload from processing send the
// source file unchanged.
func (m *Manager) collectAssets(item *queue.Item) ([]sink.Asset, error) {
	steps, err := item.Plan()
	if err != nil {
		return nil, services.Wrap(services.ErrUpload, "workflow", "collect assets", "decode plan", err)
	}
	outputs := item.Outputs()

	consumed := make(map[string]struct{})
	for _, step := range steps {
		if step.Optional {
			continue
		}
		if step.InputRef != "" && step.InputRef != plan.SourceRef {
			consumed[step.InputRef] = struct{}{}
		}
	}

	var assets []sink.Asset
	for _, step := range steps {
		artifact, ok := outputs[string(step.Name)]
		if !ok || artifact.Kind != queue.ArtifactBlob {
			continue
		}
		if _, intermediate := consumed[string(step.Name)]; intermediate {
			continue
		}
		assets = append(assets, sink.Asset{
			Name: string(step.Name),
			Path: artifact.Path,
			Mime: artifact.Mime,
			Size: artifact.Size,
		})
	}

	if len(assets) == 0 {
		assets = append(assets, sink.Asset{
			Name: "source",
			Path: item.SourcePath,
			Mime: item.MimeType,
			Size: item.SourceSize,
		})
	}
	return assets, nil
}

func (m *Manager) stagingDir(item *queue.Item) string {
	return filepath.Join(m.cfg.Paths.StagingDir, "item-"+item.Key)
}

func (m *Manager) removeStaging(item *queue.Item) {
	dir := m.stagingDir(item)
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("staging cleanup failed",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("path", dir),
			logging.Error(err))
	}
}
