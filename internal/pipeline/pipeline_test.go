package pipeline_test

import (
	"testing"
	"time"

	"mediaprep/internal/pipeline"
	"mediaprep/internal/plan"
	"mediaprep/internal/queue"
	"mediaprep/internal/services"
)

var testPolicy = pipeline.RetryPolicy{
	MaxRetries: 2,
	BaseDelay:  10 * time.Millisecond,
	MaxDelay:   100 * time.Millisecond,
}

func newPlannedItem(t *testing.T, steps ...plan.Step) *queue.Item {
	t.Helper()
	item := &queue.Item{ID: 1, Key: "test-key", Status: queue.StatusPending}
	if err := item.SetPlan(steps); err != nil {
		t.Fatalf("SetPlan: %v", err)
	}
	return item
}

func twoStepPlan(t *testing.T) *queue.Item {
	return newPlannedItem(t,
		plan.Step{Name: plan.StepResizeImage, InputRef: plan.SourceRef, Resize: &plan.ResizeParams{MaxDimension: 100}},
		plan.Step{Name: plan.StepEncodeJPEG, InputRef: string(plan.StepResizeImage), Encode: &plan.EncodeParams{Format: "jpeg"}},
	)
}

func TestApplyResultSuccessAdvancesThenAwaitsUpload(t *testing.T) {
	item := twoStepPlan(t)
	now := time.Now().UTC()

	step, ok := pipeline.StartStep(item)
	if !ok {
		t.Fatal("StartStep returned no step")
	}
	if item.Status != queue.StatusProcessing {
		t.Fatalf("status = %s, want processing", item.Status)
	}

	artifact := queue.Artifact{Kind: queue.ArtifactBlob, Path: "/tmp/resized.png", Mime: "image/png", Size: 10}
	outcome, err := pipeline.ApplyResult(item, step, artifact, nil, testPolicy, now)
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if outcome != pipeline.OutcomeAdvanced {
		t.Fatalf("outcome = %s, want advanced", outcome)
	}
	if item.StepIndex != 1 {
		t.Fatalf("step index = %d, want 1", item.StepIndex)
	}
	if got := item.Outputs()[string(plan.StepResizeImage)]; got.Path != artifact.Path {
		t.Fatalf("recorded output = %+v, want %+v", got, artifact)
	}

	step, ok = pipeline.StartStep(item)
	if !ok {
		t.Fatal("second StartStep returned no step")
	}
	outcome, err = pipeline.ApplyResult(item, step, queue.Artifact{Kind: queue.ArtifactBlob, Path: "/tmp/out.jpg"}, nil, testPolicy, now)
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if outcome != pipeline.OutcomeAwaitingUpload {
		t.Fatalf("outcome = %s, want awaiting-upload", outcome)
	}
	if item.Status != queue.StatusAwaitingUpload {
		t.Fatalf("status = %s, want awaiting_upload", item.Status)
	}
}

func TestApplyResultRetriesThenFails(t *testing.T) {
	item := twoStepPlan(t)
	now := time.Now().UTC()
	step, _ := pipeline.StartStep(item)
	codecErr := services.Wrap(services.ErrCodec, "codec", "resize image", "boom", nil)

	for attempt := 1; attempt < testPolicy.MaxRetries; attempt++ {
		outcome, err := pipeline.ApplyResult(item, step, queue.Artifact{}, codecErr, testPolicy, now)
		if err != nil {
			t.Fatalf("ApplyResult attempt %d: %v", attempt, err)
		}
		if outcome != pipeline.OutcomeRetryScheduled {
			t.Fatalf("attempt %d outcome = %s, want retry-scheduled", attempt, outcome)
		}
		if item.RetryAt == nil || !item.RetryAt.After(now) {
			t.Fatalf("attempt %d: retry_at not scheduled in the future", attempt)
		}
		if item.Status != queue.StatusProcessing {
			t.Fatalf("attempt %d status = %s, want processing", attempt, item.Status)
		}
	}

	// The second failure exhausts a budget of two runs.
	outcome, err := pipeline.ApplyResult(item, step, queue.Artifact{}, codecErr, testPolicy, now)
	if err != nil {
		t.Fatalf("ApplyResult final: %v", err)
	}
	if outcome != pipeline.OutcomeFailed {
		t.Fatalf("final outcome = %s, want failed", outcome)
	}
	if item.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", item.Status)
	}
	if got := item.Attempts()[string(plan.StepResizeImage)]; got != testPolicy.MaxRetries {
		t.Fatalf("attempts = %d, want %d", got, testPolicy.MaxRetries)
	}
	if item.ErrorKind != string(services.KindCodec) {
		t.Fatalf("error kind = %q, want codec", item.ErrorKind)
	}
	if item.ErrorStep != string(plan.StepResizeImage) {
		t.Fatalf("error step = %q, want %s", item.ErrorStep, plan.StepResizeImage)
	}
	if item.RetryAt != nil {
		t.Fatal("failed item must not keep a retry schedule")
	}
}

func TestApplyResultRetryCountersAreIsolatedPerStep(t *testing.T) {
	item := twoStepPlan(t)
	now := time.Now().UTC()
	step, _ := pipeline.StartStep(item)
	codecErr := services.Wrap(services.ErrCodec, "codec", "resize image", "flaky", nil)

	if outcome, _ := pipeline.ApplyResult(item, step, queue.Artifact{}, codecErr, testPolicy, now); outcome != pipeline.OutcomeRetryScheduled {
		t.Fatalf("outcome = %v, want retry-scheduled", outcome)
	}
	if outcome, _ := pipeline.ApplyResult(item, step, queue.Artifact{Kind: queue.ArtifactBlob, Path: "/tmp/a"}, nil, testPolicy, now); outcome != pipeline.OutcomeAdvanced {
		t.Fatalf("outcome = %v, want advanced", outcome)
	}

	// The next step starts with a clean budget despite the earlier retry.
	next, _ := pipeline.StartStep(item)
	if got := item.Attempts()[string(next.Name)]; got != 0 {
		t.Fatalf("next step attempts = %d, want 0", got)
	}
}

func TestApplyResultPlanningErrorIsTerminal(t *testing.T) {
	item := twoStepPlan(t)
	step, _ := pipeline.StartStep(item)
	planErr := services.Wrap(services.ErrPlanning, "workflow", "dispatch", "corrupt plan", nil)

	outcome, err := pipeline.ApplyResult(item, step, queue.Artifact{}, planErr, testPolicy, time.Now().UTC())
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if outcome != pipeline.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome)
	}
	if item.ErrorKind != string(services.KindPlanning) {
		t.Fatalf("error kind = %q, want planning", item.ErrorKind)
	}
}

func TestApplyResultResourceExhaustionKeepsRetrying(t *testing.T) {
	item := twoStepPlan(t)
	now := time.Now().UTC()
	step, _ := pipeline.StartStep(item)
	busyErr := services.Wrap(services.ErrResourceExhausted, "codec", "resize image", "no memory", nil)

	for attempt := 1; attempt <= testPolicy.MaxRetries+3; attempt++ {
		outcome, err := pipeline.ApplyResult(item, step, queue.Artifact{}, busyErr, testPolicy, now)
		if err != nil {
			t.Fatalf("ApplyResult attempt %d: %v", attempt, err)
		}
		if outcome != pipeline.OutcomeRetryScheduled {
			t.Fatalf("attempt %d outcome = %s, want retry-scheduled", attempt, outcome)
		}
	}
}

func TestApplyResultOptionalStepFailureBecomesWarning(t *testing.T) {
	item := newPlannedItem(t,
		plan.Step{Name: plan.StepEncodeJPEG, InputRef: plan.SourceRef, Encode: &plan.EncodeParams{Format: "jpeg"}},
		plan.Step{Name: plan.StepDominantColor, InputRef: string(plan.StepEncodeJPEG), Optional: true},
		plan.Step{Name: plan.StepBlurhash, InputRef: string(plan.StepEncodeJPEG), Optional: true, Placeholder: &plan.PlaceholderParams{ComponentsX: 4, ComponentsY: 3}},
	)
	now := time.Now().UTC()

	step, _ := pipeline.StartStep(item)
	if outcome, _ := pipeline.ApplyResult(item, step, queue.Artifact{Kind: queue.ArtifactBlob, Path: "/tmp/out.jpg"}, nil, testPolicy, now); outcome != pipeline.OutcomeAdvanced {
		t.Fatalf("encode outcome = %v, want advanced", outcome)
	}

	step, _ = pipeline.StartStep(item)
	codecErr := services.Wrap(services.ErrCodec, "codec", "dominant color", "boom", nil)
	outcome, err := pipeline.ApplyResult(item, step, queue.Artifact{}, codecErr, testPolicy, now)
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if outcome != pipeline.OutcomeWarned {
		t.Fatalf("outcome = %s, want warned", outcome)
	}
	if item.Status != queue.StatusProcessing {
		t.Fatalf("status = %s, want processing", item.Status)
	}

	warnings := item.Warnings()
	if len(warnings) != 1 || warnings[0].Step != string(plan.StepDominantColor) {
		t.Fatalf("warnings = %+v, want one for dominant color", warnings)
	}

	// Remaining optional step succeeds and the item heads to upload.
	step, _ = pipeline.StartStep(item)
	outcome, err = pipeline.ApplyResult(item, step, queue.Artifact{Kind: queue.ArtifactValue, Value: "LEHV6nWB2yk8"}, nil, testPolicy, now)
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if outcome != pipeline.OutcomeAwaitingUpload {
		t.Fatalf("outcome = %s, want awaiting-upload", outcome)
	}
}

func TestApplyResultCancellationWins(t *testing.T) {
	item := twoStepPlan(t)
	step, _ := pipeline.StartStep(item)

	cancelErr := services.Wrap(services.ErrCancelled, "workerpool", "resize-image", "cancelled", nil)
	outcome, err := pipeline.ApplyResult(item, step, queue.Artifact{}, cancelErr, testPolicy, time.Now().UTC())
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if outcome != pipeline.OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", outcome)
	}
	if item.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", item.Status)
	}
}

func TestApplyResultIgnoresResultsForCancelledItems(t *testing.T) {
	item := twoStepPlan(t)
	step, _ := pipeline.StartStep(item)
	pipeline.Cancel(item)

	outcome, err := pipeline.ApplyResult(item, step, queue.Artifact{Kind: queue.ArtifactBlob, Path: "/tmp/late.png"}, nil, testPolicy, time.Now().UTC())
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if outcome != pipeline.OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", outcome)
	}
	if len(item.Outputs()) != 0 {
		t.Fatal("late result must not record outputs on a cancelled item")
	}
}

func TestApplyUploadResultLifecycle(t *testing.T) {
	now := time.Now().UTC()
	uploadErr := services.Wrap(services.ErrUpload, "sink", "upload", "bucket unavailable", nil)

	item := newPlannedItem(t)
	item.Status = queue.StatusUploading

	for attempt := 1; attempt < testPolicy.MaxRetries; attempt++ {
		outcome, err := pipeline.ApplyUploadResult(item, "", uploadErr, testPolicy, now)
		if err != nil {
			t.Fatalf("ApplyUploadResult attempt %d: %v", attempt, err)
		}
		if outcome != pipeline.OutcomeRetryScheduled {
			t.Fatalf("attempt %d outcome = %s, want retry-scheduled", attempt, outcome)
		}
		if item.Status != queue.StatusAwaitingUpload {
			t.Fatalf("attempt %d status = %s, want awaiting_upload", attempt, item.Status)
		}
		item.Status = queue.StatusUploading
	}

	outcome, err := pipeline.ApplyUploadResult(item, "", uploadErr, testPolicy, now)
	if err != nil {
		t.Fatalf("ApplyUploadResult final: %v", err)
	}
	if outcome != pipeline.OutcomeFailed {
		t.Fatalf("final outcome = %s, want failed", outcome)
	}
	if got := item.Attempts()[string(plan.StepUpload)]; got != testPolicy.MaxRetries {
		t.Fatalf("upload attempts = %d, want %d", got, testPolicy.MaxRetries)
	}
	if item.ErrorKind != string(services.KindUpload) {
		t.Fatalf("error kind = %q, want upload", item.ErrorKind)
	}

	fresh := newPlannedItem(t)
	fresh.Status = queue.StatusUploading
	outcome, err = pipeline.ApplyUploadResult(fresh, "https://cdn.example/test", nil, testPolicy, now)
	if err != nil {
		t.Fatalf("ApplyUploadResult success: %v", err)
	}
	if outcome != pipeline.OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", outcome)
	}
	if fresh.Status != queue.StatusCompleted || fresh.RemoteURL != "https://cdn.example/test" {
		t.Fatalf("item = %s %q, want completed with remote URL", fresh.Status, fresh.RemoteURL)
	}
}

func TestCancelOnlyTouchesNonTerminalItems(t *testing.T) {
	item := twoStepPlan(t)
	if !pipeline.Cancel(item) {
		t.Fatal("pending item should cancel")
	}
	if item.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", item.Status)
	}

	done := newPlannedItem(t)
	done.Status = queue.StatusCompleted
	if pipeline.Cancel(done) {
		t.Fatal("completed item must not be cancellable")
	}
	if done.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed untouched", done.Status)
	}
}
