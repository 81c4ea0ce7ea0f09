package plan_test

import (
	"errors"
	"reflect"
	"testing"

	"mediaprep/internal/plan"
	"mediaprep/internal/services"
	"mediaprep/internal/testsupport"
)

func TestBuildIsDeterministic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	meta := plan.SourceMetadata{SizeBytes: 2_200_000, Width: 3000, Height: 2000, Frames: 1}

	first, err := plan.Build("image/jpeg", meta, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := plan.Build("image/jpeg", meta, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different plans:\n%v\n%v", first, second)
	}
}

func TestBuildLargeImagePlansResizeThenEncode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	meta := plan.SourceMetadata{SizeBytes: 2_200_000, Width: 3000, Height: 2000, Frames: 1}

	steps, err := plan.Build("image/jpeg", meta, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := plan.Names(steps)
	want := []string{"resize-image", "encode-jpeg", "compute-dominant-color", "compute-blurhash"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("plan = %v, want %v", names, want)
	}
	if steps[1].InputRef != string(plan.StepResizeImage) {
		t.Fatalf("encode input = %q, want resize output", steps[1].InputRef)
	}
	if !steps[2].Optional || !steps[3].Optional {
		t.Fatal("metadata steps must be optional")
	}
}

func TestBuildSmallImageNeedsNoProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Processing.DominantColor = false
	cfg.Processing.Blurhash = false
	meta := plan.SourceMetadata{SizeBytes: 200_000, Width: 800, Height: 600, Frames: 1}

	steps, err := plan.Build("image/png", meta, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("expected empty plan, got %v", plan.Names(steps))
	}
}

func TestBuildSmallImageKeepsMetadataSteps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	meta := plan.SourceMetadata{SizeBytes: 200_000, Width: 800, Height: 600, Frames: 1}

	steps, err := plan.Build("image/png", meta, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := plan.Names(steps)
	want := []string{"compute-dominant-color", "compute-blurhash"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("plan = %v, want %v", names, want)
	}
	for _, step := range steps {
		if step.InputRef != plan.SourceRef {
			t.Fatalf("metadata input = %q, want source", step.InputRef)
		}
	}
}

func TestBuildUnsupportedMimeIsPlanningError(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	_, err := plan.Build("application/pdf", plan.SourceMetadata{SizeBytes: 10}, cfg)
	if err == nil {
		t.Fatal("expected error for unsupported media type")
	}
	if !errors.Is(err, services.ErrPlanning) {
		t.Fatalf("error = %v, want planning class", err)
	}
	if services.Retryable(err) {
		t.Fatal("planning errors must not be retryable")
	}
}

func TestBuildAnimatedGIFBecomesVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	meta := plan.SourceMetadata{SizeBytes: 500_000, Width: 320, Height: 240, Frames: 24}

	steps, err := plan.Build("image/gif", meta, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := plan.Names(steps)
	want := []string{"gif-to-video", "extract-poster", "compute-dominant-color", "compute-blurhash"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("plan = %v, want %v", names, want)
	}
	if steps[2].InputRef != string(plan.StepExtractPoster) {
		t.Fatalf("metadata input = %q, want poster output", steps[2].InputRef)
	}
}

func TestBuildStaticGIFTreatedAsImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	meta := plan.SourceMetadata{SizeBytes: 100_000, Width: 320, Height: 240, Frames: 1}

	steps, err := plan.Build("image/gif", meta, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, step := range steps {
		if step.Name == plan.StepGIFToVideo {
			t.Fatalf("single-frame gif must not plan %s", plan.StepGIFToVideo)
		}
	}
}

func TestBuildHEIFAlwaysDecodesAndEncodes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	meta := plan.SourceMetadata{SizeBytes: 50_000}

	steps, err := plan.Build("image/heic", meta, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := plan.Names(steps)
	if names[0] != "decode-heif" {
		t.Fatalf("first step = %q, want decode-heif", names[0])
	}
	if names[1] != "encode-jpeg" {
		t.Fatalf("second step = %q, want encode-jpeg", names[1])
	}
	if steps[1].InputRef != string(plan.StepDecodeHEIF) {
		t.Fatalf("encode input = %q, want decode output", steps[1].InputRef)
	}
}

func TestBuildVideoChainsTranscodeMutePoster(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Processing.MuteVideo = true
	meta := plan.SourceMetadata{SizeBytes: 150 << 20, Duration: 42, HasAudio: true}

	steps, err := plan.Build("video/mp4", meta, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := plan.Names(steps)
	want := []string{"transcode-video", "mute-video", "extract-poster", "compute-dominant-color", "compute-blurhash"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("plan = %v, want %v", names, want)
	}
	if steps[2].InputRef != string(plan.StepMuteVideo) {
		t.Fatalf("poster input = %q, want muted output", steps[2].InputRef)
	}
	if steps[2].Poster == nil || steps[2].Poster.AtSeconds != 1 {
		t.Fatalf("poster params = %+v, want 1s offset", steps[2].Poster)
	}
}

func TestBuildSmallVideoStillGetsPoster(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	meta := plan.SourceMetadata{SizeBytes: 5 << 20, Duration: 1.5}

	steps, err := plan.Build("video/webm", meta, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if steps[0].Name != plan.StepExtractPoster {
		t.Fatalf("first step = %q, want extract-poster", steps[0].Name)
	}
	if steps[0].InputRef != plan.SourceRef {
		t.Fatalf("poster input = %q, want source", steps[0].InputRef)
	}
	if steps[0].Poster.AtSeconds != 0 {
		t.Fatalf("short clip poster offset = %v, want 0", steps[0].Poster.AtSeconds)
	}
}

func TestBuildAudioOnlyOverThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	small, err := plan.Build("audio/mpeg", plan.SourceMetadata{SizeBytes: 1 << 20}, cfg)
	if err != nil {
		t.Fatalf("Build small: %v", err)
	}
	if len(small) != 0 {
		t.Fatalf("small audio plan = %v, want empty", plan.Names(small))
	}

	large, err := plan.Build("audio/wav", plan.SourceMetadata{SizeBytes: 50 << 20}, cfg)
	if err != nil {
		t.Fatalf("Build large: %v", err)
	}
	if len(large) != 1 || large[0].Name != plan.StepTranscodeAudio {
		t.Fatalf("large audio plan = %v, want transcode-audio", plan.Names(large))
	}
}
