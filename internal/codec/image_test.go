package codec_test

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaprep/internal/codec"
	"mediaprep/internal/plan"
	"mediaprep/internal/services"
	"mediaprep/internal/testsupport"
)

func decodeConfig(t *testing.T, path string) image.Config {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode config %s: %v", path, err)
	}
	return cfg
}

func TestResizeImageDownscalesToFit(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.png")
	testsupport.WritePNG(t, src, 400, 200)

	out, err := codec.ResizeImage(context.Background(), codec.Input{InputPath: src, WorkDir: workDir}, plan.Step{
		Name:   plan.StepResizeImage,
		Resize: &plan.ResizeParams{MaxDimension: 100},
	}, codec.NewHandles(""))
	if err != nil {
		t.Fatalf("ResizeImage: %v", err)
	}

	cfg := decodeConfig(t, out.Path)
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("resized to %dx%d, want 100x50", cfg.Width, cfg.Height)
	}
	if out.Mime != "image/png" || out.Size == 0 {
		t.Fatalf("output = %+v", out)
	}
}

func TestResizeImageKeepsSmallImages(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.png")
	testsupport.WritePNG(t, src, 60, 40)

	out, err := codec.ResizeImage(context.Background(), codec.Input{InputPath: src, WorkDir: workDir}, plan.Step{
		Name:   plan.StepResizeImage,
		Resize: &plan.ResizeParams{MaxDimension: 100},
	}, codec.NewHandles(""))
	if err != nil {
		t.Fatalf("ResizeImage: %v", err)
	}

	cfg := decodeConfig(t, out.Path)
	if cfg.Width != 60 || cfg.Height != 40 {
		t.Fatalf("dimensions changed to %dx%d", cfg.Width, cfg.Height)
	}
}

func TestResizeImageRequiresParameters(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.png")
	testsupport.WritePNG(t, src, 10, 10)

	_, err := codec.ResizeImage(context.Background(), codec.Input{InputPath: src, WorkDir: workDir}, plan.Step{
		Name: plan.StepResizeImage,
	}, codec.NewHandles(""))
	if !errors.Is(err, services.ErrCodec) {
		t.Fatalf("error = %v, want codec class", err)
	}
}

func TestEncodeImageWritesJPEG(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.png")
	testsupport.WritePNG(t, src, 32, 32)

	out, err := codec.EncodeImage(context.Background(), codec.Input{InputPath: src, WorkDir: workDir}, plan.Step{
		Name:   plan.StepEncodeJPEG,
		Encode: &plan.EncodeParams{Format: "jpeg", Quality: 82},
	}, codec.NewHandles(""))
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}

	if out.Mime != "image/jpeg" || !strings.HasSuffix(out.Path, ".jpg") {
		t.Fatalf("output = %+v, want jpeg", out)
	}
	if out.Size == 0 {
		t.Fatal("encoded file is empty")
	}

	// No temporary files may survive a successful encode.
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Fatalf("leftover temporary file %s", entry.Name())
		}
	}
}

func TestEncodeImageWritesPNG(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.png")
	testsupport.WritePNG(t, src, 16, 16)

	out, err := codec.EncodeImage(context.Background(), codec.Input{InputPath: src, WorkDir: workDir}, plan.Step{
		Name:   plan.StepEncodePNG,
		Encode: &plan.EncodeParams{Format: "png"},
	}, codec.NewHandles(""))
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	if out.Mime != "image/png" {
		t.Fatalf("mime = %q, want image/png", out.Mime)
	}
	cfg := decodeConfig(t, out.Path)
	if cfg.Width != 16 || cfg.Height != 16 {
		t.Fatalf("dimensions = %dx%d, want 16x16", cfg.Width, cfg.Height)
	}
}

func TestEncodeImageUnreadableInputIsCodecError(t *testing.T) {
	workDir := t.TempDir()
	garbage := filepath.Join(workDir, "garbage.png")
	testsupport.WriteFile(t, garbage, 64)

	_, err := codec.EncodeImage(context.Background(), codec.Input{InputPath: garbage, WorkDir: workDir}, plan.Step{
		Name:   plan.StepEncodeJPEG,
		Encode: &plan.EncodeParams{Format: "jpeg"},
	}, codec.NewHandles(""))
	if !errors.Is(err, services.ErrCodec) {
		t.Fatalf("error = %v, want codec class", err)
	}
}

func TestAdaptersHonorCancelledContext(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.png")
	testsupport.WritePNG(t, src, 8, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := codec.ResizeImage(ctx, codec.Input{InputPath: src, WorkDir: workDir}, plan.Step{
		Name:   plan.StepResizeImage,
		Resize: &plan.ResizeParams{MaxDimension: 4},
	}, codec.NewHandles(""))
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("error = %v, want cancelled class", err)
	}
}
