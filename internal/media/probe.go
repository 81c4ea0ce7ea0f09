package media

import (
	"context"
	"image"
	"image/gif"
	"os"
	"strings"

	// Register decoders so DecodeConfig recognizes common image uploads.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"mediaprep/internal/config"
	"mediaprep/internal/media/ffprobe"
	"mediaprep/internal/plan"
	"mediaprep/internal/services"
)

// ProbeSource inspects an upload before planning. Images decode in-process;
// video and audio go through ffprobe. Failures surface as planning errors
// because a file we cannot read cannot be planned.
func ProbeSource(ctx context.Context, cfg *config.Config, path, mimeType string) (plan.SourceMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return plan.SourceMetadata{}, services.Wrap(services.ErrPlanning, "media", "probe", path, err)
	}
	meta := plan.SourceMetadata{SizeBytes: info.Size()}

	family, subtype := splitMime(mimeType)
	switch family {
	case "image":
		probeImage(path, subtype, &meta)
	case "video", "audio":
		if err := probeContainer(ctx, cfg, path, &meta); err != nil {
			return plan.SourceMetadata{}, err
		}
	}
	return meta, nil
}

// probeImage fills dimensions and frame counts on a best-effort basis. HEIF
// containers are left unprobed; their plan decodes them regardless of size.
func probeImage(path, subtype string, meta *plan.SourceMetadata) {
	if subtype == "heic" || subtype == "heif" {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	if subtype == "gif" {
		if animated, err := gif.DecodeAll(f); err == nil && len(animated.Image) > 0 {
			bounds := animated.Image[0].Bounds()
			meta.Width = bounds.Dx()
			meta.Height = bounds.Dy()
			meta.Frames = len(animated.Image)
		}
		return
	}

	if cfg, _, err := image.DecodeConfig(f); err == nil {
		meta.Width = cfg.Width
		meta.Height = cfg.Height
		meta.Frames = 1
	}
}

func probeContainer(ctx context.Context, cfg *config.Config, path string, meta *plan.SourceMetadata) error {
	result, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
	if err != nil {
		return services.Wrap(services.ErrPlanning, "media", "probe", path, err)
	}

	meta.Duration = result.DurationSeconds()
	meta.HasAudio = result.HasAudio()
	if stream, ok := result.FirstVideoStream(); ok {
		meta.Width = stream.Width
		meta.Height = stream.Height
		meta.Frames = stream.FrameCount()
	}
	return nil
}

func splitMime(mimeType string) (family, subtype string) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(mimeType)), "/", 2)
	family = parts[0]
	if len(parts) == 2 {
		subtype = parts[1]
	}
	return family, subtype
}
