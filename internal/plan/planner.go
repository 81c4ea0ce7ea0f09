package plan

import (
	"strings"

	"mediaprep/internal/config"
	"mediaprep/internal/services"
)

// Build computes the ordered step sequence for a source. It is a pure
// function of its inputs: identical (mime, meta, cfg) always yields an
// identical plan. An empty plan means the original passes through untouched.
func Build(mimeType string, meta SourceMetadata, cfg *config.Config) ([]Step, error) {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	family, subtype, ok := splitMime(mime)
	if !ok {
		return nil, services.Wrap(services.ErrPlanning, "planner", "classify mime", "unsupported media type "+mimeType, nil)
	}

	proc := cfg.Processing
	switch family {
	case "image":
		return planImage(subtype, meta, proc), nil
	case "video":
		return planVideo(meta, proc), nil
	case "audio":
		return planAudio(meta, proc), nil
	default:
		return nil, services.Wrap(services.ErrPlanning, "planner", "classify mime", "unsupported media family "+family, nil)
	}
}

func planImage(subtype string, meta SourceMetadata, proc config.Processing) []Step {
	switch subtype {
	case "heic", "heif":
		return planHEIF(meta, proc)
	case "gif":
		if proc.GIFToVideo && meta.Frames > 1 {
			return planAnimatedGIF(proc)
		}
	}

	var steps []Step
	lastImage := SourceRef

	needsResize := exceedsDimensions(meta, proc)
	needsEncode := needsResize || overSize(meta.SizeBytes, proc.ImageSizeThreshold)

	if needsResize {
		steps = append(steps, Step{
			Name:     StepResizeImage,
			InputRef: lastImage,
			Resize:   &ResizeParams{MaxDimension: proc.ImageDimensionThreshold},
		})
		lastImage = string(StepResizeImage)
	}
	if needsEncode {
		encode := encodeStep(lastImage, proc)
		steps = append(steps, encode)
		lastImage = string(encode.Name)
	}

	return append(steps, metadataSteps(lastImage, proc)...)
}

func planHEIF(meta SourceMetadata, proc config.Processing) []Step {
	// HEIF is never passed through: browsers cannot render it, so a decode
	// plus re-encode pair is always planned.
	steps := []Step{{Name: StepDecodeHEIF, InputRef: SourceRef}}
	lastImage := string(StepDecodeHEIF)

	if exceedsDimensions(meta, proc) {
		steps = append(steps, Step{
			Name:     StepResizeImage,
			InputRef: lastImage,
			Resize:   &ResizeParams{MaxDimension: proc.ImageDimensionThreshold},
		})
		lastImage = string(StepResizeImage)
	}

	encode := encodeStep(lastImage, proc)
	steps = append(steps, encode)
	return append(steps, metadataSteps(string(encode.Name), proc)...)
}

func planAnimatedGIF(proc config.Processing) []Step {
	steps := []Step{
		{
			Name:      StepGIFToVideo,
			InputRef:  SourceRef,
			Transcode: &TranscodeParams{Format: proc.VideoOutputFormat, Mute: true},
		},
		{
			Name:     StepExtractPoster,
			InputRef: string(StepGIFToVideo),
			Poster:   &PosterParams{AtSeconds: 0, Format: "jpeg"},
		},
	}
	return append(steps, metadataSteps(string(StepExtractPoster), proc)...)
}

func planVideo(meta SourceMetadata, proc config.Processing) []Step {
	var steps []Step
	lastVideo := SourceRef

	if overSize(meta.SizeBytes, proc.VideoSizeThreshold) {
		steps = append(steps, Step{
			Name:      StepTranscodeVideo,
			InputRef:  lastVideo,
			Transcode: &TranscodeParams{Format: proc.VideoOutputFormat},
		})
		lastVideo = string(StepTranscodeVideo)
	}
	if proc.MuteVideo && meta.HasAudio {
		steps = append(steps, Step{
			Name:      StepMuteVideo,
			InputRef:  lastVideo,
			Transcode: &TranscodeParams{Format: proc.VideoOutputFormat, Mute: true},
		})
		lastVideo = string(StepMuteVideo)
	}

	steps = append(steps, Step{
		Name:     StepExtractPoster,
		InputRef: lastVideo,
		Poster:   &PosterParams{AtSeconds: posterOffset(meta.Duration), Format: "jpeg"},
	})

	return append(steps, metadataSteps(string(StepExtractPoster), proc)...)
}

func planAudio(meta SourceMetadata, proc config.Processing) []Step {
	if !overSize(meta.SizeBytes, proc.AudioSizeThreshold) {
		return nil
	}
	return []Step{{
		Name:      StepTranscodeAudio,
		InputRef:  SourceRef,
		Transcode: &TranscodeParams{Format: "mp3"},
	}}
}

func encodeStep(inputRef string, proc config.Processing) Step {
	return Step{
		Name:     EncodeStepName(proc.ImageOutputFormat),
		InputRef: inputRef,
		Encode: &EncodeParams{
			Format:     proc.ImageOutputFormat,
			Quality:    proc.JPEGQuality,
			Interlaced: proc.InterlacedPNG,
		},
	}
}

func metadataSteps(inputRef string, proc config.Processing) []Step {
	var steps []Step
	if proc.DominantColor {
		steps = append(steps, Step{
			Name:     StepDominantColor,
			InputRef: inputRef,
			Optional: true,
		})
	}
	if proc.Blurhash {
		steps = append(steps, Step{
			Name:        StepBlurhash,
			InputRef:    inputRef,
			Optional:    true,
			Placeholder: &PlaceholderParams{ComponentsX: 4, ComponentsY: 3},
		})
	}
	return steps
}

func exceedsDimensions(meta SourceMetadata, proc config.Processing) bool {
	if proc.ImageDimensionThreshold <= 0 {
		return false
	}
	return meta.Width > proc.ImageDimensionThreshold || meta.Height > proc.ImageDimensionThreshold
}

func overSize(size, threshold int64) bool {
	return threshold > 0 && size > threshold
}

// posterOffset picks the poster frame timestamp: one second in when the clip
// is long enough, otherwise the first frame.
func posterOffset(duration float64) float64 {
	if duration >= 2 {
		return 1
	}
	return 0
}

func splitMime(mime string) (family, subtype string, ok bool) {
	family, subtype, found := strings.Cut(mime, "/")
	if !found || family == "" || subtype == "" {
		return "", "", false
	}
	return family, subtype, true
}
