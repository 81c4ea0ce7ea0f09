package plan

// SourceRef is the InputRef value that feeds a step from the original upload.
const SourceRef = "source"

// StepName identifies one transformation in an item's plan.
type StepName string

const (
	StepDecodeHEIF     StepName = "decode-heif"
	StepResizeImage    StepName = "resize-image"
	StepEncodeJPEG     StepName = "encode-jpeg"
	StepEncodePNG      StepName = "encode-png"
	StepEncodeAVIF     StepName = "encode-avif"
	StepEncodeWebP     StepName = "encode-webp"
	StepGIFToVideo     StepName = "gif-to-video"
	StepTranscodeVideo StepName = "transcode-video"
	StepMuteVideo      StepName = "mute-video"
	StepExtractPoster  StepName = "extract-poster"
	StepTranscodeAudio StepName = "transcode-audio"
	StepDominantColor  StepName = "compute-dominant-color"
	StepBlurhash       StepName = "compute-blurhash"

	// StepUpload is not planned; it names the sink hand-off for retry
	// accounting and error attribution.
	StepUpload StepName = "upload"
)

// EncodeParams configures still-image encoding.
type EncodeParams struct {
	Format     string `json:"format"`
	Quality    int    `json:"quality,omitempty"`
	Interlaced bool   `json:"interlaced,omitempty"`
}

// ResizeParams configures image downscaling.
type ResizeParams struct {
	MaxDimension int `json:"max_dimension"`
}

// TranscodeParams configures container/codec conversion for video and audio.
type TranscodeParams struct {
	Format string `json:"format"`
	Mute   bool   `json:"mute,omitempty"`
}

// PosterParams configures poster frame extraction.
type PosterParams struct {
	AtSeconds float64 `json:"at_seconds"`
	Format    string  `json:"format"`
}

// PlaceholderParams configures blur placeholder encoding.
type PlaceholderParams struct {
	ComponentsX int `json:"components_x"`
	ComponentsY int `json:"components_y"`
}

// Step is one planned transformation. Exactly one params variant is set,
// matching the step name; the zero variants stay nil so the JSON form carries
// only the parameters the step understands.
type Step struct {
	Name     StepName `json:"name"`
	InputRef string   `json:"input_ref"`
	Optional bool     `json:"optional,omitempty"`

	Encode      *EncodeParams      `json:"encode,omitempty"`
	Resize      *ResizeParams      `json:"resize,omitempty"`
	Transcode   *TranscodeParams   `json:"transcode,omitempty"`
	Poster      *PosterParams      `json:"poster,omitempty"`
	Placeholder *PlaceholderParams `json:"placeholder,omitempty"`
}

// SourceMetadata captures what is known about an upload before planning.
// Width/Height/Duration are zero when the probe could not determine them.
type SourceMetadata struct {
	SizeBytes int64
	Width     int
	Height    int
	Duration  float64
	Frames    int
	HasAudio  bool
}

// EncodeStepName maps an image output format to its step name. Unknown
// formats fall back to JPEG, matching the config default.
func EncodeStepName(format string) StepName {
	switch format {
	case "png":
		return StepEncodePNG
	case "avif":
		return StepEncodeAVIF
	case "webp":
		return StepEncodeWebP
	default:
		return StepEncodeJPEG
	}
}

// IsEncode reports whether a step name is one of the still-image encoders.
func IsEncode(name StepName) bool {
	switch name {
	case StepEncodeJPEG, StepEncodePNG, StepEncodeAVIF, StepEncodeWebP:
		return true
	default:
		return false
	}
}

// Names returns the ordered step names of a plan, for logs and tests.
func Names(steps []Step) []string {
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = string(step.Name)
	}
	return names
}
