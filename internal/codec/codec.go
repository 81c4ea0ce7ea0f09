package codec

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"mediaprep/internal/plan"
	"mediaprep/internal/services"
)

// Input describes the file a step reads and where its output belongs.
// InputPath is the staged artifact selected by the step's InputRef; WorkDir
// is the item's staging directory where the adapter writes its output.
type Input struct {
	InputPath string
	Mime      string
	WorkDir   string
}

// Output is what an adapter produced: a staged file or an inline value.
type Output struct {
	Path  string
	Mime  string
	Size  int64
	Value string
}

// Adapter executes one step. Adapters never modify their input file; output
// files are written to a temporary name and renamed into place so a killed
// attempt leaves nothing half-written.
type Adapter func(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error)

// Handles carries lazily-resolved external tool paths shared by adapters.
type Handles struct {
	ffmpegName string

	once       sync.Once
	ffmpegPath string
	resolveErr error
}

// NewHandles prepares handles around the configured ffmpeg binary name.
// Resolution is deferred until an adapter actually needs the tool.
func NewHandles(ffmpegBinary string) *Handles {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Handles{ffmpegName: ffmpegBinary}
}

// FFmpeg resolves and caches the ffmpeg executable path.
func (h *Handles) FFmpeg() (string, error) {
	h.once.Do(func() {
		h.ffmpegPath, h.resolveErr = exec.LookPath(h.ffmpegName)
	})
	if h.resolveErr != nil {
		return "", services.Wrap(services.ErrCodec, "codec", "resolve ffmpeg", h.ffmpegName, h.resolveErr)
	}
	return h.ffmpegPath, nil
}

// Registry maps step names to their adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[plan.StepName]Adapter
}

// NewRegistry returns a registry with every built-in adapter registered.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[plan.StepName]Adapter)}
	r.Register(plan.StepDecodeHEIF, DecodeHEIF)
	r.Register(plan.StepResizeImage, ResizeImage)
	r.Register(plan.StepEncodeJPEG, EncodeImage)
	r.Register(plan.StepEncodePNG, EncodeImage)
	r.Register(plan.StepEncodeAVIF, EncodeFFmpegImage)
	r.Register(plan.StepEncodeWebP, EncodeFFmpegImage)
	r.Register(plan.StepGIFToVideo, GIFToVideo)
	r.Register(plan.StepTranscodeVideo, TranscodeVideo)
	r.Register(plan.StepMuteVideo, MuteVideo)
	r.Register(plan.StepExtractPoster, ExtractPoster)
	r.Register(plan.StepTranscodeAudio, TranscodeAudio)
	r.Register(plan.StepDominantColor, DominantColor)
	r.Register(plan.StepBlurhash, Blurhash)
	return r
}

// Register installs or replaces the adapter for a step name.
func (r *Registry) Register(name plan.StepName, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = adapter
}

// Lookup returns the adapter for a step name.
func (r *Registry) Lookup(name plan.StepName) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, services.Wrap(services.ErrCodec, "codec", "lookup adapter", fmt.Sprintf("no adapter for step %q", name), nil)
	}
	return adapter, nil
}

// Names returns the registered step names, for preflight checks and tests.
func (r *Registry) Names() []plan.StepName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]plan.StepName, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
