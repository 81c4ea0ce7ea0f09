package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"mediaprep/internal/plan"
	"mediaprep/internal/services"
)

// EncodeFFmpegImage produces AVIF or WebP renditions. Neither format has a
// native Go encoder, so both route through ffmpeg.
func EncodeFFmpegImage(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	if step.Encode == nil {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "encode image", "missing encode parameters", nil)
	}

	var (
		ext   string
		mime  string
		codec []string
	)
	switch step.Encode.Format {
	case "avif":
		ext, mime = ".avif", "image/avif"
		codec = []string{"-c:v", "libaom-av1", "-still-picture", "1", "-crf", "28"}
	case "webp":
		ext, mime = ".webp", "image/webp"
		quality := step.Encode.Quality
		if quality <= 0 {
			quality = 82
		}
		codec = []string{"-c:v", "libwebp", "-quality", strconv.Itoa(quality)}
	default:
		return Output{}, services.Wrap(services.ErrCodec, "codec", "encode image", fmt.Sprintf("unsupported ffmpeg image format %q", step.Encode.Format), nil)
	}

	outPath := filepath.Join(in.WorkDir, string(step.Name)+ext)
	args := append([]string{"-i", in.InputPath}, codec...)
	if err := runFFmpeg(ctx, h, string(step.Name), args, outPath, ext); err != nil {
		return Output{}, err
	}
	return blobOutput(outPath, mime)
}

// GIFToVideo converts an animated GIF into an MP4 clip. Dimensions are
// rounded down to even values because yuv420p requires them.
func GIFToVideo(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	outPath := filepath.Join(in.WorkDir, string(step.Name)+".mp4")
	args := []string{
		"-i", in.InputPath,
		"-movflags", "+faststart",
		"-pix_fmt", "yuv420p",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-an",
	}
	if err := runFFmpeg(ctx, h, string(step.Name), args, outPath, ".mp4"); err != nil {
		return Output{}, err
	}
	return blobOutput(outPath, "video/mp4")
}

// TranscodeVideo re-encodes into the target container with sane streaming
// defaults.
func TranscodeVideo(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	format := "mp4"
	mute := false
	if step.Transcode != nil {
		if step.Transcode.Format != "" {
			format = step.Transcode.Format
		}
		mute = step.Transcode.Mute
	}

	var (
		ext   string
		mime  string
		codec []string
	)
	switch format {
	case "webm":
		ext, mime = ".webm", "video/webm"
		codec = []string{"-c:v", "libvpx-vp9", "-crf", "32", "-b:v", "0", "-c:a", "libopus"}
	default:
		ext, mime = ".mp4", "video/mp4"
		codec = []string{"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-movflags", "+faststart", "-pix_fmt", "yuv420p", "-c:a", "aac"}
	}

	out := outPath(in, step, ext)
	args := append([]string{"-i", in.InputPath}, codec...)
	if mute {
		args = append(args, "-an")
	}
	if err := runFFmpeg(ctx, h, string(step.Name), args, out, ext); err != nil {
		return Output{}, err
	}
	return blobOutput(out, mime)
}

// MuteVideo strips the audio track without re-encoding video.
func MuteVideo(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	ext := filepath.Ext(in.InputPath)
	if ext == "" {
		ext = ".mp4"
	}
	mime := "video/mp4"
	if ext == ".webm" {
		mime = "video/webm"
	}
	out := outPath(in, step, ext)
	args := []string{"-i", in.InputPath, "-c", "copy", "-an"}
	if err := runFFmpeg(ctx, h, string(step.Name), args, out, ext); err != nil {
		return Output{}, err
	}
	return blobOutput(out, mime)
}

// ExtractPoster grabs a single frame as a JPEG poster image.
func ExtractPoster(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	at := 0.0
	if step.Poster != nil {
		at = step.Poster.AtSeconds
	}
	out := outPath(in, step, ".jpg")
	args := []string{
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", in.InputPath,
		"-frames:v", "1",
		"-q:v", "2",
	}
	if err := runFFmpeg(ctx, h, string(step.Name), args, out, ".jpg"); err != nil {
		return Output{}, err
	}
	return blobOutput(out, "image/jpeg")
}

// TranscodeAudio re-encodes audio to MP3 at a quality-targeted bitrate.
func TranscodeAudio(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	out := outPath(in, step, ".mp3")
	args := []string{"-i", in.InputPath, "-c:a", "libmp3lame", "-q:a", "2"}
	if err := runFFmpeg(ctx, h, string(step.Name), args, out, ".mp3"); err != nil {
		return Output{}, err
	}
	return blobOutput(out, "audio/mpeg")
}

func outPath(in Input, step plan.Step, ext string) string {
	return filepath.Join(in.WorkDir, string(step.Name)+ext)
}

// runFFmpeg invokes ffmpeg writing to a temporary sibling of finalPath and
// renames on success. Context timeouts and cancellation map to the retry
// taxonomy; allocation and disk exhaustion surface as transient errors.
func runFFmpeg(ctx context.Context, h *Handles, operation string, args []string, finalPath, ext string) error {
	ffmpeg, err := h.FFmpeg()
	if err != nil {
		return err
	}

	return writeAtomicErr(finalPath, ext, func(tmp string) error {
		full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
		full = append(full, tmp)

		cmd := exec.CommandContext(ctx, ffmpeg, full...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		runErr := cmd.Run()
		if runErr == nil {
			return nil
		}
		return classifyFFmpegErr(ctx, operation, stderr.String(), runErr)
	})
}

func writeAtomicErr(path, ext string, produce func(tmp string) error) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, ".tmp-"+filepath.Base(path))
	if ext != "" && filepath.Ext(tmp) != ext {
		tmp += ext
	}
	if err := produce(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrCodec, "codec", "finalize output", path, err)
	}
	return nil
}

func classifyFFmpegErr(ctx context.Context, operation, stderr string, runErr error) error {
	detail := strings.TrimSpace(stderr)
	if len(detail) > 512 {
		detail = detail[len(detail)-512:]
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "codec", operation, "ffmpeg timed out", nil)
	case errors.Is(ctx.Err(), context.Canceled):
		return services.Wrap(services.ErrCancelled, "codec", operation, "ffmpeg cancelled", nil)
	case strings.Contains(detail, "Cannot allocate memory"),
		strings.Contains(detail, "No space left on device"),
		strings.Contains(detail, "Too many open files"):
		return services.Wrap(services.ErrResourceExhausted, "codec", operation, detail, runErr)
	default:
		return services.Wrap(services.ErrCodec, "codec", operation, detail, runErr)
	}
}
