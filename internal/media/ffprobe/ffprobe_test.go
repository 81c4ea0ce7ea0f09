package ffprobe

import (
	"encoding/json"
	"testing"
)

const sampleOutput = `{
	"streams": [
		{"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080, "nb_frames": "1438"},
		{"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
	],
	"format": {"filename": "clip.mp4", "nb_streams": 2, "duration": "59.94", "format_name": "mov,mp4,m4a"}
}`

func parseSample(t *testing.T) Result {
	t.Helper()
	var result Result
	if err := json.Unmarshal([]byte(sampleOutput), &result); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	return result
}

func TestResultAccessors(t *testing.T) {
	result := parseSample(t)

	stream, ok := result.FirstVideoStream()
	if !ok {
		t.Fatal("video stream not found")
	}
	if stream.Width != 1920 || stream.Height != 1080 {
		t.Fatalf("dimensions = %dx%d", stream.Width, stream.Height)
	}
	if stream.FrameCount() != 1438 {
		t.Fatalf("frames = %d, want 1438", stream.FrameCount())
	}

	if !result.HasAudio() {
		t.Fatal("audio stream not detected")
	}
	if got := result.DurationSeconds(); got != 59.94 {
		t.Fatalf("duration = %v, want 59.94", got)
	}
}

func TestResultHandlesMissingFields(t *testing.T) {
	var result Result
	if _, ok := result.FirstVideoStream(); ok {
		t.Fatal("empty result must not report a video stream")
	}
	if result.HasAudio() {
		t.Fatal("empty result must not report audio")
	}
	if result.DurationSeconds() != 0 {
		t.Fatal("missing duration must read as 0")
	}

	stream := Stream{NBFrames: "not-a-number"}
	if stream.FrameCount() != 0 {
		t.Fatal("unparseable frame count must read as 0")
	}
}
