package codec

import (
	"context"
	"fmt"

	"github.com/buckket/go-blurhash"
	"github.com/cenkalti/dominantcolor"

	"mediaprep/internal/plan"
	"mediaprep/internal/services"
)

// DominantColor samples the input image and returns its dominant color as a
// hex string value artifact.
func DominantColor(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, wrapContextErr("dominant color", err)
	}

	img, err := openImage(in.InputPath)
	if err != nil {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "dominant color", in.InputPath, err)
	}

	return Output{Value: dominantcolor.Hex(dominantcolor.Find(img))}, nil
}

// Blurhash computes a compact blur placeholder string for the input image.
func Blurhash(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, wrapContextErr("blurhash", err)
	}

	cx, cy := 4, 3
	if step.Placeholder != nil {
		if step.Placeholder.ComponentsX > 0 {
			cx = step.Placeholder.ComponentsX
		}
		if step.Placeholder.ComponentsY > 0 {
			cy = step.Placeholder.ComponentsY
		}
	}

	img, err := openImage(in.InputPath)
	if err != nil {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "blurhash", in.InputPath, err)
	}

	hash, err := blurhash.Encode(cx, cy, img)
	if err != nil {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "blurhash", fmt.Sprintf("encode %dx%d components", cx, cy), err)
	}
	return Output{Value: hash}, nil
}
