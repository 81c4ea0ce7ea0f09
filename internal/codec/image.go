package codec

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"

	// Register decoders for formats image.Decode must recognize.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"mediaprep/internal/plan"
	"mediaprep/internal/services"
)

// DecodeHEIF converts a HEIF/HEIC container into a lossless PNG intermediate
// so downstream adapters work with a format the standard decoders know.
func DecodeHEIF(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, wrapContextErr("decode heif", err)
	}

	f, err := os.Open(in.InputPath)
	if err != nil {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "decode heif", "open input", err)
	}
	defer f.Close()

	img, err := goheif.Decode(f)
	if err != nil {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "decode heif", in.InputPath, err)
	}

	outPath := filepath.Join(in.WorkDir, string(step.Name)+".png")
	if err := writePNG(outPath, img); err != nil {
		return Output{}, err
	}
	return blobOutput(outPath, "image/png")
}

// ResizeImage downscales to fit the configured maximum dimension, writing a
// lossless PNG intermediate. Images already within bounds pass through
// unchanged apart from re-encoding.
func ResizeImage(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, wrapContextErr("resize image", err)
	}
	if step.Resize == nil || step.Resize.MaxDimension <= 0 {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "resize image", "missing resize parameters", nil)
	}

	img, err := openImage(in.InputPath)
	if err != nil {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "resize image", in.InputPath, err)
	}

	maxDim := step.Resize.MaxDimension
	bounds := img.Bounds()
	if bounds.Dx() > maxDim || bounds.Dy() > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	} else {
		img = imaging.Clone(img)
	}

	outPath := filepath.Join(in.WorkDir, string(step.Name)+".png")
	if err := writePNG(outPath, img); err != nil {
		return Output{}, err
	}
	return blobOutput(outPath, "image/png")
}

// EncodeImage writes the final JPEG or PNG rendition per the step's encode
// parameters.
func EncodeImage(ctx context.Context, in Input, step plan.Step, h *Handles) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, wrapContextErr("encode image", err)
	}
	if step.Encode == nil {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "encode image", "missing encode parameters", nil)
	}

	img, err := openImage(in.InputPath)
	if err != nil {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "encode image", in.InputPath, err)
	}

	var (
		outPath string
		mime    string
	)
	switch step.Encode.Format {
	case "png":
		outPath = filepath.Join(in.WorkDir, string(step.Name)+".png")
		mime = "image/png"
		if err := writePNG(outPath, img); err != nil {
			return Output{}, err
		}
	default:
		outPath = filepath.Join(in.WorkDir, string(step.Name)+".jpg")
		mime = "image/jpeg"
		quality := step.Encode.Quality
		if quality <= 0 {
			quality = 82
		}
		if err := writeAtomic(outPath, func(tmp string) error {
			return imaging.Save(img, tmp, imaging.JPEGQuality(quality))
		}, ".jpg"); err != nil {
			return Output{}, services.Wrap(services.ErrCodec, "codec", "encode image", outPath, err)
		}
	}
	return blobOutput(outPath, mime)
}

func openImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func writePNG(path string, img image.Image) error {
	err := writeAtomic(path, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}, ".png")
	if err != nil {
		return services.Wrap(services.ErrCodec, "codec", "write png", path, err)
	}
	return nil
}

// writeAtomic runs produce against a temporary sibling path and renames the
// result into place. The temporary keeps the final extension because some
// encoders infer format from it.
func writeAtomic(path string, produce func(tmp string) error, ext string) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp := filepath.Join(dir, ".tmp-"+base)
	if ext != "" && filepath.Ext(tmp) != ext {
		tmp += ext
	}
	if err := produce(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func blobOutput(path, mime string) (Output, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Output{}, services.Wrap(services.ErrCodec, "codec", "stat output", path, err)
	}
	return Output{Path: path, Mime: mime, Size: info.Size()}, nil
}

func wrapContextErr(operation string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "codec", operation, "deadline exceeded", nil)
	case errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrCancelled, "codec", operation, "cancelled", nil)
	default:
		return services.Wrap(services.ErrCodec, "codec", operation, fmt.Sprintf("context: %v", err), nil)
	}
}
