package optimizer

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Imaging is a Backend built on disintegration/imaging. Output is JPEG,
// or PNG when a downscaled image encodes smaller that way.
type Imaging struct{}

// Encode checks the declared dimensions against opts.MaxPixels, decodes
// data, downscales it to opts.MaxWidth and encodes JPEG at opts.Quality.
func (Imaging) Encode(data []byte, opts Options) (Encoded, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Encoded{}, fmt.Errorf("decode image header: %w", err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, opts.MaxPixels); err != nil {
		return Encoded{}, fmt.Errorf("%s image: %w", format, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Encoded{}, fmt.Errorf("decode image: %w", err)
	}

	resized := img.Bounds().Dx() > opts.MaxWidth
	if resized {
		img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return Encoded{}, fmt.Errorf("encode jpeg: %w", err)
	}
	out := buf.Bytes()

	// Flat graphics can compress far better losslessly; only worth trying
	// when the result must be kept for the width cap.
	if resized && len(out) >= len(data) {
		var lossless bytes.Buffer
		err := imaging.Encode(&lossless, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
		if err == nil && lossless.Len() < len(out) {
			out = lossless.Bytes()
		}
	}
	return Encoded{Data: out, Resized: resized}, nil
}

func checkPixels(width, height, limit int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if limit > 0 && int64(width)*int64(height) > int64(limit) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, width, height, limit)
	}
	return nil
}
