// Package decode turns uploaded product images into pixels on a bounded
// pool of workers.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Formats accepted for upload. imaging registers the rest.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupported is returned for blobs that are not a readable image.
	ErrUnsupported = errors.New("decode: unsupported or corrupt image")
	// ErrTooLarge is returned when the image has more pixels than allowed.
	ErrTooLarge = errors.New("decode: image dimensions too large")
	// ErrPoolClosed is returned by Decode after Stop.
	ErrPoolClosed = errors.New("decode: pool is closed")
)

// DecodeImage decodes blob, honoring EXIF orientation. The header is read
// first so oversized images are refused before allocation.
func DecodeImage(blob []byte, maxPixels int) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupported)
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(blob), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	return img, nil
}
