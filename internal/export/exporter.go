// Package export flattens a scene into an encoded raster with every piece of
// editor chrome removed.
package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/disintegration/imaging"

	"github.com/sakif/promo-studio/internal/scene"
)

// Format is the encoding of a snapshot.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts "png", "jpeg" and "jpg". Empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrInvalidOptions, s)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Extension is the file extension of the format, without the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

var (
	// ErrInvalidOptions is returned for out-of-range export options.
	ErrInvalidOptions = errors.New("export: invalid options")
	// ErrRasterize wraps every rasterization failure, panics included.
	ErrRasterize = errors.New("export: rasterization failed")
)

// MaxSizeMultiplier bounds exports to 4320×4320.
const MaxSizeMultiplier = 4

// Options control a single export.
type Options struct {
	// SizeMultiplier scales the 1080×1080 canvas. 1 is full fidelity.
	SizeMultiplier float64
	// Quality is the lossy encoding quality in (0, 1]. PNG ignores it.
	Quality float64
	Format  Format
}

// DownloadOptions is the full fidelity file export.
var DownloadOptions = Options{SizeMultiplier: 1, Quality: 1, Format: FormatPNG}

// ShareOptions is the lightweight inline variant.
var ShareOptions = Options{SizeMultiplier: 0.5, Quality: 1, Format: FormatPNG}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if math.IsNaN(o.SizeMultiplier) || o.SizeMultiplier <= 0 || o.SizeMultiplier > MaxSizeMultiplier {
		return fmt.Errorf("%w: size multiplier must be in (0, %d]", ErrInvalidOptions, MaxSizeMultiplier)
	}
	if math.IsNaN(o.Quality) || o.Quality <= 0 || o.Quality > 1 {
		return fmt.Errorf("%w: quality must be in (0, 1]", ErrInvalidOptions)
	}
	if o.Format != FormatPNG && o.Format != FormatJPEG {
		return fmt.Errorf("%w: unknown format %q", ErrInvalidOptions, o.Format)
	}
	return nil
}

// Snapshot is an encoded, immutable raster of a scene.
type Snapshot struct {
	Data   []byte
	Format Format
	Width  int
	Height int
}

// ContentType is the MIME type of Data.
func (s *Snapshot) ContentType() string { return s.Format.ContentType() }

// DataURI embeds the snapshot as a base64 data URI.
func (s *Snapshot) DataURI() string {
	return "data:" + s.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}

// File is a named snapshot ready for download.
type File struct {
	Name string
	*Snapshot
}

// Rasterizer draws a scene at a size multiplier.
type Rasterizer interface {
	Rasterize(s *scene.Scene, multiplier float64) (image.Image, error)
}

// Exporter produces snapshots of scenes.
type Exporter struct {
	raster Rasterizer
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter creates an exporter drawing with raster.
func NewExporter(raster Rasterizer, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{raster: raster, logger: logger, now: time.Now}
}

// Snapshot rasterizes sc with all interactivity suppressed and encodes it.
// Interactivity is restored before Snapshot returns, whether or not the
// rasterizer fails or panics, and the live view is redrawn once afterwards.
//
// The caller must hold whatever lock serializes access to sc.
func (e *Exporter) Snapshot(ctx context.Context, sc *scene.Scene, opts Options) (*Snapshot, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var img image.Image
	err := scene.WithSuppressedInteractivity(sc, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: panic: %v", ErrRasterize, r)
			}
		}()
		sc.Redraw()
		img, err = e.raster.Rasterize(sc, opts.SizeMultiplier)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRasterize, err)
		}
		if img == nil {
			return fmt.Errorf("%w: rasterizer returned no image", ErrRasterize)
		}
		return nil
	})
	sc.Redraw()
	if err != nil {
		e.logger.Error("export failed", slog.String("error", err.Error()))
		return nil, err
	}

	data, err := Encode(img, opts)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	e.logger.Info("scene exported",
		slog.String("format", string(opts.Format)),
		slog.Float64("multiplier", opts.SizeMultiplier),
		slog.Int("bytes", len(data)),
	)
	return &Snapshot{Data: data, Format: opts.Format, Width: b.Dx(), Height: b.Dy()}, nil
}

// DataURI is Snapshot rendered as an embeddable data URI.
func (e *Exporter) DataURI(ctx context.Context, sc *scene.Scene, opts Options) (string, error) {
	snap, err := e.Snapshot(ctx, sc, opts)
	if err != nil {
		return "", err
	}
	return snap.DataURI(), nil
}

// Download exports sc at full fidelity as a PNG named after the product.
func (e *Exporter) Download(ctx context.Context, sc *scene.Scene) (*File, error) {
	productName := ""
	if obj, ok := sc.Slot(scene.SlotProductName); ok {
		productName = obj.Text.Content
	}
	snap, err := e.Snapshot(ctx, sc, DownloadOptions)
	if err != nil {
		return nil, err
	}
	return &File{Name: FileName(productName, e.now(), snap.Format), Snapshot: snap}, nil
}

// Share exports the half-size variant as a data URI.
func (e *Exporter) Share(ctx context.Context, sc *scene.Scene) (string, error) {
	return e.DataURI(ctx, sc, ShareOptions)
}

// Encode encodes img in the format and quality of opts.
func Encode(img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch opts.Format {
	case FormatJPEG:
		q := int(math.Round(opts.Quality * 100))
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q))
	default:
		err = imaging.Encode(&buf, img, imaging.PNG)
	}
	if err != nil {
		return nil, fmt.Errorf("export: encode %s: %w", opts.Format, err)
	}
	return buf.Bytes(), nil
}
