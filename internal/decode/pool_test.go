package decode

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func newTestPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	p := NewPool(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Start()
	t.Cleanup(p.Stop)
	return p
}

// =========================================================================
// DecodeImage
// =========================================================================

func TestDecodeImage(t *testing.T) {
	tests := []struct {
		name  string
		blob  []byte
		wantW int
		wantH int
	}{
		{"png", encodePNG(t, 40, 30), 40, 30},
		{"jpeg", encodeJPEG(t, 16, 8), 16, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeImage(tt.blob, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, img.Bounds().Dx())
			assert.Equal(t, tt.wantH, img.Bounds().Dy())
		})
	}
}

func TestDecodeImage_Garbage(t *testing.T) {
	_, err := DecodeImage([]byte("definitely not an image"), 0)
	assert.ErrorIs(t, err, ErrUnsupported)

	truncated := encodePNG(t, 50, 50)
	_, err = DecodeImage(truncated[:len(truncated)/2], 0)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDecodeImage_TooLarge(t *testing.T) {
	_, err := DecodeImage(encodePNG(t, 100, 100), 9_999)
	assert.ErrorIs(t, err, ErrTooLarge)
}

// =========================================================================
// Pool
// =========================================================================

func TestPool_Decode(t *testing.T) {
	p := newTestPool(t, Config{Workers: 2, Timeout: 5 * time.Second})

	img, err := p.Decode(context.Background(), encodePNG(t, 12, 34))

	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 12, 34), img.Bounds())
}

func TestPool_ConcurrentDecodes(t *testing.T) {
	p := newTestPool(t, Config{Workers: 3, Timeout: 5 * time.Second})
	blob := encodePNG(t, 20, 20)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Decode(context.Background(), blob)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestPool_PropagatesDecodeErrors(t *testing.T) {
	p := newTestPool(t, Config{Workers: 1})

	_, err := p.Decode(context.Background(), []byte{0x00, 0x01})

	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestPool_Stopped(t *testing.T) {
	p := NewPool(Config{Workers: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Start()
	p.Stop()
	p.Stop() // idempotent

	_, err := p.Decode(context.Background(), encodePNG(t, 1, 1))
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_CanceledContext(t *testing.T) {
	// never started: nothing will pick the job up
	p := NewPool(Config{Workers: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Decode(ctx, encodePNG(t, 1, 1))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.GreaterOrEqual(t, cfg.Workers, 2)
	assert.Positive(t, cfg.MaxPixels)
	assert.Positive(t, cfg.Timeout)
}
