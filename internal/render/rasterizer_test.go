package render

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/promo-studio/internal/scene"
)

func newTestRasterizer() *Rasterizer {
	return NewRasterizer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pixels(t *testing.T, img image.Image) []uint8 {
	t.Helper()
	rgba, ok := img.(*image.RGBA)
	require.True(t, ok, "expected *image.RGBA, got %T", img)
	return rgba.Pix
}

func TestRasterize_Size(t *testing.T) {
	r := newTestRasterizer()
	s := scene.NewTemplate()

	tests := []struct {
		multiplier float64
		want       int
	}{
		{1, 1080},
		{0.5, 540},
		{0.25, 270},
		{2, 2160},
	}
	for _, tt := range tests {
		img, err := r.Rasterize(s, tt.multiplier)
		require.NoError(t, err)
		assert.Equal(t, tt.want, img.Bounds().Dx())
		assert.Equal(t, tt.want, img.Bounds().Dy())
	}
}

func TestRasterize_InvalidMultiplier(t *testing.T) {
	r := newTestRasterizer()
	s := scene.New()

	for _, m := range []float64{0, -1, 0.0001} {
		_, err := r.Rasterize(s, m)
		assert.ErrorIs(t, err, ErrInvalidMultiplier, "multiplier %v", m)
	}
}

func TestRasterize_Background(t *testing.T) {
	r := newTestRasterizer()
	s := scene.New()
	s.SetBackground(color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	img, err := r.Rasterize(s, 0.1)
	require.NoError(t, err)

	got := color.NRGBAModel.Convert(img.At(5, 5)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, got)
}

func TestRasterize_SkipsHidden(t *testing.T) {
	r := newTestRasterizer()
	s := scene.New()
	red := &scene.Object{
		Kind:     scene.KindRect,
		Geometry: scene.Geometry{Width: scene.CanvasWidth, Height: scene.CanvasHeight},
		Paint:    scene.Paint{Fill: scene.Solid(color.NRGBA{R: 255, A: 255})},
	}
	s.Add(red)

	img, err := r.Rasterize(s, 0.1)
	require.NoError(t, err)
	r0, _, _, _ := img.At(50, 50).RGBA()
	assert.Equal(t, uint32(0xffff), r0)

	red.Hidden = true
	img, err = r.Rasterize(s, 0.1)
	require.NoError(t, err)
	_, g, _, _ := img.At(50, 50).RGBA()
	assert.Equal(t, uint32(0xffff), g, "hidden rect should leave the white background")
}

func TestRasterize_Deterministic(t *testing.T) {
	r := newTestRasterizer()
	s := scene.NewTemplate()

	a, err := r.Rasterize(s, 0.5)
	require.NoError(t, err)
	b, err := r.Rasterize(s, 0.5)
	require.NoError(t, err)

	assert.Equal(t, pixels(t, a), pixels(t, b))
}

func TestRasterize_ApplyTwiceRendersIdentically(t *testing.T) {
	r := newTestRasterizer()
	s := scene.NewTemplate()
	u := scene.NewUpdater(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	form := scene.DefaultFormState()
	form.ProductName = "Air Fryer 5L"
	form.PrimaryColor = "#0055FF"

	u.Apply(s, form)
	first, err := r.Rasterize(s, 0.25)
	require.NoError(t, err)
	u.Apply(s, form)
	second, err := r.Rasterize(s, 0.25)
	require.NoError(t, err)

	assert.Equal(t, pixels(t, first), pixels(t, second))
}

func TestRasterize_SelectionChrome(t *testing.T) {
	r := newTestRasterizer()
	s := scene.NewTemplate()

	clean, err := r.Rasterize(s, 0.5)
	require.NoError(t, err)

	name, _ := s.Slot(scene.SlotProductName)
	require.NoError(t, s.Select(name))
	selected, err := r.Rasterize(s, 0.5)
	require.NoError(t, err)
	assert.NotEqual(t, pixels(t, clean), pixels(t, selected), "selection chrome should be visible")

	var suppressed image.Image
	err = scene.WithSuppressedInteractivity(s, func() error {
		var rerr error
		suppressed, rerr = r.Rasterize(s, 0.5)
		return rerr
	})
	require.NoError(t, err)
	assert.Equal(t, pixels(t, clean), pixels(t, suppressed), "suppressed render must match an unselected one")
}

func TestRasterize_Image(t *testing.T) {
	r := newTestRasterizer()
	s := scene.New()
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for i := range src.Pix {
		src.Pix[i] = 0xff
		if i%4 == 1 || i%4 == 2 {
			src.Pix[i] = 0
		}
	}
	s.Add(&scene.Object{
		Kind:     scene.KindImage,
		Geometry: scene.Geometry{Left: 540, Top: 540, Width: 10, Height: 10, ScaleX: 20, ScaleY: 20, Origin: scene.OriginCenter},
		Image:    src,
	})

	img, err := r.Rasterize(s, 0.5)
	require.NoError(t, err)

	got := color.NRGBAModel.Convert(img.At(270, 270)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, got)
	_, g, _, _ := img.At(10, 10).RGBA()
	assert.Equal(t, uint32(0xffff), g)
}
