package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/promo-studio/internal/apperror"
	"github.com/sakif/promo-studio/internal/render"
	"github.com/sakif/promo-studio/internal/scene"
)

// ============================================================
// FAKE DECODER
// ============================================================

// fakeDecoder returns a solid image sized by the blob. Blobs listed in
// gates block until their channel is closed; "broken" fails.
type fakeDecoder struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls int
}

var sizes = map[string]image.Point{
	"wide":  {X: 1200, Y: 400},
	"tall":  {X: 100, Y: 800},
	"small": {X: 60, Y: 40},
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{gates: map[string]chan struct{}{}}
}

func (d *fakeDecoder) gate(blob string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.gates[blob] = ch
	return ch
}

func (d *fakeDecoder) Decode(ctx context.Context, blob []byte) (image.Image, error) {
	d.mu.Lock()
	d.calls++
	gate := d.gates[string(blob)]
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	size, ok := sizes[string(blob)]
	if !ok {
		return nil, errors.New("unrecognized image data")
	}
	img := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 200, 255
	}
	return img, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSession(t *testing.T) (*Session, *fakeDecoder, *PreviewStore) {
	t.Helper()
	dec := newFakeDecoder()
	previews := NewPreviewStore()
	s := New("test", Deps{
		Decoder:  dec,
		Raster:   render.NewRasterizer(testLogger()),
		Previews: previews,
		Logger:   testLogger(),
	})
	t.Cleanup(s.Close)
	return s, dec, previews
}

func waitFor(t *testing.T, p *Pending) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "decode never finished")
	return err
}

func strPtr(s string) *string { return &s }

// ============================================================
// FORM
// ============================================================

func TestUpdateForm(t *testing.T) {
	s, _, _ := newTestSession(t)

	form, err := s.UpdateForm(FormPatch{
		ProductName:  strPtr("Fone Bluetooth"),
		PrimaryColor: strPtr("#112233"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Fone Bluetooth", form.ProductName)
	assert.Equal(t, "#112233", form.PrimaryColor)
	// Untouched fields keep their defaults.
	assert.Equal(t, scene.DefaultProductPrice, form.ProductPrice)

	s.mu.Lock()
	name, _ := s.scene.Slot(scene.SlotProductName)
	assert.Equal(t, "Fone Bluetooth", name.Text.Content)
	s.mu.Unlock()
}

func TestUpdateFormRejectsInvalidColor(t *testing.T) {
	s, _, _ := newTestSession(t)
	before, _ := s.Form()
	revBefore := summaryRevision(t, s)

	_, err := s.UpdateForm(FormPatch{
		ProductName: strPtr("Changed"),
		AccentColor: strPtr("green"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	after, _ := s.Form()
	assert.Equal(t, before, after, "a rejected patch must not touch the form")
	assert.Equal(t, revBefore, summaryRevision(t, s))
}

func summaryRevision(t *testing.T, s *Session) uint64 {
	t.Helper()
	sum, err := s.Summary()
	require.NoError(t, err)
	return sum.Revision
}

// ============================================================
// IMAGE PIPELINE
// ============================================================

func TestSetImageCommitsAndCreatesPreview(t *testing.T) {
	s, _, previews := newTestSession(t)

	p, err := s.SetImage([]byte("wide"))
	require.NoError(t, err)
	require.NoError(t, waitFor(t, p))

	sum, err := s.Summary()
	require.NoError(t, err)
	assert.True(t, sum.HasImage)
	assert.NotEmpty(t, sum.PreviewKey)
	assert.Equal(t, 1, previews.Len())

	pv, err := s.ImagePreview()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", pv.ContentType)
	assert.NotEmpty(t, pv.Data)

	s.mu.Lock()
	obj, _ := s.scene.Slot(scene.SlotProductImage)
	assert.Equal(t, scene.KindImage, obj.Kind)
	s.mu.Unlock()
}

func TestSetImageSameBlobIsNoop(t *testing.T) {
	s, dec, _ := newTestSession(t)

	p, err := s.SetImage([]byte("wide"))
	require.NoError(t, err)
	require.NoError(t, waitFor(t, p))

	p, err = s.SetImage([]byte("wide"))
	require.NoError(t, err)
	require.NoError(t, waitFor(t, p))
	assert.Equal(t, 1, dec.calls)
}

func TestSetImageSameBlobWhileDecodingSharesOutcome(t *testing.T) {
	s, dec, _ := newTestSession(t)
	slow := dec.gate("wide")

	first, err := s.SetImage([]byte("wide"))
	require.NoError(t, err)
	second, err := s.SetImage([]byte("wide"))
	require.NoError(t, err)
	assert.Same(t, first, second)

	select {
	case <-second.Done():
		t.Fatal("second upload reported done while the decode is still running")
	default:
	}

	close(slow)
	require.NoError(t, waitFor(t, second))
	s.mu.Lock()
	obj, _ := s.scene.Slot(scene.SlotProductImage)
	assert.Equal(t, scene.KindImage, obj.Kind)
	s.mu.Unlock()
}

func TestSetImageSameBlobWhileDecodingSharesFailure(t *testing.T) {
	s, dec, _ := newTestSession(t)
	slow := dec.gate("broken")

	first, err := s.SetImage([]byte("broken"))
	require.NoError(t, err)
	second, err := s.SetImage([]byte("broken"))
	require.NoError(t, err)

	close(slow)
	assert.ErrorIs(t, waitFor(t, first), apperror.ErrUnprocessable)
	assert.ErrorIs(t, waitFor(t, second), apperror.ErrUnprocessable)
}

func TestSetImageLastWriterWins(t *testing.T) {
	s, dec, previews := newTestSession(t)
	slow := dec.gate("wide")

	first, err := s.SetImage([]byte("wide"))
	require.NoError(t, err)
	second, err := s.SetImage([]byte("tall"))
	require.NoError(t, err)
	require.NoError(t, waitFor(t, second))

	// The older decode finishes last and must not overwrite the newer image.
	close(slow)
	err = waitFor(t, first)
	assert.ErrorIs(t, err, scene.ErrSuperseded)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	s.mu.Lock()
	obj, _ := s.scene.Slot(scene.SlotProductImage)
	assert.Equal(t, 800, obj.Image.Bounds().Dy(), "the tall image should be shown")
	s.mu.Unlock()
	assert.Equal(t, 1, previews.Len())
}

func TestSetImageDecodeFailureKeepsPreviousImage(t *testing.T) {
	s, _, _ := newTestSession(t)

	p, err := s.SetImage([]byte("small"))
	require.NoError(t, err)
	require.NoError(t, waitFor(t, p))
	keyBefore := mustSummary(t, s).PreviewKey

	p, err = s.SetImage([]byte("broken"))
	require.NoError(t, err)
	err = waitFor(t, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrUnprocessable)

	form, _ := s.Form()
	assert.Equal(t, []byte("small"), form.ProductImage, "the form should point back at the shown image")
	assert.Equal(t, keyBefore, mustSummary(t, s).PreviewKey)

	// The session stays usable after a failure.
	_, err = s.UpdateForm(FormPatch{ProductName: strPtr("Still works")})
	assert.NoError(t, err)
}

func TestSetImageRequiresData(t *testing.T) {
	s, _, _ := newTestSession(t)
	_, err := s.SetImage(nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestClearImageRestoresPlaceholderAndReleasesPreview(t *testing.T) {
	s, _, previews := newTestSession(t)

	p, err := s.SetImage([]byte("wide"))
	require.NoError(t, err)
	require.NoError(t, waitFor(t, p))
	require.Equal(t, 1, previews.Len())

	require.NoError(t, s.ClearImage())
	assert.Equal(t, 0, previews.Len())

	sum := mustSummary(t, s)
	assert.False(t, sum.HasImage)
	assert.Empty(t, sum.PreviewKey)

	s.mu.Lock()
	obj, _ := s.scene.Slot(scene.SlotProductImage)
	assert.Equal(t, scene.KindRect, obj.Kind)
	s.mu.Unlock()

	_, err = s.ImagePreview()
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestClearImageDropsInFlightDecode(t *testing.T) {
	s, dec, previews := newTestSession(t)
	slow := dec.gate("wide")

	p, err := s.SetImage([]byte("wide"))
	require.NoError(t, err)
	require.NoError(t, s.ClearImage())
	close(slow)

	assert.ErrorIs(t, waitFor(t, p), scene.ErrSuperseded)
	assert.Equal(t, 0, previews.Len())
}

func TestReplacingImageReleasesOldPreview(t *testing.T) {
	s, _, previews := newTestSession(t)

	for _, blob := range []string{"wide", "tall", "small"} {
		p, err := s.SetImage([]byte(blob))
		require.NoError(t, err)
		require.NoError(t, waitFor(t, p))
		assert.Equal(t, 1, previews.Len(), "after %s", blob)
	}
}

func mustSummary(t *testing.T, s *Session) Summary {
	t.Helper()
	sum, err := s.Summary()
	require.NoError(t, err)
	return sum
}

// ============================================================
// SELECTION & MOVE
// ============================================================

func TestSelect(t *testing.T) {
	s, _, _ := newTestSession(t)

	require.NoError(t, s.Select("productPrice"))
	assert.Equal(t, "productPrice", mustSummary(t, s).Selected)

	require.NoError(t, s.Select(""))
	assert.Empty(t, mustSummary(t, s).Selected)

	err := s.Select("logo")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestMoveClampsToCanvas(t *testing.T) {
	s, _, _ := newTestSession(t)

	info, err := s.Move("productImage", -500, 5000)
	require.NoError(t, err)
	assert.Equal(t, 300.0, info.Left)
	assert.Equal(t, 890.0, info.Top)

	// Later form updates keep the user's position.
	_, err = s.UpdateForm(FormPatch{ProductName: strPtr("Moved")})
	require.NoError(t, err)
	for _, slot := range mustSummary(t, s).Slots {
		if slot.Slot == "productImage" {
			assert.Equal(t, 300.0, slot.Left)
		}
	}
}

// ============================================================
// RENDERING
// ============================================================

func TestPreviewShowsSelectionButExportDoesNot(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	clean, err := s.Preview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 540, clean.Width)

	require.NoError(t, s.Select("productName"))
	selected, err := s.Preview(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, clean.Data, selected.Data, "selection chrome should appear in the live view")

	require.NoError(t, s.Select(""))
	again, err := s.Preview(ctx)
	require.NoError(t, err)
	assert.Equal(t, clean.Data, again.Data)
}

func TestPreviewIsCachedUntilRedraw(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	a, err := s.Preview(ctx)
	require.NoError(t, err)
	b, err := s.Preview(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = s.UpdateForm(FormPatch{BackgroundColor: strPtr("#000000")})
	require.NoError(t, err)
	c, err := s.Preview(ctx)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestExportRestoresSelection(t *testing.T) {
	s, _, _ := newTestSession(t)
	require.NoError(t, s.Select("productName"))

	f, err := s.Export(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^smartphone-ultra-premium-xz200-128gb-\d+\.png$`, f.Name)
	assert.Equal(t, 1080, f.Width)

	uri, err := s.Share(context.Background())
	require.NoError(t, err)
	assert.Contains(t, uri, "data:image/png;base64,")

	s.mu.Lock()
	defer s.mu.Unlock()
	obj, _ := s.scene.Slot(scene.SlotProductName)
	assert.True(t, obj.Selectable)
	assert.NotEqual(t, color.NRGBA{}, obj.BorderColor)
}

// ============================================================
// LIFECYCLE
// ============================================================

func TestCloseReleasesPreviewAndRejectsCalls(t *testing.T) {
	s, _, previews := newTestSession(t)

	p, err := s.SetImage([]byte("wide"))
	require.NoError(t, err)
	require.NoError(t, waitFor(t, p))

	s.Close()
	s.Close()
	assert.Equal(t, 0, previews.Len())

	_, err = s.Summary()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.SetImage([]byte("tall"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseStopsPendingDecode(t *testing.T) {
	s, dec, _ := newTestSession(t)
	dec.gate("wide")

	p, err := s.SetImage([]byte("wide"))
	require.NoError(t, err)
	s.Close()
	assert.ErrorIs(t, waitFor(t, p), ErrClosed)
}

func TestPendingWaitHonorsContext(t *testing.T) {
	p := newPending()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
	assert.NoError(t, p.Err())

	p.finish(io.EOF)
	assert.ErrorIs(t, p.Err(), io.EOF)
}
