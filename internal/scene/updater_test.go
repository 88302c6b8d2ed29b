package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// TEST HELPERS
// =========================================================================

var errBadImage = errors.New("bad image")

// fakeDecoder maps blob contents to canned images.
type fakeDecoder struct {
	images map[string]image.Image
}

func (f *fakeDecoder) Decode(_ context.Context, blob []byte) (image.Image, error) {
	if img, ok := f.images[string(blob)]; ok {
		return img, nil
	}
	return nil, errBadImage
}

func newTestUpdater(t *testing.T) *Updater {
	t.Helper()
	dec := &fakeDecoder{images: map[string]image.Image{
		"wide": image.NewNRGBA(image.Rect(0, 0, 1200, 400)),
		"tall": image.NewNRGBA(image.Rect(0, 0, 100, 800)),
		"tiny": image.NewNRGBA(image.Rect(0, 0, 30, 19)),
	}}
	return NewUpdater(dec, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fingerprint renders every drawable attribute of the scene to a string so
// two states can be compared.
func fingerprint(s *Scene) string {
	out := fmt.Sprintf("bg=%v\n", s.Background())
	s.Walk(func(o *Object) {
		out += fmt.Sprintf("%v %+v %+v %+v %+v %p %+v %v\n",
			o.Kind, o.Tag, o.Geometry, o.Paint.Fill, o.Text, o.Image, o.Frame, o.Hidden)
	})
	return out
}

func formWithImage(blob string) FormState {
	f := DefaultFormState()
	f.ProductImage = []byte(blob)
	return f
}

// =========================================================================
// TEXT AND COLOR TESTS
// =========================================================================

func TestApply_Idempotent(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	form := DefaultFormState()
	form.ProductName = "Fone Bluetooth"
	form.PrimaryColor = "#123456"

	assert.Nil(t, u.Apply(s, form))
	first := fingerprint(s)
	assert.Nil(t, u.Apply(s, form))
	assert.Equal(t, first, fingerprint(s))
}

func TestApply_Idempotent_WithImage(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	form := formWithImage("wide")

	require.NoError(t, u.ApplyAndWait(context.Background(), s, form))
	first := fingerprint(s)

	assert.Nil(t, u.Apply(s, form), "unchanged image must not be decoded again")
	assert.Equal(t, first, fingerprint(s))
}

func TestApply_UpdatesTextSlots(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	name, _ := s.Slot(SlotProductName)
	require.NoError(t, s.Move(name, 500, 500))
	font := name.Text.Font

	form := DefaultFormState()
	form.ProductName = "Cafeteira"
	form.ProductPrice = "R$ 50,00"
	form.OriginalPrice = "R$ 100,00"
	form.AffiliateLink = "amzn.to/x"
	u.Apply(s, form)

	want := map[SlotKind]string{
		SlotProductName:   "Cafeteira",
		SlotProductPrice:  "R$ 50,00",
		SlotOriginalPrice: "R$ 100,00",
		SlotAffiliateLink: "amzn.to/x",
	}
	for kind, text := range want {
		obj, _ := s.Slot(kind)
		assert.Equal(t, text, obj.Text.Content)
	}
	assert.Equal(t, 500.0, name.Left, "user geometry must survive updates")
	assert.Equal(t, 500.0, name.Top)
	assert.Equal(t, font, name.Text.Font)
}

func TestApply_RecomputesDiscount(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	form := DefaultFormState()
	form.OriginalPrice = "R$ 200,00"
	form.ProductPrice = "R$ 50,00"
	u.Apply(s, form)

	var label string
	s.Walk(func(o *Object) {
		if o.Tag.Computed == ComputedDiscount {
			label = o.Text.Content
		}
	})
	assert.Equal(t, "75% OFF", label)
}

func TestApply_PrimaryColorTouchesOnlyPrimary(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	before := map[*Object]Fill{}
	s.Walk(func(o *Object) { before[o] = o.Fill })

	form := DefaultFormState()
	form.PrimaryColor = "#123456"
	u.Apply(s, form)

	want := mustHex("#123456")
	s.Walk(func(o *Object) {
		if o.Tag.Role == RolePrimary {
			assert.Equal(t, Solid(want), o.Fill)
			return
		}
		assert.Equal(t, before[o], o.Fill, "%s object recolored", o.Kind)
	})
}

func TestApply_Background(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	form := DefaultFormState()
	form.BackgroundColor = "#000000"
	u.Apply(s, form)

	assert.Equal(t, color.NRGBA{A: 0xff}, s.Background())
}

func TestApply_InvalidColorIsIgnored(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	form := DefaultFormState()
	form.AccentColor = "not-a-color"
	u.Apply(s, form)

	for _, o := range s.WithRole(RoleAccent) {
		assert.Equal(t, Solid(mustHex(DefaultAccentColor)), o.Fill)
	}
}

func TestApply_MissingSlotIsNoop(t *testing.T) {
	s := New()
	s.Add(&Object{Kind: KindTextbox, Tag: Tag{Slot: SlotProductName}})
	u := newTestUpdater(t)

	assert.NotPanics(t, func() {
		u.Apply(s, formWithImage("wide"))
	})
	name, _ := s.Slot(SlotProductName)
	assert.Equal(t, DefaultProductName, name.Text.Content)
}

func TestApply_Redraws(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	rev := s.Revision()

	u.Apply(s, DefaultFormState())

	assert.Greater(t, s.Revision(), rev)
}

// =========================================================================
// IMAGE SLOT TESTS
// =========================================================================

func TestCommit_AspectFitInsidePlaceholder(t *testing.T) {
	for _, blob := range []string{"wide", "tall", "tiny"} {
		t.Run(blob, func(t *testing.T) {
			s := NewTemplate()
			u := newTestUpdater(t)
			placeholder, _ := s.Slot(SlotProductImage)
			box := placeholder.Bounds()
			left, top := placeholder.Left, placeholder.Top

			require.NoError(t, u.ApplyAndWait(context.Background(), s, formWithImage(blob)))

			img, ok := s.Slot(SlotProductImage)
			require.True(t, ok)
			assert.Equal(t, KindImage, img.Kind)
			assert.Equal(t, left, img.Left)
			assert.Equal(t, top, img.Top)
			assert.Equal(t, img.ScaleX, img.ScaleY)
			assert.True(t, box.Contains(img.Bounds()), "%+v not in %+v", img.Bounds(), box)
			assert.Equal(t, 1, s.SlotCount(SlotProductImage))
			assert.Equal(t, s.IndexOf(placeholder), -1)
		})
	}
}

func TestCommit_KeepsZOrderAndHidesCaption(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	placeholder, _ := s.Slot(SlotProductImage)
	idx := s.IndexOf(placeholder)

	require.NoError(t, u.ApplyAndWait(context.Background(), s, formWithImage("wide")))

	img, _ := s.Slot(SlotProductImage)
	assert.Equal(t, idx, s.IndexOf(img))
	s.Walk(func(o *Object) {
		if o.Tag.CaptionFor == SlotProductImage {
			assert.True(t, o.Hidden)
		}
	})
}

func TestCommit_RepeatedReplacementKeepsFrame(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	placeholder, _ := s.Slot(SlotProductImage)
	box := placeholder.Bounds()

	require.NoError(t, u.ApplyAndWait(context.Background(), s, formWithImage("wide")))
	require.NoError(t, u.ApplyAndWait(context.Background(), s, formWithImage("tall")))
	require.NoError(t, u.ApplyAndWait(context.Background(), s, formWithImage("wide")))

	img, _ := s.Slot(SlotProductImage)
	assert.InDelta(t, 0.5, img.ScaleX, 1e-9, "wide image should fill the 600px frame")
	assert.True(t, box.Contains(img.Bounds()))
}

func TestCommit_LastWriterWins(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	ctx := context.Background()

	first := u.Apply(s, formWithImage("wide"))
	second := u.Apply(s, formWithImage("tall"))
	require.NotNil(t, first)
	require.NotNil(t, second)

	tallImg, err := u.Decode(ctx, second)
	require.NoError(t, err)
	wideImg, err := u.Decode(ctx, first)
	require.NoError(t, err)

	assert.True(t, u.Commit(s, second, tallImg))
	assert.False(t, u.Commit(s, first, wideImg), "older decode must not overwrite newer")

	img, _ := s.Slot(SlotProductImage)
	assert.Same(t, tallImg, img.Image)
}

func TestCommit_StaleResultDoesNotResurrectRemovedImage(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)

	req := u.Apply(s, formWithImage("wide"))
	u.Apply(s, DefaultFormState())
	img, err := u.Decode(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, u.Commit(s, req, img))
	slot, _ := s.Slot(SlotProductImage)
	assert.Equal(t, KindRect, slot.Kind)
}

func TestApplyAndWait_DecodeFailureLeavesSlot(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	before := fingerprint(s)

	err := u.ApplyAndWait(context.Background(), s, formWithImage("garbage"))
	assert.ErrorIs(t, err, errBadImage)
	assert.Equal(t, before, fingerprint(s))

	// the same blob can be retried
	assert.NotNil(t, u.Apply(s, formWithImage("garbage")))
}

func TestApplyAndWait_FailureKeepsPreviousImage(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	ctx := context.Background()
	require.NoError(t, u.ApplyAndWait(ctx, s, formWithImage("wide")))
	shown, _ := s.Slot(SlotProductImage)

	assert.Error(t, u.ApplyAndWait(ctx, s, formWithImage("garbage")))

	slot, _ := s.Slot(SlotProductImage)
	assert.Same(t, shown, slot)
	assert.Nil(t, u.Apply(s, formWithImage("wide")), "shown image must not be re-decoded")
}

func TestApply_RemovingImageRestoresPlaceholder(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	placeholder, _ := s.Slot(SlotProductImage)
	box := placeholder.Bounds()
	require.NoError(t, u.ApplyAndWait(context.Background(), s, formWithImage("tall")))

	u.Apply(s, DefaultFormState())

	restored, _ := s.Slot(SlotProductImage)
	assert.Equal(t, KindRect, restored.Kind)
	assert.Equal(t, box, restored.Bounds())
	assert.True(t, restored.Selectable)
	s.Walk(func(o *Object) {
		if o.Tag.CaptionFor == SlotProductImage {
			assert.False(t, o.Hidden)
		}
	})
}

func TestReset_InvalidatesPending(t *testing.T) {
	s := NewTemplate()
	u := newTestUpdater(t)
	req := u.Apply(s, formWithImage("wide"))
	img, err := u.Decode(context.Background(), req)
	require.NoError(t, err)

	Build(s)
	u.Reset()

	assert.False(t, u.Commit(s, req, img))
	assert.NotNil(t, u.Apply(s, formWithImage("wide")))
}
