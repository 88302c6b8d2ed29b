package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/cespare/xxhash/v2"
)

// ErrSuperseded is returned when a decoded image arrives after a newer image
// (or the removal of the image) was requested. The scene is left untouched.
var ErrSuperseded = errors.New("scene: image request superseded")

// Decoder turns an uploaded blob into pixels. Implementations may block.
type Decoder interface {
	Decode(ctx context.Context, blob []byte) (image.Image, error)
}

// ImageRequest is a pending product image decode. Only the most recently
// issued request can be committed.
type ImageRequest struct {
	Seq    uint64
	Digest uint64
	Blob   []byte
}

// Updater pushes form state into a scene. Text and colors are applied
// synchronously; the product image goes through Decode and Commit so the
// caller can decode outside its lock.
//
// An Updater belongs to exactly one scene and is not safe for concurrent
// use; Decode is the only method that may run unsynchronized.
type Updater struct {
	decoder Decoder
	logger  *slog.Logger

	seq       uint64
	requested uint64 // digest of the blob last requested
	shown     uint64 // digest of the image in the slot, 0 for the placeholder
	wantImage bool
}

// NewUpdater creates an updater decoding images with decoder.
func NewUpdater(decoder Decoder, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{decoder: decoder, logger: logger}
}

// Apply writes form into s and redraws. When the form carries a product
// image that has not been requested yet it returns the request to decode;
// otherwise nil. Removing the image from the form restores the placeholder
// immediately.
func (u *Updater) Apply(s *Scene, form FormState) *ImageRequest {
	u.applyText(s, form)
	u.applyDiscount(s, form)
	u.applyColors(s, form)
	req := u.planImage(s, form)
	s.Redraw()
	return req
}

// Decode decodes the blob of req. It does not touch the updater or the scene.
func (u *Updater) Decode(ctx context.Context, req *ImageRequest) (image.Image, error) {
	img, err := u.decoder.Decode(ctx, req.Blob)
	if err != nil {
		return nil, fmt.Errorf("decode product image: %w", err)
	}
	return img, nil
}

// Commit places img in the product image slot if req is still the latest
// request. It reports whether the scene changed.
func (u *Updater) Commit(s *Scene, req *ImageRequest, img image.Image) bool {
	if req == nil {
		return false
	}
	if req.Seq != u.seq || !u.wantImage {
		u.logger.Debug("dropping stale image decode",
			slog.Uint64("seq", req.Seq), slog.Uint64("latest", u.seq))
		return false
	}

	old, ok := s.Slot(SlotProductImage)
	if !ok {
		u.logger.Warn("scene slot missing", slog.String("slot", SlotProductImage.String()))
		return false
	}

	b := img.Bounds()
	nw, nh := float64(b.Dx()), float64(b.Dy())
	if nw <= 0 || nh <= 0 {
		u.logger.Warn("decoded image is empty", slog.Uint64("seq", req.Seq))
		return false
	}

	// === ASPECT FIT ===
	// The frame survives every replacement, so repeated uploads are always
	// fitted into the original placeholder box instead of shrinking.
	frame := old.FrameSize()
	scale := math.Min(frame.W/nw, frame.H/nh)

	repl := &Object{
		Kind: KindImage,
		Tag:  Tag{Slot: SlotProductImage},
		Geometry: Geometry{
			Left:   old.Left,
			Top:    old.Top,
			Width:  nw,
			Height: nh,
			Angle:  old.Angle,
			ScaleX: scale,
			ScaleY: scale,
			Origin: old.Origin,
		},
		Paint:         Paint{Opacity: 1},
		Interactivity: old.Interactivity,
		Image:         img,
		Frame:         frame,
	}
	if err := s.Replace(old, repl); err != nil {
		u.logger.Error("failed to replace image slot", slog.String("error", err.Error()))
		return false
	}
	u.shown = req.Digest
	setCaptionsHidden(s, SlotProductImage, true)
	s.Redraw()
	return true
}

// Fail records that req could not be decoded so the same blob can be
// retried. The scene keeps whatever the slot held before.
func (u *Updater) Fail(req *ImageRequest) {
	if req != nil && req.Seq == u.seq {
		u.requested = u.shown
		u.wantImage = u.shown != 0
	}
}

// ApplyAndWait applies form and, if an image decode was started, waits for
// it and commits the result.
func (u *Updater) ApplyAndWait(ctx context.Context, s *Scene, form FormState) error {
	req := u.Apply(s, form)
	if req == nil {
		return nil
	}
	img, err := u.Decode(ctx, req)
	if err != nil {
		u.Fail(req)
		return err
	}
	if !u.Commit(s, req, img) {
		return ErrSuperseded
	}
	return nil
}

// Reset invalidates every outstanding request. Call it after rebuilding
// the scene.
func (u *Updater) Reset() {
	u.seq++
	u.wantImage = false
	u.requested = 0
	u.shown = 0
}

// Latest returns the sequence number of the newest request.
func (u *Updater) Latest() uint64 { return u.seq }

func (u *Updater) applyText(s *Scene, form FormState) {
	texts := map[SlotKind]string{
		SlotProductName:   form.ProductName,
		SlotProductPrice:  form.ProductPrice,
		SlotOriginalPrice: form.OriginalPrice,
		SlotAffiliateLink: form.AffiliateLink,
	}
	for _, kind := range Slots {
		value, ok := texts[kind]
		if !ok {
			continue
		}
		obj, found := s.Slot(kind)
		if !found || !obj.IsText() {
			u.logger.Warn("scene slot missing", slog.String("slot", kind.String()))
			continue
		}
		obj.Text.Content = value
	}
}

func (u *Updater) applyDiscount(s *Scene, form FormState) {
	label := ComputeDiscount(form.OriginalPrice, form.ProductPrice)
	s.Walk(func(o *Object) {
		if o.Tag.Computed == ComputedDiscount {
			o.Text.Content = label
		}
	})
}

func (u *Updater) applyColors(s *Scene, form FormState) {
	if c, ok := u.parseColor("backgroundColor", form.BackgroundColor); ok {
		s.SetBackground(c)
	}
	roles := []struct {
		role  ColorRole
		field string
		value string
	}{
		{RolePrimary, "primaryColor", form.PrimaryColor},
		{RoleAccent, "accentColor", form.AccentColor},
	}
	for _, r := range roles {
		c, ok := u.parseColor(r.field, r.value)
		if !ok {
			continue
		}
		for _, o := range s.WithRole(r.role) {
			o.Fill = Solid(c)
		}
	}
}

func (u *Updater) parseColor(field, value string) (color.NRGBA, bool) {
	c, err := ParseHexColor(value)
	if err != nil {
		u.logger.Warn("ignoring invalid color",
			slog.String("field", field), slog.String("error", err.Error()))
		return color.NRGBA{}, false
	}
	return c, true
}

func (u *Updater) planImage(s *Scene, form FormState) *ImageRequest {
	if form.HasImage() {
		digest := xxhash.Sum64(form.ProductImage)
		if u.wantImage && digest == u.requested {
			return nil
		}
		u.seq++
		u.wantImage = true
		u.requested = digest
		return &ImageRequest{Seq: u.seq, Digest: digest, Blob: form.ProductImage}
	}

	if u.wantImage {
		// The image was removed: anything still decoding is stale.
		u.seq++
		u.wantImage = false
		u.requested = 0
	}
	if restorePlaceholder(s) {
		u.shown = 0
	}
	return nil
}

// restorePlaceholder swaps an image back to the empty placeholder at the
// same anchor and frame.
func restorePlaceholder(s *Scene) bool {
	old, ok := s.Slot(SlotProductImage)
	if !ok || old.Kind != KindImage {
		return false
	}
	ph := NewImagePlaceholder(old.Left, old.Top, old.Origin, old.FrameSize())
	ph.Angle = old.Angle
	ph.Interactivity = old.Interactivity
	if err := s.Replace(old, ph); err != nil {
		return false
	}
	setCaptionsHidden(s, SlotProductImage, false)
	return true
}

func setCaptionsHidden(s *Scene, slot SlotKind, hidden bool) {
	s.Walk(func(o *Object) {
		if o.Tag.CaptionFor == slot {
			o.Hidden = hidden
		}
	})
}
