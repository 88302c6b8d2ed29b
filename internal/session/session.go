// Package session owns live editor sessions: one scene, its form state and
// the asynchronous product image pipeline, all serialized by a mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/promo-studio/internal/apperror"
	"github.com/sakif/promo-studio/internal/export"
	"github.com/sakif/promo-studio/internal/scene"
	"github.com/sakif/promo-studio/internal/validation"
)

// ErrClosed is returned by every operation on a closed session.
var ErrClosed = errors.New("session: closed")

// PreviewOptions render the live view at half size, PNG.
var PreviewOptions = export.Options{SizeMultiplier: 0.5, Quality: 1, Format: export.FormatPNG}

// Rasterizer draws a scene, selection chrome included.
type Rasterizer interface {
	Rasterize(s *scene.Scene, multiplier float64) (image.Image, error)
}

// FormPatch holds the fields to change; nil fields are left alone.
type FormPatch struct {
	ProductName     *string `json:"productName,omitempty"`
	ProductPrice    *string `json:"productPrice,omitempty"`
	OriginalPrice   *string `json:"originalPrice,omitempty"`
	AffiliateLink   *string `json:"affiliateLink,omitempty"`
	BackgroundColor *string `json:"backgroundColor,omitempty"`
	PrimaryColor    *string `json:"primaryColor,omitempty"`
	AccentColor     *string `json:"accentColor,omitempty"`
}

// apply returns form with the patch applied. form is not modified.
func (p FormPatch) apply(form scene.FormState) scene.FormState {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&form.ProductName, p.ProductName)
	set(&form.ProductPrice, p.ProductPrice)
	set(&form.OriginalPrice, p.OriginalPrice)
	set(&form.AffiliateLink, p.AffiliateLink)
	set(&form.BackgroundColor, p.BackgroundColor)
	set(&form.PrimaryColor, p.PrimaryColor)
	set(&form.AccentColor, p.AccentColor)
	return form
}

// SlotInfo describes where a slot currently sits.
type SlotInfo struct {
	Slot   string  `json:"slot"`
	Kind   string  `json:"kind"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Summary is a read-only view of a session.
type Summary struct {
	ID         string          `json:"id"`
	Form       scene.FormState `json:"form"`
	HasImage   bool            `json:"hasImage"`
	PreviewKey string          `json:"previewKey,omitempty"`
	Selected   string          `json:"selected,omitempty"`
	Revision   uint64          `json:"revision"`
	Slots      []SlotInfo      `json:"slots"`
}

// Session is one editor. All methods are safe for concurrent use.
type Session struct {
	id       string
	logger   *slog.Logger
	raster   Rasterizer
	exporter *export.Exporter
	previews *PreviewStore

	// ctx outlives individual requests; decodes started by SetImage run
	// under it and stop when the session closes.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	scene      *scene.Scene
	form       scene.FormState
	updater    *scene.Updater
	shownBlob  []byte
	previewKey string
	live       *export.Snapshot

	// inflight is the decode of request inflightSeq, nil once it finished.
	inflight    *Pending
	inflightSeq uint64

	lastUsed   time.Time
	closed     bool
	now        func() time.Time
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Decoder  scene.Decoder
	Raster   Rasterizer
	Previews *PreviewStore
	Logger   *slog.Logger
	// Now is the clock for idle tracking; nil means time.Now.
	Now func() time.Time
}

// New creates a session showing the default template and form.
func New(id string, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("session", id))
	previews := deps.Previews
	if previews == nil {
		previews = NewPreviewStore()
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		logger:   logger,
		raster:   deps.Raster,
		exporter: export.NewExporter(deps.Raster, logger),
		previews: previews,
		ctx:      ctx,
		cancel:   cancel,
		scene:    scene.NewTemplate(),
		form:     scene.DefaultFormState(),
		updater:  scene.NewUpdater(deps.Decoder, logger),
		now:      now,
	}
	s.lastUsed = s.now()
	// Runs under s.mu: every redraw happens inside a locked method.
	s.scene.OnRedraw(func(*scene.Scene) { s.live = nil })
	s.updater.Apply(s.scene, s.form)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// lock acquires the mutex and refreshes the idle timer.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.lastUsed = s.now()
	return nil
}

// IdleSince returns the time of the last operation.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Form returns a copy of the current form state.
func (s *Session) Form() (scene.FormState, error) {
	if err := s.lock(); err != nil {
		return scene.FormState{}, err
	}
	defer s.mu.Unlock()
	return s.form, nil
}

// UpdateForm validates the patched form and applies it. A rejected patch
// leaves the form untouched.
func (s *Session) UpdateForm(patch FormPatch) (scene.FormState, error) {
	if err := s.lock(); err != nil {
		return scene.FormState{}, err
	}
	defer s.mu.Unlock()

	next := patch.apply(s.form)
	if err := validation.ValidateForm(next); err != nil {
		return s.form, err
	}
	s.form = next
	// The image blob is unchanged so no decode can start here.
	s.updater.Apply(s.scene, s.form)
	return s.form, nil
}

// SetImage attaches blob as the product image and decodes it in the
// background. The returned Pending reports the outcome: nil once the image
// is on the canvas, a conflict when a newer request won, an unprocessable
// error when the blob cannot be decoded.
func (s *Session) SetImage(blob []byte) (*Pending, error) {
	if len(blob) == 0 {
		return nil, apperror.ValidationFailed("image", "image is required")
	}
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	s.form.ProductImage = blob
	req := s.updater.Apply(s.scene, s.form)
	if req == nil {
		// Same bytes as the latest request. Share its outcome while it is
		// still decoding; otherwise the image is already on the canvas.
		if s.inflight != nil && s.inflightSeq == s.updater.Latest() {
			return s.inflight, nil
		}
		return completed(nil), nil
	}

	p := newPending()
	s.inflight, s.inflightSeq = p, req.Seq
	go s.decode(req, p)
	return p, nil
}

func (s *Session) decode(req *scene.ImageRequest, p *Pending) {
	img, decodeErr := s.updater.Decode(s.ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == p {
		s.inflight = nil
	}
	if s.closed {
		p.finish(ErrClosed)
		return
	}

	if decodeErr != nil {
		latest := req.Seq == s.updater.Latest()
		s.updater.Fail(req)
		if latest {
			s.form.ProductImage = s.shownBlob
		}
		s.logger.Warn("product image decode failed",
			slog.Uint64("seq", req.Seq),
			slog.String("error", decodeErr.Error()),
		)
		p.finish(apperror.Unprocessable("image", "product image could not be decoded", decodeErr))
		return
	}

	if !s.updater.Commit(s.scene, req, img) {
		p.finish(supersededError())
		return
	}
	s.shownBlob = req.Blob
	s.replacePreview(img)
	p.finish(nil)
}

// replacePreview swaps the upload thumbnail. A thumbnail failure only costs
// the preview, never the image on the canvas.
func (s *Session) replacePreview(img image.Image) {
	key, err := s.previews.Create(img)
	s.previews.Release(s.previewKey)
	s.previewKey = ""
	if err != nil {
		s.logger.Warn("failed to create image preview", slog.String("error", err.Error()))
		return
	}
	s.previewKey = key
}

func supersededError() error {
	return &apperror.AppError{
		Err:     fmt.Errorf("%w: %w", apperror.ErrConflict, scene.ErrSuperseded),
		Message: "image: superseded by a newer request",
		Field:   "image",
	}
}

// ClearImage removes the product image and restores the placeholder. Any
// decode still running is dropped when it finishes.
func (s *Session) ClearImage() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.form.ProductImage = nil
	s.shownBlob = nil
	s.inflight = nil
	s.updater.Apply(s.scene, s.form)
	s.previews.Release(s.previewKey)
	s.previewKey = ""
	return nil
}

// ImagePreview returns the thumbnail of the image currently on the canvas.
func (s *Session) ImagePreview() (Preview, error) {
	if err := s.lock(); err != nil {
		return Preview{}, err
	}
	defer s.mu.Unlock()

	if s.previewKey == "" {
		return Preview{}, apperror.NotFound("image preview", s.id)
	}
	pv, ok := s.previews.Get(s.previewKey)
	if !ok {
		return Preview{}, apperror.NotFound("image preview", s.previewKey)
	}
	return pv, nil
}

// Select makes the named slot the active object. An empty name clears the
// selection.
func (s *Session) Select(slot string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if slot == "" {
		s.scene.Deselect()
		s.scene.Redraw()
		return nil
	}
	obj, err := s.slotObject(slot)
	if err != nil {
		return err
	}
	if err := s.scene.Select(obj); err != nil {
		return apperror.ValidationFailed("slot", err.Error())
	}
	s.scene.Redraw()
	return nil
}

// Move drags the named slot, clamped to the canvas. It returns the final
// position.
func (s *Session) Move(slot string, left, top float64) (SlotInfo, error) {
	if err := s.lock(); err != nil {
		return SlotInfo{}, err
	}
	defer s.mu.Unlock()

	obj, err := s.slotObject(slot)
	if err != nil {
		return SlotInfo{}, err
	}
	if err := s.scene.Move(obj, left, top); err != nil {
		return SlotInfo{}, apperror.ValidationFailed("slot", err.Error())
	}
	s.scene.Redraw()
	return slotInfo(obj), nil
}

func (s *Session) slotObject(name string) (*scene.Object, error) {
	kind, ok := scene.ParseSlot(name)
	if !ok {
		return nil, apperror.ValidationFailed("slot", fmt.Sprintf("unknown slot %q", name))
	}
	obj, ok := s.scene.Slot(kind)
	if !ok {
		s.logger.Warn("scene slot missing", slog.String("slot", name))
		return nil, apperror.NotFound("slot", name)
	}
	return obj, nil
}

// Preview renders the live view, selection chrome included. The frame is
// cached until the next redraw.
func (s *Session) Preview(ctx context.Context) (*export.Snapshot, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if s.live != nil {
		return s.live, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := s.raster.Rasterize(s.scene, PreviewOptions.SizeMultiplier)
	if err != nil {
		return nil, apperror.Unprocessable("preview", "live preview could not be rendered", err)
	}
	data, err := export.Encode(img, PreviewOptions)
	if err != nil {
		return nil, apperror.Unprocessable("preview", "live preview could not be encoded", err)
	}
	b := img.Bounds()
	s.live = &export.Snapshot{Data: data, Format: PreviewOptions.Format, Width: b.Dx(), Height: b.Dy()}
	return s.live, nil
}

// Export renders the downloadable PNG.
func (s *Session) Export(ctx context.Context) (*export.File, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	f, err := s.exporter.Download(ctx, s.scene)
	if err != nil {
		return nil, exportError(err)
	}
	return f, nil
}

// Share renders the half-size data URI.
func (s *Session) Share(ctx context.Context) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	uri, err := s.exporter.Share(ctx, s.scene)
	if err != nil {
		return "", exportError(err)
	}
	return uri, nil
}

func exportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperror.Unprocessable("export", "image could not be exported", err)
}

// Summary describes the session for API responses.
func (s *Session) Summary() (Summary, error) {
	if err := s.lock(); err != nil {
		return Summary{}, err
	}
	defer s.mu.Unlock()

	sum := Summary{
		ID:         s.id,
		Form:       s.form,
		HasImage:   s.form.HasImage(),
		PreviewKey: s.previewKey,
		Revision:   s.scene.Revision(),
	}
	if a := s.scene.Active(); a != nil {
		sum.Selected = a.Tag.Slot.String()
	}
	for _, kind := range scene.Slots {
		if obj, ok := s.scene.Slot(kind); ok {
			sum.Slots = append(sum.Slots, slotInfo(obj))
		}
	}
	return sum, nil
}

func slotInfo(o *scene.Object) SlotInfo {
	sz := o.Size()
	return SlotInfo{
		Slot:   o.Tag.Slot.String(),
		Kind:   o.Kind.String(),
		Left:   o.Left,
		Top:    o.Top,
		Width:  sz.W,
		Height: sz.H,
	}
}

// Close stops pending decodes and releases the preview. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// closeIfIdle closes the session only if it has not been used since
// cutoff. The check and the close happen under one lock so a request that
// touches the session first keeps it alive.
func (s *Session) closeIfIdle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.lastUsed.Before(cutoff) {
		return false
	}
	s.closeLocked()
	return true
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.previews.Release(s.previewKey)
	s.previewKey = ""
	s.live = nil
}
