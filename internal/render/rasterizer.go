// Package render rasterizes scenes with gg.
//
// Drawing happens in the scene's logical 1080×1080 space; the context is
// scaled by the size multiplier so one scene renders at any resolution.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/sakif/promo-studio/internal/scene"
)

// ErrInvalidMultiplier is returned for non-positive or non-finite size
// multipliers.
var ErrInvalidMultiplier = errors.New("render: invalid size multiplier")

const (
	lineSpacing  = 1.16
	groupGap     = 12.0
	handleSize   = 10.0
	borderWidth  = 2.0
	selectionPad = 4.0
)

// Rasterizer draws scenes into images. It is safe for concurrent use; each
// call works on its own context.
type Rasterizer struct {
	logger *slog.Logger
}

// NewRasterizer creates a rasterizer.
func NewRasterizer(logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{logger: logger}
}

// Rasterize draws s at multiplier times its logical size. Hidden objects are
// skipped. Selection chrome is drawn for the active object only while it is
// selectable, so a suppressed scene renders clean.
func (r *Rasterizer) Rasterize(s *scene.Scene, multiplier float64) (image.Image, error) {
	if multiplier <= 0 || math.IsInf(multiplier, 0) || math.IsNaN(multiplier) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMultiplier, multiplier)
	}
	w := int(math.Round(s.Width() * multiplier))
	h := int(math.Round(s.Height() * multiplier))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: %v yields an empty image", ErrInvalidMultiplier, multiplier)
	}
	if err := loadFonts(); err != nil {
		return nil, err
	}

	dc := gg.NewContext(w, h)
	dc.SetColor(s.Background())
	dc.Clear()
	dc.Scale(multiplier, multiplier)

	p := &painter{dc: dc, m: multiplier, faces: faceSet{}}
	defer p.faces.close()

	for _, o := range s.Objects() {
		if o.Hidden {
			continue
		}
		p.draw(o)
	}
	if a := s.Active(); a != nil && a.Selectable && !a.Hidden {
		p.drawSelection(a)
	}

	r.logger.Debug("scene rasterized",
		slog.Int("width", w),
		slog.Int("height", h),
		slog.Int("objects", s.Len()),
	)
	return dc.Image(), nil
}

// painter holds the state of a single Rasterize call.
type painter struct {
	dc    *gg.Context
	m     float64
	faces faceSet
}

func (p *painter) draw(o *scene.Object) {
	dc := p.dc
	dc.Push()
	defer dc.Pop()

	if o.Shadow != nil {
		p.drawShadow(o)
	}
	if o.Angle != 0 {
		dc.RotateAbout(gg.Radians(o.Angle), o.Left, o.Top)
	}

	switch o.Kind {
	case scene.KindRect, scene.KindCircle:
		p.drawShape(o)
	case scene.KindText:
		p.drawText(o)
	case scene.KindTextbox:
		p.drawTextbox(o)
	case scene.KindGroup:
		p.drawGroup(o)
	case scene.KindImage:
		p.drawImage(o)
	}
}

// === SHAPES ===

func shapePath(dc *gg.Context, o *scene.Object) {
	b := o.Bounds()
	switch o.Kind {
	case scene.KindCircle:
		dc.DrawCircle(b.X+b.W/2, b.Y+b.H/2, b.W/2)
	default:
		if o.CornerRadius > 0 {
			dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, o.CornerRadius)
		} else {
			dc.DrawRectangle(b.X, b.Y, b.W, b.H)
		}
	}
}

func (p *painter) drawShape(o *scene.Object) {
	dc := p.dc
	shapePath(dc, o)

	op := opacity(o)
	if g := o.Fill.Gradient; g != nil {
		grad := gg.NewLinearGradient(g.X1*p.m, g.Y1*p.m, g.X2*p.m, g.Y2*p.m)
		for _, st := range g.Stops {
			grad.AddColorStop(st.Offset, fade(st.Color, op))
		}
		dc.SetFillStyle(grad)
		dc.FillPreserve()
	} else if o.Fill.Color.A > 0 {
		dc.SetColor(fade(o.Fill.Color, op))
		dc.FillPreserve()
	}

	if o.Stroke.A > 0 && o.StrokeWidth > 0 {
		dc.SetStrokeStyle(gg.NewSolidPattern(fade(o.Stroke, op)))
		dc.SetLineWidth(o.StrokeWidth * p.m)
		dc.SetDash(scaled(o.Dash, p.m)...)
		dc.StrokePreserve()
	}
	dc.ClearPath()
}

// drawShadow paints the shape on its own layer, blurs the layer and
// composites it under the object.
func (p *painter) drawShadow(o *scene.Object) {
	if o.Kind != scene.KindRect && o.Kind != scene.KindCircle {
		return
	}
	sh := o.Shadow
	w, h := p.dc.Width(), p.dc.Height()

	layer := gg.NewContext(w, h)
	layer.Scale(p.m, p.m)
	layer.Translate(sh.OffsetX, sh.OffsetY)
	if o.Angle != 0 {
		layer.RotateAbout(gg.Radians(o.Angle), o.Left, o.Top)
	}
	shapePath(layer, o)
	layer.SetColor(fade(sh.Color, opacity(o)))
	layer.Fill()

	var img image.Image = layer.Image()
	if sh.Blur > 0 {
		img = imaging.Blur(img, sh.Blur*p.m/2)
	}

	p.dc.Push()
	p.dc.Identity()
	p.dc.DrawImage(img, 0, 0)
	p.dc.Pop()
}

// === TEXT ===

// anchorX returns the x coordinate and horizontal anchor for a line of
// text inside a box of width w whose reference point is left.
func anchorX(o *scene.Object, w float64) (float64, float64) {
	left := o.Left
	if o.Origin == scene.OriginCenter {
		left -= w / 2
	}
	switch o.Text.Align {
	case scene.AlignCenter:
		return left + w/2, 0.5
	case scene.AlignRight:
		return left + w, 1
	}
	return left, 0
}

func (p *painter) drawText(o *scene.Object) {
	dc := p.dc
	dc.SetFontFace(p.faces.face(o.Text.Font))
	dc.SetColor(fade(o.Fill.Color, opacity(o)))

	ax, ay := 0.0, 1.0
	if o.Origin == scene.OriginCenter {
		ax, ay = 0.5, 0.5
	}
	dc.DrawStringAnchored(o.Text.Content, o.Left, o.Top, ax, ay)

	if o.Text.Linethrough {
		w, h := dc.MeasureString(o.Text.Content)
		x := o.Left - ax*w
		baseline := o.Top + ay*h
		p.strike(x, baseline-h*0.3, w, o.Text.Font.Size)
	}
}

func (p *painter) drawTextbox(o *scene.Object) {
	dc := p.dc
	dc.SetFontFace(p.faces.face(o.Text.Font))
	dc.SetColor(fade(o.Fill.Color, opacity(o)))

	w := o.Size().W
	lines := dc.WordWrap(o.Text.Content, w)
	step := dc.FontHeight() * lineSpacing
	total := step * float64(len(lines))

	top := o.Top
	if o.Origin == scene.OriginCenter {
		top -= total / 2
	}
	x, ax := anchorX(o, w)
	for i, line := range lines {
		y := top + step*(float64(i)+0.5)
		dc.DrawStringAnchored(line, x, y, ax, 0.5)
		if o.Text.Linethrough {
			lw, lh := dc.MeasureString(line)
			p.strike(x-ax*lw, y+lh*0.2, lw, o.Text.Font.Size)
		}
	}
}

func (p *painter) strike(x, y, w, fontSize float64) {
	dc := p.dc
	dc.SetLineWidth(math.Max(1, fontSize/14) * p.m)
	dc.DrawLine(x, y, x+w, y)
	dc.Stroke()
}

// drawGroup lays the children out as a single centered row.
func (p *painter) drawGroup(o *scene.Object) {
	dc := p.dc
	widths := make([]float64, len(o.Children))
	total := 0.0
	for i, c := range o.Children {
		dc.SetFontFace(p.faces.face(c.Text.Font))
		widths[i], _ = dc.MeasureString(c.Text.Content)
		total += widths[i]
	}
	if n := len(o.Children); n > 1 {
		total += groupGap * float64(n-1)
	}

	x := o.Left
	ay := 1.0
	if o.Origin == scene.OriginCenter {
		x -= total / 2
		ay = 0.5
	}
	groupOp := opacity(o)
	for i, c := range o.Children {
		if !c.Hidden {
			dc.SetFontFace(p.faces.face(c.Text.Font))
			dc.SetColor(fade(fade(c.Fill.Color, opacity(c)), groupOp))
			dc.DrawStringAnchored(c.Text.Content, x, o.Top, 0, ay)
		}
		x += widths[i] + groupGap
	}
}

// === IMAGES ===

func (p *painter) drawImage(o *scene.Object) {
	if o.Image == nil {
		return
	}
	dc := p.dc
	b := o.Bounds()
	src := o.Image.Bounds()
	if src.Dx() == 0 || src.Dy() == 0 {
		return
	}

	if o.Angle == 0 {
		// Unrotated images are resampled once at device resolution, which
		// looks far better than gg's bilinear transform when shrinking.
		pw := int(math.Round(b.W * p.m))
		ph := int(math.Round(b.H * p.m))
		if pw < 1 || ph < 1 {
			return
		}
		resized := imaging.Resize(o.Image, pw, ph, imaging.Lanczos)
		dc.Push()
		dc.Identity()
		dc.DrawImage(resized, int(math.Round(b.X*p.m)), int(math.Round(b.Y*p.m)))
		dc.Pop()
		return
	}

	dc.Translate(b.X, b.Y)
	dc.Scale(b.W/float64(src.Dx()), b.H/float64(src.Dy()))
	dc.DrawImage(o.Image, -src.Min.X, -src.Min.Y)
}

// === SELECTION CHROME ===

func (p *painter) drawSelection(o *scene.Object) {
	dc := p.dc
	dc.Push()
	defer dc.Pop()
	if o.Angle != 0 {
		dc.RotateAbout(gg.Radians(o.Angle), o.Left, o.Top)
	}

	b := o.Bounds()
	x, y := b.X-selectionPad, b.Y-selectionPad
	w, h := b.W+2*selectionPad, b.H+2*selectionPad

	if o.BorderColor.A > 0 {
		dc.SetColor(o.BorderColor)
		dc.SetLineWidth(borderWidth * p.m)
		dc.DrawRectangle(x, y, w, h)
		dc.Stroke()
	}
	if o.CornerColor.A > 0 {
		dc.SetColor(o.CornerColor)
		for _, pt := range handlePoints(x, y, w, h) {
			dc.DrawRectangle(pt[0]-handleSize/2, pt[1]-handleSize/2, handleSize, handleSize)
		}
		dc.Fill()
	}
}

// handlePoints returns the four corners and four edge midpoints.
func handlePoints(x, y, w, h float64) [][2]float64 {
	return [][2]float64{
		{x, y}, {x + w/2, y}, {x + w, y},
		{x, y + h/2}, {x + w, y + h/2},
		{x, y + h}, {x + w/2, y + h}, {x + w, y + h},
	}
}

// === HELPERS ===

func opacity(o *scene.Object) float64 {
	if o.Opacity <= 0 || o.Opacity > 1 {
		return 1
	}
	return o.Opacity
}

func fade(c color.NRGBA, op float64) color.NRGBA {
	if op >= 1 {
		return c
	}
	c.A = uint8(math.Round(float64(c.A) * op))
	return c
}

func scaled(values []float64, m float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * m
	}
	return out
}
