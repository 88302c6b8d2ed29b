// Package scene is the template scene engine: the object model of the fixed
// 1080×1080 promotional layout, the builder that lays it out, the updater that
// pushes form state into it, and the interactivity guard used while exporting.
//
// A Scene is not safe for concurrent use. The owner (an editor session)
// serializes every mutation.
package scene

import (
	"image"
	"image/color"
)

// Kind identifies the drawable primitive behind an Object.
type Kind int

const (
	KindRect Kind = iota + 1
	KindCircle
	KindText    // single-line, non-wrapping text run
	KindTextbox // fixed-width, wrapping, editable text
	KindImage
	KindGroup // inline row of text runs laid out left to right
)

func (k Kind) String() string {
	switch k {
	case KindRect:
		return "rect"
	case KindCircle:
		return "circle"
	case KindText:
		return "text"
	case KindTextbox:
		return "textbox"
	case KindImage:
		return "image"
	case KindGroup:
		return "group"
	}
	return "unknown"
}

// SlotKind names a uniquely tagged mutable content region.
type SlotKind int

const (
	NoSlot SlotKind = iota
	SlotProductImage
	SlotProductName
	SlotProductPrice
	SlotOriginalPrice
	SlotAffiliateLink
)

// Slots lists every slot kind a complete template must carry.
var Slots = []SlotKind{
	SlotProductImage,
	SlotProductName,
	SlotProductPrice,
	SlotOriginalPrice,
	SlotAffiliateLink,
}

var slotNames = map[SlotKind]string{
	SlotProductImage:  "productImage",
	SlotProductName:   "productName",
	SlotProductPrice:  "productPrice",
	SlotOriginalPrice: "originalPrice",
	SlotAffiliateLink: "affiliateLink",
}

func (k SlotKind) String() string {
	if name, ok := slotNames[k]; ok {
		return name
	}
	return "none"
}

// ParseSlot resolves a slot by its wire name (e.g. "productPrice").
func ParseSlot(name string) (SlotKind, bool) {
	for kind, n := range slotNames {
		if n == name {
			return kind, true
		}
	}
	return NoSlot, false
}

// ColorRole groups objects that share a theme color.
type ColorRole int

const (
	NoRole ColorRole = iota
	RolePrimary
	RoleAccent
)

func (r ColorRole) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleAccent:
		return "accent"
	}
	return "none"
}

// ComputedKind marks objects whose text is derived from form state.
type ComputedKind int

const (
	NotComputed ComputedKind = iota
	ComputedDiscount
)

// Tag is the typed identity metadata attached to an object at construction.
type Tag struct {
	Slot SlotKind
	Role ColorRole
	// CaptionFor hides the object while the named slot holds real content.
	CaptionFor SlotKind
	Computed   ComputedKind
}

// Origin selects which point of the object Left/Top refer to.
type Origin int

const (
	OriginTopLeft Origin = iota
	OriginCenter
)

// Size is a width/height pair in logical units.
type Size struct {
	W, H float64
}

// Geometry is position and extent in logical (1080-space) units.
type Geometry struct {
	Left, Top     float64
	Width, Height float64
	Radius        float64 // circles only
	Angle         float64 // degrees, clockwise, around the anchor
	ScaleX        float64 // zero is treated as 1
	ScaleY        float64
	Origin        Origin
}

func (g Geometry) scale() (float64, float64) {
	sx, sy := g.ScaleX, g.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

// Stop is one color stop of a linear gradient.
type Stop struct {
	Offset float64
	Color  color.NRGBA
}

// Gradient is a linear gradient in logical coordinates.
type Gradient struct {
	X1, Y1, X2, Y2 float64
	Stops          []Stop
}

// Fill is either a solid color or a gradient.
type Fill struct {
	Color    color.NRGBA
	Gradient *Gradient
}

// Solid returns a solid fill.
func Solid(c color.NRGBA) Fill {
	return Fill{Color: c}
}

// Shadow is a blurred drop shadow drawn under the object.
type Shadow struct {
	Color   color.NRGBA
	Blur    float64
	OffsetX float64
	OffsetY float64
}

// Paint holds everything about how an object is filled and stroked.
type Paint struct {
	Fill         Fill
	Stroke       color.NRGBA // zero alpha means no stroke
	StrokeWidth  float64
	Dash         []float64
	Opacity      float64 // zero is treated as 1
	CornerRadius float64
	Shadow       *Shadow
}

// Font describes the face a text object is set in.
type Font struct {
	Family string
	Size   float64
	Bold   bool
}

// Align is horizontal text alignment inside a textbox.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// TextRun is the textual content of text, textbox and group children.
type TextRun struct {
	Content     string
	Font        Font
	Align       Align
	Linethrough bool
}

// Interactivity is editor-only state. None of it may appear in an export.
type Interactivity struct {
	Selectable  bool
	Evented     bool
	BorderColor color.NRGBA
	CornerColor color.NRGBA
}

// DefaultBorderColor is the selection outline color of selectable objects.
var DefaultBorderColor = color.NRGBA{R: 178, G: 204, B: 255, A: 255}

// Object is a drawable element of a Scene.
type Object struct {
	Kind Kind
	Tag  Tag
	Geometry
	Paint
	Text TextRun
	Interactivity

	// Image is the pixel source of KindImage objects.
	Image image.Image
	// Frame is the box an image slot was fitted into. Zero for everything
	// that is not a fitted image.
	Frame Size
	// Children are the runs of a KindGroup.
	Children []*Object
	Hidden   bool
}

// Size returns the unrotated, scaled extent of the object.
func (o *Object) Size() Size {
	sx, sy := o.scale()
	switch o.Kind {
	case KindCircle:
		return Size{W: 2 * o.Radius * sx, H: 2 * o.Radius * sy}
	default:
		return Size{W: o.Width * sx, H: o.Height * sy}
	}
}

// Bounds returns the unrotated bounding box of the object.
func (o *Object) Bounds() Rect {
	sz := o.Size()
	x, y := o.Left, o.Top
	if o.Origin == OriginCenter {
		x -= sz.W / 2
		y -= sz.H / 2
	}
	return Rect{X: x, Y: y, W: sz.W, H: sz.H}
}

// FrameSize is the target box used when new content is fitted into the
// object's slot.
func (o *Object) FrameSize() Size {
	if o.Frame.W > 0 && o.Frame.H > 0 {
		return o.Frame
	}
	return o.Size()
}

// Rect is an axis-aligned rectangle in logical units.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether r fully contains other, with a small tolerance
// for floating point error.
func (r Rect) Contains(other Rect) bool {
	const eps = 1e-6
	return other.X >= r.X-eps &&
		other.Y >= r.Y-eps &&
		other.X+other.W <= r.X+r.W+eps &&
		other.Y+other.H <= r.Y+r.H+eps
}

// IsText reports whether the object carries a TextRun.
func (o *Object) IsText() bool {
	return o.Kind == KindText || o.Kind == KindTextbox
}
