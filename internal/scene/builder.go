package scene

import "image/color"

// Layout constants of the fixed template.
const (
	placeholderWidth  = 600
	placeholderHeight = 380
	placeholderX      = 540
	placeholderY      = 350

	fontDisplay = "Montserrat"
	fontBody    = "Roboto"
)

var (
	white    = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	charcoal = mustHex("#343A40")
)

// NewTemplate returns a scene holding the fixed promotional layout.
func NewTemplate() *Scene {
	s := New()
	Build(s)
	return s
}

// Build discards everything in s and lays out the template from scratch,
// back to front: background, decoration, panels, content, chrome.
func Build(s *Scene) {
	s.Clear()
	s.SetBackground(mustHex(DefaultBackgroundColor))

	s.Add(backgroundLayer()...)
	s.Add(cornerDecorations()...)
	s.Add(header()...)
	s.Add(productSection()...)
	s.Add(priceSection()...)
	s.Add(linkSection()...)
	s.Add(marketplaceStrip()...)
	s.Add(saleBadges()...)

	s.Redraw()
}

// NewImagePlaceholder returns the dashed box shown while the product image
// slot is empty.
func NewImagePlaceholder(left, top float64, origin Origin, frame Size) *Object {
	primary := mustHex(DefaultPrimaryColor)
	return editable(&Object{
		Kind: KindRect,
		Tag:  Tag{Slot: SlotProductImage},
		Geometry: Geometry{
			Left: left, Top: top,
			Width: frame.W, Height: frame.H,
			Origin: origin,
		},
		Paint: Paint{
			Fill:         Solid(mustHex("#F1F1F1")),
			Stroke:       primary,
			StrokeWidth:  4,
			Dash:         []float64{10, 5},
			CornerRadius: 20,
		},
	})
}

func backgroundLayer() []*Object {
	return []*Object{
		decoration(&Object{
			Kind:     KindRect,
			Geometry: Geometry{Width: CanvasWidth, Height: CanvasHeight},
			Paint: Paint{Fill: Fill{Gradient: &Gradient{
				X2: CanvasWidth, Y2: CanvasHeight,
				Stops: []Stop{
					{Offset: 0, Color: mustHex("#FFB6C133")},
					{Offset: 1, Color: rgba(255, 255, 255, 0)},
				},
			}}},
		}),
	}
}

func cornerDecorations() []*Object {
	primary := mustHex(DefaultPrimaryColor)
	accent := mustHex(DefaultAccentColor)
	return []*Object{
		circle(0, 0, 160, primary, 0.8, RolePrimary),
		circle(CanvasWidth, CanvasHeight, 160, primary, 0.8, RolePrimary),
		circle(920, 150, 110, accent, 0.9, RoleAccent),
		decoration(&Object{
			Kind:     KindText,
			Geometry: Geometry{Left: 920, Top: 150, Angle: 15, Origin: OriginCenter},
			Paint:    Paint{Fill: Solid(white)},
			Text:     TextRun{Content: "OFERTA", Font: Font{Family: fontDisplay, Size: 32, Bold: true}},
		}),
	}
}

func header() []*Object {
	return []*Object{
		decoration(&Object{
			Kind:     KindRect,
			Geometry: Geometry{Width: CanvasWidth, Height: 180},
			Paint:    Paint{Fill: Solid(rgba(255, 255, 255, 0.5))},
		}),
		decoration(&Object{
			Kind:     KindGroup,
			Geometry: Geometry{Left: 540, Top: 80, Origin: OriginCenter},
			Children: []*Object{
				decoration(&Object{
					Kind:  KindText,
					Tag:   Tag{Role: RolePrimary},
					Paint: Paint{Fill: Solid(mustHex(DefaultPrimaryColor))},
					Text:  TextRun{Content: "Pshhh", Font: Font{Family: fontDisplay, Size: 60, Bold: true}},
				}),
				decoration(&Object{
					Kind:  KindText,
					Paint: Paint{Fill: Solid(charcoal)},
					Text:  TextRun{Content: "OFERTAS", Font: Font{Family: fontDisplay, Size: 60, Bold: true}},
				}),
			},
		}),
		decoration(&Object{
			Kind:     KindText,
			Geometry: Geometry{Left: 540, Top: 135, Origin: OriginCenter},
			Paint:    Paint{Fill: Solid(rgba(52, 58, 64, 0.7))},
			Text:     TextRun{Content: "Os melhores achados e promoções para você!", Font: Font{Family: fontBody, Size: 24}},
		}),
	}
}

func productSection() []*Object {
	return []*Object{
		NewImagePlaceholder(placeholderX, placeholderY, OriginCenter,
			Size{W: placeholderWidth, H: placeholderHeight}),
		decoration(&Object{
			Kind:     KindText,
			Tag:      Tag{Role: RolePrimary, CaptionFor: SlotProductImage},
			Geometry: Geometry{Left: placeholderX, Top: placeholderY, Origin: OriginCenter},
			Paint:    Paint{Fill: Solid(mustHex(DefaultPrimaryColor))},
			Text:     TextRun{Content: "Imagem do Produto", Font: Font{Family: fontBody, Size: 28, Bold: true}},
		}),
		decoration(&Object{
			Kind:     KindRect,
			Geometry: Geometry{Left: 540, Top: 680, Width: 900, Height: 250, Origin: OriginCenter},
			Paint: Paint{
				Fill:         Solid(white),
				CornerRadius: 30,
				Shadow:       &Shadow{Color: rgba(0, 0, 0, 0.1), Blur: 10, OffsetY: 5},
			},
		}),
		editable(&Object{
			Kind:     KindTextbox,
			Tag:      Tag{Slot: SlotProductName},
			Geometry: Geometry{Left: 540, Top: 620, Width: 850, Height: 100, Origin: OriginCenter},
			Paint:    Paint{Fill: Solid(charcoal)},
			Text: TextRun{
				Content: DefaultProductName,
				Font:    Font{Family: fontBody, Size: 42, Bold: true},
				Align:   AlignCenter,
			},
		}),
	}
}

func priceSection() []*Object {
	accent := mustHex(DefaultAccentColor)
	return []*Object{
		panel(300, 740, 400, 100, rgba(76, 187, 23, 0.1), 15),
		colored(panel(200, 740, 220, 60, accent, 10), RoleAccent),
		editable(&Object{
			Kind:     KindTextbox,
			Tag:      Tag{Slot: SlotProductPrice},
			Geometry: Geometry{Left: 200, Top: 740, Width: 200, Height: 40, Origin: OriginCenter},
			Paint:    Paint{Fill: Solid(white)},
			Text: TextRun{
				Content: DefaultProductPrice,
				Font:    Font{Family: fontBody, Size: 28, Bold: true},
				Align:   AlignCenter,
			},
		}),
		editable(&Object{
			Kind:     KindTextbox,
			Tag:      Tag{Slot: SlotOriginalPrice},
			Geometry: Geometry{Left: 350, Top: 725, Width: 150, Height: 30, Origin: OriginCenter},
			Paint:    Paint{Fill: mustHexFill("#777777")},
			Text: TextRun{
				Content:     DefaultOriginalPrice,
				Font:        Font{Family: fontBody, Size: 22},
				Align:       AlignCenter,
				Linethrough: true,
			},
		}),
		decoration(&Object{
			Kind:     KindText,
			Tag:      Tag{Role: RoleAccent, Computed: ComputedDiscount},
			Geometry: Geometry{Left: 350, Top: 755, Origin: OriginCenter},
			Paint:    Paint{Fill: Solid(accent)},
			Text: TextRun{
				Content: ComputeDiscount(DefaultOriginalPrice, DefaultProductPrice),
				Font:    Font{Family: fontBody, Size: 22, Bold: true},
			},
		}),
	}
}

func linkSection() []*Object {
	primary := mustHex(DefaultPrimaryColor)
	return []*Object{
		panel(780, 740, 400, 100, rgba(255, 75, 145, 0.1), 15),
		decoration(&Object{
			Kind:     KindText,
			Tag:      Tag{Role: RolePrimary},
			Geometry: Geometry{Left: 780, Top: 710, Origin: OriginCenter},
			Paint:    Paint{Fill: Solid(primary)},
			Text:     TextRun{Content: "LINK AFILIADO", Font: Font{Family: fontDisplay, Size: 22, Bold: true}},
		}),
		colored(panel(780, 750, 320, 50, primary, 10), RolePrimary),
		editable(&Object{
			Kind:     KindTextbox,
			Tag:      Tag{Slot: SlotAffiliateLink},
			Geometry: Geometry{Left: 780, Top: 750, Width: 300, Height: 34, Origin: OriginCenter},
			Paint:    Paint{Fill: Solid(white)},
			Text: TextRun{
				Content: DefaultAffiliateLink,
				Font:    Font{Family: fontBody, Size: 24, Bold: true},
				Align:   AlignCenter,
			},
		}),
	}
}

// marketplaceStrip carries third-party brand colors; none of it is
// colorable.
func marketplaceStrip() []*Object {
	return []*Object{
		panel(540, 1020, CanvasWidth, 120, rgba(255, 255, 255, 0.8), 0),
		panel(300, 1020, 180, 60, mustHex("#232F3E"), 10),
		label(300, 1020, "Amazon", white),
		panel(540, 1020, 220, 60, mustHex("#FFE600"), 10),
		label(540, 1020, "Mercado Livre", mustHex("#2D3277")),
		panel(780, 1020, 160, 60, mustHex("#EE4D2D"), 10),
		label(780, 1020, "Shopee", white),
	}
}

func saleBadges() []*Object {
	left := circle(100, 840, 40, mustHex(DefaultPrimaryColor), 0.9, RolePrimary)
	left.Angle = -12
	right := circle(980, 240, 40, mustHex(DefaultAccentColor), 0.9, RoleAccent)
	right.Angle = 12
	return []*Object{left, right}
}

func circle(x, y, r float64, fill color.NRGBA, opacity float64, role ColorRole) *Object {
	return decoration(&Object{
		Kind:     KindCircle,
		Tag:      Tag{Role: role},
		Geometry: Geometry{Left: x, Top: y, Radius: r, Origin: OriginCenter},
		Paint:    Paint{Fill: Solid(fill), Opacity: opacity},
	})
}

func panel(x, y, w, h float64, fill color.NRGBA, radius float64) *Object {
	return decoration(&Object{
		Kind:     KindRect,
		Geometry: Geometry{Left: x, Top: y, Width: w, Height: h, Origin: OriginCenter},
		Paint:    Paint{Fill: Solid(fill), CornerRadius: radius},
	})
}

func label(x, y float64, text string, fill color.NRGBA) *Object {
	return decoration(&Object{
		Kind:     KindText,
		Geometry: Geometry{Left: x, Top: y, Origin: OriginCenter},
		Paint:    Paint{Fill: Solid(fill)},
		Text:     TextRun{Content: text, Font: Font{Family: fontBody, Size: 24, Bold: true}},
	})
}

func colored(o *Object, role ColorRole) *Object {
	o.Tag.Role = role
	return o
}

func mustHexFill(s string) Fill {
	return Solid(mustHex(s))
}

// decoration marks o as static artwork: not selectable, not hit-testable.
func decoration(o *Object) *Object {
	o.Interactivity = Interactivity{}
	if o.Opacity == 0 {
		o.Opacity = 1
	}
	return o
}

// editable marks o as a content slot the user can select and drag.
func editable(o *Object) *Object {
	o.Interactivity = Interactivity{
		Selectable:  true,
		Evented:     true,
		BorderColor: DefaultBorderColor,
		CornerColor: DefaultBorderColor,
	}
	if o.Opacity == 0 {
		o.Opacity = 1
	}
	return o
}
