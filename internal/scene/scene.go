package scene

import (
	"errors"
	"image/color"
	"math"
)

// Logical canvas dimensions. Preview zoom and export multipliers scale these
// at raster time; object coordinates never change.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1080
)

var (
	// ErrNotInScene is returned when an operation targets an object the
	// scene does not own.
	ErrNotInScene = errors.New("scene: object is not part of the scene")
	// ErrNotSelectable is returned when selecting a decoration.
	ErrNotSelectable = errors.New("scene: object is not selectable")
)

// Scene is an ordered, back-to-front collection of objects.
type Scene struct {
	background color.NRGBA
	objects    []*Object
	slots      map[SlotKind]*Object
	active     *Object

	revision   uint64
	suppressed int
	observers  []func(*Scene)
}

// New returns an empty scene with a white background.
func New() *Scene {
	return &Scene{
		background: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		slots:      make(map[SlotKind]*Object),
	}
}

// Width is the logical width of the scene.
func (s *Scene) Width() float64 { return CanvasWidth }

// Height is the logical height of the scene.
func (s *Scene) Height() float64 { return CanvasHeight }

// Background returns the canvas fill drawn under every object.
func (s *Scene) Background() color.NRGBA { return s.background }

// SetBackground sets the canvas fill.
func (s *Scene) SetBackground(c color.NRGBA) { s.background = c }

// Objects returns the objects in draw order. The slice is a copy; the
// objects are not.
func (s *Scene) Objects() []*Object {
	out := make([]*Object, len(s.objects))
	copy(out, s.objects)
	return out
}

// Len returns the number of top-level objects.
func (s *Scene) Len() int { return len(s.objects) }

// Add appends objects on top of the stack.
func (s *Scene) Add(objs ...*Object) {
	s.objects = append(s.objects, objs...)
	s.reindex()
}

// Remove drops obj from the scene. It reports whether obj was present.
func (s *Scene) Remove(obj *Object) bool {
	i := s.IndexOf(obj)
	if i < 0 {
		return false
	}
	s.objects = append(s.objects[:i], s.objects[i+1:]...)
	if s.active == obj {
		s.active = nil
	}
	s.reindex()
	return true
}

// Replace swaps old for replacement at the same z-index. The selection
// follows the replacement.
func (s *Scene) Replace(old, replacement *Object) error {
	i := s.IndexOf(old)
	if i < 0 {
		return ErrNotInScene
	}
	s.objects[i] = replacement
	if s.active == old {
		s.active = replacement
	}
	s.reindex()
	return nil
}

// IndexOf returns the z-index of obj, or -1.
func (s *Scene) IndexOf(obj *Object) int {
	for i, o := range s.objects {
		if o == obj {
			return i
		}
	}
	return -1
}

// Clear removes every object and resets the background and selection.
func (s *Scene) Clear() {
	s.objects = nil
	s.active = nil
	s.background = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	s.reindex()
}

// Slot returns the object currently holding the given slot.
func (s *Scene) Slot(kind SlotKind) (*Object, bool) {
	obj, ok := s.slots[kind]
	return obj, ok
}

// SlotCount counts top-level objects tagged with kind, bypassing the index.
func (s *Scene) SlotCount(kind SlotKind) int {
	n := 0
	for _, o := range s.objects {
		if o.Tag.Slot == kind {
			n++
		}
	}
	return n
}

// Walk visits every object, group children included, in draw order.
func (s *Scene) Walk(fn func(*Object)) {
	for _, o := range s.objects {
		fn(o)
		for _, c := range o.Children {
			fn(c)
		}
	}
}

// WithRole returns every object, group children included, tagged with role.
func (s *Scene) WithRole(role ColorRole) []*Object {
	var out []*Object
	s.Walk(func(o *Object) {
		if o.Tag.Role == role {
			out = append(out, o)
		}
	})
	return out
}

// reindex rebuilds the slot index after a structural change. When two
// objects claim the same slot the topmost one wins.
func (s *Scene) reindex() {
	clear(s.slots)
	for _, o := range s.objects {
		if o.Tag.Slot != NoSlot {
			s.slots[o.Tag.Slot] = o
		}
	}
}

// Select makes obj the active object. Only selectable objects can be
// selected.
func (s *Scene) Select(obj *Object) error {
	if s.IndexOf(obj) < 0 {
		return ErrNotInScene
	}
	if !obj.Selectable {
		return ErrNotSelectable
	}
	s.active = obj
	return nil
}

// Deselect clears the active object.
func (s *Scene) Deselect() { s.active = nil }

// Active returns the selected object, or nil.
func (s *Scene) Active() *Object { return s.active }

// Move repositions obj, keeping its bounding box inside the canvas.
func (s *Scene) Move(obj *Object, left, top float64) error {
	if s.IndexOf(obj) < 0 {
		return ErrNotInScene
	}
	if !obj.Selectable {
		return ErrNotSelectable
	}
	sz := obj.Size()
	minX, minY := 0.0, 0.0
	if obj.Origin == OriginCenter {
		minX, minY = sz.W/2, sz.H/2
	}
	maxX := math.Max(minX, CanvasWidth-sz.W+minX)
	maxY := math.Max(minY, CanvasHeight-sz.H+minY)
	obj.Left = math.Min(math.Max(left, minX), maxX)
	obj.Top = math.Min(math.Max(top, minY), maxY)
	return nil
}

// OnRedraw registers an observer notified after every visible redraw.
func (s *Scene) OnRedraw(fn func(*Scene)) {
	s.observers = append(s.observers, fn)
}

// Redraw marks the scene as changed. Observers are not notified while
// interactivity is suppressed so the live view never shows that state.
func (s *Scene) Redraw() {
	s.revision++
	if s.suppressed > 0 {
		return
	}
	for _, fn := range s.observers {
		fn(s)
	}
}

// Revision increases on every redraw.
func (s *Scene) Revision() uint64 { return s.revision }

// Suppressed reports whether interactivity is currently suppressed.
func (s *Scene) Suppressed() bool { return s.suppressed > 0 }
