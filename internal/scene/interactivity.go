package scene

// savedInteractivity remembers one object's editor state.
type savedInteractivity struct {
	obj   *Object
	state Interactivity
}

// WithSuppressedInteractivity strips every object of its editor chrome
// (selectable flag, border and corner colors), runs fn, and restores the
// exact prior state on every exit path, panics included. Redraws issued by
// fn are not forwarded to live-view observers.
func WithSuppressedInteractivity(s *Scene, fn func() error) error {
	saved := make([]savedInteractivity, 0, len(s.objects))
	s.Walk(func(o *Object) {
		saved = append(saved, savedInteractivity{obj: o, state: o.Interactivity})
	})

	s.suppressed++
	defer func() {
		for _, st := range saved {
			st.obj.Selectable = st.state.Selectable
			st.obj.BorderColor = st.state.BorderColor
			st.obj.CornerColor = st.state.CornerColor
		}
		s.suppressed--
	}()

	for _, st := range saved {
		st.obj.Selectable = false
		st.obj.BorderColor = Transparent
		st.obj.CornerColor = Transparent
	}
	return fn()
}
