package vision

// Window debounces face presence over the last K observations. A single
// missed detection must not end a session; only a full window of misses
// does, and only once until a face reappears.
type Window struct {
	size  int
	vals  []bool
	fired bool
}

// NewWindow creates a debounce window over size observations.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 4
	}
	return &Window{size: size}
}

// Observe records one face-presence sample and reports whether the
// no-face edge fired. The edge is one-shot: it fires when the window
// fills with misses and re-arms only after a face is seen again.
func (w *Window) Observe(face bool) bool {
	if face {
		w.fired = false
	}
	w.vals = append(w.vals, face)
	if len(w.vals) > w.size {
		w.vals = w.vals[1:]
	}
	if len(w.vals) < w.size || w.fired {
		return false
	}
	for _, v := range w.vals {
		if v {
			return false
		}
	}
	w.fired = true
	return true
}

// Reset clears the window, e.g. when a session restarts.
func (w *Window) Reset() {
	w.vals = w.vals[:0]
	w.fired = false
}
