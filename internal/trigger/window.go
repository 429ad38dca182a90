package trigger

// Window is a fixed-capacity ring of the most recently typed characters.
type Window struct {
	buf   []rune
	start int
	n     int
}

// NewWindow returns a window holding at most capacity runes.
func NewWindow(capacity int) *Window {
	if capacity < 0 {
		capacity = 0
	}
	return &Window{buf: make([]rune, capacity)}
}

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Len returns the number of runes currently held.
func (w *Window) Len() int { return w.n }

// Push appends r, evicting the oldest rune when full.
func (w *Window) Push(r rune) {
	if len(w.buf) == 0 {
		return
	}
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = r
		w.n++
		return
	}
	w.buf[w.start] = r
	w.start = (w.start + 1) % len(w.buf)
}

// Pop removes the most recent rune, mirroring a backspace.
func (w *Window) Pop() {
	if w.n > 0 {
		w.n--
	}
}

// Reset empties the window.
func (w *Window) Reset() {
	w.start = 0
	w.n = 0
}

// HasSuffix reports whether the window currently ends with p.
func (w *Window) HasSuffix(p []rune) bool {
	if len(p) == 0 || len(p) > w.n {
		return false
	}
	offset := w.n - len(p)
	for i, r := range p {
		if w.at(offset+i) != r {
			return false
		}
	}
	return true
}

func (w *Window) at(i int) rune {
	return w.buf[(w.start+i)%len(w.buf)]
}

// String returns the window contents oldest first.
func (w *Window) String() string {
	out := make([]rune, w.n)
	for i := range out {
		out[i] = w.at(i)
	}
	return string(out)
}
