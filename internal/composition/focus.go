package composition

// FocusReader reads the text of the focused editable element. Input methods
// insert committed text directly into that element, so comparing its value
// before and after a composition recovers what was committed.
type FocusReader interface {
	// FocusedText returns the element's value. ok is false when there is no
	// focused text element or its value cannot be read.
	FocusedText() (text string, ok bool)
}

// Inserted returns the text present in after but not in before, assuming a
// single contiguous edit. A pure deletion yields "".
func Inserted(before, after string) string {
	b := []rune(before)
	a := []rune(after)

	p := 0
	for p < len(b) && p < len(a) && b[p] == a[p] {
		p++
	}
	s := 0
	for s < len(b)-p && s < len(a)-p && b[len(b)-1-s] == a[len(a)-1-s] {
		s++
	}
	return string(a[p : len(a)-s])
}
