package buffer

// Window accumulates samples for overlapped sliding-window analysis.
// Unlike Ring it is not safe for concurrent use; the decode loop owns it.
//
// Samples append at the tail. Latest returns the newest n samples without
// consuming them, and Advance discards the oldest n, which together give
// the window/hop behavior of an overlapped analysis pipeline.
type Window struct {
	data []float64
	cap  int
}

// NewWindow creates a sample window that retains at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		data: make([]float64, 0, capacity),
		cap:  capacity,
	}
}

// Append adds samples, evicting the oldest when capacity is exceeded.
func (w *Window) Append(samples ...float64) {
	w.data = append(w.data, samples...)
	if len(w.data) > w.cap {
		excess := len(w.data) - w.cap
		w.data = append(w.data[:0], w.data[excess:]...)
	}
}

// Latest copies the newest n samples in chronological order. It returns
// nil if fewer than n samples are buffered.
func (w *Window) Latest(n int) []float64 {
	if n <= 0 || len(w.data) < n {
		return nil
	}
	out := make([]float64, n)
	copy(out, w.data[len(w.data)-n:])
	return out
}

// Advance discards the oldest n samples.
func (w *Window) Advance(n int) {
	if n <= 0 {
		return
	}
	if n >= len(w.data) {
		w.data = w.data[:0]
		return
	}
	w.data = append(w.data[:0], w.data[n:]...)
}

// Len returns the number of buffered samples.
func (w *Window) Len() int {
	return len(w.data)
}

// Cap returns the maximum number of retained samples.
func (w *Window) Cap() int {
	return w.cap
}

// Reset discards all samples.
func (w *Window) Reset() {
	w.data = w.data[:0]
}
