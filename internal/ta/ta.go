// Package ta holds the moving-average arithmetic behind simulated index
// signals.
package ta

import "math"

// SMA is the simple moving average of the last n closes, or NaN when there
// are fewer than n.
func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

// Window is a fixed-length series of closes; pushing drops the oldest.
type Window struct {
	closes []float64
}

// NewWindow returns a window of size closes all equal to fill.
func NewWindow(size int, fill float64) *Window {
	w := &Window{closes: make([]float64, size)}
	for i := range w.closes {
		w.closes[i] = fill
	}
	return w
}

// Push appends a close and drops the oldest.
func (w *Window) Push(v float64) {
	if len(w.closes) == 0 {
		return
	}
	copy(w.closes, w.closes[1:])
	w.closes[len(w.closes)-1] = v
}

// Last returns the newest close.
func (w *Window) Last() float64 {
	if len(w.closes) == 0 {
		return math.NaN()
	}
	return w.closes[len(w.closes)-1]
}

// Len is the window size.
func (w *Window) Len() int { return len(w.closes) }

// SMA averages the newest n closes.
func (w *Window) SMA(n int) float64 { return SMA(w.closes, n) }
