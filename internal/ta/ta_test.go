package ta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 4.0, SMA(closes, 3))
	assert.Equal(t, 3.0, SMA(closes, 5))
	assert.True(t, math.IsNaN(SMA(closes, 6)))
	assert.True(t, math.IsNaN(SMA(closes, 0)))
}

func TestWindow(t *testing.T) {
	w := NewWindow(4, 10)
	assert.Equal(t, 4, w.Len())
	assert.Equal(t, 10.0, w.SMA(4))

	w.Push(14)
	w.Push(18)
	assert.Equal(t, 4, w.Len())
	assert.Equal(t, 18.0, w.Last())
	assert.Equal(t, 16.0, w.SMA(2))
	assert.Equal(t, 13.0, w.SMA(4))
	assert.True(t, math.IsNaN(w.SMA(5)))
}

func TestEmptyWindow(t *testing.T) {
	w := NewWindow(0, 1)
	w.Push(3)
	assert.True(t, math.IsNaN(w.Last()))
}
