// Package agg reduces timestamped values into fixed, contiguous time windows.
package agg

import (
	"time"
)

// Number is the set of value types a window can reduce.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Input is one timestamped value.
type Input[T Number] struct {
	Time  time.Time
	Value T
}

// Output is the reduced value of the half-open range [Start, End).
type Output[T Number] struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Value T         `json:"value"`
}

// Function selects how a window's buffer is reduced.
type Function struct {
	unit time.Duration
}

// Average is the arithmetic mean of the buffered values.
func Average() Function {
	return Function{}
}

// PerUnitTime is the buffered sum scaled to the amount per unit, e.g. damage
// per second over a five second window.
func PerUnitTime(unit time.Duration) Function {
	return Function{unit: unit}
}

func (f Function) reduce(sum float64, n int, window time.Duration) float64 {
	if f.unit == 0 {
		return sum / float64(n)
	}
	return sum / float64(window.Milliseconds()) * float64(f.unit.Milliseconds())
}

// SlidingWindow buffers values that fall inside [start, start+window). A value
// past the range flushes the buffer and moves the range forward.
type SlidingWindow[T Number] struct {
	fn     Function
	window time.Duration
	buffer []T
	start  time.Time
	end    time.Time
}

// NewSlidingWindow returns a window whose first range begins at start.
func NewSlidingWindow[T Number](fn Function, window time.Duration, start time.Time) *SlidingWindow[T] {
	return &SlidingWindow[T]{
		fn:     fn,
		window: window,
		start:  start,
		end:    start.Add(window),
	}
}

// Range returns the current half-open range.
func (w *SlidingWindow[T]) Range() (time.Time, time.Time) {
	return w.start, w.end
}

func (w *SlidingWindow[T]) contains(tm time.Time) bool {
	return !tm.Before(w.start) && tm.Before(w.end)
}

// Handle adds in to the window. When in falls outside the current range the
// buffered values are flushed first and their output returned with ok set.
// The range then moves forward exactly one window and in joins that range,
// whether or not its timestamp falls inside it.
func (w *SlidingWindow[T]) Handle(in Input[T]) (out Output[T], ok bool) {
	if !w.contains(in.Time) {
		out, ok = w.Flush()
	}
	w.buffer = append(w.buffer, in.Value)
	return out, ok
}

// Flush reduces the buffer, clears it and advances the range by one window.
// An empty buffer produces no output but the range still advances.
func (w *SlidingWindow[T]) Flush() (Output[T], bool) {
	defer w.advance()
	if len(w.buffer) == 0 {
		return Output[T]{}, false
	}

	var sum float64
	for _, v := range w.buffer {
		sum += float64(v)
	}
	return Output[T]{
		Start: w.start,
		End:   w.end,
		Value: T(w.fn.reduce(sum, len(w.buffer), w.window)),
	}, true
}

func (w *SlidingWindow[T]) advance() {
	w.buffer = w.buffer[:0]
	w.start = w.end
	w.end = w.end.Add(w.window)
}
