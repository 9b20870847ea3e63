package agg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2021, 4, 21, 19, 0, 0, 0, time.UTC)

func TestSlidingWindowAverage(t *testing.T) {
	w := NewSlidingWindow[float64](Average(), 5*time.Second, t0)

	_, ok := w.Handle(Input[float64]{Time: t0.Add(time.Second), Value: 10})
	assert.False(t, ok)
	_, ok = w.Handle(Input[float64]{Time: t0.Add(3 * time.Second), Value: 20})
	assert.False(t, ok)

	out, ok := w.Handle(Input[float64]{Time: t0.Add(6 * time.Second), Value: 30})
	require.True(t, ok)
	assert.Equal(t, Output[float64]{Start: t0, End: t0.Add(5 * time.Second), Value: 15}, out)

	start, end := w.Range()
	assert.Equal(t, t0.Add(5*time.Second), start)
	assert.Equal(t, t0.Add(10*time.Second), end)

	out, ok = w.Flush()
	require.True(t, ok)
	assert.Equal(t, 30.0, out.Value)
	assert.Equal(t, t0.Add(5*time.Second), out.Start)
}

func TestSlidingWindowPerUnitTime(t *testing.T) {
	w := NewSlidingWindow[float64](PerUnitTime(time.Second), 5*time.Second, t0)
	w.Handle(Input[float64]{Time: t0, Value: 400})
	w.Handle(Input[float64]{Time: t0.Add(4 * time.Second), Value: 600})

	out, ok := w.Flush()
	require.True(t, ok)
	assert.Equal(t, 200.0, out.Value)
}

func TestSlidingWindowEmptyFlush(t *testing.T) {
	w := NewSlidingWindow[int64](Average(), time.Second, t0)

	_, ok := w.Flush()
	assert.False(t, ok)

	start, end := w.Range()
	assert.Equal(t, t0.Add(time.Second), start)
	assert.Equal(t, t0.Add(2*time.Second), end)
}

func TestSlidingWindowAdvancesOneWindow(t *testing.T) {
	tests := []struct {
		name string
		gap  time.Duration
	}{
		{"next range", 7 * time.Second},
		{"two ranges ahead", 12 * time.Second},
		{"far ahead", 22 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewSlidingWindow[float64](Average(), 5*time.Second, t0)
			w.Handle(Input[float64]{Time: t0.Add(time.Second), Value: 1})

			out, ok := w.Handle(Input[float64]{Time: t0.Add(tt.gap), Value: 2})
			require.True(t, ok)
			assert.Equal(t, t0, out.Start)

			start, end := w.Range()
			assert.Equal(t, t0.Add(5*time.Second), start)
			assert.Equal(t, t0.Add(10*time.Second), end)

			out, ok = w.Flush()
			require.True(t, ok)
			assert.Equal(t, t0.Add(5*time.Second), out.Start)
			assert.Equal(t, 2.0, out.Value)
		})
	}
}

func TestSlidingWindowRangesContiguous(t *testing.T) {
	w := NewSlidingWindow[float64](Average(), 5*time.Second, t0)

	var outs []Output[float64]
	for i := range 40 {
		if out, ok := w.Handle(Input[float64]{Time: t0.Add(time.Duration(i) * 1500 * time.Millisecond), Value: float64(i)}); ok {
			outs = append(outs, out)
		}
	}
	if out, ok := w.Flush(); ok {
		outs = append(outs, out)
	}

	require.NotEmpty(t, outs)
	for i := 1; i < len(outs); i++ {
		assert.Equal(t, outs[i-1].End, outs[i].Start)
		assert.Equal(t, 5*time.Second, outs[i].End.Sub(outs[i].Start))
	}
}

func TestSlidingWindowIntegerTruncates(t *testing.T) {
	w := NewSlidingWindow[int64](Average(), 5*time.Second, t0)
	w.Handle(Input[int64]{Time: t0, Value: 1})
	w.Handle(Input[int64]{Time: t0, Value: 2})

	out, ok := w.Flush()
	require.True(t, ok)
	assert.Equal(t, int64(1), out.Value)
}
