// Package spectrum provides a stage that computes magnitude spectrum of a
// signal over fixed windows.
//
// Output has one channel per frequency band, from low to high frequencies.
// Each band is constant over a window, so output covers the same samples as
// input and can be drawn with the same time axis.
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/maddyblue/go-dsp/fft"

	"github.com/davidhesselbom/freq-sub001/internal/pool"
	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/operation"
	"github.com/davidhesselbom/freq-sub001/signal"
)

var (
	// ErrInvalidWindow is returned when window size is too small.
	ErrInvalidWindow = errors.New("window size must be at least 2")
	// ErrInvalidBands is returned when number of bands doesn't fit the window.
	ErrInvalidBands = errors.New("number of bands must be between 1 and half of window size")
)

// Desc describes the spectrum stage. It runs on CPU engines only.
type Desc struct {
	windowSize int
	bands      int
	window     []float64
	scratch    *pool.Pool
}

// New returns spectrum stage with provided window size and number of bands.
func New(windowSize, bands int) (*Desc, error) {
	if windowSize < 2 {
		return nil, fmt.Errorf("%d: %w", windowSize, ErrInvalidWindow)
	}
	if bands < 1 || bands > windowSize/2 {
		return nil, fmt.Errorf("%d bands for %d window: %w", bands, windowSize, ErrInvalidBands)
	}
	return &Desc{
		windowSize: windowSize,
		bands:      bands,
		window:     hann(windowSize),
		scratch:    pool.Get(windowSize, 1),
	}, nil
}

// hann returns periodic hann window.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// WindowSize returns number of samples in a window.
func (d *Desc) WindowSize() int {
	return d.windowSize
}

// Bands returns number of output channels.
func (d *Desc) Bands() int {
	return d.bands
}

// Name implements operation.Desc.
func (d *Desc) Name() string {
	return "spectrum"
}

// RequiredInterval implements operation.Desc. Output is extended to whole
// windows.
func (d *Desc) RequiredInterval(output interval.Interval) (interval.Interval, interval.Interval) {
	aligned := output.Align(uint64(d.windowSize))
	return aligned, aligned
}

// AffectedInterval implements operation.Desc.
func (d *Desc) AffectedInterval(input interval.Interval) interval.Interval {
	return input.Align(uint64(d.windowSize))
}

// CreateOperation implements operation.Desc.
func (d *Desc) CreateOperation(engine operation.Engine) (operation.Operation, bool) {
	if operation.KindOf(engine) != operation.KindCPU {
		return nil, false
	}
	return operation.OperationFunc(d.process), true
}

func (d *Desc) process(in signal.Buffer) (signal.Buffer, error) {
	out := signal.NewBuffer(in.Interval, in.SampleRate, d.bands)
	numChannels := in.NumChannels()
	if numChannels == 0 {
		return out, nil
	}
	scratch := d.scratch.Alloc()
	defer d.scratch.Free(scratch)
	frame := scratch[0]
	bins := d.windowSize / 2

	size := int(in.Interval.Count())
	for start := 0; start < size; start += d.windowSize {
		end := start + d.windowSize
		if end > size {
			end = size
		}
		// channels are mixed down, missing tail is silent
		for i := range frame {
			var v float64
			if start+i < end {
				for c := 0; c < numChannels; c++ {
					v += in.Data[c][start+i]
				}
				v /= float64(numChannels)
			}
			frame[i] = v * d.window[i]
		}
		spectrum := fft.FFTReal(frame)
		for b := 0; b < d.bands; b++ {
			first, last := b*bins/d.bands, (b+1)*bins/d.bands
			var m float64
			for k := first; k < last; k++ {
				m = math.Max(m, cmplx.Abs(spectrum[k])/float64(d.windowSize))
			}
			band := out.Data[b][start:end]
			for i := range band {
				band[i] = m
			}
		}
	}
	return out, nil
}
