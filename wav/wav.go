// Package wav provides a signal source that decodes wav files.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/operation"
	"github.com/davidhesselbom/freq-sub001/signal"
)

const pcmFormat = 1

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")
	// ErrInvalidWav is returned when a file is not a valid wav.
	ErrInvalidWav = errors.New("wav is not valid")
)

// Source is a wav signal decoded into memory. It's a leaf stage of a
// chain: any interval can be requested, samples past the end are silent.
// Source runs on CPU engines only.
type Source struct {
	path        string
	sampleRate  int
	numChannels int
	bitDepth    signal.BitDepth
	data        signal.Float64
}

// Open decodes the wav file.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	s.path = path
	return s, nil
}

// Decode reads the whole wav signal.
func Decode(r io.ReadSeeker) (*Source, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidWav
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if err := validBitDepth(bitDepth); err != nil {
		return nil, err
	}
	ib, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	numChannels := ib.Format.NumChannels
	data := signal.InterInt{
		Data:        ib.Data,
		NumChannels: numChannels,
		BitDepth:    bitDepth,
	}.AsFloat64()
	if data == nil {
		data = signal.EmptyFloat64(numChannels, 0)
	}
	return &Source{
		sampleRate:  int(decoder.SampleRate),
		numChannels: numChannels,
		bitDepth:    bitDepth,
		data:        data,
	}, nil
}

func validBitDepth(bitDepth signal.BitDepth) error {
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
		return nil
	}
	return fmt.Errorf("%d: %w", bitDepth, ErrUnsupportedBitDepth)
}

// SampleRate returns sample rate of the signal.
func (s *Source) SampleRate() int {
	return s.sampleRate
}

// NumChannels returns number of channels of the signal.
func (s *Source) NumChannels() int {
	return s.numChannels
}

// BitDepth returns bit depth of the file.
func (s *Source) BitDepth() signal.BitDepth {
	return s.bitDepth
}

// Len returns number of samples in the signal.
func (s *Source) Len() uint64 {
	return uint64(s.data.Size())
}

// Interval returns samples of the signal.
func (s *Source) Interval() interval.Interval {
	return interval.New(0, s.Len())
}

// Path returns the path of decoded file. It's empty if the source was not
// opened from a file.
func (s *Source) Path() string {
	return s.path
}

// Name implements operation.Desc.
func (s *Source) Name() string {
	return "wav"
}

// RequiredInterval implements operation.Desc. Source produces exactly
// what is requested.
func (s *Source) RequiredInterval(output interval.Interval) (interval.Interval, interval.Interval) {
	return output, output
}

// AffectedInterval implements operation.Desc.
func (s *Source) AffectedInterval(input interval.Interval) interval.Interval {
	return input
}

// CreateOperation implements operation.Desc.
func (s *Source) CreateOperation(engine operation.Engine) (operation.Operation, bool) {
	if operation.KindOf(engine) != operation.KindCPU {
		return nil, false
	}
	return operation.OperationFunc(s.read), true
}

func (s *Source) read(in signal.Buffer) (signal.Buffer, error) {
	out := signal.NewBuffer(in.Interval, s.sampleRate, s.numChannels)
	available := in.Interval.Intersect(s.Interval())
	if available.Empty() {
		return out, nil
	}
	offset := available.First - in.Interval.First
	for c := range out.Data {
		copy(out.Data[c][offset:], s.data[c][available.First:available.Last])
	}
	return out, nil
}

// Save encodes the buffer into a wav file.
func Save(path string, b signal.Buffer, bitDepth signal.BitDepth) error {
	if err := validBitDepth(bitDepth); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	e := wav.NewEncoder(f, b.SampleRate, int(bitDepth), b.NumChannels(), pcmFormat)
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: b.NumChannels(),
			SampleRate:  b.SampleRate,
		},
		Data:           b.Data.AsInterInt(bitDepth),
		SourceBitDepth: int(bitDepth),
	}
	if err = e.Write(ib); err != nil {
		f.Close()
		return err
	}
	if err = e.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
