package wav_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/operation"
	"github.com/davidhesselbom/freq-sub001/signal"
	"github.com/davidhesselbom/freq-sub001/wav"
)

const (
	sampleRate  = 8000
	numChannels = 2
	numSamples  = 100
)

func fixture(t *testing.T, bitDepth signal.BitDepth) (string, signal.Buffer) {
	t.Helper()
	b := signal.NewBuffer(interval.New(0, numSamples), sampleRate, numChannels)
	for c := range b.Data {
		for i := range b.Data[c] {
			b.Data[c][i] = float64(c+1) * float64(i) / (2 * numSamples)
		}
	}
	path := filepath.Join(t.TempDir(), "fixture.wav")
	require.NoError(t, wav.Save(path, b, bitDepth))
	return path, b
}

func TestOpen(t *testing.T) {
	tests := []struct {
		bitDepth signal.BitDepth
	}{
		{bitDepth: signal.BitDepth16},
		{bitDepth: signal.BitDepth24},
		{bitDepth: signal.BitDepth32},
	}
	for _, test := range tests {
		path, expected := fixture(t, test.bitDepth)
		s, err := wav.Open(path)
		require.NoError(t, err)
		assert.Equal(t, sampleRate, s.SampleRate())
		assert.Equal(t, numChannels, s.NumChannels())
		assert.Equal(t, test.bitDepth, s.BitDepth())
		assert.Equal(t, uint64(numSamples), s.Len())
		assert.Equal(t, path, s.Path())
		assert.Equal(t, "wav", s.Name())

		op, ok := s.CreateOperation(operation.CPU(0))
		require.True(t, ok)
		out, err := op.Process(signal.Buffer{Interval: s.Interval()})
		require.NoError(t, err)
		for c := range expected.Data {
			for i := range expected.Data[c] {
				assert.InDelta(t, expected.Data[c][i], out.Data[c][i], 1e-3)
			}
		}
	}
}

func TestSourceInterval(t *testing.T) {
	path, expected := fixture(t, signal.BitDepth16)
	s, err := wav.Open(path)
	require.NoError(t, err)

	_, ok := s.CreateOperation(operation.GPU(0))
	assert.False(t, ok)
	op, ok := s.CreateOperation(operation.CPU(1))
	require.True(t, ok)

	requested := interval.New(90, 110)
	in, actual := s.RequiredInterval(requested)
	assert.Equal(t, requested, in)
	assert.Equal(t, requested, actual)
	assert.Equal(t, requested, s.AffectedInterval(requested))

	out, err := op.Process(signal.Buffer{Interval: requested})
	require.NoError(t, err)
	assert.Equal(t, requested, out.Interval)
	assert.Equal(t, sampleRate, out.SampleRate)
	for i := 0; i < 10; i++ {
		assert.InDelta(t, expected.Data[1][90+i], out.Data[1][i], 1e-3)
		assert.Equal(t, 0.0, out.Data[1][10+i], "silence past the end")
	}

	out, err = op.Process(signal.Buffer{Interval: interval.New(200, 210)})
	require.NoError(t, err)
	assert.Equal(t, 10, out.Data.Size())
}

func TestErrors(t *testing.T) {
	_, err := wav.Open(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)

	_, err = wav.Decode(bytes.NewReader([]byte("definitely not a wav file")))
	assert.True(t, errors.Is(err, wav.ErrInvalidWav))

	err = wav.Save(filepath.Join(t.TempDir(), "out.wav"), signal.NewBuffer(interval.New(0, 1), sampleRate, 1), signal.BitDepth8)
	assert.True(t, errors.Is(err, wav.ErrUnsupportedBitDepth))
}
