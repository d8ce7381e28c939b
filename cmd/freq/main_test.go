package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/signal"
	"github.com/davidhesselbom/freq-sub001/wav"
)

func TestInit(t *testing.T) {
	//check if commands are registered
	assert.Equal(t, len(commands), 2)
}

func TestRun(t *testing.T) {
	b := signal.NewBuffer(interval.New(0, 4096), 8000, 1)
	for i := range b.Data[0] {
		b.Data[0][i] = float64(i%64) / 64
	}
	in := filepath.Join(t.TempDir(), "in.wav")
	require.NoError(t, wav.Save(in, b, signal.BitDepth16))

	tests := []struct {
		description string
		args        []string
		code        int
	}{
		{
			description: "no command",
			args:        []string{"freq"},
			code:        errorExitCode,
		},
		{
			description: "unknown command",
			args:        []string{"freq", "play"},
			code:        errorExitCode,
		},
		{
			description: "version",
			args:        []string{"freq", "version"},
			code:        successExitCode,
		},
		{
			description: "render without input",
			args:        []string{"freq", "render"},
			code:        errorExitCode,
		},
		{
			description: "render missing file",
			args:        []string{"freq", "render", "-in", filepath.Join(t.TempDir(), "missing.wav")},
			code:        errorExitCode,
		},
		{
			description: "render invalid bands",
			args:        []string{"freq", "render", "-in", in, "-window", "64", "-bands", "64"},
			code:        errorExitCode,
		},
		{
			description: "render",
			args: []string{"freq", "render", "-in", in, "-window", "64", "-bands", "8",
				"-workers", "2", "-block-width", "16", "-block-height", "8", "-frames", "2",
				"-png", filepath.Join(t.TempDir(), "out.png")},
			code: successExitCode,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			c := config{args: test.args}
			assert.Equal(t, test.code, c.run())
		})
	}
}
