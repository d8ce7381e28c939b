package mock_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/mock"
	"github.com/davidhesselbom/freq-sub001/operation"
	"github.com/davidhesselbom/freq-sub001/signal"
)

func TestDesc(t *testing.T) {
	tests := []struct {
		desc     *mock.Desc
		wanted   interval.Interval
		actual   interval.Interval
		input    signal.Buffer
		expected float64
	}{
		{
			desc:     &mock.Desc{Source: true, Value: 0.5},
			wanted:   interval.New(3, 17),
			actual:   interval.New(3, 17),
			input:    signal.Buffer{Interval: interval.New(3, 17)},
			expected: 0.5,
		},
		{
			desc:     &mock.Desc{BlockSize: 10, Value: 1},
			wanted:   interval.New(3, 17),
			actual:   interval.New(0, 10),
			input:    signal.NewBuffer(interval.New(0, 10), 100, 2),
			expected: 1,
		},
	}
	for _, test := range tests {
		in, actual := test.desc.RequiredInterval(test.wanted)
		assert.Equal(t, test.actual, in)
		assert.Equal(t, test.actual, actual)

		op, ok := test.desc.CreateOperation(operation.CPU(0))
		assert.True(t, ok)
		out, err := op.Process(test.input)
		assert.NoError(t, err)
		assert.Equal(t, test.input.Interval, out.Interval)
		assert.Equal(t, test.expected, out.Data[0][0])

		tasks, samples := test.desc.Count()
		assert.Equal(t, 1, tasks)
		assert.Equal(t, test.input.Interval.Count(), samples)
		assert.Equal(t, 1, test.desc.Created(operation.CPU(0)))
		test.desc.Reset()
		tasks, _ = test.desc.Count()
		assert.Equal(t, 0, tasks)
	}
}

func TestDescEngines(t *testing.T) {
	d := &mock.Desc{
		Kinds:       []operation.Kind{operation.KindCPU},
		Unsupported: []operation.Engine{operation.CPU(1)},
	}
	_, ok := d.CreateOperation(operation.GPU(0))
	assert.False(t, ok)
	_, ok = d.CreateOperation(operation.CPU(1))
	assert.False(t, ok)
	_, ok = d.CreateOperation(operation.CPU(0))
	assert.True(t, ok)
	_, ok = d.CreateOperation(mock.Engine("custom"))
	assert.True(t, ok)
}

func TestDescError(t *testing.T) {
	errTest := errors.New("test error")
	d := &mock.Desc{ErrorOnCall: errTest}
	op, _ := d.CreateOperation(operation.CPU(0))
	_, err := op.Process(signal.NewBuffer(interval.New(0, 1), 1, 1))
	assert.Equal(t, errTest, err)
}
