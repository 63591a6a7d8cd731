package gohal

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacadeTrainsLinearModel(t *testing.T) {
	src, err := MemorySource(&Dataset{
		Samples: [][]float64{{0}, {0.25}, {0.5}, {0.75}},
		Labels:  [][]float64{{1}, {1.5}, {2}, {2.5}},
	}, nil)
	require.NoError(t, err)

	model, err := NewSequential(SGD(0.2, 0.5, 0), "mse", WithSeed(5), WithOutput(io.Discard))
	require.NoError(t, err)
	require.NoError(t, model.Add("dense", Dense(1, 1, "identity", "zeros", "zeros")))

	before, err := model.Evaluate(src, 4)
	require.NoError(t, err)
	losses, err := model.Fit(src, 200, 4, nil, false)
	require.NoError(t, err)
	assert.Len(t, losses, 200)

	after, err := model.Evaluate(src, 4)
	require.NoError(t, err)
	assert.Less(t, after, before/100)
}

func TestFacadeErrors(t *testing.T) {
	_, err := NewSequential(SGD(0.1, 0, 0), "hinge")
	assert.ErrorIs(t, err, ErrUnknownLoss)

	model, err := NewSequential(SGD(0.1, 0, 0), "mse")
	require.NoError(t, err)
	assert.ErrorIs(t, model.Add("dense", Dense(2, 2, "gelu", "zeros", "zeros")), ErrUnknownActivation)
	assert.ErrorIs(t, model.Add("rnn", Dense(2, 2, "tanh", "zeros", "zeros")), ErrUnsupportedLayerType)

	_, err = model.Fit(SinSource(2, 2, 1, 4), 1, 2, nil, false)
	assert.ErrorIs(t, err, ErrNoLayers)

	_, err = OptimizerWithDefaults("lbfgs")
	assert.ErrorIs(t, err, ErrUnknownOptimizer)
}
