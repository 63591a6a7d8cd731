package net

import (
	"bytes"
	"io"
	"testing"

	"github.com/FlavioCFOliveira/GoHAL/internal/config"
	"github.com/FlavioCFOliveira/GoHAL/internal/data"
	"github.com/FlavioCFOliveira/GoHAL/internal/layer"
	"github.com/FlavioCFOliveira/GoHAL/internal/loss"
	"github.com/FlavioCFOliveira/GoHAL/internal/opt"
	"github.com/FlavioCFOliveira/GoHAL/internal/params"
	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingOptimizer counts Update calls on top of a real optimizer.
type countingOptimizer struct {
	opt.Optimizer
	updates int
}

func (c *countingOptimizer) Update(s *params.Store, batchSize int) error {
	c.updates++
	return c.Optimizer.Update(s, batchSize)
}

func dense(in, out, act, wInit, bInit string) layer.Config {
	return layer.Config{
		"input_size":  in,
		"output_size": out,
		"activation":  act,
		"w_init":      wInit,
		"b_init":      bInit,
	}
}

func newModel(t *testing.T, o opt.Optimizer, cfgs ...layer.Config) *Sequential {
	t.Helper()
	m, err := NewSequential(o, "mse", WithSeed(11), WithOutput(io.Discard))
	require.NoError(t, err)
	for _, cfg := range cfgs {
		require.NoError(t, m.Add("dense", cfg))
	}
	return m
}

func matrix(t *testing.T, rows [][]float64) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromRows(rows)
	require.NoError(t, err)
	return x
}

func xorSource(t *testing.T) *data.MemorySource {
	t.Helper()
	src, err := data.NewMemorySource(&data.Dataset{
		Samples: [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
		Labels:  [][]float64{{0}, {1}, {1}, {0}},
	}, nil)
	require.NoError(t, err)
	return src
}

// TestEndToEnd tests forward, loss, gradients and one SGD step on a single
// identity weight.
func TestEndToEnd(t *testing.T) {
	m := newModel(t, opt.NewSGD(0.1, 0, 0), dense("1", "1", "identity", "ones", "zeros"))
	require.NoError(t, m.Store().SetParameterByFlatIndex(tensor.Full(tensor.NewShape(1, 1), 2), 0))

	preds, err := m.Forward(matrix(t, [][]float64{{3}}))
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, 6.0, preds[0].At(0, 0))

	losses, err := m.Backward(preds, matrix(t, [][]float64{{0}}), nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{18}, losses)

	dW, err := m.Store().GradientByFlatIndex(0)
	require.NoError(t, err)
	assert.Equal(t, 18.0, dW.At(0, 0))
	db, err := m.Store().GradientByFlatIndex(1)
	require.NoError(t, err)
	assert.Equal(t, 6.0, db.At(0, 0))

	require.NoError(t, m.Step(1))
	w, err := m.Store().ParameterByFlatIndex(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, w.At(0, 0), 1e-12)
	b, err := m.Store().ParameterByFlatIndex(1)
	require.NoError(t, err)
	assert.InDelta(t, -0.6, b.At(0, 0), 1e-12)

	for _, g := range m.Store().FlattenedGradients() {
		assert.True(t, g.IsZero())
	}
	assert.Equal(t, 1, m.Updates())
}

// TestFitUpdateCount tests that two epochs over twice the batch size perform
// four optimizer updates.
func TestFitUpdateCount(t *testing.T) {
	counter := &countingOptimizer{Optimizer: opt.NewSGD(0.1, 0.9, 0)}
	m := newModel(t, counter,
		dense("2", "3", "tanh", "normal", "zeros"),
		dense("3", "1", "sigmoid", "normal", "zeros"),
	)

	losses, err := m.Fit(xorSource(t), 2, 2, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 4, counter.updates)
	assert.Equal(t, 4, m.Updates())
	assert.Len(t, losses, 4)
}

// TestMaskedBackward tests that masked steps add no loss and no gradient.
func TestMaskedBackward(t *testing.T) {
	m := newModel(t, opt.NewSGD(0.1, 0, 0), dense("2", "2", "tanh", "normal", "normal"))
	src := data.NewSinSource(2, 3, 3, 6)
	batch, err := src.NextTrainingBatch(3)
	require.NoError(t, err)

	before := m.Store().FlattenedGradients()
	preds, err := m.Forward(batch.Input)
	require.NoError(t, err)
	require.Len(t, preds, 3)

	losses, err := m.Backward(preds, batch.Target, []bool{false, false, false})
	require.NoError(t, err)
	assert.Empty(t, losses)
	for i, g := range m.Store().FlattenedGradients() {
		assert.True(t, tensor.Equal(before[i], g))
	}

	// Caches are consumed even for masked steps.
	require.NoError(t, m.Store().With(0, func(b *params.Bundle) error {
		assert.Equal(t, 0, b.UnrollCursor())
		return nil
	}))

	preds, err = m.Forward(batch.Input)
	require.NoError(t, err)
	losses, err = m.Backward(preds, batch.Target, []bool{false, true, true})
	require.NoError(t, err)
	require.Len(t, losses, 2)

	// Losses are reported last step first.
	want, err := loss.Value("mse", preds[2], batch.Target.TimeStep(2))
	require.NoError(t, err)
	assert.Equal(t, want, losses[0])

	_, err = m.Backward(preds, batch.Target, []bool{true})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

// TestMaskedStepMatchesShorterSequence tests that a masked first step leaves
// the same gradients as training on the remaining steps only.
func TestMaskedStepMatchesShorterSequence(t *testing.T) {
	x := tensor.Zeros(tensor.NewShape(1, 1, 2))
	x.Set(1, 0, 0, 0)
	x.Set(2, 0, 0, 1)
	target := tensor.Zeros(tensor.NewShape(1, 1, 2))

	masked := newModel(t, opt.NewSGD(0.1, 0, 0), dense("1", "1", "identity", "ones", "zeros"))
	preds, err := masked.Forward(x)
	require.NoError(t, err)
	_, err = masked.Backward(preds, target, []bool{false, true})
	require.NoError(t, err)

	single := newModel(t, opt.NewSGD(0.1, 0, 0), dense("1", "1", "identity", "ones", "zeros"))
	preds, err = single.Forward(x.TimeStep(1))
	require.NoError(t, err)
	_, err = single.Backward(preds, target.TimeStep(1), nil)
	require.NoError(t, err)

	got, want := masked.Store().FlattenedGradients(), single.Store().FlattenedGradients()
	for i := range want {
		assert.True(t, tensor.AllClose(want[i], got[i], 1e-12))
	}
}

// TestForwardAccumulatesUnrollSteps tests that repeated forward calls keep
// earlier steps until backward consumes them.
func TestForwardAccumulatesUnrollSteps(t *testing.T) {
	m := newModel(t, opt.NewSGD(0.1, 0, 0),
		dense("2", "3", "tanh", "normal", "zeros"),
		dense("3", "2", "identity", "normal", "zeros"),
	)
	x1 := matrix(t, [][]float64{{0.1, 0.2}})
	x2 := matrix(t, [][]float64{{0.3, 0.4}})

	first, err := m.Forward(x1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	preds, err := m.Forward(x2)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.True(t, tensor.Equal(first[0], preds[0]))

	targets, err := tensor.Stack([]*tensor.Tensor{x1, x2})
	require.NoError(t, err)
	losses, err := m.Backward(preds, targets, nil)
	require.NoError(t, err)
	assert.Len(t, losses, 2)

	for i := 0; i < 2; i++ {
		require.NoError(t, m.Store().With(i, func(b *params.Bundle) error {
			assert.Equal(t, 0, b.UnrollCursor())
			return nil
		}))
	}
}

func TestFitReducesLoss(t *testing.T) {
	var samples, labels [][]float64
	for i := 0; i < 16; i++ {
		x := float64(i) / 16
		samples = append(samples, []float64{x})
		labels = append(labels, []float64{2*x + 1})
	}
	src, err := data.NewMemorySource(&data.Dataset{Samples: samples, Labels: labels}, nil)
	require.NoError(t, err)

	m := newModel(t, opt.NewSGD(0.1, 0.5, 0), dense("1", "1", "identity", "zeros", "zeros"))
	first, err := m.Evaluate(src, 4)
	require.NoError(t, err)

	_, err = m.Fit(src, 100, 4, nil, false)
	require.NoError(t, err)
	last, err := m.Evaluate(src, 4)
	require.NoError(t, err)
	assert.Less(t, last, first/10)
}

func TestFitErrors(t *testing.T) {
	empty, err := NewSequential(opt.NewSGD(0.1, 0, 0), "mse")
	require.NoError(t, err)
	_, err = empty.Fit(xorSource(t), 1, 2, nil, false)
	assert.ErrorIs(t, err, ErrNoLayers)
	_, err = empty.Forward(matrix(t, [][]float64{{1}}))
	assert.ErrorIs(t, err, ErrNoLayers)

	m := newModel(t, opt.NewSGD(0.1, 0, 0), dense("2", "1", "tanh", "normal", "zeros"))
	_, err = m.Fit(mismatchedSource{}, 1, 1, nil, false)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = m.Fit(xorSource(t), 1, 0, nil, false)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
	_, err = m.Fit(xorSource(t), 1, 8, nil, false)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	_, err = m.Fit(xorSource(t), 1, 2, []bool{true, false}, false)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = m.Forward(matrix(t, [][]float64{{1, 2, 3}}))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

// mismatchedSource reports targets with a different time length.
type mismatchedSource struct{}

func (mismatchedSource) Describe() data.Info {
	return data.Info{
		InputShape:  tensor.NewShape(4, 2, 2),
		TargetShape: tensor.NewShape(4, 1, 3),
		SampleCount: 4,
	}
}

func (mismatchedSource) NextTrainingBatch(int) (data.Batch, error)   { return data.Batch{}, nil }
func (mismatchedSource) NextValidationBatch(int) (data.Batch, error) { return data.Batch{}, nil }

func TestNewSequentialAndAdd(t *testing.T) {
	_, err := NewSequential(opt.NewSGD(0.1, 0, 0), "cross_entropy")
	assert.ErrorIs(t, err, loss.ErrUnknownLoss)

	m := newModel(t, opt.NewSGD(0.1, 0, 0), dense("2", "3", "tanh", "normal", "zeros"))

	tests := []struct {
		name      string
		layerType string
		cfg       layer.Config
		want      error
	}{
		{"unsupported", "conv2d", dense("3", "1", "tanh", "normal", "zeros"), layer.ErrUnsupportedLayerType},
		{"chain mismatch", "dense", dense("4", "1", "tanh", "normal", "zeros"), tensor.ErrShapeMismatch},
		{"missing key", "dense", layer.Config{"input_size": "3", "output_size": "1"}, config.ErrMissingConfigKey},
		{"bad initializer", "dense", dense("3", "1", "tanh", "he", "zeros"), params.ErrUnknownInitializer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Add(tt.layerType, tt.cfg), tt.want)
			assert.Len(t, m.Layers(), 1)
			assert.Equal(t, 1, m.Store().Len())
		})
	}

	require.NoError(t, m.Add("dense", dense("3", "1", "tanh", "normal", "zeros")))
	assert.Len(t, m.Layers(), 2)
	assert.Equal(t, 2, m.Store().Len())
	assert.Equal(t, 13, m.ParameterCount())
}

func TestPredict(t *testing.T) {
	m := newModel(t, opt.NewSGD(0.1, 0, 0), dense("2", "4", "relu", "normal", "zeros"))
	x := tensor.Zeros(tensor.NewShape(3, 2, 5))

	out, err := m.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(3, 4, 5), out.Shape())
	require.NoError(t, m.Store().With(0, func(b *params.Bundle) error {
		assert.Equal(t, 0, b.UnrollCursor())
		return nil
	}))
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	m, err := NewSequential(opt.NewSGD(0.1, 0, 0), "mse", WithOutput(&buf))
	require.NoError(t, err)
	require.NoError(t, m.Add("dense", dense("8", "2", "tanh", "uniform", "zeros")))
	require.NoError(t, m.Add("dense", dense("2", "8", "tanh", "uniform", "zeros")))

	m.Summary()
	out := buf.String()
	assert.Contains(t, out, "dense_0")
	assert.Contains(t, out, "dense_1")
	assert.Contains(t, out, "Total params: 42")
	assert.Contains(t, out, "Loss: mse")
}
