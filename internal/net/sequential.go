// Package net composes layers into a sequential model and drives training:
// forward over every time step, reverse-time backward through the layer
// stack, then an optimizer update on the shared parameter store.
package net

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/FlavioCFOliveira/GoHAL/internal/data"
	"github.com/FlavioCFOliveira/GoHAL/internal/layer"
	"github.com/FlavioCFOliveira/GoHAL/internal/loss"
	"github.com/FlavioCFOliveira/GoHAL/internal/opt"
	"github.com/FlavioCFOliveira/GoHAL/internal/params"
	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

var (
	// ErrNoLayers is returned when training a model without layers.
	ErrNoLayers = errors.New("model has no layers")
	// ErrInvalidBatchSize is returned for non-positive batch sizes or a
	// batch size larger than the source's sample count.
	ErrInvalidBatchSize = errors.New("invalid batch size")
)

// Sequential is an ordered stack of layers sharing one parameter store.
// Layer i owns bundle i of the store.
//
// A Sequential is driven by one goroutine at a time.
type Sequential struct {
	layers    []layer.Layer
	specs     []layer.Spec
	store     *params.Store
	optimizer opt.Optimizer
	lossName  string

	callbacks []Callback
	out       io.Writer
	storeOpts []params.Option

	updates int
	stop    bool
}

// Option configures a Sequential.
type Option func(*Sequential)

// WithCallbacks registers callbacks invoked by Fit.
func WithCallbacks(cbs ...Callback) Option {
	return func(s *Sequential) { s.callbacks = append(s.callbacks, cbs...) }
}

// WithSeed makes parameter initialization deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Sequential) { s.storeOpts = append(s.storeOpts, params.WithSeed(seed)) }
}

// WithOutput sets where Summary and the verbose logger write. Defaults to
// os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Sequential) { s.out = w }
}

// NewSequential creates an empty model trained by optimizer against the
// named loss.
func NewSequential(optimizer opt.Optimizer, lossName string, opts ...Option) (*Sequential, error) {
	if _, err := loss.Lookup(lossName); err != nil {
		return nil, err
	}
	if optimizer == nil {
		return nil, errors.New("net: nil optimizer")
	}
	s := &Sequential{
		optimizer: optimizer,
		lossName:  lossName,
		out:       os.Stdout,
	}
	for _, o := range opts {
		o(s)
	}
	s.store = params.NewStore(s.storeOpts...)
	return s, nil
}

// Add validates cfg, allocates the layer's parameter bundle and appends the
// layer. On error the model is left unchanged.
func (s *Sequential) Add(layerType string, cfg layer.Config) error {
	spec, err := layer.ParseConfig(layerType, cfg)
	if err != nil {
		return fmt.Errorf("add %s: %w", layerType, err)
	}
	if n := len(s.layers); n > 0 && s.layers[n-1].OutSize() != spec.InputSize {
		return fmt.Errorf("add %s: input_size %d after a layer of output size %d: %w",
			layerType, spec.InputSize, s.layers[n-1].OutSize(), tensor.ErrShapeMismatch)
	}
	l, err := layer.New(spec)
	if err != nil {
		return fmt.Errorf("add %s: %w", layerType, err)
	}
	idx, err := layer.Allocate(s.store, spec)
	if err != nil {
		return fmt.Errorf("add %s: %w", layerType, err)
	}
	if idx != len(s.layers) {
		panic(fmt.Sprintf("net: bundle %d allocated for layer %d", idx, len(s.layers)))
	}
	s.layers = append(s.layers, l)
	s.specs = append(s.specs, spec)
	return nil
}

// Forward feeds every time step of x through the layers in order. It returns
// the last layer's output for every recorded unroll step, including steps
// from earlier Forward calls not yet consumed by Backward.
func (s *Sequential) Forward(x *tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(s.layers) == 0 {
		return nil, ErrNoLayers
	}
	shape := x.Shape()
	if shape.Reserved() != 1 || shape.Feature() != s.layers[0].InSize() {
		return nil, fmt.Errorf("forward: input %v, want %d features: %w", shape, s.layers[0].InSize(), tensor.ErrShapeMismatch)
	}
	for t := 0; t < shape.Time(); t++ {
		h := x.TimeStep(t)
		for i, l := range s.layers {
			err := s.store.With(i, func(b *params.Bundle) error {
				var err error
				h, err = l.Forward(b, h)
				return err
			})
			if err != nil {
				s.store.ResetUnroll()
				return nil, fmt.Errorf("forward: step %d layer %d: %w", t, i, err)
			}
		}
	}

	var outputs []*tensor.Tensor
	err := s.store.With(len(s.layers)-1, func(b *params.Bundle) error {
		outputs = b.CachedOutputs()
		return nil
	})
	return outputs, err
}

// Backward walks time steps in reverse. For each step it computes the loss
// and its derivative against the matching target slice, or uses a zero delta
// when mask is false for that step, then back-propagates through the layers
// in reverse. A nil mask enables every step. It returns the computed loss
// values, last step first.
func (s *Sequential) Backward(predictions []*tensor.Tensor, targets *tensor.Tensor, mask []bool) ([]float64, error) {
	if len(s.layers) == 0 {
		return nil, ErrNoLayers
	}
	steps := len(predictions)
	if targets.Shape().Time() != steps {
		return nil, fmt.Errorf("backward: %d predictions for %d target steps: %w", steps, targets.Shape().Time(), tensor.ErrShapeMismatch)
	}
	if mask != nil && len(mask) != steps {
		return nil, fmt.Errorf("backward: mask of %d for %d steps: %w", len(mask), steps, tensor.ErrShapeMismatch)
	}

	losses := make([]float64, 0, steps)
	for t := steps - 1; t >= 0; t-- {
		pred, target := predictions[t], targets.TimeStep(t)

		var delta *tensor.Tensor
		if mask != nil && !mask[t] {
			if pred.Shape() != target.Shape() {
				return losses, fmt.Errorf("backward: step %d: prediction %v vs target %v: %w", t, pred.Shape(), target.Shape(), tensor.ErrShapeMismatch)
			}
			delta = tensor.Zeros(pred.Shape())
		} else {
			v, err := loss.Value(s.lossName, pred, target)
			if err != nil {
				return losses, fmt.Errorf("backward: step %d: %w", t, err)
			}
			if delta, err = loss.Derivative(s.lossName, pred, target); err != nil {
				return losses, fmt.Errorf("backward: step %d: %w", t, err)
			}
			losses = append(losses, v)
		}

		for i := len(s.layers) - 1; i >= 0; i-- {
			l := s.layers[i]
			err := s.store.With(i, func(b *params.Bundle) error {
				var err error
				delta, err = l.Backward(b, delta)
				return err
			})
			if err != nil {
				return losses, fmt.Errorf("backward: step %d layer %d: %w", t, i, err)
			}
		}
	}
	return losses, nil
}

// Step applies one optimizer update and zeroes every gradient.
func (s *Sequential) Step(batchSize int) error {
	if err := s.optimizer.Update(s.store, batchSize); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	s.store.ZeroAllGradients()
	s.updates++
	return nil
}

// Fit trains for epochs passes of SampleCount/batchSize minibatches each,
// running forward, backward and an optimizer step per minibatch. It returns
// every loss value computed, in order. verbose logs the mean loss of each
// epoch.
func (s *Sequential) Fit(src data.Source, epochs, batchSize int, mask []bool, verbose bool) ([]float64, error) {
	if len(s.layers) == 0 {
		return nil, ErrNoLayers
	}
	info := src.Describe()
	if err := checkPair(info.InputShape, info.TargetShape); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	if mask != nil && len(mask) != info.InputShape.Time() {
		return nil, fmt.Errorf("fit: mask of %d for %d time steps: %w", len(mask), info.InputShape.Time(), tensor.ErrShapeMismatch)
	}
	if batchSize <= 0 || batchSize > info.SampleCount {
		return nil, fmt.Errorf("fit: batch size %d for %d samples: %w", batchSize, info.SampleCount, ErrInvalidBatchSize)
	}
	iterations := info.SampleCount / batchSize

	callbacks := s.callbacks
	if verbose {
		callbacks = append(callbacks[:len(callbacks):len(callbacks)], Logger{Interval: 1})
	}
	s.stop = false
	for _, c := range callbacks {
		c.OnTrainBegin(s)
	}
	defer func() {
		for _, c := range callbacks {
			c.OnTrainEnd(s)
		}
	}()

	var all []float64
	for epoch := 0; epoch < epochs && !s.stop; epoch++ {
		for _, c := range callbacks {
			c.OnEpochBegin(epoch, s)
		}
		var epochLoss float64
		var n int
		for it := 0; it < iterations; it++ {
			for _, c := range callbacks {
				c.OnBatchBegin(it, s)
			}
			losses, err := s.trainBatch(src, batchSize, mask)
			if err != nil {
				return all, fmt.Errorf("fit: epoch %d batch %d: %w", epoch, it, err)
			}
			all = append(all, losses...)
			batchLoss := mean(losses)
			for _, v := range losses {
				epochLoss += v
			}
			n += len(losses)
			for _, c := range callbacks {
				c.OnBatchEnd(it, batchLoss, s)
			}
		}
		if n > 0 {
			epochLoss /= float64(n)
		}
		for _, c := range callbacks {
			c.OnEpochEnd(epoch, epochLoss, s)
		}
	}
	return all, nil
}

func (s *Sequential) trainBatch(src data.Source, batchSize int, mask []bool) ([]float64, error) {
	batch, err := src.NextTrainingBatch(batchSize)
	if err != nil {
		return nil, err
	}
	if err := checkPair(batch.Input.Shape(), batch.Target.Shape()); err != nil {
		return nil, err
	}
	preds, err := s.Forward(batch.Input)
	if err != nil {
		return nil, err
	}
	losses, err := s.Backward(preds, batch.Target, mask)
	if err != nil {
		s.store.ResetUnroll()
		s.store.ZeroAllGradients()
		return nil, err
	}
	if err := s.Step(batchSize); err != nil {
		return nil, err
	}
	return losses, nil
}

// checkPair requires input and target to agree on the batch and time axes.
func checkPair(in, target tensor.Shape) error {
	if in.Batch() != target.Batch() || in.Time() != target.Time() {
		return fmt.Errorf("input %v and target %v disagree on batch or time: %w", in, target, tensor.ErrShapeMismatch)
	}
	return nil
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// Predict runs x through the model without training and returns the outputs
// stacked along the time axis. Cached forward passes are cleared afterwards.
func (s *Sequential) Predict(x *tensor.Tensor) (*tensor.Tensor, error) {
	defer s.store.ResetUnroll()
	outputs, err := s.Forward(x)
	if err != nil {
		return nil, err
	}
	return tensor.Stack(outputs[len(outputs)-x.Shape().Time():])
}

// Evaluate returns the mean loss over SampleCount/batchSize validation
// batches, without updating parameters.
func (s *Sequential) Evaluate(src data.Source, batchSize int) (float64, error) {
	if len(s.layers) == 0 {
		return 0, ErrNoLayers
	}
	info := src.Describe()
	if batchSize <= 0 || batchSize > info.SampleCount {
		return 0, fmt.Errorf("evaluate: batch size %d for %d samples: %w", batchSize, info.SampleCount, ErrInvalidBatchSize)
	}
	var losses []float64
	for it := 0; it < info.SampleCount/batchSize; it++ {
		batch, err := src.NextValidationBatch(batchSize)
		if err != nil {
			return 0, fmt.Errorf("evaluate: %w", err)
		}
		if err := checkPair(batch.Input.Shape(), batch.Target.Shape()); err != nil {
			return 0, fmt.Errorf("evaluate: %w", err)
		}
		pred, err := s.Predict(batch.Input)
		if err != nil {
			return 0, fmt.Errorf("evaluate: %w", err)
		}
		for t := 0; t < pred.Shape().Time(); t++ {
			v, err := loss.Value(s.lossName, pred.TimeStep(t), batch.Target.TimeStep(t))
			if err != nil {
				return 0, fmt.Errorf("evaluate: %w", err)
			}
			losses = append(losses, v)
		}
	}
	return mean(losses), nil
}

// StopTraining makes Fit return after the current epoch.
func (s *Sequential) StopTraining() { s.stop = true }

// Layers returns the model's layers in order.
func (s *Sequential) Layers() []layer.Layer { return s.layers }

// Store returns the parameter store shared by the layers and the optimizer.
func (s *Sequential) Store() *params.Store { return s.store }

// Optimizer returns the model's optimizer.
func (s *Sequential) Optimizer() opt.Optimizer { return s.optimizer }

// Updates returns the number of optimizer steps taken.
func (s *Sequential) Updates() int { return s.updates }

// Output returns the writer used for summaries and logging.
func (s *Sequential) Output() io.Writer { return s.out }

// ParameterCount returns the number of scalar parameters.
func (s *Sequential) ParameterCount() int {
	n := 0
	for _, d := range s.store.FlattenedDims() {
		n += d.Size()
	}
	return n
}

// Summary prints a summary of the network architecture.
func (s *Sequential) Summary() {
	w := s.out
	fmt.Fprintln(w, "Model: Sequential")
	fmt.Fprintln(w, "_________________________________________________________________")
	fmt.Fprintf(w, "%-20s %-15s %-15s %-10s\n", "Layer (type)", "Output Shape", "Activation", "Param #")
	fmt.Fprintln(w, "=================================================================")

	totalParams := 0
	for i, spec := range s.specs {
		n := spec.InputSize*spec.OutputSize + spec.OutputSize
		totalParams += n
		fmt.Fprintf(w, "%-20s %-15s %-15s %-10d\n",
			fmt.Sprintf("%s_%d", spec.Type, i), fmt.Sprintf("(%d)", spec.OutputSize), spec.Activation, n)
	}
	fmt.Fprintln(w, "=================================================================")
	fmt.Fprintf(w, "Total params: %d\n", totalParams)
	fmt.Fprintf(w, "Loss: %s\n", s.lossName)
	fmt.Fprintln(w, "_________________________________________________________________")
}
