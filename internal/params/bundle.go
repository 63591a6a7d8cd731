package params

import (
	"fmt"
	"sync"

	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// Bundle holds the learnable state of one layer: its weights and biases, the
// gradients accumulated for them, the activation used by each weight/bias
// pair and the input/output caches of every recorded unroll step.
//
// Gradients follow the concatenation order [Weights..., Biases...].
//
// Bundle methods do not lock. Callers go through Store.With, which holds
// the bundle's guard for the duration of the call.
type Bundle struct {
	Weights     []*tensor.Tensor
	Biases      []*tensor.Tensor
	Gradients   []*tensor.Tensor
	Activations []string

	inputs  []*tensor.Tensor
	outputs []*tensor.Tensor
	cursor  int

	mu sync.Mutex
}

// fieldAt returns element i of the slice chosen by sel.
func fieldAt[T any](b *Bundle, sel func(*Bundle) []T, i int) (T, error) {
	s := sel(b)
	if i < 0 || i >= len(s) {
		var zero T
		return zero, fmt.Errorf("slot %d of %d: %w", i, len(s), ErrIndexOutOfRange)
	}
	return s[i], nil
}

// setFieldAt replaces element i of the slice chosen by sel.
func setFieldAt[T any](b *Bundle, sel func(*Bundle) []T, i int, v T) error {
	s := sel(b)
	if i < 0 || i >= len(s) {
		return fmt.Errorf("slot %d of %d: %w", i, len(s), ErrIndexOutOfRange)
	}
	s[i] = v
	return nil
}

func weights(b *Bundle) []*tensor.Tensor   { return b.Weights }
func biases(b *Bundle) []*tensor.Tensor    { return b.Biases }
func gradients(b *Bundle) []*tensor.Tensor { return b.Gradients }
func activationNames(b *Bundle) []string   { return b.Activations }

// Weight returns weight tensor i.
func (b *Bundle) Weight(i int) (*tensor.Tensor, error) { return fieldAt(b, weights, i) }

// Bias returns bias tensor i.
func (b *Bundle) Bias(i int) (*tensor.Tensor, error) { return fieldAt(b, biases, i) }

// Gradient returns gradient slot i.
func (b *Bundle) Gradient(i int) (*tensor.Tensor, error) { return fieldAt(b, gradients, i) }

// Activation returns the activation name of weight/bias pair i.
func (b *Bundle) Activation(i int) (string, error) { return fieldAt(b, activationNames, i) }

// SetActivation replaces the activation name of weight/bias pair i.
func (b *Bundle) SetActivation(i int, name string) error {
	return setFieldAt(b, activationNames, i, name)
}

// ParameterCount returns len(Weights) + len(Biases).
func (b *Bundle) ParameterCount() int {
	return len(b.Weights) + len(b.Biases)
}

// parameter returns slot i in [Weights..., Biases...] order.
func (b *Bundle) parameter(i int) (*tensor.Tensor, error) {
	if i < len(b.Weights) {
		return fieldAt(b, weights, i)
	}
	return fieldAt(b, biases, i-len(b.Weights))
}

// AccumulateGradient adds g into gradient slot.
func (b *Bundle) AccumulateGradient(slot int, g *tensor.Tensor) error {
	dst, err := b.Gradient(slot)
	if err != nil {
		return err
	}
	if err := dst.AddInPlace(g); err != nil {
		return fmt.Errorf("gradient slot %d: %w", slot, err)
	}
	return nil
}

// ZeroGradients resets every gradient to zero.
func (b *Bundle) ZeroGradients() {
	for _, g := range b.Gradients {
		g.Fill(0)
	}
}

// RecordForwardPass stores (in, out) at the unroll cursor, overwriting a
// previous entry there if any, and advances the cursor.
func (b *Bundle) RecordForwardPass(in, out *tensor.Tensor) {
	if b.cursor < len(b.inputs) {
		b.inputs[b.cursor] = in
		b.outputs[b.cursor] = out
	} else {
		b.inputs = append(b.inputs, in)
		b.outputs = append(b.outputs, out)
	}
	b.cursor++
}

// PopForwardPass returns the most recent un-consumed (in, out) pair and
// moves the cursor back by one.
func (b *Bundle) PopForwardPass() (in, out *tensor.Tensor, err error) {
	if b.cursor == 0 {
		return nil, nil, fmt.Errorf("no cached forward pass: %w", ErrIndexOutOfRange)
	}
	b.cursor--
	return b.inputs[b.cursor], b.outputs[b.cursor], nil
}

// CachedOutputs returns the outputs of every un-consumed unroll step, oldest
// first.
func (b *Bundle) CachedOutputs() []*tensor.Tensor {
	out := make([]*tensor.Tensor, b.cursor)
	copy(out, b.outputs[:b.cursor])
	return out
}

// UnrollCursor returns the number of un-consumed unroll steps.
func (b *Bundle) UnrollCursor() int { return b.cursor }

// ResetUnroll drops every cached forward pass.
func (b *Bundle) ResetUnroll() {
	b.inputs = b.inputs[:0]
	b.outputs = b.outputs[:0]
	b.cursor = 0
}
