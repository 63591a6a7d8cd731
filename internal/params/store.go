// Package params owns the learnable state of a model: one Bundle per layer,
// with flattened indexed access across the whole model.
//
// The flattened order is [L0.Weights..., L0.Biases..., L1.Weights..., ...].
// Optimizers rely on it to keep per-parameter state aligned.
package params

import (
	"errors"
	"fmt"
	"time"

	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
	"golang.org/x/exp/rand"
)

// ErrIndexOutOfRange is returned for layer, slot or flat indices past the end.
var ErrIndexOutOfRange = errors.New("index out of range")

// Store is an append-only arena of bundles, one per layer, in layer order.
//
// Every operation holds at most one bundle guard at a time.
type Store struct {
	bundles []*Bundle
	src     rand.Source
}

// Option configures a Store.
type Option func(*Store)

// WithSeed makes random initializers deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Store) { s.src = rand.NewSource(seed) }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, o := range opts {
		o(s)
	}
	if s.src == nil {
		s.src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return s
}

// AddDense appends a bundle with one [in, out] weight, one [out, 1] bias and
// zero gradients for both. It returns the new layer index.
func (s *Store) AddDense(inputSize, outputSize int, activation, weightInit, biasInit string) (int, error) {
	if inputSize <= 0 || outputSize <= 0 {
		return 0, fmt.Errorf("dense %dx%d: %w", inputSize, outputSize, tensor.ErrShapeMismatch)
	}
	wInit, err := lookupInitializer(weightInit)
	if err != nil {
		return 0, fmt.Errorf("weight: %w", err)
	}
	bInit, err := lookupInitializer(biasInit)
	if err != nil {
		return 0, fmt.Errorf("bias: %w", err)
	}

	w := tensor.Zeros(tensor.NewShape(inputSize, outputSize))
	bias := tensor.Zeros(tensor.NewShape(outputSize, 1))
	wInit(w, inputSize, outputSize, s.src)
	bInit(bias, inputSize, outputSize, s.src)

	s.bundles = append(s.bundles, &Bundle{
		Weights:     []*tensor.Tensor{w},
		Biases:      []*tensor.Tensor{bias},
		Gradients:   []*tensor.Tensor{tensor.Zeros(w.Shape()), tensor.Zeros(bias.Shape())},
		Activations: []string{activation},
	})
	return len(s.bundles) - 1, nil
}

// Len returns the number of layers.
func (s *Store) Len() int { return len(s.bundles) }

// Bundle returns the bundle of a layer. Access its fields through With.
func (s *Store) Bundle(layer int) (*Bundle, error) {
	if layer < 0 || layer >= len(s.bundles) {
		return nil, fmt.Errorf("layer %d of %d: %w", layer, len(s.bundles), ErrIndexOutOfRange)
	}
	return s.bundles[layer], nil
}

// With runs fn while holding the guard of one layer's bundle.
func (s *Store) With(layer int, fn func(*Bundle) error) error {
	b, err := s.Bundle(layer)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(b)
}

func (s *Store) each(fn func(*Bundle) error) error {
	for i := range s.bundles {
		if err := s.With(i, fn); err != nil {
			return err
		}
	}
	return nil
}

// FlattenedParameterCount returns the total number of weight and bias tensors.
func (s *Store) FlattenedParameterCount() int {
	n := 0
	_ = s.each(func(b *Bundle) error {
		n += b.ParameterCount()
		return nil
	})
	return n
}

// FlattenedDims returns the shape of every parameter in flattened order.
func (s *Store) FlattenedDims() []tensor.Shape {
	var dims []tensor.Shape
	_ = s.each(func(b *Bundle) error {
		for _, w := range b.Weights {
			dims = append(dims, w.Shape())
		}
		for _, bias := range b.Biases {
			dims = append(dims, bias.Shape())
		}
		return nil
	})
	return dims
}

// locate walks layers in order, subtracting each layer's weight count and
// then its bias count, until index falls inside one of them.
func (s *Store) locate(index int) (layer, slot int, err error) {
	if index < 0 {
		return 0, 0, fmt.Errorf("flat index %d: %w", index, ErrIndexOutOfRange)
	}
	rem := index
	for i, b := range s.bundles {
		b.mu.Lock()
		nw, nb := len(b.Weights), len(b.Biases)
		b.mu.Unlock()
		if rem < nw {
			return i, rem, nil
		}
		rem -= nw
		if rem < nb {
			return i, nw + rem, nil
		}
		rem -= nb
	}
	return 0, 0, fmt.Errorf("flat index %d: %w", index, ErrIndexOutOfRange)
}

// ParameterByFlatIndex returns a copy of parameter index.
func (s *Store) ParameterByFlatIndex(index int) (*tensor.Tensor, error) {
	layer, slot, err := s.locate(index)
	if err != nil {
		return nil, err
	}
	var out *tensor.Tensor
	err = s.With(layer, func(b *Bundle) error {
		p, err := b.parameter(slot)
		if err != nil {
			return err
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

// SetParameterByFlatIndex copies t into parameter index. The stored tensor
// keeps its identity.
func (s *Store) SetParameterByFlatIndex(t *tensor.Tensor, index int) error {
	layer, slot, err := s.locate(index)
	if err != nil {
		return err
	}
	return s.With(layer, func(b *Bundle) error {
		p, err := b.parameter(slot)
		if err != nil {
			return err
		}
		if err := p.CopyFrom(t); err != nil {
			return fmt.Errorf("flat index %d: %w", index, err)
		}
		return nil
	})
}

// GradientByFlatIndex returns a copy of the gradient of parameter index.
func (s *Store) GradientByFlatIndex(index int) (*tensor.Tensor, error) {
	layer, slot, err := s.locate(index)
	if err != nil {
		return nil, err
	}
	var out *tensor.Tensor
	err = s.With(layer, func(b *Bundle) error {
		g, err := b.Gradient(slot)
		if err != nil {
			return err
		}
		out = g.Clone()
		return nil
	})
	return out, err
}

// FlattenedGradients returns copies of every gradient in flattened order.
func (s *Store) FlattenedGradients() []*tensor.Tensor {
	var grads []*tensor.Tensor
	_ = s.each(func(b *Bundle) error {
		for _, g := range b.Gradients {
			grads = append(grads, g.Clone())
		}
		return nil
	})
	return grads
}

// AccumulateGradient adds g into gradient slot of a layer.
func (s *Store) AccumulateGradient(layer, slot int, g *tensor.Tensor) error {
	return s.With(layer, func(b *Bundle) error {
		return b.AccumulateGradient(slot, g)
	})
}

// ZeroAllGradients resets every gradient in the store.
func (s *Store) ZeroAllGradients() {
	_ = s.each(func(b *Bundle) error {
		b.ZeroGradients()
		return nil
	})
}

// RecordForwardPass caches (in, out) at a layer's unroll cursor.
func (s *Store) RecordForwardPass(layer int, in, out *tensor.Tensor) error {
	return s.With(layer, func(b *Bundle) error {
		b.RecordForwardPass(in, out)
		return nil
	})
}

// ResetUnroll drops every cached forward pass in every layer.
func (s *Store) ResetUnroll() {
	_ = s.each(func(b *Bundle) error {
		b.ResetUnroll()
		return nil
	})
}
