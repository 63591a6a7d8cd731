// Package layer provides neural network layer implementations.
//
// Layers are stateless with respect to their parameters: every learnable
// tensor, gradient and forward cache lives in the params.Bundle passed to
// Forward and Backward.
package layer

import (
	"errors"
	"fmt"

	"github.com/FlavioCFOliveira/GoHAL/internal/activations"
	"github.com/FlavioCFOliveira/GoHAL/internal/config"
	"github.com/FlavioCFOliveira/GoHAL/internal/params"
	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// ErrUnsupportedLayerType is returned for unknown layer type names.
var ErrUnsupportedLayerType = errors.New("unsupported layer type")

// Layer is a neural network layer.
type Layer interface {
	// Forward computes the layer output for x and records (x, output) in b.
	Forward(b *params.Bundle, x *tensor.Tensor) (*tensor.Tensor, error)

	// Backward consumes the most recent forward pass recorded in b,
	// accumulates parameter gradients into b and returns the delta for the
	// preceding layer.
	Backward(b *params.Bundle, delta *tensor.Tensor) (*tensor.Tensor, error)

	InSize() int
	OutSize() int
}

// Config holds a layer's string-keyed settings.
type Config = config.Map

// Config keys recognized by Dense.
const (
	KeyInputSize  = "input_size"
	KeyOutputSize = "output_size"
	KeyActivation = "activation"
	KeyWeightInit = "w_init"
	KeyBiasInit   = "b_init"
)

// Spec is a validated layer configuration.
type Spec struct {
	Type       string
	InputSize  int
	OutputSize int
	Activation string
	WeightInit string
	BiasInit   string
}

// ParseConfig validates cfg for layerType. Initializer keys are also accepted
// as weight_init and bias_init.
func ParseConfig(layerType string, cfg Config) (Spec, error) {
	if layerType != "dense" {
		return Spec{}, fmt.Errorf("%q: %w", layerType, ErrUnsupportedLayerType)
	}
	in, err := cfg.PositiveInt(KeyInputSize)
	if err != nil {
		return Spec{}, err
	}
	out, err := cfg.PositiveInt(KeyOutputSize)
	if err != nil {
		return Spec{}, err
	}
	act, err := cfg.String(KeyActivation)
	if err != nil {
		return Spec{}, err
	}
	if _, err := activations.Lookup(act); err != nil {
		return Spec{}, err
	}
	wInit, err := cfg.String(KeyWeightInit, "weight_init")
	if err != nil {
		return Spec{}, err
	}
	bInit, err := cfg.String(KeyBiasInit, "bias_init")
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		Type:       layerType,
		InputSize:  in,
		OutputSize: out,
		Activation: act,
		WeightInit: wInit,
		BiasInit:   bInit,
	}, nil
}

// New creates the layer described by spec.
func New(spec Spec) (Layer, error) {
	switch spec.Type {
	case "dense":
		return NewDense(spec.InputSize, spec.OutputSize), nil
	}
	return nil, fmt.Errorf("%q: %w", spec.Type, ErrUnsupportedLayerType)
}

// Allocate adds the parameter bundle spec needs to store and returns its
// layer index.
func Allocate(store *params.Store, spec Spec) (int, error) {
	switch spec.Type {
	case "dense":
		return store.AddDense(spec.InputSize, spec.OutputSize, spec.Activation, spec.WeightInit, spec.BiasInit)
	}
	return 0, fmt.Errorf("%q: %w", spec.Type, ErrUnsupportedLayerType)
}
