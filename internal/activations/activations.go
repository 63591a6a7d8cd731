// Package activations provides activation functions and a name registry.
package activations

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// ErrUnknownActivation is returned for names missing from the registry.
var ErrUnknownActivation = errors.New("unknown activation")

// Activation is an activation function with derivative.
//
// Derivative receives the activated value y = f(x), not x: layers only keep
// their activated outputs between forward and backward.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) from y = f(x)
	Derivative(y float64) float64
}

// Identity passes values through unchanged.
type Identity struct{}

func (Identity) Activate(x float64) float64   { return x }
func (Identity) Derivative(y float64) float64 { return 1 }

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (Tanh) Derivative(y float64) float64 {
	return 1 - y*y
}

// Sigmoid activation function.
type Sigmoid struct{}

// Activate computes 1 / (1 + e^-x)
func (Sigmoid) Activate(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (Sigmoid) Derivative(y float64) float64 {
	return y * (1 - y)
}

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (ReLU) Derivative(y float64) float64 {
	if y > 0 {
		return 1
	}
	return 0
}

// LeakyReLU activation function to prevent dying neurons.
type LeakyReLU struct {
	Alpha float64 // Slope for x <= 0, must be positive
}

// Activate computes x if x > 0, else alpha*x
func (l LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.Alpha * x
}

// Derivative returns 1 if x > 0, else alpha. The sign of y matches the sign
// of x for positive alpha.
func (l LeakyReLU) Derivative(y float64) float64 {
	if y > 0 {
		return 1
	}
	return l.Alpha
}

// Softplus is a smooth approximation of ReLU.
type Softplus struct{}

// Activate computes log(1 + e^x)
func (Softplus) Activate(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

// Derivative computes sigmoid(x) = 1 - e^-y
func (Softplus) Derivative(y float64) float64 {
	return -math.Expm1(-y)
}

var (
	mu       sync.RWMutex
	registry = map[string]Activation{
		"identity":   Identity{},
		"linear":     Identity{},
		"tanh":       Tanh{},
		"sigmoid":    Sigmoid{},
		"relu":       ReLU{},
		"leaky_relu": LeakyReLU{Alpha: 0.01},
		"softplus":   Softplus{},
	}
)

// Register adds or replaces a named activation.
func Register(name string, act Activation) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = act
}

// Lookup returns the activation registered under name.
func Lookup(name string) (Activation, error) {
	mu.RLock()
	defer mu.RUnlock()
	act, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownActivation)
	}
	return act, nil
}

// Names returns the registered activation names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply returns name(x) elementwise.
func Apply(name string, x *tensor.Tensor) (*tensor.Tensor, error) {
	act, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return x.Map(act.Activate), nil
}

// Derivative returns name'(·) elementwise, evaluated from the activated
// output y.
func Derivative(name string, y *tensor.Tensor) (*tensor.Tensor, error) {
	act, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return y.Map(act.Derivative), nil
}
