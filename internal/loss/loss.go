// Package loss provides loss functions and a name registry.
package loss

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// ErrUnknownLoss is returned for names missing from the registry.
var ErrUnknownLoss = errors.New("unknown loss")

// Loss is a loss function with derivative.
type Loss interface {
	// Forward computes the scalar loss between predicted and true values.
	Forward(yPred, yTrue *tensor.Tensor) (float64, error)

	// Backward computes the gradient of the loss w.r.t. prediction.
	Backward(yPred, yTrue *tensor.Tensor) (*tensor.Tensor, error)
}

func checkShapes(name string, yPred, yTrue *tensor.Tensor) error {
	if yPred.Shape() != yTrue.Shape() {
		return fmt.Errorf("%s: prediction %v vs target %v: %w", name, yPred.Shape(), yTrue.Shape(), tensor.ErrShapeMismatch)
	}
	return nil
}

// MSE (Mean Squared Error) loss, halved so that its derivative is the raw
// residual.
type MSE struct{}

// Forward computes 0.5 * mean((y_pred - y_true)^2)
func (MSE) Forward(yPred, yTrue *tensor.Tensor) (float64, error) {
	if err := checkShapes("mse", yPred, yTrue); err != nil {
		return 0, err
	}
	p, y := yPred.Data(), yTrue.Data()
	var sum float64
	for i := range p {
		diff := p[i] - y[i]
		sum += diff * diff
	}
	return 0.5 * sum / float64(len(p)), nil
}

// Backward computes y_pred - y_true
func (MSE) Backward(yPred, yTrue *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkShapes("mse", yPred, yTrue); err != nil {
		return nil, err
	}
	return tensor.Sub(yPred, yTrue)
}

// L1Loss (Mean Absolute Error) loss.
type L1Loss struct{}

// Forward computes mean(|y_pred - y_true|)
func (L1Loss) Forward(yPred, yTrue *tensor.Tensor) (float64, error) {
	if err := checkShapes("mae", yPred, yTrue); err != nil {
		return 0, err
	}
	p, y := yPred.Data(), yTrue.Data()
	var sum float64
	for i := range p {
		sum += math.Abs(p[i] - y[i])
	}
	return sum / float64(len(p)), nil
}

// Backward computes sign(y_pred - y_true)
func (L1Loss) Backward(yPred, yTrue *tensor.Tensor) (*tensor.Tensor, error) {
	diff, err := tensor.Sub(yPred, yTrue)
	if err != nil {
		return nil, fmt.Errorf("mae: %w", err)
	}
	return diff.Map(func(d float64) float64 {
		switch {
		case d > 0:
			return 1
		case d < 0:
			return -1
		}
		return 0
	}), nil
}

// Huber loss for robust regression.
type Huber struct {
	Delta float64 // Threshold for quadratic/linear transition
}

// NewHuber creates a Huber loss with the given delta.
func NewHuber(delta float64) *Huber {
	return &Huber{Delta: delta}
}

// Forward computes mean of 0.5*d^2 for |d| <= delta, delta*(|d| - 0.5*delta) otherwise.
func (h Huber) Forward(yPred, yTrue *tensor.Tensor) (float64, error) {
	if err := checkShapes("huber", yPred, yTrue); err != nil {
		return 0, err
	}
	p, y := yPred.Data(), yTrue.Data()
	var sum float64
	for i := range p {
		diff := math.Abs(p[i] - y[i])
		if diff <= h.Delta {
			sum += 0.5 * diff * diff
		} else {
			sum += h.Delta * (diff - 0.5*h.Delta)
		}
	}
	return sum / float64(len(p)), nil
}

// Backward computes the residual clipped to [-delta, delta].
func (h Huber) Backward(yPred, yTrue *tensor.Tensor) (*tensor.Tensor, error) {
	diff, err := tensor.Sub(yPred, yTrue)
	if err != nil {
		return nil, fmt.Errorf("huber: %w", err)
	}
	return diff.Map(func(d float64) float64 {
		return math.Max(-h.Delta, math.Min(h.Delta, d))
	}), nil
}

var (
	mu       sync.RWMutex
	registry = map[string]Loss{
		"mse":   MSE{},
		"mae":   L1Loss{},
		"l1":    L1Loss{},
		"huber": Huber{Delta: 1},
	}
)

// Register adds or replaces a named loss.
func Register(name string, l Loss) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = l
}

// Lookup returns the loss registered under name.
func Lookup(name string) (Loss, error) {
	mu.RLock()
	defer mu.RUnlock()
	l, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownLoss)
	}
	return l, nil
}

// Names returns the registered loss names, sorted.
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

// Value computes the named loss.
func Value(name string, yPred, yTrue *tensor.Tensor) (float64, error) {
	l, err := Lookup(name)
	if err != nil {
		return 0, err
	}
	return l.Forward(yPred, yTrue)
}

// Derivative computes the named loss's gradient w.r.t. prediction.
func Derivative(name string, yPred, yTrue *tensor.Tensor) (*tensor.Tensor, error) {
	l, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return l.Backward(yPred, yTrue)
}
