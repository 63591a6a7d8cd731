// Package opt provides optimization algorithms that update the parameters of
// a params.Store from its accumulated gradients.
package opt

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/FlavioCFOliveira/GoHAL/internal/config"
	"github.com/FlavioCFOliveira/GoHAL/internal/params"
	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// ErrUnknownOptimizer is returned by NewWithDefaults for unknown names.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Optimizer updates network parameters based on gradients.
type Optimizer interface {
	// Setup allocates per-parameter state for the given flattened shapes.
	Setup(shapes []tensor.Shape) error

	// Update adjusts every parameter of store from its accumulated gradient.
	// It does not zero the gradients.
	Update(store *params.Store, batchSize int) error

	// State exposes tunable hyperparameters, keyed by field name.
	State() map[string]any
	SetState(state map[string]any)
}

// Config keys read by NewSGDFromConfig.
const (
	KeyLearningRate = "learning_rate"
	KeyMomentum     = "momentum"
	KeyDecay        = "decay"
)

// SGD (Stochastic Gradient Descent) optimizer with momentum and
// time-based learning-rate decay.
type SGD struct {
	LearningRate float64
	Momentum     float64
	Decay        float64

	velocity []*tensor.Tensor
	shapes   []tensor.Shape
	t        int
}

// NewSGD creates an SGD optimizer.
func NewSGD(learningRate, momentum, decay float64) *SGD {
	return &SGD{LearningRate: learningRate, Momentum: momentum, Decay: decay}
}

// NewSGDFromConfig reads learning_rate, momentum and decay from cfg. Every
// key is required.
func NewSGDFromConfig(cfg config.Map) (*SGD, error) {
	lr, err := cfg.Float(KeyLearningRate)
	if err != nil {
		return nil, fmt.Errorf("sgd: %w", err)
	}
	momentum, err := cfg.Float(KeyMomentum)
	if err != nil {
		return nil, fmt.Errorf("sgd: %w", err)
	}
	decay, err := cfg.Float(KeyDecay)
	if err != nil {
		return nil, fmt.Errorf("sgd: %w", err)
	}
	return NewSGD(lr, momentum, decay), nil
}

// NewWithDefaults returns a named optimizer with default hyperparameters.
// Names are case-insensitive.
func NewWithDefaults(name string) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "sgd":
		return NewSGD(0.01, 0.9, 0), nil
	case "adam":
		return NewAdam(0.001), nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownOptimizer)
}

// checkShapes reports whether shapes matches the state already allocated for
// prev. Setup may be repeated only for an unchanged topology.
func checkShapes(prev, shapes []tensor.Shape) error {
	if len(prev) != len(shapes) {
		return fmt.Errorf("optimizer set up for %d parameters, got %d: %w", len(prev), len(shapes), tensor.ErrShapeMismatch)
	}
	for i := range prev {
		if prev[i] != shapes[i] {
			return fmt.Errorf("optimizer parameter %d set up as %v, got %v: %w", i, prev[i], shapes[i], tensor.ErrShapeMismatch)
		}
	}
	return nil
}

func zerosLike(shapes []tensor.Shape) []*tensor.Tensor {
	out := make([]*tensor.Tensor, len(shapes))
	for i, s := range shapes {
		out[i] = tensor.Zeros(s)
	}
	return out
}

// Setup allocates one zero velocity per parameter shape.
func (s *SGD) Setup(shapes []tensor.Shape) error {
	if s.shapes != nil {
		return checkShapes(s.shapes, shapes)
	}
	s.shapes = append([]tensor.Shape(nil), shapes...)
	s.velocity = zerosLike(shapes)
	return nil
}

// Update applies, for every flat index i,
//
//	lr_t = lr / (1 + decay*t)
//	v[i] = momentum*v[i] + (lr_t/batchSize)*g[i]
//	p[i] = p[i] - v[i]
//
// with t counting updates from 1.
func (s *SGD) Update(store *params.Store, batchSize int) error {
	if batchSize <= 0 {
		return fmt.Errorf("sgd: batch size %d must be positive", batchSize)
	}
	if err := s.Setup(store.FlattenedDims()); err != nil {
		return err
	}
	s.t++
	lrT := s.LearningRate / (1 + s.Decay*float64(s.t))
	scale := lrT / float64(batchSize)

	for i, v := range s.velocity {
		g, err := store.GradientByFlatIndex(i)
		if err != nil {
			return err
		}
		p, err := store.ParameterByFlatIndex(i)
		if err != nil {
			return err
		}
		v.ScaleInPlace(s.Momentum)
		if err := v.AddScaledInPlace(scale, g); err != nil {
			return fmt.Errorf("sgd: parameter %d: %w", i, err)
		}
		if err := p.SubInPlace(v); err != nil {
			return fmt.Errorf("sgd: parameter %d: %w", i, err)
		}
		if err := store.SetParameterByFlatIndex(p, i); err != nil {
			return err
		}
	}
	return nil
}

// Steps returns the number of updates applied so far.
func (s *SGD) Steps() int { return s.t }

// State returns the SGD hyperparameters.
func (s *SGD) State() map[string]any {
	return map[string]any{
		"LearningRate": s.LearningRate,
		"Momentum":     s.Momentum,
		"Decay":        s.Decay,
	}
}

// SetState restores hyperparameters from State. Unknown keys are ignored.
func (s *SGD) SetState(state map[string]any) {
	if v, ok := state["LearningRate"].(float64); ok {
		s.LearningRate = v
	}
	if v, ok := state["Momentum"].(float64); ok {
		s.Momentum = v
	}
	if v, ok := state["Decay"].(float64); ok {
		s.Decay = v
	}
}

// Adam optimizer for faster convergence.
type Adam struct {
	LearningRate float64
	Beta1        float64 // Exponential decay rate for first moment
	Beta2        float64 // Exponential decay rate for second moment
	Epsilon      float64 // Small constant for numerical stability

	m, v   []*tensor.Tensor
	shapes []tensor.Shape
	t      int
}

// NewAdam creates a new Adam optimizer with default values.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Setup allocates the first and second moment estimates.
func (a *Adam) Setup(shapes []tensor.Shape) error {
	if a.shapes != nil {
		return checkShapes(a.shapes, shapes)
	}
	a.shapes = append([]tensor.Shape(nil), shapes...)
	a.m = zerosLike(shapes)
	a.v = zerosLike(shapes)
	return nil
}

// Update applies one bias-corrected Adam step using the batch-averaged
// gradient.
func (a *Adam) Update(store *params.Store, batchSize int) error {
	if batchSize <= 0 {
		return fmt.Errorf("adam: batch size %d must be positive", batchSize)
	}
	if err := a.Setup(store.FlattenedDims()); err != nil {
		return err
	}
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i := range a.m {
		g, err := store.GradientByFlatIndex(i)
		if err != nil {
			return err
		}
		p, err := store.ParameterByFlatIndex(i)
		if err != nil {
			return err
		}
		if p.Shape() != a.shapes[i] || g.Shape() != a.shapes[i] {
			return fmt.Errorf("adam: parameter %d: %w", i, tensor.ErrShapeMismatch)
		}
		m, v, pd, gd := a.m[i].Data(), a.v[i].Data(), p.Data(), g.Data()
		for j := range pd {
			grad := gd[j] / float64(batchSize)
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*grad
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*grad*grad
			pd[j] -= a.LearningRate * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.Epsilon)
		}
		if err := store.SetParameterByFlatIndex(p, i); err != nil {
			return err
		}
	}
	return nil
}

// State returns the Adam hyperparameters.
func (a *Adam) State() map[string]any {
	return map[string]any{
		"LearningRate": a.LearningRate,
		"Beta1":        a.Beta1,
		"Beta2":        a.Beta2,
		"Epsilon":      a.Epsilon,
	}
}

// SetState restores hyperparameters from State. Unknown keys are ignored.
func (a *Adam) SetState(state map[string]any) {
	if v, ok := state["LearningRate"].(float64); ok {
		a.LearningRate = v
	}
	if v, ok := state["Beta1"].(float64); ok {
		a.Beta1 = v
	}
	if v, ok := state["Beta2"].(float64); ok {
		a.Beta2 = v
	}
	if v, ok := state["Epsilon"].(float64); ok {
		a.Epsilon = v
	}
}
