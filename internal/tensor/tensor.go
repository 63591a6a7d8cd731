// Package tensor provides dense float64 arrays with batch, feature, time and
// reserved axes, backed by gonum for the linear algebra.
package tensor

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when two tensors (or a tensor and a layer)
// disagree on their dimensions.
var ErrShapeMismatch = errors.New("shape mismatch")

// Axis positions inside a Shape.
const (
	AxisBatch = iota
	AxisFeature
	AxisTime
	AxisReserved
)

// Shape holds the four axis lengths [batch, feature, time, reserved].
type Shape [4]int

// NewShape builds a Shape from up to four dimensions. Missing trailing axes
// default to 1. It panics on non-positive dimensions or more than four axes.
func NewShape(dims ...int) Shape {
	if len(dims) > 4 {
		panic(fmt.Sprintf("tensor.NewShape: at most 4 dimensions, got %d", len(dims)))
	}
	s := Shape{1, 1, 1, 1}
	for i, d := range dims {
		if d <= 0 {
			panic(fmt.Sprintf("tensor.NewShape: dimension %d must be positive, got %d", i, d))
		}
		s[i] = d
	}
	return s
}

// Batch returns the batch axis length.
func (s Shape) Batch() int { return s[AxisBatch] }

// Feature returns the feature axis length.
func (s Shape) Feature() int { return s[AxisFeature] }

// Time returns the time axis length.
func (s Shape) Time() int { return s[AxisTime] }

// Reserved returns the reserved axis length.
func (s Shape) Reserved() int { return s[AxisReserved] }

// Size returns the number of elements.
func (s Shape) Size() int {
	return s[0] * s[1] * s[2] * s[3]
}

// IsMatrix reports whether the time and reserved axes are both 1.
func (s Shape) IsMatrix() bool {
	return s[AxisTime] == 1 && s[AxisReserved] == 1
}

func (s Shape) String() string {
	return fmt.Sprintf("[%d %d %d %d]", s[0], s[1], s[2], s[3])
}

// Tensor is a dense float64 array.
//
// Storage is time-major: element (b, f, t, r) lives at
// ((r*T + t)*B + b)*F + f, so a single time step is a contiguous
// row-major batch x feature matrix.
type Tensor struct {
	shape Shape
	data  []float64
}

// New wraps data in a tensor of the given shape. The slice is shared, not copied.
func New(shape Shape, data []float64) (*Tensor, error) {
	if len(data) != shape.Size() {
		return nil, fmt.Errorf("tensor.New: %d values for shape %v: %w", len(data), shape, ErrShapeMismatch)
	}
	return &Tensor{shape: shape, data: data}, nil
}

// Zeros returns a zero-filled tensor.
func Zeros(shape Shape) *Tensor {
	return &Tensor{shape: shape, data: make([]float64, shape.Size())}
}

// Full returns a tensor with every element set to v.
func Full(shape Shape, v float64) *Tensor {
	t := Zeros(shape)
	t.Fill(v)
	return t
}

// Ones returns a tensor filled with ones.
func Ones(shape Shape) *Tensor {
	return Full(shape, 1)
}

// FromRows builds a [len(rows), len(rows[0])] matrix tensor.
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("tensor.FromRows: empty input: %w", ErrShapeMismatch)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("tensor.FromRows: row %d has %d values, want %d: %w", i, len(r), cols, ErrShapeMismatch)
		}
		data = append(data, r...)
	}
	return &Tensor{shape: NewShape(len(rows), cols), data: data}, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape { return t.shape }

// Data returns the underlying storage. Writes are visible to every view.
func (t *Tensor) Data() []float64 { return t.data }

// Len returns the number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape, data: data}
}

func (t *Tensor) offset(b, f, step, r int) int {
	s := t.shape
	return ((r*s[AxisTime]+step)*s[AxisBatch]+b)*s[AxisFeature] + f
}

// At returns the element at (batch, feature, time, reserved). Omitted
// trailing indices are 0.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.index(idx)]
}

// Set writes v at (batch, feature, time, reserved).
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.index(idx)] = v
}

func (t *Tensor) index(idx []int) int {
	var full [4]int
	if len(idx) > 4 {
		panic(fmt.Sprintf("tensor: at most 4 indices, got %d", len(idx)))
	}
	copy(full[:], idx)
	for i, v := range full {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.shape))
		}
	}
	return t.offset(full[0], full[1], full[2], full[3])
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float64) {
	for i := range t.data {
		t.data[i] = v
	}
}

// CopyFrom overwrites t's elements with src's.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if t.shape != src.shape {
		return fmt.Errorf("copy %v into %v: %w", src.shape, t.shape, ErrShapeMismatch)
	}
	copy(t.data, src.data)
	return nil
}

// TimeStep returns a view of time step `step` as a [batch, feature] matrix.
// The view shares storage with t.
func (t *Tensor) TimeStep(step int) *Tensor {
	s := t.shape
	if s.Reserved() != 1 {
		panic(fmt.Sprintf("tensor.TimeStep: reserved axis must be 1, shape %v", s))
	}
	if step < 0 || step >= s.Time() {
		panic(fmt.Sprintf("tensor.TimeStep: step %d out of range for shape %v", step, s))
	}
	n := s.Batch() * s.Feature()
	return &Tensor{
		shape: NewShape(s.Batch(), s.Feature()),
		data:  t.data[step*n : (step+1)*n : (step+1)*n],
	}
}

// Stack joins matrix tensors of identical shape along the time axis.
func Stack(steps []*Tensor) (*Tensor, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("tensor.Stack: no time steps: %w", ErrShapeMismatch)
	}
	first := steps[0].shape
	if !first.IsMatrix() {
		return nil, fmt.Errorf("tensor.Stack: step shape %v is not a matrix: %w", first, ErrShapeMismatch)
	}
	n := first.Size()
	out := Zeros(NewShape(first.Batch(), first.Feature(), len(steps)))
	for i, st := range steps {
		if st.shape != first {
			return nil, fmt.Errorf("tensor.Stack: step %d has shape %v, want %v: %w", i, st.shape, first, ErrShapeMismatch)
		}
		copy(out.data[i*n:(i+1)*n], st.data)
	}
	return out, nil
}

// Matrix returns a gonum view over a matrix tensor. It panics if the tensor
// has more than one time step or reserved slice.
func (t *Tensor) Matrix() *mat.Dense {
	if !t.shape.IsMatrix() {
		panic(fmt.Sprintf("tensor.Matrix: shape %v is not a matrix", t.shape))
	}
	return mat.NewDense(t.shape.Batch(), t.shape.Feature(), t.data)
}

// Rows returns a copy of a matrix tensor as a slice of rows.
func (t *Tensor) Rows() [][]float64 {
	if !t.shape.IsMatrix() {
		panic(fmt.Sprintf("tensor.Rows: shape %v is not a matrix", t.shape))
	}
	cols := t.shape.Feature()
	rows := make([][]float64, t.shape.Batch())
	for i := range rows {
		rows[i] = make([]float64, cols)
		copy(rows[i], t.data[i*cols:(i+1)*cols])
	}
	return rows
}

func (t *Tensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor%v", t.shape)
	if t.shape.IsMatrix() {
		fmt.Fprintf(&sb, "\n%v", mat.Formatted(t.Matrix(), mat.Squeeze()))
		return sb.String()
	}
	fmt.Fprintf(&sb, " %v", t.data)
	return sb.String()
}
