package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MatMul computes op(a) · op(b) where op transposes when the matching flag
// is set. Both operands must be matrices.
func MatMul(a, b *Tensor, transA, transB bool) (*Tensor, error) {
	if !a.shape.IsMatrix() || !b.shape.IsMatrix() {
		return nil, fmt.Errorf("matmul %v x %v: operands must be matrices: %w", a.shape, b.shape, ErrShapeMismatch)
	}
	var am, bm mat.Matrix = a.Matrix(), b.Matrix()
	if transA {
		am = am.T()
	}
	if transB {
		bm = bm.T()
	}
	ar, ac := am.Dims()
	br, bc := bm.Dims()
	if ac != br {
		return nil, fmt.Errorf("matmul (%dx%d) x (%dx%d): %w", ar, ac, br, bc, ErrShapeMismatch)
	}
	out := Zeros(NewShape(ar, bc))
	mat.NewDense(ar, bc, out.data).Mul(am, bm)
	return out, nil
}

// Transpose returns a new tensor holding the transpose of a matrix tensor.
func (t *Tensor) Transpose() *Tensor {
	s := t.shape
	out := Zeros(NewShape(s.Feature(), s.Batch()))
	mat.NewDense(s.Feature(), s.Batch(), out.data).Copy(t.Matrix().T())
	return out
}

func sameShape(op string, a, b *Tensor) error {
	if a.shape != b.shape {
		return fmt.Errorf("%s %v and %v: %w", op, a.shape, b.shape, ErrShapeMismatch)
	}
	return nil
}

// Add returns a + b elementwise.
func Add(a, b *Tensor) (*Tensor, error) {
	if err := sameShape("add", a, b); err != nil {
		return nil, err
	}
	out := Zeros(a.shape)
	floats.AddTo(out.data, a.data, b.data)
	return out, nil
}

// Sub returns a - b elementwise.
func Sub(a, b *Tensor) (*Tensor, error) {
	if err := sameShape("sub", a, b); err != nil {
		return nil, err
	}
	out := Zeros(a.shape)
	floats.SubTo(out.data, a.data, b.data)
	return out, nil
}

// Mul returns the elementwise (Hadamard) product a ⊙ b.
func Mul(a, b *Tensor) (*Tensor, error) {
	if err := sameShape("mul", a, b); err != nil {
		return nil, err
	}
	out := Zeros(a.shape)
	floats.MulTo(out.data, a.data, b.data)
	return out, nil
}

// AddInPlace adds s into t.
func (t *Tensor) AddInPlace(s *Tensor) error {
	if err := sameShape("add", t, s); err != nil {
		return err
	}
	floats.Add(t.data, s.data)
	return nil
}

// SubInPlace subtracts s from t.
func (t *Tensor) SubInPlace(s *Tensor) error {
	if err := sameShape("sub", t, s); err != nil {
		return err
	}
	floats.Sub(t.data, s.data)
	return nil
}

// AddScaledInPlace computes t += alpha*s.
func (t *Tensor) AddScaledInPlace(alpha float64, s *Tensor) error {
	if err := sameShape("add scaled", t, s); err != nil {
		return err
	}
	floats.AddScaled(t.data, alpha, s.data)
	return nil
}

// ScaleInPlace multiplies every element by c.
func (t *Tensor) ScaleInPlace(c float64) {
	floats.Scale(c, t.data)
}

// Scale returns c*t.
func (t *Tensor) Scale(c float64) *Tensor {
	out := Zeros(t.shape)
	floats.ScaleTo(out.data, c, t.data)
	return out
}

// Map returns a new tensor with fn applied to every element.
func (t *Tensor) Map(fn func(float64) float64) *Tensor {
	out := Zeros(t.shape)
	for i, v := range t.data {
		out.data[i] = fn(v)
	}
	return out
}

// AddColumnBias adds a [features, 1] bias to every row of a matrix tensor,
// returning a new tensor.
func (t *Tensor) AddColumnBias(bias *Tensor) (*Tensor, error) {
	cols := t.shape.Feature()
	if !t.shape.IsMatrix() || bias.shape != NewShape(cols, 1) {
		return nil, fmt.Errorf("broadcast bias %v over %v: %w", bias.shape, t.shape, ErrShapeMismatch)
	}
	out := t.Clone()
	for r := 0; r < t.shape.Batch(); r++ {
		floats.Add(out.data[r*cols:(r+1)*cols], bias.data)
	}
	return out, nil
}

// ColumnSum sums a matrix tensor over its rows and returns a [features, 1]
// column.
func (t *Tensor) ColumnSum() *Tensor {
	if !t.shape.IsMatrix() {
		panic(fmt.Sprintf("tensor.ColumnSum: shape %v is not a matrix", t.shape))
	}
	cols := t.shape.Feature()
	out := Zeros(NewShape(cols, 1))
	for r := 0; r < t.shape.Batch(); r++ {
		floats.Add(out.data, t.data[r*cols:(r+1)*cols])
	}
	return out
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	return floats.Sum(t.data)
}

// Mean returns the arithmetic mean of all elements.
func (t *Tensor) Mean() float64 {
	return floats.Sum(t.data) / float64(len(t.data))
}

// IsZero reports whether every element is exactly zero.
func (t *Tensor) IsZero() bool {
	for _, v := range t.data {
		if v != 0 {
			return false
		}
	}
	return true
}

// HasNaN reports whether any element is NaN.
func (t *Tensor) HasNaN() bool {
	return floats.HasNaN(t.data)
}

// Equal reports whether a and b have the same shape and elements.
func Equal(a, b *Tensor) bool {
	return a.shape == b.shape && floats.Equal(a.data, b.data)
}

// AllClose reports whether a and b have the same shape and every pair of
// elements differs by at most tol.
func AllClose(a, b *Tensor, tol float64) bool {
	return a.shape == b.shape && floats.EqualApprox(a.data, b.data, tol)
}

// MaxAbsDiff returns the largest absolute elementwise difference. Tensors of
// different shapes yield +Inf.
func MaxAbsDiff(a, b *Tensor) float64 {
	if a.shape != b.shape {
		return math.Inf(1)
	}
	return floats.Distance(a.data, b.data, math.Inf(1))
}
