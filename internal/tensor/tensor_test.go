package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewShapeDefaults tests that missing axes default to 1.
func TestNewShapeDefaults(t *testing.T) {
	s := NewShape(4, 3)
	assert.Equal(t, Shape{4, 3, 1, 1}, s)
	assert.Equal(t, 12, s.Size())
	assert.True(t, s.IsMatrix())
	assert.False(t, NewShape(4, 3, 2).IsMatrix())
	assert.Panics(t, func() { NewShape(0, 1) })
	assert.Panics(t, func() { NewShape(1, 1, 1, 1, 1) })
}

func TestNewRejectsWrongLength(t *testing.T) {
	_, err := New(NewShape(2, 2), []float64{1, 2, 3})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

// TestTimeStepLayout tests the time-major storage layout and view sharing.
func TestTimeStepLayout(t *testing.T) {
	x := Zeros(NewShape(2, 3, 2))
	x.Set(5, 1, 2, 1)

	step := x.TimeStep(1)
	assert.Equal(t, NewShape(2, 3), step.Shape())
	assert.Equal(t, 5.0, step.At(1, 2))

	// Views share storage.
	step.Set(7, 0, 0)
	assert.Equal(t, 7.0, x.At(0, 0, 1))
	assert.Equal(t, 0.0, x.At(0, 0, 0))

	assert.Panics(t, func() { x.TimeStep(2) })
}

func TestStackRoundTrip(t *testing.T) {
	a, err := FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	b, err := FromRows([][]float64{{5, 6}, {7, 8}})
	require.NoError(t, err)

	s, err := Stack([]*Tensor{a, b})
	require.NoError(t, err)
	assert.Equal(t, NewShape(2, 2, 2), s.Shape())
	assert.True(t, Equal(a, s.TimeStep(0)))
	assert.True(t, Equal(b, s.TimeStep(1)))

	c := Zeros(NewShape(3, 2))
	_, err = Stack([]*Tensor{a, c})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMatMul(t *testing.T) {
	a, _ := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	b, _ := FromRows([][]float64{{1, 0}, {0, 1}, {1, 1}})

	tests := []struct {
		name           string
		a, b           *Tensor
		transA, transB bool
		want           [][]float64
	}{
		{"plain", a, b, false, false, [][]float64{{4, 5}, {10, 11}}},
		{"transposeA", a, a, true, false, [][]float64{{17, 22, 27}, {22, 29, 36}, {27, 36, 45}}},
		{"transposeB", a, a, false, true, [][]float64{{14, 32}, {32, 77}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatMul(tt.a, tt.b, tt.transA, tt.transB)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Rows())
		})
	}

	_, err := MatMul(a, a, false, false)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestTranspose(t *testing.T) {
	a, _ := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	assert.Equal(t, [][]float64{{1, 4}, {2, 5}, {3, 6}}, a.Transpose().Rows())
}

func TestElementwise(t *testing.T) {
	a, _ := FromRows([][]float64{{1, 2}, {3, 4}})
	b, _ := FromRows([][]float64{{2, 2}, {2, 2}})

	sum, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 5, 6}, sum.Data())

	diff, err := Sub(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 1, 2}, diff.Data())

	prod, err := Mul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6, 8}, prod.Data())

	// Inputs are untouched.
	assert.Equal(t, []float64{1, 2, 3, 4}, a.Data())

	require.NoError(t, a.AddScaledInPlace(0.5, b))
	assert.Equal(t, []float64{2, 3, 4, 5}, a.Data())

	_, err = Add(a, Zeros(NewShape(4)))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestBiasAndColumnSum(t *testing.T) {
	x, _ := FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
	bias, _ := New(NewShape(2, 1), []float64{10, 20})

	out, err := x.AddColumnBias(bias)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{11, 22}, {13, 24}, {15, 26}}, out.Rows())

	col := x.ColumnSum()
	assert.Equal(t, NewShape(2, 1), col.Shape())
	assert.Equal(t, []float64{9, 12}, col.Data())

	_, err = x.AddColumnBias(Zeros(NewShape(3, 1)))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCloneIsolation(t *testing.T) {
	a := Ones(NewShape(2, 2))
	c := a.Clone()
	c.Fill(3)
	assert.Equal(t, 4.0, a.Sum())
	assert.Equal(t, 12.0, c.Sum())
	assert.InDelta(t, 2.0, MaxAbsDiff(a, c), 1e-12)
	assert.True(t, AllClose(a, a.Clone(), 0))
	assert.True(t, Zeros(NewShape(3)).IsZero())
}
