package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoHAL/internal/activations"
	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// AffineForward computes act(x·w + bias) for a [batch, in] input and an
// [in, out] weight. bias may be nil.
func AffineForward(x, w, bias *tensor.Tensor, act string) (*tensor.Tensor, error) {
	if x.Shape().Feature() != w.Shape().Batch() {
		return nil, fmt.Errorf("affine: input %v against weight %v: %w", x.Shape(), w.Shape(), tensor.ErrShapeMismatch)
	}
	z, err := tensor.MatMul(x, w, false, false)
	if err != nil {
		return nil, err
	}
	if bias != nil {
		if z, err = z.AddColumnBias(bias); err != nil {
			return nil, err
		}
	}
	return activations.Apply(act, z)
}

// AffineBackward returns the local delta (delta ⊙ act'(out)) together with
// the weight gradient inᵀ·local and the bias gradient, the column sum of
// local.
func AffineBackward(delta, in, out *tensor.Tensor, act string) (local, dW, db *tensor.Tensor, err error) {
	deriv, err := activations.Derivative(act, out)
	if err != nil {
		return nil, nil, nil, err
	}
	if local, err = tensor.Mul(delta, deriv); err != nil {
		return nil, nil, nil, fmt.Errorf("affine: delta against cached output: %w", err)
	}
	if dW, err = tensor.MatMul(in, local, true, false); err != nil {
		return nil, nil, nil, err
	}
	return local, dW, local.ColumnSum(), nil
}
