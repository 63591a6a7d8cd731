package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoHAL/internal/params"
	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// Dense is a fully connected layer: act(x·W + b).
//
// Its bundle holds one [in, out] weight, one [out, 1] bias and gradients in
// slots 0 (weight) and 1 (bias).
type Dense struct {
	inSize  int
	outSize int
}

// NewDense creates a dense layer description.
func NewDense(in, out int) *Dense {
	return &Dense{inSize: in, outSize: out}
}

func denseParams(b *params.Bundle) (w, bias *tensor.Tensor, act string, err error) {
	if w, err = b.Weight(0); err != nil {
		return
	}
	if bias, err = b.Bias(0); err != nil {
		return
	}
	act, err = b.Activation(0)
	return
}

// Forward performs a forward pass through the dense layer.
func (d *Dense) Forward(b *params.Bundle, x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Shape().Feature() != d.inSize {
		return nil, fmt.Errorf("dense: input %v, want %d features: %w", x.Shape(), d.inSize, tensor.ErrShapeMismatch)
	}
	w, bias, act, err := denseParams(b)
	if err != nil {
		return nil, err
	}
	out, err := AffineForward(x, w, bias, act)
	if err != nil {
		return nil, err
	}
	b.RecordForwardPass(x, out)
	return out, nil
}

// Backward performs backpropagation through the dense layer.
func (d *Dense) Backward(b *params.Bundle, delta *tensor.Tensor) (*tensor.Tensor, error) {
	w, _, act, err := denseParams(b)
	if err != nil {
		return nil, err
	}
	in, out, err := b.PopForwardPass()
	if err != nil {
		return nil, fmt.Errorf("dense backward: %w", err)
	}
	local, dW, db, err := AffineBackward(delta, in, out, act)
	if err != nil {
		return nil, err
	}
	if err := b.AccumulateGradient(0, dW); err != nil {
		return nil, err
	}
	if err := b.AccumulateGradient(1, db); err != nil {
		return nil, err
	}
	return tensor.MatMul(local, w, false, true)
}

// InSize returns the input size.
func (d *Dense) InSize() int { return d.inSize }

// OutSize returns the output size.
func (d *Dense) OutSize() int { return d.outSize }
