// Package data provides minibatch sources for training.
package data

import (
	"errors"

	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// ErrEmptyDataset is returned when a source has no samples to draw from.
var ErrEmptyDataset = errors.New("empty dataset")

// Info describes the tensors a Source produces.
type Info struct {
	InputShape  tensor.Shape
	TargetShape tensor.Shape
	DType       string
	SampleCount int
}

// Batch is one paired input/target minibatch.
type Batch struct {
	Input  *tensor.Tensor
	Target *tensor.Tensor
}

// Source produces training and validation minibatches.
type Source interface {
	Describe() Info
	NextTrainingBatch(batchSize int) (Batch, error)
	NextValidationBatch(batchSize int) (Batch, error)
}
