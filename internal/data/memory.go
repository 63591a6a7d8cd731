package data

import (
	"fmt"
	"sync"

	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// MemorySource serves minibatches from in-memory datasets, cycling through
// the rows in order and wrapping around at the end.
type MemorySource struct {
	train      *Dataset
	validation *Dataset

	mu        sync.Mutex
	trainPos  int
	validPos  int
	inputDim  int
	targetDim int
}

// NewMemorySource creates a source over train. validation may be nil, in
// which case validation batches are drawn from train.
func NewMemorySource(train, validation *Dataset) (*MemorySource, error) {
	if train == nil || train.Len() == 0 {
		return nil, fmt.Errorf("memory source: %w", ErrEmptyDataset)
	}
	if len(train.Labels) != train.Len() {
		return nil, fmt.Errorf("memory source: %d samples but %d labels: %w", train.Len(), len(train.Labels), tensor.ErrShapeMismatch)
	}
	m := &MemorySource{
		train:     train,
		inputDim:  len(train.Samples[0]),
		targetDim: len(train.Labels[0]),
	}
	if m.inputDim == 0 || m.targetDim == 0 {
		return nil, fmt.Errorf("memory source: zero-width samples or labels: %w", ErrEmptyDataset)
	}
	if validation != nil && validation.Len() > 0 {
		if len(validation.Labels) != validation.Len() {
			return nil, fmt.Errorf("memory source: validation has %d samples but %d labels: %w",
				validation.Len(), len(validation.Labels), tensor.ErrShapeMismatch)
		}
		m.validation = validation
	}
	return m, nil
}

// Describe reports one [samples, features] input and [samples, labels]
// target covering the whole training set.
func (m *MemorySource) Describe() Info {
	n := m.train.Len()
	return Info{
		InputShape:  tensor.NewShape(n, m.inputDim),
		TargetShape: tensor.NewShape(n, m.targetDim),
		DType:       "float64",
		SampleCount: n,
	}
}

// NextTrainingBatch returns the next batchSize training rows.
func (m *MemorySource) NextTrainingBatch(batchSize int) (Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next(m.train, &m.trainPos, batchSize)
}

// NextValidationBatch returns the next batchSize validation rows.
func (m *MemorySource) NextValidationBatch(batchSize int) (Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.validation == nil {
		return m.next(m.train, &m.validPos, batchSize)
	}
	return m.next(m.validation, &m.validPos, batchSize)
}

func (m *MemorySource) next(d *Dataset, pos *int, batchSize int) (Batch, error) {
	if batchSize <= 0 {
		return Batch{}, fmt.Errorf("memory source: batch size %d: %w", batchSize, ErrEmptyDataset)
	}
	in := tensor.Zeros(tensor.NewShape(batchSize, m.inputDim))
	target := tensor.Zeros(tensor.NewShape(batchSize, m.targetDim))
	for r := 0; r < batchSize; r++ {
		i := *pos % d.Len()
		*pos = i + 1
		if len(d.Samples[i]) != m.inputDim || len(d.Labels[i]) != m.targetDim {
			return Batch{}, fmt.Errorf("memory source: row %d has %d features and %d labels, want %d and %d: %w",
				i, len(d.Samples[i]), len(d.Labels[i]), m.inputDim, m.targetDim, tensor.ErrShapeMismatch)
		}
		copy(in.Data()[r*m.inputDim:], d.Samples[i])
		copy(target.Data()[r*m.targetDim:], d.Labels[i])
	}
	return Batch{Input: in, Target: target}, nil
}
