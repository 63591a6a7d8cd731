package data

import (
	"fmt"
	"math"
	"sync"

	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// SinSource generates sine-wave batches for autoencoding: the target is a
// copy of the input.
//
// Within a batch, sample b at time t and feature f holds
// sin(offset + ((b*T + t)*F + f)/F). Every call advances offset by
// 1/(B*T*F - 1), so consecutive batches slide along the wave.
type SinSource struct {
	inputSize   int
	batchSize   int
	timeSteps   int
	sampleCount int

	mu     sync.Mutex
	offset float64
}

// NewSinSource creates a sine source of [batchSize, inputSize, timeSteps]
// batches reporting sampleCount samples.
func NewSinSource(inputSize, batchSize, timeSteps, sampleCount int) *SinSource {
	if timeSteps < 1 {
		timeSteps = 1
	}
	return &SinSource{
		inputSize:   inputSize,
		batchSize:   batchSize,
		timeSteps:   timeSteps,
		sampleCount: sampleCount,
	}
}

// Describe reports the source's shapes and sample count.
func (s *SinSource) Describe() Info {
	shape := tensor.NewShape(s.batchSize, s.inputSize, s.timeSteps)
	return Info{
		InputShape:  shape,
		TargetShape: shape,
		DType:       "float64",
		SampleCount: s.sampleCount,
	}
}

// NextTrainingBatch returns the next window of the wave.
func (s *SinSource) NextTrainingBatch(batchSize int) (Batch, error) {
	if batchSize <= 0 {
		return Batch{}, fmt.Errorf("sin source: batch size %d: %w", batchSize, ErrEmptyDataset)
	}
	x := s.generate(batchSize)
	return Batch{Input: x, Target: x.Clone()}, nil
}

// NextValidationBatch is NextTrainingBatch: the wave has no held-out split.
func (s *SinSource) NextValidationBatch(batchSize int) (Batch, error) {
	return s.NextTrainingBatch(batchSize)
}

func (s *SinSource) generate(rows int) *tensor.Tensor {
	s.mu.Lock()
	offset := s.offset
	f, steps := s.inputSize, s.timeSteps
	if n := rows * steps * f; n > 1 {
		s.offset += 1 / float64(n-1)
	}
	s.mu.Unlock()

	x := tensor.Zeros(tensor.NewShape(rows, f, steps))
	for b := 0; b < rows; b++ {
		for t := 0; t < steps; t++ {
			for j := 0; j < f; j++ {
				pos := (b*steps+t)*f + j
				x.Set(math.Sin(offset+float64(pos)/float64(f)), b, j, t)
			}
		}
	}
	return x
}
