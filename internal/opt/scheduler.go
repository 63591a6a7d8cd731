package opt

import "math"

// Scheduler adjusts an optimizer's learning rate between epochs.
type Scheduler interface {
	Step()
	StepWithLoss(loss float64)
	GetLR() float64
}

// BaseScheduler provides default implementations for Scheduler.
type BaseScheduler struct{}

func (s BaseScheduler) Step()                     {}
func (s BaseScheduler) StepWithLoss(loss float64) {}

func learningRate(o Optimizer) float64 {
	lr, _ := o.State()["LearningRate"].(float64)
	return lr
}

func setLearningRate(o Optimizer, lr float64) {
	o.SetState(map[string]any{"LearningRate": lr})
}

// StepLR multiplies the learning rate by gamma every stepSize epochs.
type StepLR struct {
	BaseScheduler
	optimizer Optimizer
	stepSize  int
	gamma     float64
	lastEpoch int
}

// NewStepLR sets the optimizer's learning rate to initialLR and returns a
// StepLR scheduler for it.
func NewStepLR(optimizer Optimizer, stepSize int, gamma float64, initialLR float64) *StepLR {
	setLearningRate(optimizer, initialLR)
	return &StepLR{
		optimizer: optimizer,
		stepSize:  stepSize,
		gamma:     gamma,
	}
}

func (s *StepLR) Step() {
	s.lastEpoch++
	if s.stepSize > 0 && s.lastEpoch%s.stepSize == 0 {
		setLearningRate(s.optimizer, learningRate(s.optimizer)*s.gamma)
	}
}

func (s *StepLR) GetLR() float64 {
	return learningRate(s.optimizer)
}

// ExponentialLR multiplies the learning rate by gamma every epoch.
type ExponentialLR struct {
	BaseScheduler
	optimizer Optimizer
	gamma     float64
}

// NewExponentialLR sets the optimizer's learning rate to initialLR and returns
// an ExponentialLR scheduler for it.
func NewExponentialLR(optimizer Optimizer, gamma float64, initialLR float64) *ExponentialLR {
	setLearningRate(optimizer, initialLR)
	return &ExponentialLR{
		optimizer: optimizer,
		gamma:     gamma,
	}
}

func (s *ExponentialLR) Step() {
	setLearningRate(s.optimizer, learningRate(s.optimizer)*s.gamma)
}

func (s *ExponentialLR) GetLR() float64 {
	return learningRate(s.optimizer)
}

// ReduceLROnPlateau reduces learning rate when a metric has stopped improving.
type ReduceLROnPlateau struct {
	BaseScheduler
	optimizer Optimizer
	factor    float64
	patience  int
	threshold float64
	cooldown  int
	minLR     float64

	bestLoss        float64
	numBadEpochs    int
	cooldownCounter int
}

// NewReduceLROnPlateau multiplies the learning rate by factor, never below
// minLR, after patience epochs without an improvement larger than threshold.
func NewReduceLROnPlateau(optimizer Optimizer, factor float64, patience int, threshold float64, minLR float64) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		optimizer: optimizer,
		factor:    factor,
		patience:  patience,
		threshold: threshold,
		minLR:     minLR,
		bestLoss:  math.MaxFloat64,
	}
}

// WithCooldown sets the number of epochs to wait after a reduction before
// counting bad epochs again.
func (s *ReduceLROnPlateau) WithCooldown(epochs int) *ReduceLROnPlateau {
	s.cooldown = epochs
	return s
}

func (s *ReduceLROnPlateau) StepWithLoss(currentLoss float64) {
	if s.cooldownCounter > 0 {
		s.cooldownCounter--
		return
	}

	if currentLoss < s.bestLoss-s.threshold {
		s.bestLoss = currentLoss
		s.numBadEpochs = 0
	} else {
		s.numBadEpochs++
	}

	if s.numBadEpochs >= s.patience {
		setLearningRate(s.optimizer, math.Max(learningRate(s.optimizer)*s.factor, s.minLR))
		s.numBadEpochs = 0
		s.cooldownCounter = s.cooldown
	}
}

func (s *ReduceLROnPlateau) GetLR() float64 {
	return learningRate(s.optimizer)
}
