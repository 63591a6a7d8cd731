package net

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/GoHAL/internal/opt"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(m *Sequential)
	OnTrainEnd(m *Sequential)
	OnEpochBegin(epoch int, m *Sequential)
	OnEpochEnd(epoch int, loss float64, m *Sequential)
	OnBatchBegin(batch int, m *Sequential)
	OnBatchEnd(batch int, loss float64, m *Sequential)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(m *Sequential)                        {}
func (c BaseCallback) OnTrainEnd(m *Sequential)                          {}
func (c BaseCallback) OnEpochBegin(epoch int, m *Sequential)             {}
func (c BaseCallback) OnEpochEnd(epoch int, loss float64, m *Sequential) {}
func (c BaseCallback) OnBatchBegin(batch int, m *Sequential)             {}
func (c BaseCallback) OnBatchEnd(batch int, loss float64, m *Sequential) {}

// SchedulerCallback is a callback that wraps a learning rate scheduler.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
}

func NewSchedulerCallback(scheduler opt.Scheduler) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnEpochEnd(epoch int, loss float64, m *Sequential) {
	c.scheduler.Step()
	c.scheduler.StepWithLoss(loss)
}

// EarlyStopping stops training when the epoch loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnTrainBegin(m *Sequential) {
	c.bestLoss = math.MaxFloat64
	c.numBadEpochs = 0
	c.Stopped = false
}

func (c *EarlyStopping) OnEpochEnd(epoch int, loss float64, m *Sequential) {
	if loss < c.bestLoss-c.Threshold {
		c.bestLoss = loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		fmt.Fprintf(m.Output(), "\nEarly stopping at epoch %d: loss %.6f did not improve for %d epochs\n", epoch, loss, c.Patience)
		c.Stopped = true
		m.StopTraining()
	}
}

// Logger logs training progress to the model's output.
type Logger struct {
	BaseCallback
	Interval int
}

func (c Logger) OnEpochEnd(epoch int, loss float64, m *Sequential) {
	if c.Interval > 0 && epoch%c.Interval == 0 {
		fmt.Fprintf(m.Output(), "Epoch %d: loss = %.6f\n", epoch, loss)
	}
}
