// Package gohal is the public entry point: it re-exports the model, layer
// configuration, optimizers, data sources and training callbacks.
package gohal

import (
	"strconv"

	"github.com/FlavioCFOliveira/GoHAL/internal/activations"
	"github.com/FlavioCFOliveira/GoHAL/internal/config"
	"github.com/FlavioCFOliveira/GoHAL/internal/data"
	"github.com/FlavioCFOliveira/GoHAL/internal/layer"
	"github.com/FlavioCFOliveira/GoHAL/internal/loss"
	"github.com/FlavioCFOliveira/GoHAL/internal/net"
	"github.com/FlavioCFOliveira/GoHAL/internal/opt"
	"github.com/FlavioCFOliveira/GoHAL/internal/params"
	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
)

// Re-export common types and functions for easier access
type (
	Model       = net.Sequential
	ModelOption = net.Option
	Callback    = net.Callback
	Layer       = layer.Layer
	LayerConfig = layer.Config
	Optimizer   = opt.Optimizer
	Scheduler   = opt.Scheduler
	Loss        = loss.Loss
	Activation  = activations.Activation
	Tensor      = tensor.Tensor
	Shape       = tensor.Shape
	Store       = params.Store
	Source      = data.Source
	Dataset     = data.Dataset

	CSVLogger    = net.CSVLogger
	SQLiteLogger = net.SQLiteLogger
)

// Errors
var (
	ErrShapeMismatch        = tensor.ErrShapeMismatch
	ErrUnknownActivation    = activations.ErrUnknownActivation
	ErrUnknownLoss          = loss.ErrUnknownLoss
	ErrUnknownInitializer   = params.ErrUnknownInitializer
	ErrIndexOutOfRange      = params.ErrIndexOutOfRange
	ErrUnsupportedLayerType = layer.ErrUnsupportedLayerType
	ErrMissingConfigKey     = config.ErrMissingConfigKey
	ErrInvalidConfig        = config.ErrInvalidConfig
	ErrNoLayers             = net.ErrNoLayers
	ErrInvalidBatchSize     = net.ErrInvalidBatchSize
	ErrUnknownOptimizer     = opt.ErrUnknownOptimizer
	ErrEmptyDataset         = data.ErrEmptyDataset
)

// Model creation
func NewSequential(optimizer Optimizer, lossName string, opts ...ModelOption) (*Model, error) {
	return net.NewSequential(optimizer, lossName, opts...)
}

var (
	WithCallbacks = net.WithCallbacks
	WithSeed      = net.WithSeed
	WithOutput    = net.WithOutput
)

// Dense returns the configuration of a dense layer.
func Dense(in, out int, activation, weightInit, biasInit string) LayerConfig {
	return LayerConfig{
		layer.KeyInputSize:  strconv.Itoa(in),
		layer.KeyOutputSize: strconv.Itoa(out),
		layer.KeyActivation: activation,
		layer.KeyWeightInit: weightInit,
		layer.KeyBiasInit:   biasInit,
	}
}

// Optimizers
func SGD(learningRate, momentum, decay float64) *opt.SGD {
	return opt.NewSGD(learningRate, momentum, decay)
}

func Adam(learningRate float64) *opt.Adam {
	return opt.NewAdam(learningRate)
}

func OptimizerWithDefaults(name string) (Optimizer, error) {
	return opt.NewWithDefaults(name)
}

// Schedulers
func StepLR(o Optimizer, stepSize int, gamma, initialLR float64) Scheduler {
	return opt.NewStepLR(o, stepSize, gamma, initialLR)
}

func ExponentialLR(o Optimizer, gamma, initialLR float64) Scheduler {
	return opt.NewExponentialLR(o, gamma, initialLR)
}

func ReduceLROnPlateau(o Optimizer, factor float64, patience int, threshold, minLR float64) Scheduler {
	return opt.NewReduceLROnPlateau(o, factor, patience, threshold, minLR)
}

// Callbacks
func Logger(interval int) Callback {
	return net.Logger{Interval: interval}
}

func EarlyStopping(patience int, threshold float64) *net.EarlyStopping {
	return net.NewEarlyStopping(patience, threshold)
}

func LRScheduler(s Scheduler) Callback {
	return net.NewSchedulerCallback(s)
}

func NewCSVLogger(filename string, append bool) *CSVLogger {
	return net.NewCSVLogger(filename, append)
}

func NewSQLiteLogger(path string) *SQLiteLogger {
	return net.NewSQLiteLogger(path)
}

// Data
func SinSource(inputSize, batchSize, timeSteps, sampleCount int) Source {
	return data.NewSinSource(inputSize, batchSize, timeSteps, sampleCount)
}

func MemorySource(train, validation *Dataset) (Source, error) {
	src, err := data.NewMemorySource(train, validation)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func LoadCSV(filename string, labelCols []int, hasHeader bool) (*Dataset, error) {
	return data.LoadCSV(filename, labelCols, hasHeader)
}

// Tensors
func NewShape(dims ...int) Shape {
	return tensor.NewShape(dims...)
}

func FromRows(rows [][]float64) (*Tensor, error) {
	return tensor.FromRows(rows)
}

// Registries
func RegisterActivation(name string, act Activation) {
	activations.Register(name, act)
}

func RegisterLoss(name string, l Loss) {
	loss.Register(name, l)
}
