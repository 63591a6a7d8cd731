package net

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/FlavioCFOliveira/GoHAL/internal/opt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures the callback sequence.
type recorder struct {
	BaseCallback
	events []string
	epochs int
	losses []float64
}

func (r *recorder) OnTrainBegin(m *Sequential)            { r.events = append(r.events, "train_begin") }
func (r *recorder) OnTrainEnd(m *Sequential)              { r.events = append(r.events, "train_end") }
func (r *recorder) OnEpochBegin(epoch int, m *Sequential) { r.events = append(r.events, "epoch_begin") }
func (r *recorder) OnBatchBegin(batch int, m *Sequential) { r.events = append(r.events, "batch_begin") }

func (r *recorder) OnBatchEnd(batch int, loss float64, m *Sequential) {
	r.events = append(r.events, "batch_end")
}

func (r *recorder) OnEpochEnd(epoch int, loss float64, m *Sequential) {
	r.events = append(r.events, "epoch_end")
	r.epochs++
	r.losses = append(r.losses, loss)
}

func TestCallbackOrder(t *testing.T) {
	rec := &recorder{}
	m := newModel(t, opt.NewSGD(0.1, 0, 0), dense("2", "1", "sigmoid", "normal", "zeros"))
	m.callbacks = append(m.callbacks, rec)

	_, err := m.Fit(xorSource(t), 1, 2, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"train_begin", "epoch_begin",
		"batch_begin", "batch_end",
		"batch_begin", "batch_end",
		"epoch_end", "train_end",
	}, rec.events)
}

func TestEarlyStopping(t *testing.T) {
	rec := &recorder{}
	stop := NewEarlyStopping(1, 1e9)
	m, err := NewSequential(opt.NewSGD(0.1, 0, 0), "mse", WithCallbacks(stop, rec), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	require.NoError(t, m.Add("dense", dense("2", "1", "sigmoid", "normal", "zeros")))

	_, err = m.Fit(xorSource(t), 10, 2, nil, false)
	require.NoError(t, err)
	assert.True(t, stop.Stopped)
	assert.Equal(t, 2, rec.epochs)

	// A second Fit starts fresh.
	_, err = m.Fit(xorSource(t), 1, 2, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.epochs)
}

func TestSchedulerCallback(t *testing.T) {
	sgd := opt.NewSGD(0.1, 0, 0)
	sched := opt.NewExponentialLR(sgd, 0.5, 0.2)
	m, err := NewSequential(sgd, "mse", WithCallbacks(NewSchedulerCallback(sched)))
	require.NoError(t, err)
	require.NoError(t, m.Add("dense", dense("2", "1", "sigmoid", "normal", "zeros")))

	_, err = m.Fit(xorSource(t), 3, 4, nil, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.025, sgd.LearningRate, 1e-12)
}

func TestVerboseLogger(t *testing.T) {
	var buf bytes.Buffer
	m, err := NewSequential(opt.NewSGD(0.1, 0, 0), "mse", WithOutput(&buf))
	require.NoError(t, err)
	require.NoError(t, m.Add("dense", dense("2", "1", "sigmoid", "normal", "zeros")))

	_, err = m.Fit(xorSource(t), 2, 4, nil, true)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Epoch 0: loss = ")
	assert.Contains(t, buf.String(), "Epoch 1: loss = ")
	assert.Empty(t, m.callbacks)
}

func TestCSVLogger(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "history.csv")
	logger := NewCSVLogger(filename, false)
	m, err := NewSequential(opt.NewSGD(0.1, 0, 0), "mse", WithCallbacks(logger))
	require.NoError(t, err)
	require.NoError(t, m.Add("dense", dense("2", "1", "sigmoid", "normal", "zeros")))

	_, err = m.Fit(xorSource(t), 2, 2, nil, false)
	require.NoError(t, err)

	file, err := os.Open(filename)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3) // Header + 2 epochs
	assert.Equal(t, []string{"epoch", "loss", "updates", "time_seconds"}, records[0])
	assert.Equal(t, "0", records[1][0])
	assert.Equal(t, "2", records[1][2])
	assert.Equal(t, "4", records[2][2])
}

func TestSQLiteLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	logger := NewSQLiteLogger(path)
	m, err := NewSequential(opt.NewSGD(0.1, 0, 0), "mse", WithCallbacks(logger))
	require.NoError(t, err)
	require.NoError(t, m.Add("dense", dense("2", "1", "sigmoid", "normal", "zeros")))

	losses, err := m.Fit(xorSource(t), 2, 2, nil, false)
	require.NoError(t, err)
	require.NoError(t, logger.Err())
	firstRun := logger.RunID
	assert.NotEmpty(t, firstRun)

	history, err := ReadEpochHistory(path, firstRun)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 0, history[0].Epoch)
	assert.InDelta(t, (losses[0]+losses[1])/2, history[0].Loss, 1e-12)

	n, err := CountBatches(path, firstRun)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Each Fit is a separate run.
	_, err = m.Fit(xorSource(t), 1, 2, nil, false)
	require.NoError(t, err)
	assert.NotEqual(t, firstRun, logger.RunID)
	history, err = ReadEpochHistory(path, logger.RunID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
