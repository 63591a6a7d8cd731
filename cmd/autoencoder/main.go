// Command autoencoder trains a dense autoencoder on a sliding sine wave.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/FlavioCFOliveira/GoHAL/gohal"
)

func main() {
	inputDims := flag.Int("input", 8, "input and output width")
	hiddenDims := flag.Int("hidden", 2, "bottleneck width")
	samples := flag.Int("samples", 128, "training samples per epoch")
	batchSize := flag.Int("batch", 32, "minibatch size")
	epochs := flag.Int("epochs", 5, "training epochs")
	timeSteps := flag.Int("steps", 1, "time steps per sample")
	warmup := flag.Int("warmup", 0, "leading time steps excluded from the loss")
	optimizer := flag.String("optimizer", "SGD", "optimizer with default settings (sgd, adam)")
	activation := flag.String("activation", "tanh", "activation of both layers")
	seed := flag.Uint64("seed", 0, "initialization seed (0 picks one from the clock)")
	csvPath := flag.String("csv", "", "write epoch history to this CSV file")
	dbPath := flag.String("db", "", "write batch and epoch history to this SQLite database")
	verbose := flag.Bool("v", true, "print per-epoch loss")
	flag.Parse()

	if *warmup >= *timeSteps {
		log.Fatalf("warmup %d must be smaller than steps %d", *warmup, *timeSteps)
	}

	fmt.Println("=== Sine Wave Autoencoder ===")

	o, err := gohal.OptimizerWithDefaults(*optimizer)
	if err != nil {
		log.Fatal(err)
	}

	var callbacks []gohal.Callback
	if *csvPath != "" {
		callbacks = append(callbacks, gohal.NewCSVLogger(*csvPath, false))
	}
	var history *gohal.SQLiteLogger
	if *dbPath != "" {
		history = gohal.NewSQLiteLogger(*dbPath)
		callbacks = append(callbacks, history)
	}

	opts := []gohal.ModelOption{gohal.WithCallbacks(callbacks...)}
	if *seed != 0 {
		opts = append(opts, gohal.WithSeed(*seed))
	}
	model, err := gohal.NewSequential(o, "mse", opts...)
	if err != nil {
		log.Fatal(err)
	}

	// Encoder
	if err := model.Add("dense", gohal.LayerConfig{
		"activation":  *activation,
		"input_size":  strconv.Itoa(*inputDims),
		"output_size": strconv.Itoa(*hiddenDims),
		"w_init":      "uniform",
		"b_init":      "zeros",
	}); err != nil {
		log.Fatal(err)
	}
	// Decoder
	if err := model.Add("dense", gohal.LayerConfig{
		"activation":  *activation,
		"input_size":  strconv.Itoa(*hiddenDims),
		"output_size": strconv.Itoa(*inputDims),
		"w_init":      "uniform",
		"b_init":      "zeros",
	}); err != nil {
		log.Fatal(err)
	}
	model.Summary()

	var mask []bool
	if *warmup > 0 {
		mask = make([]bool, *timeSteps)
		for t := *warmup; t < *timeSteps; t++ {
			mask[t] = true
		}
	}

	source := gohal.SinSource(*inputDims, *batchSize, *timeSteps, *samples)
	losses, err := model.Fit(source, *epochs, *batchSize, mask, *verbose)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\n%d loss values over %d updates\n", len(losses), model.Updates())
	if len(losses) > 0 {
		fmt.Printf("First loss: %.6f, last loss: %.6f\n", losses[0], losses[len(losses)-1])
	}

	valLoss, err := model.Evaluate(source, *batchSize)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Validation loss: %.6f\n", valLoss)

	if history != nil {
		if err := history.Err(); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("History run %s written to %s\n", history.RunID, *dbPath)
	}
}
