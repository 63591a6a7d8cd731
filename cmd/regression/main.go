// Command regression fits a small dense network to tabular data, either a
// CSV file or a synthetic y = x² curve.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/FlavioCFOliveira/GoHAL/gohal"
)

func main() {
	csvPath := flag.String("csv", "", "CSV file with feature columns and one label column")
	labelCol := flag.Int("label", -1, "label column index (default: last column)")
	header := flag.Bool("header", true, "CSV file has a header row")
	lossName := flag.String("loss", "mse", "loss function (mse, mae, huber)")
	hidden := flag.Int("hidden", 16, "hidden layer width")
	epochs := flag.Int("epochs", 300, "training epochs")
	batchSize := flag.Int("batch", 10, "minibatch size")
	lr := flag.Float64("lr", 0.05, "initial learning rate")
	split := flag.Float64("split", 0.8, "fraction of rows used for training")
	seed := flag.Uint64("seed", 42, "initialization seed")
	flag.Parse()

	dataset, err := loadDataset(*csvPath, *labelCol, *header)
	if err != nil {
		log.Fatal(err)
	}
	dataset.Normalize()
	train, test := dataset.Split(*split)
	fmt.Printf("=== Regression: %d training rows, %d test rows ===\n", train.Len(), test.Len())

	source, err := gohal.MemorySource(train, test)
	if err != nil {
		log.Fatal(err)
	}

	sgd := gohal.SGD(*lr, 0.9, 0)
	model, err := gohal.NewSequential(sgd, *lossName,
		gohal.WithSeed(*seed),
		gohal.WithCallbacks(
			gohal.Logger(50),
			gohal.LRScheduler(gohal.ReduceLROnPlateau(sgd, 0.5, 20, 1e-5, 1e-4)),
		),
	)
	if err != nil {
		log.Fatal(err)
	}

	features := len(train.Samples[0])
	for _, cfg := range []gohal.LayerConfig{
		gohal.Dense(features, *hidden, "tanh", "xavier", "zeros"),
		gohal.Dense(*hidden, 1, "identity", "xavier", "zeros"),
	} {
		if err := model.Add("dense", cfg); err != nil {
			log.Fatal(err)
		}
	}
	model.Summary()

	if _, err := model.Fit(source, *epochs, *batchSize, nil, false); err != nil {
		log.Fatal(err)
	}

	evalBatch := *batchSize
	if n := test.Len(); n > 0 && n < evalBatch {
		evalBatch = n
	}
	testLoss, err := model.Evaluate(source, evalBatch)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nTest %s: %.6f (learning rate now %.5f)\n", *lossName, testLoss, sgd.LearningRate)
}

func loadDataset(path string, labelCol int, header bool) (*gohal.Dataset, error) {
	if path == "" {
		return quadratic(200), nil
	}
	if labelCol < 0 {
		probe, err := gohal.LoadCSV(path, nil, header)
		if err != nil {
			return nil, err
		}
		labelCol = len(probe.Samples[0]) - 1
	}
	return gohal.LoadCSV(path, []int{labelCol}, header)
}

// quadratic samples y = x² on [-1, 1] in shuffled order.
func quadratic(n int) *gohal.Dataset {
	r := rand.New(rand.NewSource(7))
	d := &gohal.Dataset{}
	for _, i := range r.Perm(n) {
		x := 2*float64(i)/float64(n-1) - 1
		d.Samples = append(d.Samples, []float64{x})
		d.Labels = append(d.Labels, []float64{x * x})
	}
	return d
}
