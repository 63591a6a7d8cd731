// Command xor trains a 2-4-1 network on the XOR truth table.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/FlavioCFOliveira/GoHAL/gohal"
)

func main() {
	epochs := flag.Int("epochs", 5000, "training epochs")
	lr := flag.Float64("lr", 0.5, "SGD learning rate")
	momentum := flag.Float64("momentum", 0.9, "SGD momentum")
	seed := flag.Uint64("seed", 42, "initialization seed")
	flag.Parse()

	fmt.Println("=== XOR Training Example ===")

	// The XOR function cannot be solved by a single-layer perceptron
	// but can be solved by a multi-layer perceptron with hidden layers
	trainX := [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	trainY := [][]float64{{0}, {1}, {1}, {0}}

	source, err := gohal.MemorySource(&gohal.Dataset{Samples: trainX, Labels: trainY}, nil)
	if err != nil {
		log.Fatal(err)
	}

	model, err := gohal.NewSequential(
		gohal.SGD(*lr, *momentum, 0),
		"mse",
		gohal.WithSeed(*seed),
		gohal.WithCallbacks(gohal.Logger(500), gohal.EarlyStopping(200, 1e-7)),
	)
	if err != nil {
		log.Fatal(err)
	}
	for _, cfg := range []gohal.LayerConfig{
		gohal.Dense(2, 4, "tanh", "xavier", "zeros"),
		gohal.Dense(4, 1, "sigmoid", "xavier", "zeros"),
	} {
		if err := model.Add("dense", cfg); err != nil {
			log.Fatal(err)
		}
	}
	model.Summary()

	if _, err := model.Fit(source, *epochs, len(trainX), nil, false); err != nil {
		log.Fatal(err)
	}

	// Test the network
	fmt.Println("\nTesting trained network:")
	x, err := gohal.FromRows(trainX)
	if err != nil {
		log.Fatal(err)
	}
	pred, err := model.Predict(x)
	if err != nil {
		log.Fatal(err)
	}
	for i := range trainX {
		fmt.Printf("Input: %v, Predicted: %.4f, Target: %v\n", trainX[i], pred.At(i, 0), trainY[i][0])
	}
}
