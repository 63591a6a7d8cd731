package params

import (
	"errors"
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/GoHAL/internal/tensor"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrUnknownInitializer is returned for unrecognized initializer names.
var ErrUnknownInitializer = errors.New("unknown initializer")

// Initializer fills a freshly allocated parameter tensor. fanIn and fanOut
// are the layer's input and output sizes.
type Initializer func(t *tensor.Tensor, fanIn, fanOut int, src rand.Source)

var initializers = map[string]Initializer{
	"normal": func(t *tensor.Tensor, _, _ int, src rand.Source) {
		fill(t, distuv.Normal{Mu: 0, Sigma: 1, Src: src})
	},
	"uniform": func(t *tensor.Tensor, _, _ int, src rand.Source) {
		fill(t, distuv.Uniform{Min: -1, Max: 1, Src: src})
	},
	"zeros": func(t *tensor.Tensor, _, _ int, _ rand.Source) {
		t.Fill(0)
	},
	"ones": func(t *tensor.Tensor, _, _ int, _ rand.Source) {
		t.Fill(1)
	},
	// Xavier/Glorot uniform initialization
	"xavier": func(t *tensor.Tensor, fanIn, fanOut int, src rand.Source) {
		scale := math.Sqrt(2.0 / float64(fanIn+fanOut))
		fill(t, distuv.Uniform{Min: -scale, Max: scale, Src: src})
	},
}

type sampler interface{ Rand() float64 }

func fill(t *tensor.Tensor, d sampler) {
	data := t.Data()
	for i := range data {
		data[i] = d.Rand()
	}
}

func lookupInitializer(name string) (Initializer, error) {
	fn, ok := initializers[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownInitializer)
	}
	return fn, nil
}
