package initwfn

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// distribution returns the distribution to draw the weights of a node
// with fanIn inputs and fanOut outputs from
type distribution func(fanIn, fanOut float64, src rand.Source) distuv.Rander

// seeded returns a Gorgonia InitWFn which draws weights from dist
// using a source seeded with seed. Successive nodes initialized with
// the same InitWFn continue drawing from the same source, so that two
// InitWFn with the same seed initialize a sequence of nodes
// identically.
func seeded(seed uint64, dist distribution) G.InitWFn {
	src := rand.NewSource(seed)

	return func(dt tensor.Dtype, s ...int) interface{} {
		fanIn, fanOut := fans(s)
		d := dist(fanIn, fanOut, src)
		size := tensor.Shape(s).TotalSize()

		switch dt {
		case tensor.Float64:
			out := make([]float64, size)
			for i := range out {
				out[i] = d.Rand()
			}
			return out

		case tensor.Float32:
			out := make([]float32, size)
			for i := range out {
				out[i] = float32(d.Rand())
			}
			return out
		}
		panic(fmt.Sprintf("seeded: unsupported dtype %v", dt))
	}
}

// fans returns the number of inputs and outputs of a weight node of
// shape s
func fans(s []int) (fanIn, fanOut float64) {
	if len(s) == 2 {
		return float64(s[0]), float64(s[1])
	}

	size := float64(tensor.Shape(s).TotalSize())
	return size, size
}
