package solver

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// valueData returns the backing data of a float64 Gorgonia tensor
// value. Modifying the returned slice modifies the value in place.
func valueData(v G.Value) ([]float64, error) {
	t, ok := v.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("expected float64 data but got %T", t.Data())
	}
	return data, nil
}

// weightsAndGrads returns the backing data of the weights and
// gradients of each learnable in model
func weightsAndGrads(model []G.ValueGrad) (weights, grads [][]float64,
	err error) {
	weights = make([][]float64, len(model))
	grads = make([][]float64, len(model))

	for i, vg := range model {
		weights[i], err = valueData(vg.Value())
		if err != nil {
			return nil, nil, fmt.Errorf("learnable %v: %v", i, err)
		}

		grad, err := vg.Grad()
		if err != nil {
			return nil, nil, fmt.Errorf("learnable %v: %v", i, err)
		}
		grads[i], err = valueData(grad)
		if err != nil {
			return nil, nil, fmt.Errorf("learnable %v gradient: %v", i, err)
		}

		if len(weights[i]) != len(grads[i]) {
			return nil, nil, fmt.Errorf("learnable %v: %v weights but %v "+
				"gradients", i, len(weights[i]), len(grads[i]))
		}
	}
	return weights, grads, nil
}

// scaled returns a copy of grad scaled by 1/batch with each element
// clipped to [-clip, clip]. No clipping is done if clip <= 0.
func scaled(grad []float64, batch int, clip float64) []float64 {
	g := append([]float64(nil), grad...)
	if batch > 1 {
		floats.Scale(1/float64(batch), g)
	}
	if clip > 0 {
		for i := range g {
			if g[i] > clip {
				g[i] = clip
			} else if g[i] < -clip {
				g[i] = -clip
			}
		}
	}
	return g
}

// slots returns zero-valued buffers shaped like weights
func slots(weights [][]float64) [][]float64 {
	s := make([][]float64, len(weights))
	for i := range weights {
		s[i] = make([]float64, len(weights[i]))
	}
	return s
}

// checkSlots checks that restored buffers are shaped like weights
func checkSlots(name string, s, weights [][]float64) error {
	if len(s) != len(weights) {
		return fmt.Errorf("%v: state for %v learnables but model has %v",
			name, len(s), len(weights))
	}
	for i := range s {
		if len(s[i]) != len(weights[i]) {
			return fmt.Errorf("%v: state for learnable %v has size %v but "+
				"learnable has size %v", name, i, len(s[i]), len(weights[i]))
		}
	}
	return nil
}

// copySlots returns a deep copy of s
func copySlots(s [][]float64) [][]float64 {
	if s == nil {
		return nil
	}
	out := make([][]float64, len(s))
	for i := range s {
		out[i] = append([]float64(nil), s[i]...)
	}
	return out
}
