package initwfn

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// UniformConfig implements a configuration of a weight initializer
// that draws weights uniformly from [Low, High)
type UniformConfig struct {
	Low, High float64
	Seed      uint64
}

// NewUniform returns a new uniform weight initializer
func NewUniform(low, high float64, seed uint64) (*InitWFn, error) {
	config := UniformConfig{
		Low:  low,
		High: high,
		Seed: seed,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (u UniformConfig) Type() Type {
	return Uniform
}

// Validate checks that the bounds describe a non-empty interval
func (u UniformConfig) Validate() error {
	if u.Low >= u.High {
		return fmt.Errorf("uniform: low must be less than high")
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (u UniformConfig) Create() G.InitWFn {
	return seeded(u.Seed, func(_, _ float64, src rand.Source) distuv.Rander {
		return distuv.Uniform{Min: u.Low, Max: u.High, Src: src}
	})
}
