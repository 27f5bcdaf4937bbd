package initwfn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// HeUConfig implements a configuration of the He uniform
// initialization algorithm.
type HeUConfig struct {
	Gain float64
	Seed uint64
}

// NewHeU returns a new He Uniform weight initializer
func NewHeU(gain float64, seed uint64) (*InitWFn, error) {
	config := HeUConfig{
		Gain: gain,
		Seed: seed,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (h HeUConfig) Type() Type {
	return HeU
}

// Validate checks that the gain is positive
func (h HeUConfig) Validate() error {
	if h.Gain <= 0 {
		return fmt.Errorf("heU: gain must be positive")
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (h HeUConfig) Create() G.InitWFn {
	return seeded(h.Seed, func(fanIn, _ float64,
		src rand.Source) distuv.Rander {
		limit := h.Gain * math.Sqrt(3/fanIn)
		return distuv.Uniform{Min: -limit, Max: limit, Src: src}
	})
}

// HeNConfig implements a configuration of the He normal
// initialization algorithm.
type HeNConfig struct {
	Gain float64
	Seed uint64
}

// NewHeN returns a new He Normal weight initializer
func NewHeN(gain float64, seed uint64) (*InitWFn, error) {
	config := HeNConfig{
		Gain: gain,
		Seed: seed,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (h HeNConfig) Type() Type {
	return HeN
}

// Validate checks that the gain is positive
func (h HeNConfig) Validate() error {
	if h.Gain <= 0 {
		return fmt.Errorf("heN: gain must be positive")
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (h HeNConfig) Create() G.InitWFn {
	return seeded(h.Seed, func(fanIn, _ float64,
		src rand.Source) distuv.Rander {
		return distuv.Normal{Mu: 0, Sigma: h.Gain / math.Sqrt(fanIn), Src: src}
	})
}
