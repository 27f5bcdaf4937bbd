package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

// RMSProprConfig implements a specific configuration of the RMSProp
// solver
type RMSPropConfig struct {
	StepSize float64
	Epsilon  float64
	Rho      float64
	Batch    int
	Clip     float64 // <= 0 if no clipping
}

// NewDefaultRMSProp returns a new RMSProp Solver with default
// hyperparameters
func NewDefaultRMSProp(stepSize float64, batchSize int) (*Solver, error) {
	return NewRMSProp(stepSize, 1e-8, 0.999, batchSize, -1.0)
}

// NewRMSProp returns a new RMSProp Solver
func NewRMSProp(stepSize, epsilon, rho float64, batchSize int,
	clip float64) (*Solver, error) {
	rmsprop := RMSPropConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Rho:      rho,
		Batch:    batchSize,
		Clip:     clip,
	}

	return newSolver(RMSProp, rmsprop)
}

// Create returns a new RMSProp Stepper as described by the
// RMSPropConfig
func (r RMSPropConfig) Create() Stepper {
	return &rmsProp{config: r}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (r RMSPropConfig) ValidType(t Type) bool {
	return t == RMSProp
}

// Validate checks the hyperparameters of the RMSPropConfig
func (r RMSPropConfig) Validate() error {
	if r.StepSize <= 0 {
		return fmt.Errorf("rmsprop: step size must be positive")
	}
	if r.Epsilon <= 0 {
		return fmt.Errorf("rmsprop: epsilon must be positive")
	}
	if r.Rho < 0 || r.Rho >= 1 {
		return fmt.Errorf("rmsprop: rho must be in [0, 1)")
	}
	return nil
}

// rmsProp implements the RMSProp algorithm:
//
//	c ← ρc + (1 - ρ)g²
//	θ ← θ - α g / √(c + ε)
type rmsProp struct {
	config RMSPropConfig
	t      int
	cache  [][]float64
}

// Step takes a single step of RMSProp on the model
func (r *rmsProp) Step(model []G.ValueGrad) error {
	weights, grads, err := weightsAndGrads(model)
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}

	if r.cache == nil {
		r.cache = slots(weights)
	} else if err := checkSlots("step", r.cache, weights); err != nil {
		return err
	}

	r.t++
	c := r.config
	for i := range weights {
		g := scaled(grads[i], c.Batch, c.Clip)
		cache, w := r.cache[i], weights[i]

		for j := range w {
			cache[j] = c.Rho*cache[j] + (1-c.Rho)*g[j]*g[j]
			w[j] -= c.StepSize * g[j] / math.Sqrt(cache[j]+c.Epsilon)
		}
	}
	return nil
}

// State returns a copy of the squared gradient cache and step count
func (r *rmsProp) State() State {
	return State{
		T:     r.t,
		Slots: map[string][][]float64{"cache": copySlots(r.cache)},
	}
}

// SetState restores the squared gradient cache and step count
func (r *rmsProp) SetState(s State) error {
	if s.T < 0 {
		return fmt.Errorf("setState: negative step count %v", s.T)
	}

	r.t = s.T
	r.cache = copySlots(s.Slots["cache"])
	return nil
}
