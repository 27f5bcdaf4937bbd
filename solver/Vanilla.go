package solver

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
)

// VanillaConfig describes a configuration of the vanilla gradient
// descent solver.
type VanillaConfig struct {
	StepSize float64
	Batch    int
	Clip     float64 // <= 0 if no clipping
}

// NewVanilla returns a new Vanilla Solver
func NewVanilla(stepSize float64, batchSize int,
	clip float64) (*Solver, error) {
	vanilla := VanillaConfig{
		StepSize: stepSize,
		Batch:    int(batchSize),
		Clip:     clip,
	}

	return newSolver(Vanilla, vanilla)
}

// Create returns a Vanilla Stepper as described by the VanillaConfig
func (v VanillaConfig) Create() Stepper {
	return &vanilla{config: v}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}

// Validate checks the hyperparameters of the VanillaConfig
func (v VanillaConfig) Validate() error {
	if v.StepSize <= 0 {
		return fmt.Errorf("vanilla: step size must be positive")
	}
	return nil
}

// vanilla implements stochastic gradient descent, θ ← θ - αg
type vanilla struct {
	config VanillaConfig
	t      int
}

// Step takes a single step of gradient descent on the model
func (v *vanilla) Step(model []G.ValueGrad) error {
	weights, grads, err := weightsAndGrads(model)
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}

	v.t++
	for i := range weights {
		g := scaled(grads[i], v.config.Batch, v.config.Clip)
		floats.AddScaled(weights[i], -v.config.StepSize, g)
	}
	return nil
}

// State returns the step count
func (v *vanilla) State() State {
	return State{T: v.t}
}

// SetState restores the step count
func (v *vanilla) SetState(s State) error {
	if s.T < 0 {
		return fmt.Errorf("setState: negative step count %v", s.T)
	}
	v.t = s.T
	return nil
}
