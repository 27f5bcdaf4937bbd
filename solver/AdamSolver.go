package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

// AdamConfig describes a configuration of the Adam solver
type AdamConfig struct {
	StepSize float64
	Epsilon  float64 // Smoothing factor
	Beta1    float64
	Beta2    float64
	Batch    int
	Clip     float64 // <= 0 if no clipping
}

// NewDefaultAdam returns a new Adam Solver with default hyperparameters
func NewDefaultAdam(stepSize float64, batchSize int) (*Solver, error) {
	return NewAdam(stepSize, 1e-8, 0.9, 0.999, batchSize)
}

// NewAdam returns a new Adam Solver
func NewAdam(stepSize, epsilon, beta1, beta2 float64, batchSize int) (*Solver,
	error) {
	adam := AdamConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Beta1:    beta1,
		Beta2:    beta2,
		Batch:    int(batchSize),
	}

	return newSolver(Adam, adam)
}

// Create returns a new Adam Stepper as described by the AdamConfig
func (a AdamConfig) Create() Stepper {
	return &adam{config: a}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (a AdamConfig) ValidType(t Type) bool {
	return t == Adam
}

// Validate checks the hyperparameters of the AdamConfig
func (a AdamConfig) Validate() error {
	if a.StepSize <= 0 {
		return fmt.Errorf("adam: step size must be positive")
	}
	if a.Epsilon <= 0 {
		return fmt.Errorf("adam: epsilon must be positive")
	}
	if a.Beta1 < 0 || a.Beta1 >= 1 || a.Beta2 < 0 || a.Beta2 >= 1 {
		return fmt.Errorf("adam: betas must be in [0, 1)")
	}
	if a.Batch < 0 {
		return fmt.Errorf("adam: batch must be non-negative")
	}
	return nil
}

// adam implements the Adam algorithm with bias-corrected moment
// estimates:
//
//	m ← β₁m + (1 - β₁)g
//	v ← β₂v + (1 - β₂)g²
//	θ ← θ - α (m / (1 - β₁ᵗ)) / (√(v / (1 - β₂ᵗ)) + ε)
type adam struct {
	config AdamConfig
	t      int
	m, v   [][]float64
}

// Step takes a single step of Adam on the model
func (a *adam) Step(model []G.ValueGrad) error {
	weights, grads, err := weightsAndGrads(model)
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}

	if a.m == nil {
		a.m, a.v = slots(weights), slots(weights)
	} else {
		if err := checkSlots("step", a.m, weights); err != nil {
			return err
		}
		if err := checkSlots("step", a.v, weights); err != nil {
			return err
		}
	}

	a.t++
	c := a.config
	correction1 := 1 - math.Pow(c.Beta1, float64(a.t))
	correction2 := 1 - math.Pow(c.Beta2, float64(a.t))

	for i := range weights {
		g := scaled(grads[i], c.Batch, c.Clip)
		m, v, w := a.m[i], a.v[i], weights[i]

		for j := range w {
			m[j] = c.Beta1*m[j] + (1-c.Beta1)*g[j]
			v[j] = c.Beta2*v[j] + (1-c.Beta2)*g[j]*g[j]

			mHat := m[j] / correction1
			vHat := v[j] / correction2
			w[j] -= c.StepSize * mHat / (math.Sqrt(vHat) + c.Epsilon)
		}
	}
	return nil
}

// State returns a copy of the moment estimates and step count
func (a *adam) State() State {
	return State{
		T: a.t,
		Slots: map[string][][]float64{
			"m": copySlots(a.m),
			"v": copySlots(a.v),
		},
	}
}

// SetState restores the moment estimates and step count
func (a *adam) SetState(s State) error {
	m, v := s.Slots["m"], s.Slots["v"]
	if (m == nil) != (v == nil) || len(m) != len(v) {
		return fmt.Errorf("setState: inconsistent adam moments")
	}
	if s.T < 0 {
		return fmt.Errorf("setState: negative step count %v", s.T)
	}

	a.t = s.T
	a.m, a.v = copySlots(m), copySlots(v)
	return nil
}
