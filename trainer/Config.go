package trainer

import (
	"fmt"
	"strings"

	"github.com/samuelfneumann/offlinerl/solver"
)

// Config describes the hyperparameters of a Trainer
type Config struct {
	CriticSolver *solver.Solver
	PolicySolver *solver.Solver

	// Number of micro-batches whose gradients are accumulated before
	// each optimizer step
	GradAccumSteps int

	Gamma     float64 // Discount
	Tau       float64 // Target critic soft update rate
	InvTemp   float64 // Inverse temperature of advantage weights
	Expectile float64 // Expectile of the state value regression

	Epochs      int // Critic epochs per update
	ActorEpochs int // Actor epochs per update

	// Global norm the accumulated gradients are clipped to, <= 0 if no
	// clipping
	MaxGradNorm float64

	// Advantage weights are clamped to MaxWeight, <= 0 if no clamping
	MaxWeight float64

	// Policies whose language model identifier contains any of
	// LargePolicyLMs are trained on micro-batches of
	// LargePolicyBatchSize
	LargePolicyLMs       []string
	LargePolicyBatchSize int

	Verbose bool
}

// DefaultConfig returns the default Trainer configuration
func DefaultConfig() Config {
	criticSolver, err := solver.NewDefaultAdam(1e-3, 1)
	if err != nil {
		panic(err)
	}
	policySolver, err := solver.NewDefaultAdam(1e-5, 1)
	if err != nil {
		panic(err)
	}

	return Config{
		CriticSolver:         criticSolver,
		PolicySolver:         policySolver,
		GradAccumSteps:       8,
		Gamma:                0.9,
		Tau:                  0.1,
		InvTemp:              1.0,
		Expectile:            0.9,
		Epochs:               3,
		ActorEpochs:          3,
		MaxGradNorm:          0.01,
		MaxWeight:            100,
		LargePolicyLMs:       []string{"mistral"},
		LargePolicyBatchSize: 2,
	}
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.CriticSolver == nil || c.CriticSolver.Config == nil {
		return fmt.Errorf("validate: no critic solver")
	}
	if c.PolicySolver == nil || c.PolicySolver.Config == nil {
		return fmt.Errorf("validate: no policy solver")
	}
	if c.GradAccumSteps < 1 {
		return fmt.Errorf("validate: gradient accumulation steps must be "+
			"positive but got %v", c.GradAccumSteps)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1] but got %v",
			c.Gamma)
	}
	if c.Tau < 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in [0, 1] but got %v",
			c.Tau)
	}
	if c.Expectile <= 0 || c.Expectile >= 1 {
		return fmt.Errorf("validate: expectile must be in (0, 1) but got %v",
			c.Expectile)
	}
	if c.Epochs < 0 || c.ActorEpochs < 0 {
		return fmt.Errorf("validate: epochs must be non-negative")
	}
	if len(c.LargePolicyLMs) > 0 && c.LargePolicyBatchSize < 1 {
		return fmt.Errorf("validate: large policy batch size must be "+
			"positive but got %v", c.LargePolicyBatchSize)
	}
	return nil
}

// ActorBatchSize returns the size of the micro-batches the policy
// backed by the language model policyLM is trained on when the replay
// buffer samples batches of bufferBatch
func (c Config) ActorBatchSize(policyLM string, bufferBatch int) int {
	for _, lm := range c.LargePolicyLMs {
		if lm != "" && strings.Contains(policyLM, lm) {
			return c.LargePolicyBatchSize
		}
	}
	return bufferBatch
}

// SampleSize returns the number of transitions drawn from a replay
// buffer which samples batches of bufferBatch in each epoch
func (c Config) SampleSize(bufferBatch int) int {
	return c.GradAccumSteps * bufferBatch
}
