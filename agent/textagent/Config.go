package textagent

import (
	"fmt"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/initwfn"
	"github.com/samuelfneumann/offlinerl/network"
)

const TextIQLMLP agent.Type = "TextIQL-MLP"

func init() {
	agent.Register(TextIQLMLP, Config{})
}

// Config implements a configuration of a text Agent with a categorical
// MLP policy and a twin MLP critic
type Config struct {
	// PolicyLM identifies the language model backing the policy
	PolicyLM string

	// Actions is the vocabulary of actions of the policy
	Actions []string

	// Number of hashed features of observations and actions
	ObservationFeatures int
	ActionFeatures      int

	PolicyHiddenSizes []int
	PolicyBiases      []bool
	PolicyActivations []*network.Activation

	CriticHiddenSizes []int
	CriticBiases      []bool
	CriticActivations []*network.Activation

	InitWFn *initwfn.InitWFn

	Seed uint64
}

// Type returns the type of Agent created by the Config
func (c Config) Type() agent.Type {
	return TextIQLMLP
}

// LM returns the identifier of the policy's language model
func (c Config) LM() string {
	return c.PolicyLM
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if len(c.Actions) == 0 {
		return fmt.Errorf("validate: no actions")
	}
	if c.ObservationFeatures < 1 || c.ActionFeatures < 1 {
		return fmt.Errorf("validate: number of features must be positive")
	}

	if len(c.PolicyHiddenSizes) != len(c.PolicyBiases) ||
		len(c.PolicyHiddenSizes) != len(c.PolicyActivations) {
		return fmt.Errorf("validate: policy must have one bias and "+
			"activation per hidden layer\n\thidden: %v\n\tbiases: %v"+
			"\n\tactivations: %v", len(c.PolicyHiddenSizes),
			len(c.PolicyBiases), len(c.PolicyActivations))
	}
	if len(c.CriticHiddenSizes) != len(c.CriticBiases) ||
		len(c.CriticHiddenSizes) != len(c.CriticActivations) {
		return fmt.Errorf("validate: critic must have one bias and "+
			"activation per hidden layer\n\thidden: %v\n\tbiases: %v"+
			"\n\tactivations: %v", len(c.CriticHiddenSizes),
			len(c.CriticBiases), len(c.CriticActivations))
	}
	for _, acts := range [][]*network.Activation{c.PolicyActivations,
		c.CriticActivations} {
		for _, act := range acts {
			if act == nil {
				return fmt.Errorf("validate: nil activation")
			}
		}
	}

	if c.InitWFn == nil || c.InitWFn.Config == nil {
		return fmt.Errorf("validate: no weight initializer")
	}
	return nil
}

// CreateAgent creates the Agent described by the Config
func (c Config) CreateAgent(criticBatch, actorBatch int) (agent.Agent,
	error) {
	return New(c, criticBatch, actorBatch)
}
