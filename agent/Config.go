package agent

import "fmt"

// Config represents a configuration for creating an agent
type Config interface {
	// CreateAgent creates the agent that the config describes. The
	// critic computes gradients over batches of criticBatch
	// observation-action pairs and the policy computes gradients over
	// batches of actorBatch observation-action pairs.
	CreateAgent(criticBatch, actorBatch int) (Agent, error)

	// Type returns the type of Agent created by the Config
	Type() Type

	// LM returns the identifier of the language model backing the
	// policy of the Agent
	LM() string

	// Validate returns an error describing whether or not the
	// configuration is valid or not.
	Validate() error
}

// ValidateBatches returns an error if either batch size is not
// positive
func ValidateBatches(criticBatch, actorBatch int) error {
	if criticBatch < 1 {
		return fmt.Errorf("critic batch size must be positive but got %v",
			criticBatch)
	}
	if actorBatch < 1 {
		return fmt.Errorf("actor batch size must be positive but got %v",
			actorBatch)
	}
	return nil
}
