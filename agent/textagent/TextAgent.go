// Package textagent implements an offline agent over text observations
// and actions with a categorical policy, a twin critic, and a target
// critic
package textagent

import (
	"fmt"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/agent/critic"
	"github.com/samuelfneumann/offlinerl/agent/policy"
	"github.com/samuelfneumann/offlinerl/featurize"
	G "gorgonia.org/gorgonia"
)

// Agent is a text agent with a categorical MLP policy over a vocabulary
// of actions and a twin MLP critic.
//
// The critic and policy are each trained on their own computational
// graph with fixed batch sizes. Predictions without gradients are made
// on copies of the critic and target critic, one per batch size, whose
// weights are synced before each prediction.
type Agent struct {
	policyLM string

	policy *policy.Categorical
	critic *critic.Twin
	target *critic.Twin

	evalCritic map[int]*critic.Twin
	evalTarget map[int]*critic.Twin
}

// New returns a new Agent described by config. The critic computes
// gradients over batches of criticBatch observation-action pairs and
// the policy over batches of actorBatch observation-action pairs.
func New(config Config, criticBatch, actorBatch int) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if err := agent.ValidateBatches(criticBatch, actorBatch); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	obsFeat, err := featurize.NewHashing(config.ObservationFeatures,
		uint32(config.Seed))
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	actFeat, err := featurize.NewHashing(config.ActionFeatures,
		uint32(config.Seed)+1)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	// A fresh initializer so that agents created from the same Config
	// start with the same weights
	init := config.InitWFn.Config.Create()

	pol, err := policy.NewCategorical(obsFeat, config.Actions, actorBatch,
		G.NewGraph(), config.PolicyHiddenSizes, config.PolicyBiases,
		config.PolicyActivations, init, config.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create policy: %v", err)
	}

	c, err := critic.New(G.NewGraph(), criticBatch, obsFeat, actFeat,
		config.CriticHiddenSizes, config.CriticBiases,
		config.CriticActivations, init)
	if err != nil {
		return nil, fmt.Errorf("new: could not create critic: %v", err)
	}

	target, err := c.CloneWithBatch(criticBatch)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target critic: %v",
			err)
	}

	return &Agent{
		policyLM:   config.PolicyLM,
		policy:     pol,
		critic:     c,
		target:     target,
		evalCritic: make(map[int]*critic.Twin),
		evalTarget: map[int]*critic.Twin{criticBatch: target},
	}, nil
}

// PolicyLM returns the identifier of the policy's language model
func (a *Agent) PolicyLM() string {
	return a.policyLM
}

// Model returns the policy
func (a *Agent) Model() agent.Policy {
	return a.policy
}

// Policy returns the concrete policy of the Agent
func (a *Agent) Policy() *policy.Categorical {
	return a.policy
}

// CriticNet returns the critic which is trained by gradient descent
func (a *Agent) CriticNet() agent.Critic {
	return a.critic
}

// TargetCriticNet returns the target critic
func (a *Agent) TargetCriticNet() agent.Critic {
	return a.target
}

// GetAction samples an action from the policy for each observation
func (a *Agent) GetAction(obs []string) ([]string, error) {
	return a.policy.GetAction(obs)
}

// Critic returns the critic's predictions for each observation-action
// pair without computing gradients
func (a *Agent) Critic(obs, actions []string) (agent.CriticValues, error) {
	eval, err := evalCopy(a.evalCritic, a.critic, len(obs))
	if err != nil {
		return agent.CriticValues{}, fmt.Errorf("critic: %v", err)
	}
	if err := eval.Set(a.critic); err != nil {
		return agent.CriticValues{}, fmt.Errorf("critic: %v", err)
	}
	return eval.Predict(obs, actions)
}

// TargetCritic returns the target critic's predictions for each
// observation-action pair
func (a *Agent) TargetCritic(obs, actions []string) (agent.CriticValues,
	error) {
	eval, err := evalCopy(a.evalTarget, a.target, len(obs))
	if err != nil {
		return agent.CriticValues{}, fmt.Errorf("targetCritic: %v", err)
	}
	if eval != a.target {
		if err := eval.Set(a.target); err != nil {
			return agent.CriticValues{}, fmt.Errorf("targetCritic: %v", err)
		}
	}
	return eval.Predict(obs, actions)
}

// SoftUpdateTargetCritic moves the target critic's weights towards the
// critic's weights: θ' ← τθ + (1 - τ)θ'
func (a *Agent) SoftUpdateTargetCritic(tau float64) error {
	if err := a.target.Polyak(a.critic, tau); err != nil {
		return fmt.Errorf("softUpdateTargetCritic: %v", err)
	}
	return nil
}

// Close cleans up the resources used by the Agent
func (a *Agent) Close() error {
	if err := a.policy.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	for _, copies := range []map[int]*critic.Twin{a.evalCritic, a.evalTarget} {
		for _, c := range copies {
			if err := c.Close(); err != nil {
				return fmt.Errorf("close: %v", err)
			}
		}
	}
	return nil
}

// evalCopy returns the copy of source for a batch size, creating it if
// needed
func evalCopy(copies map[int]*critic.Twin, source *critic.Twin,
	batch int) (*critic.Twin, error) {
	if c, ok := copies[batch]; ok {
		return c, nil
	}
	if batch < 1 {
		return nil, fmt.Errorf("batch size must be positive but got %v",
			batch)
	}

	c, err := source.CloneWithBatch(batch)
	if err != nil {
		return nil, err
	}
	copies[batch] = c
	return c, nil
}
