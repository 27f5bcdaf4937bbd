// Package agent defines the interfaces of offline text agents and
// their networks
package agent

import (
	G "gorgonia.org/gorgonia"
)

// Agent is an aggregate of a text policy, a critic with twin Q and twin
// state value heads, and a target critic.
//
// The policy and critic are trained by gradient descent on their
// computational graphs, which are exposed by Model and CriticNet. The
// target critic only ever changes through SoftUpdateTargetCritic.
type Agent interface {
	// PolicyLM returns the identifier of the policy's language model
	PolicyLM() string

	// Model returns the policy
	Model() Policy

	// CriticNet returns the critic which is trained by gradient descent
	CriticNet() Critic

	// TargetCriticNet returns the target critic
	TargetCriticNet() Critic

	// GetAction samples one action from the policy for each
	// observation
	GetAction(obs []string) ([]string, error)

	// Critic returns the critic's predictions for each
	// observation-action pair. No gradients are computed.
	Critic(obs, actions []string) (CriticValues, error)

	// TargetCritic returns the target critic's predictions for each
	// observation-action pair. No gradients are computed.
	TargetCritic(obs, actions []string) (CriticValues, error)

	// SoftUpdateTargetCritic moves the target critic's weights towards
	// the critic's weights: θ' ← τθ + (1 - τ)θ'
	SoftUpdateTargetCritic(tau float64) error
}

// Closer is an Agent that must be closed after it is done being used
type Closer interface {
	Agent
	Close() error
}

// Network is a model whose forward pass is a computational graph with
// a fixed batch size
type Network interface {
	Graph() *G.ExprGraph
	BatchSize() int
	Learnables() G.Nodes
	Model() []G.ValueGrad
}

// Policy is a text policy whose log probabilities of externally given
// actions are computed by a computational graph. Because the actions
// are input externally, gradients are not computed through the action
// selection process.
type Policy interface {
	Network

	// LogProbNode returns the log probability nodes of the policy,
	// which hold the log probabilities of the actions last input with
	// LogProbOf once a VM has run over the policy's graph
	LogProbNode() LogProb

	// LogProbOf sets the inputs of the policy's graph to compute the
	// log probability of taking each action in the corresponding
	// observation
	LogProbOf(obs, actions []string) (LogProb, error)
}

// LogProb holds the log probability node of a policy along with any
// auxiliary outputs the policy computes alongside it. Consumers of
// log probabilities should only depend on the LogProb field.
type LogProb struct {
	LogProb *G.Node
	Aux     G.Nodes
}

// Critic is a network with twin action value heads and twin state value
// heads
type Critic interface {
	Network

	// SetInput sets the observation-action pairs that the critic
	// predicts values for. The action may be the empty string, in which
	// case the action value heads are meaningless.
	SetInput(obs, actions []string) error

	// Heads returns the nodes of the critic's predictions, each a
	// vector with one value per observation-action pair
	Heads() (q1, q2, v1, v2 *G.Node)
}

// CriticValues holds the predictions of a critic
type CriticValues struct {
	Q1, Q2, V1, V2 []float64
}

// Len returns the number of observation-action pairs predicted
func (c CriticValues) Len() int {
	return len(c.V1)
}
