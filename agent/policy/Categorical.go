// Package policy implements text policies whose action distributions
// are parameterized by neural networks
package policy

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/featurize"
	"github.com/samuelfneumann/offlinerl/network"
	"github.com/samuelfneumann/offlinerl/utils/op"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Categorical is a softmax policy over a fixed vocabulary of text
// actions. The logits of each action are predicted by an MLP from the
// features of the observation.
//
// The policy's graph computes the log probability of actions input
// with LogProbOf for a fixed batch size. Actions are sampled from
// behaviour copies of the network, one per batch size, which are
// synced with the policy's weights before sampling.
type Categorical struct {
	net  network.NeuralNet
	feat featurize.Featurizer

	actions []string
	index   map[string]int

	logits        *G.Node
	actionIndices *G.Node
	logProb       *G.Node

	behaviour map[int]*behaviour
	src       rand.Source
}

// behaviour is a copy of the policy network with its own VM which is
// used to compute action probabilities without gradients
type behaviour struct {
	net network.NeuralNet
	vm  G.VM
}

// NewCategorical returns a new Categorical policy over actions whose
// log probability graph computes log probabilities for batches of
// batchForLogProb observation-action pairs.
func NewCategorical(feat featurize.Featurizer, actions []string,
	batchForLogProb int, g *G.ExprGraph, hiddenSizes []int, biases []bool,
	activations []*network.Activation, init G.InitWFn,
	seed uint64) (*Categorical, error) {
	if len(actions) < 1 {
		return nil, fmt.Errorf("newCategorical: no actions")
	}

	index := make(map[string]int, len(actions))
	for i, a := range actions {
		if _, ok := index[a]; ok {
			return nil, fmt.Errorf("newCategorical: duplicate action %q", a)
		}
		index[a] = i
	}

	net, err := network.NewMultiHeadMLP(feat.Dims(), batchForLogProb,
		len(actions), g, hiddenSizes, biases, init, activations, "policy_")
	if err != nil {
		return nil, fmt.Errorf("newCategorical: could not create policy "+
			"network: %v", err)
	}
	logits := net.Prediction()

	// Log probability of actions inputted by user with LogProbOf()
	actionIndices := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(logits.Shape()...),
		G.WithInit(G.Zeroes()),
		G.WithName("policy_actionIndices"),
	)
	logProbs := op.LogSoftmax(logits)
	logProb := G.Must(G.HadamardProd(actionIndices, logProbs))
	logProb = G.Must(G.Sum(logProb, 1))

	return &Categorical{
		net:           net,
		feat:          feat,
		actions:       append([]string(nil), actions...),
		index:         index,
		logits:        logits,
		actionIndices: actionIndices,
		logProb:       logProb,
		behaviour:     make(map[int]*behaviour),
		src:           rand.NewSource(seed),
	}, nil
}

// Graph returns the computational graph of the policy
func (c *Categorical) Graph() *G.ExprGraph {
	return c.net.Graph()
}

// BatchSize returns the number of observation-action pairs in a
// single batch of the log probability graph
func (c *Categorical) BatchSize() int {
	return c.net.BatchSize()
}

// Learnables returns the learnable nodes of the policy
func (c *Categorical) Learnables() G.Nodes {
	return c.net.Learnables()
}

// Model returns the learnable nodes of the policy with their gradients
func (c *Categorical) Model() []G.ValueGrad {
	return c.net.Model()
}

// Network returns the policy's network
func (c *Categorical) Network() network.NeuralNet {
	return c.net
}

// Actions returns the vocabulary of actions of the policy
func (c *Categorical) Actions() []string {
	return append([]string(nil), c.actions...)
}

// LogProbNode returns the node computing the log probabilities of the
// actions last input with LogProbOf. The logits are returned as
// auxiliary outputs.
func (c *Categorical) LogProbNode() agent.LogProb {
	return agent.LogProb{LogProb: c.logProb, Aux: G.Nodes{c.logits}}
}

// LogProbOf sets the policy's inputs so that its graph computes the
// log probability of taking each action in the corresponding
// observation. Actions outside of the policy's vocabulary are an
// error.
func (c *Categorical) LogProbOf(obs, actions []string) (agent.LogProb,
	error) {
	if len(obs) != len(actions) {
		return agent.LogProb{}, fmt.Errorf("logProbOf: %v observations "+
			"but %v actions", len(obs), len(actions))
	}
	if len(obs) != c.BatchSize() {
		return agent.LogProb{}, fmt.Errorf("logProbOf: batch size must "+
			"be %v but got %v", c.BatchSize(), len(obs))
	}

	oneHot := make([]float64, len(actions)*len(c.actions))
	for i, a := range actions {
		j, ok := c.index[a]
		if !ok {
			return agent.LogProb{}, fmt.Errorf("logProbOf: unknown "+
				"action %q", a)
		}
		oneHot[i*len(c.actions)+j] = 1.0
	}

	if err := c.net.SetInput(c.feat.Features(obs)); err != nil {
		return agent.LogProb{}, fmt.Errorf("logProbOf: %v", err)
	}

	oneHotTensor := tensor.NewDense(tensor.Float64,
		[]int{len(actions), len(c.actions)},
		tensor.WithBacking(oneHot),
	)
	if err := G.Let(c.actionIndices, oneHotTensor); err != nil {
		return agent.LogProb{}, fmt.Errorf("logProbOf: %v", err)
	}

	return c.LogProbNode(), nil
}

// Probabilities returns the probability of each action in the
// vocabulary for each observation, in row major order
func (c *Categorical) Probabilities(obs []string) ([]float64, error) {
	if len(obs) == 0 {
		return nil, nil
	}

	b, err := c.behaviourFor(len(obs))
	if err != nil {
		return nil, fmt.Errorf("probabilities: %v", err)
	}
	if err := b.net.Set(c.net); err != nil {
		return nil, fmt.Errorf("probabilities: %v", err)
	}
	if err := b.net.SetInput(c.feat.Features(obs)); err != nil {
		return nil, fmt.Errorf("probabilities: %v", err)
	}

	if err := b.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("probabilities: %v", err)
	}
	defer b.vm.Reset()

	logits, err := network.ValueData(b.net.Output())
	if err != nil {
		return nil, fmt.Errorf("probabilities: %v", err)
	}

	probs := append([]float64(nil), logits...)
	n := len(c.actions)
	for i := 0; i < len(obs); i++ {
		softmax(probs[i*n : (i+1)*n])
	}
	return probs, nil
}

// GetAction samples an action for each observation
func (c *Categorical) GetAction(obs []string) ([]string, error) {
	probs, err := c.Probabilities(obs)
	if err != nil {
		return nil, fmt.Errorf("getAction: %v", err)
	}

	n := len(c.actions)
	actions := make([]string, len(obs))
	for i := range obs {
		dist := distuv.NewCategorical(probs[i*n:(i+1)*n], c.src)
		actions[i] = c.actions[int(dist.Rand())]
	}
	return actions, nil
}

// behaviourFor returns the behaviour copy of the policy network for a
// batch size, creating it if needed
func (c *Categorical) behaviourFor(batch int) (*behaviour, error) {
	if b, ok := c.behaviour[batch]; ok {
		return b, nil
	}

	net, err := c.net.CloneWithBatch(batch)
	if err != nil {
		return nil, err
	}
	b := &behaviour{net: net, vm: G.NewTapeMachine(net.Graph())}
	c.behaviour[batch] = b
	return b, nil
}

// Close cleans up the resources used by the policy
func (c *Categorical) Close() error {
	for batch, b := range c.behaviour {
		if err := b.vm.Close(); err != nil {
			return fmt.Errorf("close: %v", err)
		}
		delete(c.behaviour, batch)
	}
	return nil
}

// softmax replaces logits with their softmax
func softmax(logits []float64) {
	lse := floats.LogSumExp(logits)
	for i := range logits {
		logits[i] = math.Exp(logits[i] - lse)
	}
}
