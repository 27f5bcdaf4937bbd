// Package critic implements critics with twin action value and twin
// state value heads
package critic

import (
	"fmt"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/featurize"
	"github.com/samuelfneumann/offlinerl/network"
	G "gorgonia.org/gorgonia"
)

// Twin is a critic with two action value heads and two state value
// heads. The action value heads are predicted by one MLP from the
// concatenated features of the observation and action, and the state
// value heads are predicted by another MLP from the features of the
// observation. Both MLPs share a computational graph.
type Twin struct {
	q, v    network.NeuralNet
	obsFeat featurize.Featurizer
	actFeat featurize.Featurizer

	q1, q2, v1, v2 *G.Node
	q1Val, q2Val   G.Value
	v1Val, v2Val   G.Value

	// Lazily created to run the forward pass for Predict
	vm G.VM
}

// New returns a new Twin critic in the graph g which predicts values
// for batches of batch observation-action pairs
func New(g *G.ExprGraph, batch int, obsFeat, actFeat featurize.Featurizer,
	hiddenSizes []int, biases []bool, activations []*network.Activation,
	init G.InitWFn) (*Twin, error) {
	q, err := network.NewMultiHeadMLP(obsFeat.Dims()+actFeat.Dims(), batch,
		2, g, hiddenSizes, biases, init, activations, "q_")
	if err != nil {
		return nil, fmt.Errorf("new: could not create action value "+
			"network: %v", err)
	}

	v, err := network.NewMultiHeadMLP(obsFeat.Dims(), batch, 2, g,
		hiddenSizes, biases, init, activations, "v_")
	if err != nil {
		return nil, fmt.Errorf("new: could not create state value "+
			"network: %v", err)
	}

	return newTwin(q, v, obsFeat, actFeat)
}

// newTwin creates the heads of a Twin critic from its networks
func newTwin(q, v network.NeuralNet, obsFeat,
	actFeat featurize.Featurizer) (*Twin, error) {
	if q.Graph() != v.Graph() {
		return nil, fmt.Errorf("newTwin: networks must share a graph")
	}

	t := &Twin{q: q, v: v, obsFeat: obsFeat, actFeat: actFeat}

	var err error
	if t.q1, err = G.Slice(q.Prediction(), nil, G.S(0)); err != nil {
		return nil, fmt.Errorf("newTwin: %v", err)
	}
	if t.q2, err = G.Slice(q.Prediction(), nil, G.S(1)); err != nil {
		return nil, fmt.Errorf("newTwin: %v", err)
	}
	if t.v1, err = G.Slice(v.Prediction(), nil, G.S(0)); err != nil {
		return nil, fmt.Errorf("newTwin: %v", err)
	}
	if t.v2, err = G.Slice(v.Prediction(), nil, G.S(1)); err != nil {
		return nil, fmt.Errorf("newTwin: %v", err)
	}

	G.Read(t.q1, &t.q1Val)
	G.Read(t.q2, &t.q2Val)
	G.Read(t.v1, &t.v1Val)
	G.Read(t.v2, &t.v2Val)

	return t, nil
}

// CloneWithBatch returns a copy of the critic in a new graph which
// predicts values for batches of batch observation-action pairs. The
// copy starts with the same weights as the critic.
func (t *Twin) CloneWithBatch(batch int) (*Twin, error) {
	g := G.NewGraph()

	q, err := t.q.CloneTo(g, batch)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}
	v, err := t.v.CloneTo(g, batch)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}

	return newTwin(q, v, t.obsFeat, t.actFeat)
}

// Graph returns the computational graph of the critic
func (t *Twin) Graph() *G.ExprGraph {
	return t.q.Graph()
}

// BatchSize returns the number of observation-action pairs in a batch
func (t *Twin) BatchSize() int {
	return t.q.BatchSize()
}

// Learnables returns the learnable nodes of the action value network
// followed by those of the state value network
func (t *Twin) Learnables() G.Nodes {
	q, v := t.q.Learnables(), t.v.Learnables()
	learnables := make(G.Nodes, 0, len(q)+len(v))
	learnables = append(learnables, q...)
	return append(learnables, v...)
}

// Model returns the learnable nodes of the critic with their gradients
func (t *Twin) Model() []G.ValueGrad {
	learnables := t.Learnables()
	model := make([]G.ValueGrad, len(learnables))
	for i := range learnables {
		model[i] = learnables[i]
	}
	return model
}

// Heads returns the nodes of the critic's predictions
func (t *Twin) Heads() (q1, q2, v1, v2 *G.Node) {
	return t.q1, t.q2, t.v1, t.v2
}

// SetInput sets the observation-action pairs the critic predicts
// values for
func (t *Twin) SetInput(obs, actions []string) error {
	if len(obs) != len(actions) {
		return fmt.Errorf("setInput: %v observations but %v actions",
			len(obs), len(actions))
	}
	if len(obs) != t.BatchSize() {
		return fmt.Errorf("setInput: batch size must be %v but got %v",
			t.BatchSize(), len(obs))
	}

	obsFeatures := t.obsFeat.Features(obs)
	actFeatures := t.actFeat.Features(actions)

	// Concatenate the features of each observation-action pair
	obsDims, actDims := t.obsFeat.Dims(), t.actFeat.Dims()
	qInput := make([]float64, 0, len(obs)*(obsDims+actDims))
	for i := range obs {
		qInput = append(qInput, obsFeatures[i*obsDims:(i+1)*obsDims]...)
		qInput = append(qInput, actFeatures[i*actDims:(i+1)*actDims]...)
	}

	if err := t.q.SetInput(qInput); err != nil {
		return fmt.Errorf("setInput: %v", err)
	}
	if err := t.v.SetInput(obsFeatures); err != nil {
		return fmt.Errorf("setInput: %v", err)
	}
	return nil
}

// Set sets the weights of the critic to the weights of another critic
func (t *Twin) Set(source *Twin) error {
	return t.Polyak(source, 1.0)
}

// Polyak sets the weights of the critic to a polyak average between
// its weights and the weights of another critic:
//
//	θ ← τ θ_source + (1 - τ) θ
func (t *Twin) Polyak(source *Twin, tau float64) error {
	if err := t.q.Polyak(source.q, tau); err != nil {
		return fmt.Errorf("polyak: %v", err)
	}
	if err := t.v.Polyak(source.v, tau); err != nil {
		return fmt.Errorf("polyak: %v", err)
	}
	return nil
}

// Predict returns the critic's predictions for each
// observation-action pair, computed by running a VM over the critic's
// graph. Predict must only be called on critics whose graphs are not
// extended by a loss, such as copies made with CloneWithBatch.
func (t *Twin) Predict(obs, actions []string) (agent.CriticValues, error) {
	if err := t.SetInput(obs, actions); err != nil {
		return agent.CriticValues{}, fmt.Errorf("predict: %v", err)
	}

	if t.vm == nil {
		t.vm = G.NewTapeMachine(t.Graph())
	}
	if err := t.vm.RunAll(); err != nil {
		return agent.CriticValues{}, fmt.Errorf("predict: %v", err)
	}
	defer t.vm.Reset()

	return t.Values()
}

// Values returns copies of the critic's predictions computed by the
// last run of a VM over its graph
func (t *Twin) Values() (agent.CriticValues, error) {
	var (
		values agent.CriticValues
		err    error
	)
	for _, head := range []struct {
		dst *[]float64
		val G.Value
	}{
		{&values.Q1, t.q1Val},
		{&values.Q2, t.q2Val},
		{&values.V1, t.v1Val},
		{&values.V2, t.v2Val},
	} {
		var data []float64
		if data, err = network.ValueData(head.val); err != nil {
			return agent.CriticValues{}, fmt.Errorf("values: %v", err)
		}
		*head.dst = append([]float64(nil), data...)
	}
	return values, nil
}

// Close cleans up the resources used by the critic
func (t *Twin) Close() error {
	if t.vm != nil {
		return t.vm.Close()
	}
	return nil
}
