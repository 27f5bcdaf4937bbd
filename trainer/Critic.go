package trainer

import (
	"fmt"

	"github.com/samuelfneumann/offlinerl/accelerator"
	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/network"
	"github.com/samuelfneumann/offlinerl/solver"
	"github.com/samuelfneumann/offlinerl/timestep"
	"github.com/samuelfneumann/offlinerl/utils/op"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// criticLoss computes the implicit Q-learning loss of a critic and
// accumulates its gradients:
//
//	MSE(q1, y1) + MSE(q2, y2) + L(tq1 - v1) + L(tq2 - v2)
//
// where yi = r + (1 - done) γ tvi are the one step targets bootstrapped
// from the target critic's state values of the next observations, tqi
// are the target critic's action values, and L is the expectile loss.
type criticLoss struct {
	agent     agent.Agent
	critic    agent.Critic
	gamma     float64
	expectile float64

	tdTarget1, tdTarget2 *G.Node
	targetQ1, targetQ2   *G.Node

	loss   *G.Node
	losses [4]G.Value // q1, q2, v1, v2
	heads  [4]G.Value // q1, q2, v1, v2

	vm  G.VM
	opt *solver.Optimizer
}

// newCriticLoss adds the critic loss to the graph of a's critic
func newCriticLoss(a agent.Agent, s *solver.Solver, gamma,
	expectile float64) (*criticLoss, error) {
	c := a.CriticNet()
	g := c.Graph()
	q1, q2, v1, v2 := c.Heads()

	input := func(name string, like *G.Node) *G.Node {
		return G.NewTensor(g, tensor.Float64, like.Dims(),
			G.WithShape(like.Shape()...), G.WithName(name),
			G.WithInit(G.Zeroes()))
	}

	l := &criticLoss{
		agent:     a,
		critic:    c,
		gamma:     gamma,
		expectile: expectile,
		tdTarget1: input("tdTarget1", q1),
		tdTarget2: input("tdTarget2", q2),
		targetQ1:  input("targetQ1", v1),
		targetQ2:  input("targetQ2", v2),
	}

	q1Loss, err := op.MSE(q1, l.tdTarget1)
	if err != nil {
		return nil, fmt.Errorf("newCriticLoss: %v", err)
	}
	q2Loss, err := op.MSE(q2, l.tdTarget2)
	if err != nil {
		return nil, fmt.Errorf("newCriticLoss: %v", err)
	}
	v1Loss, err := op.Expectile(G.Must(G.Sub(l.targetQ1, v1)), expectile)
	if err != nil {
		return nil, fmt.Errorf("newCriticLoss: %v", err)
	}
	v2Loss, err := op.Expectile(G.Must(G.Sub(l.targetQ2, v2)), expectile)
	if err != nil {
		return nil, fmt.Errorf("newCriticLoss: %v", err)
	}

	l.loss = G.Must(G.Add(G.Must(G.Add(q1Loss, q2Loss)),
		G.Must(G.Add(v1Loss, v2Loss))))

	for i, node := range []*G.Node{q1Loss, q2Loss, v1Loss, v2Loss} {
		G.Read(node, &l.losses[i])
	}
	for i, node := range []*G.Node{q1, q2, v1, v2} {
		G.Read(node, &l.heads[i])
	}

	if _, err := G.Grad(l.loss, c.Learnables()...); err != nil {
		return nil, fmt.Errorf("newCriticLoss: could not compute "+
			"gradient: %v", err)
	}
	l.vm = G.NewTapeMachine(g, G.BindDualValues(c.Learnables()...))

	if l.opt, err = solver.NewOptimizer(s, c.Learnables()); err != nil {
		l.vm.Close()
		return nil, fmt.Errorf("newCriticLoss: %v", err)
	}
	return l, nil
}

// run computes the loss on a micro-batch and accumulates its
// gradients in the critic's optimizer
func (l *criticLoss) run(b timestep.Batch) (Info, error) {
	if b.Len() != l.critic.BatchSize() {
		return nil, fmt.Errorf("run: batch size must be %v but got %v",
			l.critic.BatchSize(), b.Len())
	}

	// Bootstrap the targets of the action values from the target
	// critic's state values of the next observations
	next, err := l.agent.TargetCritic(b.NextObservation,
		make([]string, b.Len()))
	if err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}
	target1, err := TDTarget(b.Reward, b.Done, next.V1, l.gamma)
	if err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}
	target2, err := TDTarget(b.Reward, b.Done, next.V2, l.gamma)
	if err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}

	tq, err := l.agent.TargetCritic(b.Observation, b.Action)
	if err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}

	if err := l.critic.SetInput(b.Observation, b.Action); err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}
	for _, in := range []struct {
		node   *G.Node
		values []float64
	}{
		{l.tdTarget1, target1},
		{l.tdTarget2, target2},
		{l.targetQ1, tq.Q1},
		{l.targetQ2, tq.Q2},
	} {
		if err := accelerator.Adopt(in.node, in.values); err != nil {
			return nil, fmt.Errorf("run: %v", err)
		}
	}

	if _, err := accelerator.Backward(l.vm, l.loss, l.opt); err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}

	info := make(Info)
	for i, name := range []string{"q1", "q2", "v1", "v2"} {
		loss, err := network.ValueData(l.losses[i])
		if err != nil {
			return nil, fmt.Errorf("run: %v loss: %v", name, err)
		}
		info[name+".loss"] = loss[0]

		head, err := network.ValueData(l.heads[i])
		if err != nil {
			return nil, fmt.Errorf("run: %v: %v", name, err)
		}
		info.summarize(name, head, true)
	}
	info.summarize("target_q1", tq.Q1, true)
	info.summarize("target_q2", tq.Q2, true)

	return info, nil
}

// Close cleans up the resources used by the loss
func (l *criticLoss) Close() error {
	return l.vm.Close()
}
