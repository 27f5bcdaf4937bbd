package trainer

import (
	"fmt"

	"github.com/samuelfneumann/offlinerl/accelerator"
	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/solver"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// actorLoss computes the advantage weighted regression loss of a
// policy and accumulates its gradients:
//
//	-mean(exp(β A(s, a)) log π(a | s))
//
// The advantage weights are computed outside the graph and are input
// to it, so no gradients flow through the critic.
type actorLoss struct {
	policy    agent.Policy
	invTemp   float64
	maxWeight float64

	weights *G.Node
	loss    *G.Node

	vm  G.VM
	opt *solver.Optimizer
}

// newActorLoss adds the actor loss to the graph of the policy
func newActorLoss(p agent.Policy, s *solver.Solver, invTemp,
	maxWeight float64) (*actorLoss, error) {
	logProb := p.LogProbNode().LogProb
	if logProb == nil {
		return nil, fmt.Errorf("newActorLoss: policy has no log " +
			"probability node")
	}

	weights := G.NewTensor(p.Graph(), tensor.Float64, logProb.Dims(),
		G.WithShape(logProb.Shape()...), G.WithName("awrWeights"),
		G.WithInit(G.Zeroes()))

	loss := G.Must(G.HadamardProd(weights, logProb))
	loss = G.Must(G.Mean(loss))
	loss = G.Must(G.Neg(loss))

	if _, err := G.Grad(loss, p.Learnables()...); err != nil {
		return nil, fmt.Errorf("newActorLoss: could not compute "+
			"gradient: %v", err)
	}
	vm := G.NewTapeMachine(p.Graph(), G.BindDualValues(p.Learnables()...))

	opt, err := solver.NewOptimizer(s, p.Learnables())
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("newActorLoss: %v", err)
	}

	return &actorLoss{
		policy:    p,
		invTemp:   invTemp,
		maxWeight: maxWeight,
		weights:   weights,
		loss:      loss,
		vm:        vm,
		opt:       opt,
	}, nil
}

// run computes the loss of taking actions in the observations obs
// with the given advantages and accumulates its gradients in the
// policy's optimizer
func (l *actorLoss) run(obs, actions []string, adv []float64) (Info,
	error) {
	if len(adv) != len(obs) {
		return nil, fmt.Errorf("run: %v advantages for %v observations",
			len(adv), len(obs))
	}

	factor := AWRWeights(adv, l.invTemp, l.maxWeight)

	if _, err := l.policy.LogProbOf(obs, actions); err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}
	if err := accelerator.Adopt(l.weights, factor); err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}

	loss, err := accelerator.Backward(l.vm, l.loss, l.opt)
	if err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}

	info := Info{"pg.loss": loss}
	info.summarize("advantages", adv, true)
	info.summarize("factor", factor, false)
	return info, nil
}

// Close cleans up the resources used by the loss
func (l *actorLoss) Close() error {
	return l.vm.Close()
}
