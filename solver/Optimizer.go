package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
)

// Optimizer accumulates the gradients of a set of learnable nodes over
// several backward passes and then applies a single update to the
// nodes with a Solver:
//
//	opt.ZeroGrad()
//	for each micro-batch {
//		vm.RunAll()
//		opt.Accumulate()
//		vm.Reset()
//	}
//	opt.ClipGradNorm(maxNorm)
//	opt.Step()
//
// The gradients of the nodes themselves are zeroed after each
// accumulation, so the nodes may be shared by several graphs' backward
// passes as long as each pass is followed by Accumulate.
type Optimizer struct {
	solver     *Solver
	learnables G.Nodes
	model      []G.ValueGrad

	accum   [][]float64
	pending int
}

// NewOptimizer returns a new Optimizer which updates learnables using
// solver. The learnables must have been bound to dual values, for
// example with a tape machine created using G.BindDualValues.
func NewOptimizer(solver *Solver, learnables G.Nodes) (*Optimizer, error) {
	if solver == nil || solver.Stepper == nil {
		return nil, fmt.Errorf("newOptimizer: nil solver")
	}
	if len(learnables) == 0 {
		return nil, fmt.Errorf("newOptimizer: no learnables to optimize")
	}

	model := make([]G.ValueGrad, len(learnables))
	accum := make([][]float64, len(learnables))
	for i, node := range learnables {
		model[i] = node
		w, err := valueData(node.Value())
		if err != nil {
			return nil, fmt.Errorf("newOptimizer: learnable %v: %v",
				node.Name(), err)
		}
		accum[i] = make([]float64, len(w))
	}

	return &Optimizer{
		solver:     solver,
		learnables: learnables,
		model:      model,
		accum:      accum,
	}, nil
}

// Learnables returns the nodes that the Optimizer updates
func (o *Optimizer) Learnables() G.Nodes {
	return o.learnables
}

// ZeroGrad clears the accumulated gradients
func (o *Optimizer) ZeroGrad() {
	for i := range o.accum {
		for j := range o.accum[i] {
			o.accum[i][j] = 0
		}
	}
	o.pending = 0
}

// Pending returns the number of backward passes accumulated since
// the last ZeroGrad or Step
func (o *Optimizer) Pending() int {
	return o.pending
}

// Accumulate adds the current gradients of the learnables to the
// accumulated gradients and zeroes the learnables' gradients
func (o *Optimizer) Accumulate() error {
	for i, node := range o.learnables {
		grad, err := o.grad(node)
		if err != nil {
			return fmt.Errorf("accumulate: %v", err)
		}

		floats.Add(o.accum[i], grad)
		for j := range grad {
			grad[j] = 0
		}
	}
	o.pending++
	return nil
}

// GradNorm returns the global L2 norm of the accumulated gradients
func (o *Optimizer) GradNorm() float64 {
	var sumSq float64
	for i := range o.accum {
		sumSq += floats.Dot(o.accum[i], o.accum[i])
	}
	return math.Sqrt(sumSq)
}

// ClipGradNorm rescales the accumulated gradients so that their
// global L2 norm is at most maxNorm and returns the norm before
// clipping. No clipping is done if maxNorm <= 0. A non-finite norm is
// returned as an error and the gradients are left untouched.
func (o *Optimizer) ClipGradNorm(maxNorm float64) (float64, error) {
	norm := o.GradNorm()
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		return norm, fmt.Errorf("clipGradNorm: non-finite gradient norm %v",
			norm)
	}

	if maxNorm > 0 && norm > maxNorm {
		scale := maxNorm / (norm + 1e-6)
		for i := range o.accum {
			floats.Scale(scale, o.accum[i])
		}
	}
	return norm, nil
}

// Step applies the accumulated gradients to the learnables using the
// solver, then clears the accumulated gradients
func (o *Optimizer) Step() error {
	if o.pending == 0 {
		return fmt.Errorf("step: no gradients accumulated")
	}

	for i, node := range o.learnables {
		grad, err := o.grad(node)
		if err != nil {
			return fmt.Errorf("step: %v", err)
		}
		copy(grad, o.accum[i])
	}

	if err := o.solver.Step(o.model); err != nil {
		return fmt.Errorf("step: %v", err)
	}

	for _, node := range o.learnables {
		grad, err := o.grad(node)
		if err != nil {
			return fmt.Errorf("step: %v", err)
		}
		for j := range grad {
			grad[j] = 0
		}
	}
	o.ZeroGrad()
	return nil
}

// State returns the internal state of the solver
func (o *Optimizer) State() State {
	return o.solver.State()
}

// SetState restores the internal state of the solver. Each slot of the
// state must be shaped like the learnables of the Optimizer.
func (o *Optimizer) SetState(s State) error {
	for name, slot := range s.Slots {
		if slot == nil {
			continue
		}
		if err := checkSlots("setState: "+name, slot, o.accum); err != nil {
			return err
		}
	}
	return o.solver.SetState(s)
}

// grad returns the backing data of the gradient of node
func (o *Optimizer) grad(node *G.Node) ([]float64, error) {
	g, err := node.Grad()
	if err != nil {
		return nil, fmt.Errorf("learnable %v has no gradient: %v",
			node.Name(), err)
	}
	data, err := valueData(g)
	if err != nil {
		return nil, fmt.Errorf("learnable %v: %v", node.Name(), err)
	}
	return data, nil
}
