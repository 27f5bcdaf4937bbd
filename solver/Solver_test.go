package solver

import (
	"encoding/json"
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// regression is the graph of the loss mean((x w - y)²) for a single
// learnable weight w
type regression struct {
	g    *G.ExprGraph
	w    *G.Node
	loss *G.Node
	vm   G.VM
}

func newRegression(t *testing.T, w0 float64) *regression {
	t.Helper()

	g := G.NewGraph()
	x := G.NewMatrix(g, tensor.Float64, G.WithShape(2, 1), G.WithName("x"),
		G.WithValue(tensor.New(tensor.WithShape(2, 1),
			tensor.WithBacking([]float64{1, 2}))))
	y := G.NewMatrix(g, tensor.Float64, G.WithShape(2, 1), G.WithName("y"),
		G.WithValue(tensor.New(tensor.WithShape(2, 1),
			tensor.WithBacking([]float64{2, 4}))))
	w := G.NewMatrix(g, tensor.Float64, G.WithShape(1, 1), G.WithName("w"),
		G.WithInit(G.ValuesOf(w0)))

	pred := G.Must(G.Mul(x, w))
	loss := G.Must(G.Mean(G.Must(G.Square(G.Must(G.Sub(pred, y))))))
	if _, err := G.Grad(loss, w); err != nil {
		t.Fatal(err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(w))
	return &regression{g: g, w: w, loss: loss, vm: vm}
}

// backward runs the forward and backward pass of the regression
func (r *regression) backward(t *testing.T) float64 {
	t.Helper()

	if err := r.vm.RunAll(); err != nil {
		t.Fatal(err)
	}
	loss := r.loss.Value().Data().(float64)
	r.vm.Reset()
	return loss
}

func (r *regression) weight() float64 {
	return r.w.Value().Data().([]float64)[0]
}

// The gradient of the regression loss at w is 5w - 10
func regressionGrad(w float64) float64 {
	return 5*w - 10
}

func TestVanillaStep(t *testing.T) {
	s, err := NewVanilla(0.1, 1, -1)
	if err != nil {
		t.Fatal(err)
	}
	r := newRegression(t, 0)
	defer r.vm.Close()

	opt, err := NewOptimizer(s, G.Nodes{r.w})
	if err != nil {
		t.Fatal(err)
	}

	opt.ZeroGrad()
	r.backward(t)
	if err := opt.Accumulate(); err != nil {
		t.Fatal(err)
	}
	if err := opt.Step(); err != nil {
		t.Fatal(err)
	}

	want := 0 - 0.1*regressionGrad(0)
	if have := r.weight(); math.Abs(have-want) > 1e-12 {
		t.Errorf("weight: want(%v) have(%v)", want, have)
	}
}

func TestAccumulate(t *testing.T) {
	s, err := NewVanilla(0.01, 1, -1)
	if err != nil {
		t.Fatal(err)
	}
	r := newRegression(t, 1)
	defer r.vm.Close()

	opt, err := NewOptimizer(s, G.Nodes{r.w})
	if err != nil {
		t.Fatal(err)
	}

	opt.ZeroGrad()
	for i := 0; i < 3; i++ {
		r.backward(t)
		if err := opt.Accumulate(); err != nil {
			t.Fatal(err)
		}
	}
	if opt.Pending() != 3 {
		t.Errorf("pending: want(3) have(%v)", opt.Pending())
	}

	// The weight has not moved, so each pass has the same gradient
	want := 3 * math.Abs(regressionGrad(1))
	if have := opt.GradNorm(); math.Abs(have-want) > 1e-12 {
		t.Errorf("grad norm: want(%v) have(%v)", want, have)
	}

	norm, err := opt.ClipGradNorm(1.0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(norm-want) > 1e-12 {
		t.Errorf("clip: want pre-clip norm %v have %v", want, norm)
	}
	if have := opt.GradNorm(); have > 1.0 {
		t.Errorf("clip: norm %v exceeds maximum", have)
	}

	if err := opt.Step(); err != nil {
		t.Fatal(err)
	}
	if opt.Pending() != 0 {
		t.Errorf("pending: want(0) have(%v)", opt.Pending())
	}
	if err := opt.Step(); err == nil {
		t.Error("step: expected error with no accumulated gradients")
	}
}

func TestAdamReducesLoss(t *testing.T) {
	s, err := NewDefaultAdam(0.1, 1)
	if err != nil {
		t.Fatal(err)
	}
	r := newRegression(t, 0)
	defer r.vm.Close()

	opt, err := NewOptimizer(s, G.Nodes{r.w})
	if err != nil {
		t.Fatal(err)
	}

	first := r.backward(t)
	var last float64
	for i := 0; i < 50; i++ {
		last = r.backward(t)
		if err := opt.Accumulate(); err != nil {
			t.Fatal(err)
		}
		if err := opt.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if last >= first {
		t.Errorf("adam: loss did not decrease: %v >= %v", last, first)
	}
	if opt.State().T != 50 {
		t.Errorf("state: want(50 steps) have(%v)", opt.State().T)
	}
}

func TestAdamState(t *testing.T) {
	newOpt := func(r *regression) *Optimizer {
		s, err := NewDefaultAdam(0.05, 1)
		if err != nil {
			t.Fatal(err)
		}
		opt, err := NewOptimizer(s, G.Nodes{r.w})
		if err != nil {
			t.Fatal(err)
		}
		return opt
	}
	step := func(r *regression, opt *Optimizer) {
		r.backward(t)
		if err := opt.Accumulate(); err != nil {
			t.Fatal(err)
		}
		if err := opt.Step(); err != nil {
			t.Fatal(err)
		}
	}

	a, b := newRegression(t, 0), newRegression(t, 0)
	defer a.vm.Close()
	defer b.vm.Close()
	optA, optB := newOpt(a), newOpt(b)

	for i := 0; i < 3; i++ {
		step(a, optA)
		step(b, optB)
	}

	// Restoring the state into a fresh solver continues identically
	c := newRegression(t, b.weight())
	defer c.vm.Close()
	optC := newOpt(c)
	if err := optC.SetState(optB.State()); err != nil {
		t.Fatal(err)
	}

	step(a, optA)
	step(c, optC)
	if a.weight() != c.weight() {
		t.Errorf("setState: weights diverged: %v != %v", a.weight(),
			c.weight())
	}
}

func TestSolverJSON(t *testing.T) {
	data := []byte(`{"Type": "Adam", "Config": {"StepSize": 0.001, ` +
		`"Epsilon": 1e-8, "Beta1": 0.9, "Beta2": 0.999, "Batch": 1}}`)

	var s Solver
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatal(err)
	}
	if s.Type != Adam || s.Stepper == nil {
		t.Fatalf("unmarshal: unexpected solver %v", s)
	}

	out, err := json.Marshal(&s)
	if err != nil {
		t.Fatal(err)
	}
	var again Solver
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatal(err)
	}
	if again.Config != s.Config {
		t.Errorf("marshal: config changed from %v to %v", s.Config,
			again.Config)
	}

	bad := []byte(`{"Type": "Adam", "Config": {"StepSize": -1}}`)
	if err := json.Unmarshal(bad, &s); err == nil {
		t.Error("unmarshal: expected error for invalid config")
	}
}
