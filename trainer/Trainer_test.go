package trainer

import (
	"bytes"
	"errors"
	"log"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samuelfneumann/offlinerl/agent/textagent"
	"github.com/samuelfneumann/offlinerl/expreplay"
	"github.com/samuelfneumann/offlinerl/initwfn"
	"github.com/samuelfneumann/offlinerl/network"
	"github.com/samuelfneumann/offlinerl/solver"
	"github.com/samuelfneumann/offlinerl/timestep"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
)

func agentConfig(t *testing.T, policyLM string) textagent.Config {
	t.Helper()

	init, err := initwfn.NewGlorotU(1.0, 11)
	if err != nil {
		t.Fatal(err)
	}
	return textagent.Config{
		PolicyLM:            policyLM,
		Actions:             []string{"look", "take key", "open door"},
		ObservationFeatures: 16,
		ActionFeatures:      8,
		PolicyHiddenSizes:   []int{8},
		PolicyBiases:        []bool{true},
		PolicyActivations:   []*network.Activation{network.TanH()},
		CriticHiddenSizes:   []int{8},
		CriticBiases:        []bool{true},
		CriticActivations:   []*network.Activation{network.TanH()},
		InitWFn:             init,
		Seed:                3,
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()

	config := DefaultConfig()
	config.GradAccumSteps = 2
	config.Epochs = 1
	config.ActorEpochs = 1
	config.Tau = 1.0
	config.MaxGradNorm = 1.0

	var err error
	if config.PolicySolver, err = solver.NewDefaultAdam(1e-2, 1); err != nil {
		t.Fatal(err)
	}
	return config
}

// newTestTrainer returns a Trainer of a new agent for buffers sampling
// batches of 2
func newTestTrainer(t *testing.T, config Config,
	opts ...Option) (*Trainer, *textagent.Agent) {
	t.Helper()

	ac := agentConfig(t, "gpt2")
	a, err := textagent.New(ac, 2, config.ActorBatchSize(ac.LM(), 2))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := New(a, 2, config, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return tr, a
}

// identicalBuffer returns a buffer holding four identical transitions
func identicalBuffer(t *testing.T) expreplay.ExperienceReplayer {
	t.Helper()

	buffer, err := expreplay.New(expreplay.NewUniformSelector(5), 2, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		tr := timestep.New("a locked room with a key", "take key", 1.0,
			"a locked room, holding a key", false, 1.0)
		if err := buffer.Add(tr); err != nil {
			t.Fatal(err)
		}
	}
	return buffer
}

func snapshot(t *testing.T, nodes G.Nodes) network.Params {
	t.Helper()

	p, err := network.Snapshot(nodes)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func equalParams(p1, p2 network.Params) bool {
	if len(p1.Data) != len(p2.Data) {
		return false
	}
	for i := range p1.Data {
		if !floats.Equal(p1.Data[i], p2.Data[i]) {
			return false
		}
	}
	return true
}

func TestCriticUpdateIdenticalTransitions(t *testing.T) {
	tr, a := newTestTrainer(t, testConfig(t))
	defer a.Close()
	defer tr.Close()

	buffer := identicalBuffer(t)
	policyBefore := snapshot(t, a.Model().Learnables())
	criticBefore := snapshot(t, a.CriticNet().Learnables())

	info, err := tr.Update(buffer, true)
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"q1.loss", "q2.loss", "v1.loss", "v2.loss"} {
		loss, ok := info[key]
		if !ok {
			t.Errorf("update: missing diagnostic %v", key)
			continue
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) || loss < 0 {
			t.Errorf("update: %v = %v should be finite and non-negative",
				key, loss)
		}
	}
	for _, head := range []string{"q1", "q2", "v1", "v2", "target_q1",
		"target_q2"} {
		for _, stat := range []string{"mean", "min", "max", "std"} {
			if _, ok := info[head+"."+stat]; !ok {
				t.Errorf("update: missing diagnostic %v.%v", head, stat)
			}
		}
	}
	if _, ok := info["pg.loss"]; ok {
		t.Error("update: actor diagnostics reported without actor update")
	}

	// Identical transitions give identical predictions
	if std := info["q1.std"]; std > 1e-12 {
		t.Errorf("update: q1 std want(0) have(%v)", std)
	}

	// With τ = 1 the target critic is a copy of the critic
	critic := snapshot(t, a.CriticNet().Learnables())
	target := snapshot(t, a.TargetCriticNet().Learnables())
	if !equalParams(critic, target) {
		t.Error("update: target critic differs from critic after τ = 1 " +
			"soft update")
	}
	if equalParams(critic, criticBefore) {
		t.Error("update: critic was not updated")
	}

	if !equalParams(policyBefore, snapshot(t, a.Model().Learnables())) {
		t.Error("update: policy changed without actor update")
	}
	if steps := tr.PolicyOptimizer().State().T; steps != 0 {
		t.Errorf("update: policy optimizer stepped %v times", steps)
	}
	if steps := tr.CriticOptimizer().State().T; steps != 1 {
		t.Errorf("update: critic optimizer want(1) steps have(%v)", steps)
	}
	if tr.Step() != 1 {
		t.Errorf("step: want(1) have(%v)", tr.Step())
	}
}

func TestActorUpdate(t *testing.T) {
	var logs bytes.Buffer
	tr, a := newTestTrainer(t, testConfig(t),
		WithLogger(log.New(&logs, "", 0)))
	defer a.Close()
	defer tr.Close()

	buffer := identicalBuffer(t)
	policyBefore := snapshot(t, a.Model().Learnables())

	info, err := tr.Update(buffer, false)
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"pg.loss", "advantages.mean",
		"advantages.max", "advantages.min", "advantages.std", "factor.mean",
		"factor.max", "factor.min", "q1.loss"} {
		value, ok := info[key]
		if !ok {
			t.Errorf("update: missing diagnostic %v", key)
		} else if math.IsNaN(value) || math.IsInf(value, 0) {
			t.Errorf("update: %v = %v should be finite", key, value)
		}
	}
	if info["factor.min"] <= 0 {
		t.Errorf("update: advantage weights must be positive, have min %v",
			info["factor.min"])
	}

	if equalParams(policyBefore, snapshot(t, a.Model().Learnables())) {
		t.Error("update: policy not updated")
	}
	if steps := tr.PolicyOptimizer().State().T; steps != 1 {
		t.Errorf("update: policy optimizer want(1) steps have(%v)", steps)
	}
	if !strings.Contains(logs.String(), "updating actor") {
		t.Errorf("update: actor update not logged:\n%v", logs.String())
	}
}

func TestUpdateBufferMismatch(t *testing.T) {
	tr, a := newTestTrainer(t, testConfig(t))
	defer a.Close()
	defer tr.Close()

	buffer, err := expreplay.New(expreplay.NewUniformSelector(1), 3, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Update(buffer, true); err == nil {
		t.Error("update: expected error for buffer batch size mismatch")
	}

	empty, err := expreplay.New(expreplay.NewUniformSelector(1), 2, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Update(empty, true); err == nil {
		t.Error("update: expected error for empty buffer")
	}
}

func TestNewBatchMismatch(t *testing.T) {
	config := testConfig(t)

	ac := agentConfig(t, "gpt2")
	a, err := textagent.New(ac, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if _, err := New(a, 2, config); err == nil {
		t.Error("new: expected error for critic batch size mismatch")
	}

	// Large policies train on batches of 2, which cannot split the 3
	// transitions sampled in each epoch
	config.GradAccumSteps = 1
	ac = agentConfig(t, "mistral-7b")
	large, err := textagent.New(ac, 3, config.ActorBatchSize(ac.LM(), 3))
	if err != nil {
		t.Fatal(err)
	}
	defer large.Close()
	if _, err := New(large, 3, config); err == nil {
		t.Error("new: expected error for indivisible actor batches")
	}
}

func TestSaveLoad(t *testing.T) {
	config := testConfig(t)
	tr, a := newTestTrainer(t, config)
	defer a.Close()
	defer tr.Close()

	if _, err := tr.Update(identicalBuffer(t), false); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "checkpoint.bin")
	if err := tr.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, b := newTestTrainer(t, config)
	defer b.Close()
	defer loaded.Close()

	if _, err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}

	for _, nets := range []struct {
		name   string
		n1, n2 G.Nodes
	}{
		{"policy", a.Model().Learnables(), b.Model().Learnables()},
		{"critic", a.CriticNet().Learnables(), b.CriticNet().Learnables()},
		{"target critic", a.TargetCriticNet().Learnables(),
			b.TargetCriticNet().Learnables()},
	} {
		if !equalParams(snapshot(t, nets.n1), snapshot(t, nets.n2)) {
			t.Errorf("load: %v weights not restored", nets.name)
		}
	}

	if loaded.Step() != tr.Step() {
		t.Errorf("load: step want(%v) have(%v)", tr.Step(), loaded.Step())
	}
	want, have := tr.CriticOptimizer().State(), loaded.CriticOptimizer().State()
	if want.T != have.T || !floats.Equal(want.Slots["m"][0],
		have.Slots["m"][0]) {
		t.Error("load: critic optimizer state not restored")
	}
	if tr.PolicyOptimizer().State().T != loaded.PolicyOptimizer().State().T {
		t.Error("load: policy optimizer state not restored")
	}
}

func TestLoadMismatch(t *testing.T) {
	config := testConfig(t)
	tr, a := newTestTrainer(t, config)
	defer a.Close()
	defer tr.Close()

	path := filepath.Join(t.TempDir(), "checkpoint.bin")
	err := tr.Save(path)
	if err != nil {
		t.Fatal(err)
	}

	// A critic with a different architecture cannot load the checkpoint
	ac := agentConfig(t, "gpt2")
	ac.CriticHiddenSizes = []int{4}
	if ac.InitWFn, err = initwfn.NewGlorotU(1.0, 12); err != nil {
		t.Fatal(err)
	}
	other, err := textagent.New(ac, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	otherTrainer, err := New(other, 2, config)
	if err != nil {
		t.Fatal(err)
	}
	defer otherTrainer.Close()

	policyBefore := snapshot(t, other.Model().Learnables())
	if _, err := otherTrainer.Load(path); err == nil {
		t.Error("load: expected error for mismatched critic")
	}
	if !equalParams(policyBefore, snapshot(t, other.Model().Learnables())) {
		t.Error("load: policy changed by failed load")
	}

	if _, err := tr.Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("load: expected error for missing checkpoint")
	}
}

func TestLoadRollback(t *testing.T) {
	tr, a := newTestTrainer(t, testConfig(t))
	defer a.Close()
	defer tr.Close()

	good, err := tr.checkpoint()
	if err != nil {
		t.Fatal(err)
	}

	// Restoring bad changes the policy, then fails on the critic
	bad := good
	bad.Policy = network.Params{
		Names:  good.Policy.Names,
		Shapes: good.Policy.Shapes,
	}
	for _, d := range good.Policy.Data {
		shifted := make([]float64, len(d))
		floats.AddConst(1, floats.AddTo(shifted, shifted, d))
		bad.Policy.Data = append(bad.Policy.Data, shifted)
	}
	bad.Critic = network.Params{}

	err = tr.restoreOrRollback(bad, good)
	if err == nil {
		t.Fatal("restoreOrRollback: expected error for missing critic")
	}
	if IsRollbackError(err) {
		t.Errorf("restoreOrRollback: rollback reported as failed: %v", err)
	}
	if !equalParams(good.Policy, snapshot(t, a.Model().Learnables())) {
		t.Error("restoreOrRollback: policy not rolled back")
	}

	// Both the checkpoint and the rollback fail
	err = tr.restoreOrRollback(bad, bad)
	if !IsRollbackError(err) {
		t.Fatalf("restoreOrRollback: want RollbackError have(%v)", err)
	}
	if !strings.Contains(err.Error(), "rollback failed") {
		t.Errorf("restoreOrRollback: rollback failure not reported: %v", err)
	}
	if errors.Unwrap(err) == nil {
		t.Error("restoreOrRollback: load error not wrapped")
	}
}

func TestCriticUpdateSingleMicroBatch(t *testing.T) {
	config := testConfig(t)
	config.GradAccumSteps = 1
	config.Gamma = 0.9

	ac := agentConfig(t, "gpt2")
	ac.Actions = []string{"a"}
	a, err := textagent.New(ac, 4, config.ActorBatchSize(ac.LM(), 4))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	tr, err := New(a, 4, config)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	buffer, err := expreplay.New(expreplay.NewUniformSelector(9), 4, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := buffer.Add(timestep.New("s", "a", 1.0, "s2", false,
			1.0)); err != nil {
			t.Fatal(err)
		}
	}

	policyBefore := snapshot(t, a.Model().Learnables())
	info, err := tr.Update(buffer, true)
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"q1.loss", "q2.loss", "v1.loss", "v2.loss"} {
		loss, ok := info[key]
		if !ok {
			t.Errorf("update: missing diagnostic %v", key)
			continue
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) || loss < 0 {
			t.Errorf("update: %v = %v should be finite and non-negative",
				key, loss)
		}
	}

	critic := snapshot(t, a.CriticNet().Learnables())
	target := snapshot(t, a.TargetCriticNet().Learnables())
	if !equalParams(critic, target) {
		t.Error("update: target critic differs from critic after τ = 1 " +
			"soft update")
	}
	if !equalParams(policyBefore, snapshot(t, a.Model().Learnables())) {
		t.Error("update: policy changed without actor update")
	}
	if steps := tr.PolicyOptimizer().State().T; steps != 0 {
		t.Errorf("update: policy optimizer stepped %v times", steps)
	}
}
