package textagent

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/initwfn"
	"github.com/samuelfneumann/offlinerl/network"
	"gonum.org/v1/gonum/floats"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	init, err := initwfn.NewGlorotU(1.0, 7)
	if err != nil {
		t.Fatal(err)
	}

	return Config{
		PolicyLM:            "gpt2",
		Actions:             []string{"go north", "go south", "open door"},
		ObservationFeatures: 16,
		ActionFeatures:      8,
		PolicyHiddenSizes:   []int{8},
		PolicyBiases:        []bool{true},
		PolicyActivations:   []*network.Activation{network.ReLU()},
		CriticHiddenSizes:   []int{8},
		CriticBiases:        []bool{true},
		CriticActivations:   []*network.Activation{network.TanH()},
		InitWFn:             init,
		Seed:                1,
	}
}

func newTestAgent(t *testing.T, criticBatch, actorBatch int) *Agent {
	t.Helper()

	a, err := New(testConfig(t), criticBatch, actorBatch)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestTargetStartsEqual(t *testing.T) {
	a := newTestAgent(t, 2, 2)
	defer a.Close()

	obs := []string{"a dark room", "a bright hall"}
	acts := []string{"go north", "open door"}

	live, err := a.Critic(obs, acts)
	if err != nil {
		t.Fatal(err)
	}
	target, err := a.TargetCritic(obs, acts)
	if err != nil {
		t.Fatal(err)
	}

	if !floats.Equal(live.Q1, target.Q1) || !floats.Equal(live.V2,
		target.V2) {
		t.Errorf("target critic differs from critic at creation")
	}
	if live.Len() != 2 {
		t.Errorf("critic: want(2) predictions have(%v)", live.Len())
	}
}

func TestSoftUpdate(t *testing.T) {
	a := newTestAgent(t, 1, 1)
	defer a.Close()

	// Move the target away from the critic
	targetLearnables := a.TargetCriticNet().Learnables()
	data, err := network.ValueData(targetLearnables[0].Value())
	if err != nil {
		t.Fatal(err)
	}
	data[0] += 1

	before, _ := network.Snapshot(targetLearnables)
	if err := a.SoftUpdateTargetCritic(0); err != nil {
		t.Fatal(err)
	}
	after, _ := network.Snapshot(targetLearnables)
	if !floats.Equal(before.Data[0], after.Data[0]) {
		t.Error("softUpdate(0): target changed")
	}

	if err := a.SoftUpdateTargetCritic(1); err != nil {
		t.Fatal(err)
	}
	live, _ := network.Snapshot(a.CriticNet().Learnables())
	target, _ := network.Snapshot(targetLearnables)
	for i := range live.Data {
		if !floats.Equal(live.Data[i], target.Data[i]) {
			t.Errorf("softUpdate(1): learnable %v not copied", i)
		}
	}
}

func TestGetAction(t *testing.T) {
	a := newTestAgent(t, 2, 2)
	defer a.Close()

	obs := []string{"room one", "room two", "room three"}
	actions, err := a.GetAction(obs)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != len(obs) {
		t.Fatalf("getAction: want(%v) have(%v)", len(obs), len(actions))
	}

	valid := map[string]bool{"go north": true, "go south": true,
		"open door": true}
	for _, act := range actions {
		if !valid[act] {
			t.Errorf("getAction: action %q not in vocabulary", act)
		}
	}

	probs, err := a.Policy().Probabilities(obs[:1])
	if err != nil {
		t.Fatal(err)
	}
	if sum := floats.Sum(probs); math.Abs(sum-1) > 1e-10 {
		t.Errorf("probabilities: sum to %v", sum)
	}
}

func TestLogProbOfUnknownAction(t *testing.T) {
	a := newTestAgent(t, 1, 1)
	defer a.Close()

	if _, err := a.Model().LogProbOf([]string{"room"},
		[]string{"dance"}); err == nil {
		t.Error("logProbOf: expected error for unknown action")
	}
	if _, err := a.Model().LogProbOf([]string{"room", "hall"},
		[]string{"go north", "go south"}); err == nil {
		t.Error("logProbOf: expected error for wrong batch size")
	}
}

func TestTypedConfigJSON(t *testing.T) {
	typed := agent.NewTypedConfig(testConfig(t))
	data, err := json.Marshal(typed)
	if err != nil {
		t.Fatal(err)
	}

	var again agent.TypedConfig
	if err := json.Unmarshal(data, &again); err != nil {
		t.Fatal(err)
	}
	if again.Type != TextIQLMLP {
		t.Errorf("type: want(%v) have(%v)", TextIQLMLP, again.Type)
	}

	config, ok := again.Config.(Config)
	if !ok {
		t.Fatalf("config: unexpected type %T", again.Config)
	}
	if err := config.Validate(); err != nil {
		t.Error(err)
	}
	if config.PolicyActivations[0].String() != "relu" {
		t.Errorf("activations: have(%v)", config.PolicyActivations)
	}

	// Agents from the same config start with the same weights
	a1, err := config.CreateAgent(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := config.CreateAgent(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	p1, _ := network.Snapshot(a1.Model().Learnables())
	p2, _ := network.Snapshot(a2.Model().Learnables())
	for i := range p1.Data {
		if !floats.Equal(p1.Data[i], p2.Data[i]) {
			t.Errorf("createAgent: learnable %v differs between agents", i)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	config := testConfig(t)
	config.CriticBiases = nil
	if err := config.Validate(); err == nil {
		t.Error("validate: expected error for missing biases")
	}

	config = testConfig(t)
	config.Actions = nil
	if err := config.Validate(); err == nil {
		t.Error("validate: expected error for no actions")
	}

	if _, err := New(testConfig(t), 0, 1); err == nil {
		t.Error("new: expected error for zero batch size")
	}
}
