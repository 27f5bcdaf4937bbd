package experiment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/agent/textagent"
	"github.com/samuelfneumann/offlinerl/experiment/tracker"
	"github.com/samuelfneumann/offlinerl/expreplay"
	"github.com/samuelfneumann/offlinerl/initwfn"
	"github.com/samuelfneumann/offlinerl/network"
	"github.com/samuelfneumann/offlinerl/trainer"
)

func writeDataset(t *testing.T) string {
	t.Helper()

	var b strings.Builder
	for i := 0; i < 4; i++ {
		fmt.Fprintf(&b, `[{"observation": "room %d", "action": "look", `+
			`"reward": 0, "next_observation": "hall %d", "done": false}, `+
			`{"observation": "hall %d", "action": "open door", "reward": 1, `+
			`"next_observation": "", "done": true}]`+"\n", i, i, i)
	}

	path := filepath.Join(t.TempDir(), "trajectories.jsonl")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) Config {
	t.Helper()

	init, err := initwfn.NewHeU(1.0, 4)
	if err != nil {
		t.Fatal(err)
	}
	agentConf := textagent.Config{
		PolicyLM:            "gpt2",
		Actions:             []string{"look", "open door"},
		ObservationFeatures: 8,
		ActionFeatures:      4,
		PolicyHiddenSizes:   []int{4},
		PolicyBiases:        []bool{true},
		PolicyActivations:   []*network.Activation{network.ReLU()},
		CriticHiddenSizes:   []int{4},
		CriticBiases:        []bool{true},
		CriticActivations:   []*network.Activation{network.ReLU()},
		InitWFn:             init,
		Seed:                2,
	}

	trainerConf := trainer.DefaultConfig()
	trainerConf.GradAccumSteps = 2
	trainerConf.Epochs = 1
	trainerConf.ActorEpochs = 1

	return Config{
		Type:                OfflineExp,
		Iterations:          4,
		ActorUpdateInterval: 2,
		CheckpointInterval:  2,
		Dataset:             writeDataset(t),
		ReplayConf: expreplay.Config{
			SampleMethod: expreplay.Uniform,
			BatchSize:    2,
			MinCapacity:  1,
			MaxCapacity:  100,
		},
		AgentConf:   agent.NewTypedConfig(agentConf),
		TrainerConf: trainerConf,
	}
}

func TestOffline(t *testing.T) {
	config := testConfig(t)
	saveDir := t.TempDir()

	var logs bytes.Buffer
	pg := tracker.NewDiagnostic("pg.loss",
		filepath.Join(saveDir, "pg.bin"))
	exp, err := config.CreateExp(1, saveDir, log.New(&logs, "", 0), pg)
	if err != nil {
		t.Fatal(err)
	}
	offline := exp.(*Offline)
	defer offline.Close()

	if err := exp.Run(); err != nil {
		t.Fatal(err)
	}
	if err := exp.Save(); err != nil {
		t.Fatal(err)
	}

	if step := offline.Trainer().Step(); step != config.Iterations {
		t.Errorf("run: want(%v) updates have(%v)", config.Iterations, step)
	}

	// The actor is only updated on every second update
	if steps := pg.Steps(); len(steps) != 2 || steps[0] != 2 ||
		steps[1] != 4 {
		t.Errorf("run: actor updated on %v", steps)
	}

	infos, err := tracker.LoadInfo(filepath.Join(saveDir,
		"info-"+offline.ID()+".bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != config.Iterations {
		t.Errorf("save: want(%v) records have(%v)", config.Iterations,
			len(infos))
	}

	for _, step := range []int{2, 4} {
		path := filepath.Join(saveDir, fmt.Sprintf("checkpoint-%v-%v.bin",
			offline.ID(), step))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("checkpoint: %v", err)
		}
	}

	if !strings.Contains(logs.String(), "update 4/4") {
		t.Errorf("run: final update not logged:\n%v", logs.String())
	}

	// Running a finished experiment does nothing
	if ended, err := exp.RunIteration(); !ended || err != nil {
		t.Errorf("runIteration: want(true, nil) have(%v, %v)", ended, err)
	}
}

func TestConfigJSON(t *testing.T) {
	config := testConfig(t)

	data, err := json.Marshal(config)
	if err != nil {
		t.Fatal(err)
	}

	var again Config
	if err := json.Unmarshal(data, &again); err != nil {
		t.Fatal(err)
	}
	if err := again.Validate(); err != nil {
		t.Fatal(err)
	}

	if again.AgentConf.LM() != "gpt2" {
		t.Errorf("unmarshal: policy LM want(gpt2) have(%v)",
			again.AgentConf.LM())
	}
	if again.TrainerConf.Expectile != config.TrainerConf.Expectile {
		t.Errorf("unmarshal: expectile want(%v) have(%v)",
			config.TrainerConf.Expectile, again.TrainerConf.Expectile)
	}
	if again.TrainerConf.CriticSolver.Type != config.TrainerConf.
		CriticSolver.Type {
		t.Errorf("unmarshal: critic solver want(%v) have(%v)",
			config.TrainerConf.CriticSolver.Type,
			again.TrainerConf.CriticSolver.Type)
	}
}

func TestConfigValidate(t *testing.T) {
	config := testConfig(t)
	config.ActorUpdateInterval = 0
	if err := config.Validate(); err == nil {
		t.Error("validate: expected error for zero actor update interval")
	}

	config = testConfig(t)
	config.Type = "OnlineExperiment"
	if _, err := config.CreateExp(1, t.TempDir(), nil); err == nil {
		t.Error("createExp: expected error for unknown experiment type")
	}

	config = testConfig(t)
	config.Dataset = filepath.Join(t.TempDir(), "missing.jsonl")
	if _, err := config.CreateExp(1, t.TempDir(), nil); err == nil {
		t.Error("createExp: expected error for missing dataset")
	}
}

func TestExampleConfig(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "examples", "textiql.json"))
	if err != nil {
		t.Fatal(err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		t.Fatal(err)
	}
	if err := config.Validate(); err != nil {
		t.Fatal(err)
	}

	if config.TrainerConf.GradAccumSteps != 8 {
		t.Errorf("unmarshal: gradient accumulation want(8) have(%v)",
			config.TrainerConf.GradAccumSteps)
	}
	if config.TrainerConf.ActorBatchSize(config.AgentConf.LM(),
		config.ReplayConf.BatchSize) != 8 {
		t.Error("actorBatchSize: gpt2 should use the buffer batch size")
	}
}
