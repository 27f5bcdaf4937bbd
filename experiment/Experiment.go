// Package experiment implements functionality for running an offline
// training experiment
package experiment

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/dataset"
	"github.com/samuelfneumann/offlinerl/experiment/checkpointer"
	"github.com/samuelfneumann/offlinerl/experiment/tracker"
	"github.com/samuelfneumann/offlinerl/expreplay"
	"github.com/samuelfneumann/offlinerl/trainer"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments track the diagnostics of each update of an agent,
// caching them in RAM to be later saved to disk. The Save() function
// will then take all cached data and save it to disk. This is usually
// performed after an experiment has been run. The Run() method will
// run all updates until the update limit is reached. The
// RunIteration() function will run a single update.
//
// In order to save data, Experiments use Trackers. Trackers determine
// which diagnostics generated during the experiment are saved. New
// Trackers can be registered with an Experiment through the
// constructor or through an Experiment's Register() function.
type Experiment interface {
	Run() error
	RunIteration() (bool, error) // Returns whether the experiment ended

	// Tracks the diagnostics of an update by sending them to Trackers
	track(step int, info trainer.Info)

	// Save all tracked data to disk
	Save() error

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment. Useful if you want to track data only after a
	// specified event.
	Register(t tracker.Tracker)

	// Saves the current state of the trainer and agent
	checkpoint(step int) error
}

type Type string

const (
	OfflineExp Type = "OfflineExperiment"
)

// Config represents a configuration of an experiment
type Config struct {
	Type

	// Number of calls to the trainer's update
	Iterations int

	// The actor is updated every ActorUpdateInterval updates
	ActorUpdateInterval int

	// The trainer is checkpointed every CheckpointInterval updates, no
	// checkpoints are saved if CheckpointInterval <= 0
	CheckpointInterval int

	// JSON lines file of trajectories or transitions
	Dataset string

	ReplayConf  expreplay.Config
	AgentConf   agent.TypedConfig
	TrainerConf trainer.Config
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.Type != OfflineExp {
		return fmt.Errorf("validate: no such experiment type %v", c.Type)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("validate: iterations must be non-negative")
	}
	if c.ActorUpdateInterval < 1 {
		return fmt.Errorf("validate: actor update interval must be "+
			"positive but got %v", c.ActorUpdateInterval)
	}
	if c.Dataset == "" {
		return fmt.Errorf("validate: no dataset")
	}
	if c.AgentConf.Config == nil {
		return fmt.Errorf("validate: no agent configuration")
	}
	if err := c.ReplayConf.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if err := c.AgentConf.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if err := c.TrainerConf.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// CreateExp creates the experiment described by the Config. The
// dataset is loaded into a replay buffer seeded with seed, and the
// diagnostics of all updates and any checkpoints are saved in saveDir
// under the experiment's run ID. Additional Trackers may be passed in
// t.
func (c Config) CreateExp(seed uint64, saveDir string, logger *log.Logger,
	t ...tracker.Tracker) (Experiment, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}

	transitions, err := dataset.Load(c.Dataset, c.TrainerConf.Gamma)
	if err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}
	buffer, err := c.ReplayConf.Create(seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}
	if err := dataset.Fill(buffer, transitions); err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}

	batch := buffer.BatchSize()
	actorBatch := c.TrainerConf.ActorBatchSize(c.AgentConf.LM(), batch)
	a, err := c.AgentConf.CreateAgent(batch, actorBatch)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create agent: %v", err)
	}

	tr, err := trainer.New(a, batch, c.TrainerConf, trainer.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create trainer: %v", err)
	}

	id := uuid.NewString()
	trackers := append([]tracker.Tracker{
		tracker.NewInfo(filepath.Join(saveDir, "info-"+id+".bin")),
	}, t...)

	var check []checkpointer.Checkpointer
	if c.CheckpointInterval > 0 {
		filename := checkpointer.StepFilename(
			filepath.Join(saveDir, "checkpoint-"+id), ".bin")
		n, err := checkpointer.NewNStep(c.CheckpointInterval, tr, filename)
		if err != nil {
			return nil, fmt.Errorf("createExp: %v", err)
		}
		check = append(check, n)
	}

	switch c.Type {
	case OfflineExp:
		return NewOffline(id, tr, buffer, c.Iterations, c.ActorUpdateInterval,
			logger, trackers, check), nil
	}

	return nil, fmt.Errorf("createExp: no such experiment type %v", c.Type)
}
