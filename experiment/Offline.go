package experiment

import (
	"fmt"
	"log"
	"strings"

	"github.com/samuelfneumann/offlinerl/experiment/checkpointer"
	"github.com/samuelfneumann/offlinerl/experiment/tracker"
	"github.com/samuelfneumann/offlinerl/expreplay"
	"github.com/samuelfneumann/offlinerl/trainer"
)

// Offline is an Experiment that trains an agent offline from a fixed
// replay buffer. No online interaction or evaluation is performed.
type Offline struct {
	id      string
	trainer *trainer.Trainer
	buffer  expreplay.ExperienceReplayer

	maxIterations       int
	currentIteration    int
	actorUpdateInterval int

	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	logger        *log.Logger
}

// NewOffline creates and returns a new offline experiment identified by
// id which trains with t on transitions sampled from buffer. The
// iterations parameter determines how many updates the experiment is
// run for, and the actor is updated on every actorUpdateInterval
// updates. Progress is logged to logger if it is not nil.
func NewOffline(id string, t *trainer.Trainer,
	buffer expreplay.ExperienceReplayer, iterations, actorUpdateInterval int,
	logger *log.Logger, trackers []tracker.Tracker,
	check []checkpointer.Checkpointer) *Offline {
	if actorUpdateInterval < 1 {
		actorUpdateInterval = 1
	}
	return &Offline{
		id:                  id,
		trainer:             t,
		buffer:              buffer,
		maxIterations:       iterations,
		actorUpdateInterval: actorUpdateInterval,
		trackers:            trackers,
		checkpointers:       check,
		logger:              logger,
	}
}

// ID returns the run ID of the experiment
func (o *Offline) ID() string {
	return o.id
}

// Trainer returns the trainer of the experiment
func (o *Offline) Trainer() *trainer.Trainer {
	return o.trainer
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Offline) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunIteration runs a single update of the experiment and returns
// whether the update limit has been reached
func (o *Offline) RunIteration() (bool, error) {
	if o.currentIteration >= o.maxIterations {
		return true, nil
	}
	o.currentIteration++

	noUpdateActor := o.currentIteration%o.actorUpdateInterval != 0
	info, err := o.trainer.Update(o.buffer, noUpdateActor)
	if err != nil {
		return false, fmt.Errorf("runIteration: %v", err)
	}

	o.track(o.currentIteration, info)
	o.log(info)

	if err := o.checkpoint(o.currentIteration); err != nil {
		return false, fmt.Errorf("runIteration: %v", err)
	}

	return o.currentIteration >= o.maxIterations, nil
}

// Run runs the entire experiment for all updates
func (o *Offline) Run() error {
	for ended := o.currentIteration >= o.maxIterations; !ended; {
		var err error
		if ended, err = o.RunIteration(); err != nil {
			return fmt.Errorf("run: %v", err)
		}
	}
	return nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Offline) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// Close cleans up the resources used by the experiment
func (o *Offline) Close() error {
	return o.trainer.Close()
}

// track tracks the diagnostics of an update by caching them in each
// tracker
func (o *Offline) track(step int, info trainer.Info) {
	for _, t := range o.trackers {
		t.Track(step, info)
	}
}

// checkpoint saves the trainer with each checkpointer
func (o *Offline) checkpoint(step int) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(step); err != nil {
			return err
		}
	}
	return nil
}

// log logs the losses of an update
func (o *Offline) log(info trainer.Info) {
	if o.logger == nil {
		return
	}

	var b strings.Builder
	for _, key := range info.Keys() {
		if strings.HasSuffix(key, ".loss") {
			fmt.Fprintf(&b, " | %v: %.4g", key, info[key])
		}
	}
	o.logger.Printf("run %v | update %d/%d%v", o.id, o.currentIteration,
		o.maxIterations, b.String())
}
