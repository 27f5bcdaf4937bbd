// Package trainer implements an offline trainer which fits the twin
// critic of an agent with implicit Q-learning and its policy with
// advantage weighted regression, alternating between the two from a
// fixed replay buffer of transitions.
package trainer

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/samuelfneumann/offlinerl/accelerator"
	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/expreplay"
	"github.com/samuelfneumann/offlinerl/solver"
	"github.com/samuelfneumann/offlinerl/timestep"
	"github.com/samuelfneumann/offlinerl/utils/progressbar"
)

const progressBarWidth = 40

// Trainer trains an agent offline. Each call to Update runs a number of
// critic epochs followed by a number of actor epochs. In each epoch,
// gradients are accumulated over several micro-batches sampled from a
// replay buffer before a single clipped optimizer step is taken. The
// target critic is soft updated after each critic epoch.
//
// A Trainer adds its loss graphs to the graphs of the agent's critic
// and policy, so at most one Trainer should be created per agent.
type Trainer struct {
	agent  agent.Agent
	config Config

	bufferBatch int
	actorBatch  int

	critic *criticLoss
	actor  *actorLoss

	step int

	logger   *log.Logger
	progress io.Writer
}

// Option configures optional behaviour of a Trainer
type Option func(*Trainer)

// WithLogger sets the logger the Trainer reports its progress to
func WithLogger(logger *log.Logger) Option {
	return func(t *Trainer) {
		t.logger = logger
	}
}

// WithProgressOutput sets where progress bars are displayed when the
// Trainer is verbose. By default, progress bars are written to
// os.Stderr.
func WithProgressOutput(w io.Writer) Option {
	return func(t *Trainer) {
		t.progress = w
	}
}

// New returns a new Trainer for the agent a which will be trained with
// replay buffers that sample micro-batches of bufferBatch transitions.
// The agent's critic must compute gradients over batches of
// bufferBatch and its policy over batches of
// config.ActorBatchSize(a.PolicyLM(), bufferBatch).
func New(a agent.Agent, bufferBatch int, config Config,
	opts ...Option) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if bufferBatch < 1 {
		return nil, fmt.Errorf("new: buffer batch size must be positive "+
			"but got %v", bufferBatch)
	}

	if b := a.CriticNet().BatchSize(); b != bufferBatch {
		return nil, fmt.Errorf("new: critic batch size %v does not match "+
			"buffer batch size %v", b, bufferBatch)
	}
	actorBatch := config.ActorBatchSize(a.PolicyLM(), bufferBatch)
	if b := a.Model().BatchSize(); b != actorBatch {
		return nil, fmt.Errorf("new: policy batch size %v does not match "+
			"actor batch size %v", b, actorBatch)
	}
	if n := config.SampleSize(bufferBatch); n%actorBatch != 0 {
		return nil, fmt.Errorf("new: %v samples per epoch cannot be split "+
			"into actor batches of %v", n, actorBatch)
	}

	// Solvers keep internal state, so each Trainer gets its own
	criticSolver, err := config.CriticSolver.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	policySolver, err := config.PolicySolver.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	critic, err := newCriticLoss(a, criticSolver, config.Gamma,
		config.Expectile)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	actor, err := newActorLoss(a.Model(), policySolver, config.InvTemp,
		config.MaxWeight)
	if err != nil {
		critic.Close()
		return nil, fmt.Errorf("new: %v", err)
	}

	t := &Trainer{
		agent:       a,
		config:      config,
		bufferBatch: bufferBatch,
		actorBatch:  actorBatch,
		critic:      critic,
		actor:       actor,
		progress:    os.Stderr,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Agent returns the agent being trained
func (t *Trainer) Agent() agent.Agent {
	return t.agent
}

// Config returns the configuration of the Trainer
func (t *Trainer) Config() Config {
	return t.config
}

// Step returns the number of calls to Update so far
func (t *Trainer) Step() int {
	return t.step
}

// CriticOptimizer returns the optimizer of the critic
func (t *Trainer) CriticOptimizer() *solver.Optimizer {
	return t.critic.opt
}

// PolicyOptimizer returns the optimizer of the policy
func (t *Trainer) PolicyOptimizer() *solver.Optimizer {
	return t.actor.opt
}

// Update runs the critic epochs and, if noUpdateActor is false, the
// actor epochs of a single update using transitions sampled from
// buffer. The mean diagnostics of each phase are returned merged into
// a single record.
//
// An error in any micro-batch aborts the update. Optimizer steps and
// target updates of epochs which completed before the error are kept.
func (t *Trainer) Update(buffer expreplay.ExperienceReplayer,
	noUpdateActor bool) (Info, error) {
	t.step++
	if b := buffer.BatchSize(); b != t.bufferBatch {
		return nil, fmt.Errorf("update: buffer batch size %v does not "+
			"match trainer batch size %v", b, t.bufferBatch)
	}

	info := make(Info)
	criticInfo, err := t.updateCritic(buffer)
	if err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}
	info.Update(criticInfo)

	if noUpdateActor {
		return info, nil
	}

	t.logf("update %d: updating actor", t.step)
	actorInfo, err := t.updateActor(buffer)
	if err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}
	info.Update(actorInfo)

	return info, nil
}

// updateCritic runs the critic epochs of an update
func (t *Trainer) updateCritic(buffer expreplay.ExperienceReplayer) (Info,
	error) {
	bar := t.progressBar("Critic Epochs", t.config.Epochs)
	defer t.closeBar(bar)

	var infos []Info
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		data, err := t.sample(buffer)
		if err != nil {
			return nil, fmt.Errorf("updateCritic: %v", err)
		}

		t.critic.opt.ZeroGrad()
		for _, batch := range timestep.Batches(data, t.bufferBatch) {
			info, err := t.critic.run(batch)
			if err != nil {
				return nil, fmt.Errorf("updateCritic: epoch %v: %v", epoch,
					err)
			}
			infos = append(infos, info)
		}

		norm, err := accelerator.ClipGradNorm(t.critic.opt,
			t.config.MaxGradNorm)
		if err != nil {
			return nil, fmt.Errorf("updateCritic: epoch %v: %v", epoch, err)
		}
		if err := t.critic.opt.Step(); err != nil {
			return nil, fmt.Errorf("updateCritic: epoch %v: %v", epoch, err)
		}
		if err := t.agent.SoftUpdateTargetCritic(t.config.Tau); err != nil {
			return nil, fmt.Errorf("updateCritic: epoch %v: %v", epoch, err)
		}

		t.logf("update %d: critic epoch %d: gradient norm %.4g", t.step,
			epoch, norm)
		t.incrementBar(bar)
	}

	return Mean(infos), nil
}

// updateActor runs the actor epochs of an update
func (t *Trainer) updateActor(buffer expreplay.ExperienceReplayer) (Info,
	error) {
	bar := t.progressBar("Actor Epochs", t.config.ActorEpochs)
	defer t.closeBar(bar)

	var infos []Info
	for epoch := 0; epoch < t.config.ActorEpochs; epoch++ {
		data, err := t.sample(buffer)
		if err != nil {
			return nil, fmt.Errorf("updateActor: %v", err)
		}

		t.actor.opt.ZeroGrad()
		for _, batch := range timestep.Batches(data, t.actorBatch) {
			// Actions and advantages are computed without gradients
			piAction, err := t.agent.GetAction(batch.Observation)
			if err != nil {
				return nil, fmt.Errorf("updateActor: epoch %v: %v", epoch,
					err)
			}
			values, err := t.agent.Critic(batch.Observation, piAction)
			if err != nil {
				return nil, fmt.Errorf("updateActor: epoch %v: %v", epoch,
					err)
			}
			adv, err := Advantages(values)
			if err != nil {
				return nil, fmt.Errorf("updateActor: epoch %v: %v", epoch,
					err)
			}

			info, err := t.actor.run(batch.Observation, piAction, adv)
			if err != nil {
				return nil, fmt.Errorf("updateActor: epoch %v: %v", epoch,
					err)
			}
			infos = append(infos, info)
		}

		norm, err := accelerator.ClipGradNorm(t.actor.opt,
			t.config.MaxGradNorm)
		if err != nil {
			return nil, fmt.Errorf("updateActor: epoch %v: %v", epoch, err)
		}
		if err := t.actor.opt.Step(); err != nil {
			return nil, fmt.Errorf("updateActor: epoch %v: %v", epoch, err)
		}

		t.logf("update %d: actor epoch %d: gradient norm %.4g", t.step,
			epoch, norm)
		t.incrementBar(bar)
	}

	return Mean(infos), nil
}

// sample draws the transitions of a single epoch from buffer. Each
// transition is an independent draw.
func (t *Trainer) sample(buffer expreplay.ExperienceReplayer) (
	[]timestep.Transition, error) {
	n := t.config.SampleSize(t.bufferBatch)
	data := make([]timestep.Transition, 0, n)
	for i := 0; i < n; i++ {
		ts, err := buffer.Sample(1)
		if err != nil {
			return nil, fmt.Errorf("sample: %v", err)
		}
		data = append(data, ts[0])
	}
	return data, nil
}

// Close cleans up the resources used by the Trainer
func (t *Trainer) Close() error {
	if err := t.critic.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	if err := t.actor.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	return nil
}

func (t *Trainer) logf(format string, v ...interface{}) {
	if t.logger != nil {
		t.logger.Printf(format, v...)
	}
}

// progressBar returns a new progress bar over epochs if the Trainer is
// verbose and nil otherwise
func (t *Trainer) progressBar(description string,
	epochs int) *progressbar.ManualProgressBar {
	if !t.config.Verbose || t.progress == nil {
		return nil
	}
	bar := progressbar.NewManualProgressBar(t.progress, description,
		progressBarWidth, epochs)
	bar.Display()
	return bar
}

func (t *Trainer) incrementBar(bar *progressbar.ManualProgressBar) {
	if bar != nil {
		bar.Increment()
		bar.Display()
	}
}

func (t *Trainer) closeBar(bar *progressbar.ManualProgressBar) {
	if bar != nil {
		bar.Close()
	}
}
