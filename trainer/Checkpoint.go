package trainer

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/network"
	"github.com/samuelfneumann/offlinerl/solver"
)

// checkpoint is the saved state of a Trainer and its agent
type checkpoint struct {
	Step int

	Policy       network.Params
	Critic       network.Params
	TargetCritic network.Params

	CriticOptimizer solver.State
	PolicyOptimizer solver.State
}

// Save saves the weights of the agent's policy, critic, and target
// critic along with the states of both optimizers to path. The file at
// path is replaced atomically.
func (t *Trainer) Save(path string) error {
	c, err := t.checkpoint()
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}
	tmp := f.Name()

	enc := gob.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("save: could not encode checkpoint: %v", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save: %v", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Load restores the weights of the agent's policy, critic, and target
// critic and the states of both optimizers from a checkpoint saved at
// path, then returns the agent. If the checkpoint does not match the
// agent, an error is returned and nothing is restored.
func (t *Trainer) Load(path string) (agent.Agent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	defer f.Close()

	var c checkpoint
	dec := gob.NewDecoder(f)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("load: could not decode checkpoint: %v", err)
	}

	for name, params := range map[string]network.Params{
		"policy":        c.Policy,
		"critic":        c.Critic,
		"target critic": c.TargetCritic,
	} {
		if len(params.Data) == 0 {
			return nil, fmt.Errorf("load: checkpoint has no %v weights", name)
		}
	}

	backup, err := t.checkpoint()
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	if err := t.restoreOrRollback(c, backup); err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	return t.agent, nil
}

// restoreOrRollback restores c and, if that fails, rolls back whatever
// was restored before the failure by restoring backup
func (t *Trainer) restoreOrRollback(c, backup checkpoint) error {
	err := t.restore(c)
	if err == nil {
		return nil
	}
	if rollbackErr := t.restore(backup); rollbackErr != nil {
		return &RollbackError{Err: err, RollbackErr: rollbackErr}
	}
	return err
}

// RollbackError is returned when a checkpoint could not be loaded and
// the trainer could not be rolled back to its state before loading. The
// agent and optimizers may then be partially restored.
type RollbackError struct {
	Err         error // Why the checkpoint could not be loaded
	RollbackErr error // Why the rollback failed
}

func (r *RollbackError) Error() string {
	return fmt.Sprintf("%v: rollback failed: %v", r.Err, r.RollbackErr)
}

func (r *RollbackError) Unwrap() error {
	return r.Err
}

// IsRollbackError returns whether err is or wraps a *RollbackError
func IsRollbackError(err error) bool {
	var r *RollbackError
	return errors.As(err, &r)
}

// checkpoint returns a copy of the current state of the Trainer
func (t *Trainer) checkpoint() (checkpoint, error) {
	policy, err := network.Snapshot(t.agent.Model().Learnables())
	if err != nil {
		return checkpoint{}, fmt.Errorf("policy: %v", err)
	}
	critic, err := network.Snapshot(t.agent.CriticNet().Learnables())
	if err != nil {
		return checkpoint{}, fmt.Errorf("critic: %v", err)
	}
	target, err := network.Snapshot(t.agent.TargetCriticNet().Learnables())
	if err != nil {
		return checkpoint{}, fmt.Errorf("target critic: %v", err)
	}

	return checkpoint{
		Step:            t.step,
		Policy:          policy,
		Critic:          critic,
		TargetCritic:    target,
		CriticOptimizer: t.critic.opt.State(),
		PolicyOptimizer: t.actor.opt.State(),
	}, nil
}

// restore sets the state of the Trainer to c
func (t *Trainer) restore(c checkpoint) error {
	if err := network.Restore(t.agent.Model().Learnables(),
		c.Policy); err != nil {
		return fmt.Errorf("policy: %v", err)
	}
	if err := network.Restore(t.agent.CriticNet().Learnables(),
		c.Critic); err != nil {
		return fmt.Errorf("critic: %v", err)
	}
	if err := network.Restore(t.agent.TargetCriticNet().Learnables(),
		c.TargetCritic); err != nil {
		return fmt.Errorf("target critic: %v", err)
	}

	if err := t.critic.opt.SetState(c.CriticOptimizer); err != nil {
		return fmt.Errorf("critic optimizer: %v", err)
	}
	if err := t.actor.opt.SetState(c.PolicyOptimizer); err != nil {
		return fmt.Errorf("policy optimizer: %v", err)
	}

	t.step = c.Step
	return nil
}
