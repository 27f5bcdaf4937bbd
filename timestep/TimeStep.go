// Package timestep implements the transitions of a previously collected
// text interaction dataset and the micro-batches built from them
package timestep

import (
	"fmt"
)

// Transition packages together a single step of a text interaction:
// the observation the policy saw, the action (utterance) it emitted,
// the reward it received, the resulting observation, whether the
// episode ended, and the Monte-Carlo return from this step onwards.
//
// Transitions are immutable once added to a replay buffer.
type Transition struct {
	Observation     string  `json:"observation"`
	Action          string  `json:"action"`
	Reward          float64 `json:"reward"`
	NextObservation string  `json:"next_observation"`
	Done            bool    `json:"done"`
	MCReturn        float64 `json:"mc_return"`
}

// New returns a new Transition
func New(obs, action string, reward float64, nextObs string, done bool,
	mcReturn float64) Transition {
	return Transition{
		Observation:     obs,
		Action:          action,
		Reward:          reward,
		NextObservation: nextObs,
		Done:            done,
		MCReturn:        mcReturn,
	}
}

// DoneFloat returns the done flag as 1.0 or 0.0
func (t Transition) DoneFloat() float64 {
	if t.Done {
		return 1.0
	}
	return 0.0
}

func (t Transition) String() string {
	str := "Transition | Obs: %q  |  Action: %q  |  Reward: %.2f  |  " +
		"Done: %v  |  Return: %.2f"

	return fmt.Sprintf(str, t.Observation, t.Action, t.Reward, t.Done,
		t.MCReturn)
}
