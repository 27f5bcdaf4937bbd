// Package dataset implements reading previously collected text
// interaction data into transitions and filling replay buffers with
// them
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/samuelfneumann/offlinerl/expreplay"
	"github.com/samuelfneumann/offlinerl/timestep"
)

// Load reads the transitions of the JSON dataset file at path.
// See Read for the format of the file.
func Load(path string, gamma float64) ([]timestep.Transition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	defer f.Close()

	transitions, err := Read(f, gamma)
	if err != nil {
		return nil, fmt.Errorf("load: %s: %v", path, err)
	}
	return transitions, nil
}

// Read reads transitions from r, which holds a stream of JSON values.
// Each value is either a single transition object or an array of
// transitions forming a trajectory, and may span any number of lines.
// The Monte-Carlo returns of the transitions of a trajectory are
// computed with discount gamma, overwriting any returns in the data.
// Single transitions keep their returns.
func Read(r io.Reader, gamma float64) ([]timestep.Transition, error) {
	if gamma < 0 || gamma > 1 {
		return nil, fmt.Errorf("read: gamma must be in [0, 1] but got %v",
			gamma)
	}

	dec := json.NewDecoder(r)

	var transitions []timestep.Transition
	for value := 1; ; value++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read: value %v: %v", value, err)
		}

		data := bytes.TrimSpace(raw)
		if len(data) > 0 && data[0] == '[' {
			var trajectory []timestep.Transition
			if err := json.Unmarshal(data, &trajectory); err != nil {
				return nil, fmt.Errorf("read: value %v: %v", value, err)
			}
			SetReturns(trajectory, gamma)
			transitions = append(transitions, trajectory...)
			continue
		}

		var t timestep.Transition
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("read: value %v: %v", value, err)
		}
		transitions = append(transitions, t)
	}

	return transitions, nil
}

// SetReturns sets the Monte-Carlo return of each transition of a
// trajectory to the discounted sum of rewards from that transition to
// the end of the trajectory. The returns are also truncated at
// transitions which end an episode.
func SetReturns(trajectory []timestep.Transition, gamma float64) {
	rewards := make([]float64, len(trajectory))
	for i := range trajectory {
		rewards[i] = trajectory[i].Reward
	}

	// Episodes ending inside the trajectory start a new discounted sum
	start := 0
	for i := range trajectory {
		if trajectory[i].Done || i == len(trajectory)-1 {
			returns := DiscountCumSum(rewards[start:i+1], gamma)
			for j := range returns {
				trajectory[start+j].MCReturn = returns[j]
			}
			start = i + 1
		}
	}
}

// DiscountCumSum returns the discounted cumulative sums of x:
//
//	y[i] = Σⱼ γʲ x[i+j]
func DiscountCumSum(x []float64, discount float64) []float64 {
	sums := make([]float64, len(x))

	var next float64
	for i := len(x) - 1; i >= 0; i-- {
		next = x[i] + discount*next
		sums[i] = next
	}
	return sums
}

// Fill adds transitions to the replay buffer, in order
func Fill(buffer expreplay.ExperienceReplayer,
	transitions []timestep.Transition) error {
	for i, t := range transitions {
		if err := buffer.Add(t); err != nil {
			return fmt.Errorf("fill: transition %v: %v", i, err)
		}
	}
	return nil
}
