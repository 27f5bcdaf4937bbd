package timestep

// Batch stores a micro-batch of Transitions column-wise so that each
// field can be fed to a computational graph directly. Element i of
// every column belongs to the same Transition.
type Batch struct {
	Observation     []string
	Action          []string
	Reward          []float64
	NextObservation []string
	Done            []float64 // 1.0 if the episode ended, else 0.0
	MCReturn        []float64
}

// NewBatch aligns the fields of the argument Transitions by name
func NewBatch(transitions []Transition) Batch {
	n := len(transitions)
	b := Batch{
		Observation:     make([]string, n),
		Action:          make([]string, n),
		Reward:          make([]float64, n),
		NextObservation: make([]string, n),
		Done:            make([]float64, n),
		MCReturn:        make([]float64, n),
	}

	for i, t := range transitions {
		b.Observation[i] = t.Observation
		b.Action[i] = t.Action
		b.Reward[i] = t.Reward
		b.NextObservation[i] = t.NextObservation
		b.Done[i] = t.DoneFloat()
		b.MCReturn[i] = t.MCReturn
	}
	return b
}

// Len returns the number of Transitions in the Batch
func (b Batch) Len() int {
	return len(b.Observation)
}

// Batches partitions transitions, in order, into Batches of size
// batchSize. The final Batch holds the remainder and may be smaller
// than batchSize. Nothing is shuffled.
func Batches(transitions []Transition, batchSize int) []Batch {
	if batchSize < 1 {
		panic("batches: batch size must be positive")
	}

	batches := make([]Batch, 0, (len(transitions)+batchSize-1)/batchSize)
	for start := 0; start < len(transitions); start += batchSize {
		end := start + batchSize
		if end > len(transitions) {
			end = len(transitions)
		}
		batches = append(batches, NewBatch(transitions[start:end]))
	}
	return batches
}
