package checkpointer

import "fmt"

// nStep implements checkpointing every N updates
type nStep struct {
	interval int
	object   Serializable // Object to save

	// filename returns the filename to save the object in at a given
	// step.
	//
	// If each checkpoint should be saved in a separate file named by
	// its step (e.g. file-10.bin, file-20.bin, ...), use StepFilename.
	// If only the latest checkpoint should be kept, use Latest:
	//
	// n := NewNStep(10, trainer, Latest("checkpoint.bin"))
	filename func(step int) string
}

// NewNStep returns a checkpointer that checkpoints every n updates
func NewNStep(n int, object Serializable,
	filename func(step int) string) (Checkpointer, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStep: interval must be positive but "+
			"got %v", n)
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint checkpoints the Checkpointer's tracked object by calling
// its Save() method if step is a multiple of the interval
func (n *nStep) Checkpoint(step int) error {
	if step%n.interval == 0 {
		if err := n.object.Save(n.filename(step)); err != nil {
			return fmt.Errorf("checkpoint: step %v: %v", step, err)
		}
	}
	return nil
}
