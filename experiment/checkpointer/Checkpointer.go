// Package checkpointer implements saving the state of training at
// regular intervals during an experiment
package checkpointer

import "fmt"

// Serializable is an object that can save itself to a file
type Serializable interface {
	Save(filename string) error
}

// Checkpointer checkpoints/saves serializable objects based on the
// number of updates performed in an experiment
type Checkpointer interface {
	Checkpoint(step int) error
}

// StepFilename returns a function which returns filenames with the
// update step as a suffix, e.g. filename-10.bin for step 10. The
// filename parameter is the full filename with its path.
func StepFilename(filename, extension string) func(step int) string {
	return func(step int) string {
		return fmt.Sprintf("%v-%v%v", filename, step, extension)
	}
}

// FilenameEnumerator returns a function which will return filenames
// with a counter integer suffix. Each time the returned function is
// called, the filename counter suffix will be one higher than on the
// previous call, regardless of the step.
func FilenameEnumerator(start int, filename,
	extension string) func(step int) string {
	i := start
	return func(int) string {
		i++
		return fmt.Sprintf("%v%v%v", filename, i, extension)
	}
}

// Latest returns a function which always returns the same filename,
// so that only the most recent checkpoint is kept
func Latest(filename string) func(step int) string {
	return func(int) string {
		return filename
	}
}
