package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// SelectorType describes the available Selectors
type SelectorType string

const (
	Uniform SelectorType = "Uniform"
	Fifo    SelectorType = "Fifo"
)

// CreateSelector is a factory for creating Selectors of a given type.
// An empty SelectorType creates a Uniform Selector.
func CreateSelector(t SelectorType, seed uint64) (Selector, error) {
	switch t {
	case Uniform, "":
		return NewUniformSelector(seed), nil
	case Fifo:
		return NewFifoSelector(), nil
	}
	return nil, fmt.Errorf("createSelector: no such selector %v", t)
}

// Selector implements functionality for choosing which data should be
// sampled from an experience replay buffer
type Selector interface {
	// choose selects the indices at which data should be sampled from
	// the experience replay buffer. The caller holds the buffer's lock.
	choose(c *cache, n int) []int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly with replacement. Each of the
// selected indices is drawn independently, so a single call may
// return the same index more than once.
type uniformSelector struct {
	rng *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer
func NewUniformSelector(seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{rng: rng}
}

// choose selects n indices at which to draw data from the buffer
func (u *uniformSelector) choose(c *cache, n int) []int {
	selected := make([]int, n)
	capacity := c.capacity()

	for i := 0; i < n; i++ {
		selected[i] = u.rng.Intn(capacity)
	}
	return selected
}

// fifoSelector is a Selector which selects the oldest data in an
// experience replay buffer first. The data is not removed.
type fifoSelector struct{}

// NewFifoSelector returns a new Selector which draws data from an
// experience replay buffer in as FiFo.
func NewFifoSelector() Selector {
	return fifoSelector{}
}

// choose selects at most n indices at which to draw data from the
// buffer
func (f fifoSelector) choose(c *cache, n int) []int {
	return c.insertOrder(n)
}
