// Package expreplay implements an experience replay buffer over text
// transitions
package expreplay

import (
	"fmt"
	"sync"

	"github.com/samuelfneumann/offlinerl/timestep"
)

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	SampleMethod SelectorType

	// BatchSize is the default micro-batch size that learners should
	// use when batching samples drawn from the buffer
	BatchSize   int
	MinCapacity int
	MaxCapacity int
}

// Validate returns an error describing whether or not the Config is
// valid
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be >= 1")
	}
	if c.MinCapacity <= 0 {
		return fmt.Errorf("validate: minCapacity must be > 0")
	}
	if c.MaxCapacity < c.MinCapacity {
		return fmt.Errorf("validate: maxCapacity (%v) < minCapacity (%v)",
			c.MaxCapacity, c.MinCapacity)
	}
	return nil
}

// Create creates and returns the ExperienceReplayer with the specified
// Config.
func (c Config) Create(seed uint64) (ExperienceReplayer, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	sampler, err := CreateSelector(c.SampleMethod, seed)
	if err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}
	return New(sampler, c.BatchSize, c.MinCapacity, c.MaxCapacity)
}

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer
	Add(t timestep.Transition) error

	// Sample draws n transitions from the buffer. Whether the draws
	// are made with replacement is determined by the buffer's
	// Selector.
	Sample(n int) ([]timestep.Transition, error)

	// BatchSize returns the configured micro-batch size
	BatchSize() int

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int
}

// cache implements a concrete ExperienceReplayer. Elements are
// removed in a FiFo manner, one at a time, once the cache is full.
type cache struct {
	mu          sync.RWMutex // Guards the following fields
	transitions []timestep.Transition

	currentInUsePos int
	isFull          bool

	sampler Selector

	batchSize   int
	minCapacity int
	maxCapacity int
}

// New creates and returns a new ExperienceReplayer. The sampler
// determines which stored transitions are returned by Sample().
func New(sampler Selector, batchSize, minCapacity,
	maxCapacity int) (ExperienceReplayer, error) {
	if minCapacity <= 0 {
		return &cache{}, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return &cache{}, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if batchSize < 1 {
		return &cache{}, fmt.Errorf("new: batch size must be >= 1")
	}

	return &cache{
		transitions: make([]timestep.Transition, maxCapacity),
		sampler:     sampler,
		batchSize:   batchSize,
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
	}, nil
}

// BatchSize returns the configured micro-batch size
func (c *cache) BatchSize() int {
	return c.batchSize
}

// Capacity returns the current number of elements in the cache that
// are available for sampling
func (c *cache) Capacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capacity()
}

func (c *cache) capacity() int {
	if c.isFull {
		return c.maxCapacity
	}
	return c.currentInUsePos
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the cache
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// cache before sampling is allowed
func (c *cache) MinCapacity() int {
	return c.minCapacity
}

// insertOrder returns the indices of the first n data inserted into
// the cache that are still in the cache, oldest first
func (c *cache) insertOrder(n int) []int {
	size := c.capacity()
	if n < size {
		size = n
	}

	start := 0
	if c.isFull {
		start = c.currentInUsePos
	}

	order := make([]int, size)
	for i := range order {
		order[i] = (start + i) % c.maxCapacity
	}
	return order
}

// Add adds a transition to the cache, overwriting the oldest
// transition if the cache is full
func (c *cache) Add(t timestep.Transition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := c.currentInUsePos
	c.transitions[index] = t

	if !c.isFull && index+1 == c.maxCapacity {
		c.isFull = true
	}
	c.currentInUsePos = (c.currentInUsePos + 1) % c.maxCapacity
	return nil
}

// Sample draws n transitions from the cache
func (c *cache) Sample(n int) ([]timestep.Transition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.capacity() == 0 {
		return nil, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	} else if c.capacity() < c.minCapacity {
		return nil, &ExpReplayError{Op: "sample", Err: errInsufficientSamples}
	}
	if n < 1 {
		return nil, fmt.Errorf("sample: cannot sample %v transitions", n)
	}

	indices := c.sampler.choose(c, n)
	batch := make([]timestep.Transition, len(indices))
	for i, index := range indices {
		batch[i] = c.transitions[index]
	}
	return batch, nil
}

// String returns the string representation of the cache
func (c *cache) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return fmt.Sprintf("Capacity: %v/%v | Batch Size: %v | Next Index: %v",
		c.capacity(), c.maxCapacity, c.batchSize, c.currentInUsePos)
}
