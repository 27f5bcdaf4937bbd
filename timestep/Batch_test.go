package timestep

import "testing"

func TestBatches(t *testing.T) {
	transitions := make([]Transition, 7)
	for i := range transitions {
		transitions[i] = New("s", "a", float64(i), "s'", i%2 == 0, 0)
	}

	batches := Batches(transitions, 3)
	if len(batches) != 3 {
		t.Fatalf("batches: want(3) have(%v)", len(batches))
	}

	sizes := []int{3, 3, 1}
	for i, b := range batches {
		if b.Len() != sizes[i] {
			t.Errorf("batch %v: size want(%v) have(%v)", i, sizes[i], b.Len())
		}
	}

	// Order must be preserved
	if batches[1].Reward[0] != 3 || batches[2].Reward[0] != 6 {
		t.Errorf("batches: order not preserved: %v, %v", batches[1].Reward,
			batches[2].Reward)
	}

	// Done is coerced to {0, 1}
	if batches[0].Done[0] != 1 || batches[0].Done[1] != 0 {
		t.Errorf("batches: invalid done flags %v", batches[0].Done)
	}
}

func TestBatchesEmpty(t *testing.T) {
	if b := Batches(nil, 4); len(b) != 0 {
		t.Errorf("batches: want no batches have(%v)", len(b))
	}
}
