package expreplay

import (
	"fmt"
	"testing"

	"github.com/samuelfneumann/offlinerl/timestep"
)

func transition(i int) timestep.Transition {
	obs := fmt.Sprintf("obs %d", i)
	return timestep.New(obs, "act", float64(i), obs+"'", false, 0)
}

func TestSampleErrors(t *testing.T) {
	replay, err := New(NewUniformSelector(1), 2, 3, 10)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := replay.Sample(1); !IsEmptyBuffer(err) {
		t.Errorf("sample: expected empty buffer error, have %v", err)
	}

	replay.Add(transition(0))
	if _, err := replay.Sample(1); !IsInsufficientSamples(err) {
		t.Errorf("sample: expected insufficient samples error, have %v", err)
	}

	replay.Add(transition(1))
	replay.Add(transition(2))
	if _, err := replay.Sample(1); err != nil {
		t.Errorf("sample: %v", err)
	}
}

func TestUniformWithReplacement(t *testing.T) {
	replay, err := New(NewUniformSelector(42), 1, 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	replay.Add(transition(7))

	// A single stored transition sampled many times must always be
	// returned, since draws are made with replacement
	samples, err := replay.Sample(16)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 16 {
		t.Fatalf("sample: want(16) have(%v)", len(samples))
	}
	for _, s := range samples {
		if s.Reward != 7 {
			t.Errorf("sample: unexpected transition %v", s)
		}
	}
}

func TestFifoOverwrite(t *testing.T) {
	replay, err := Config{
		SampleMethod: Fifo,
		BatchSize:    2,
		MinCapacity:  1,
		MaxCapacity:  3,
	}.Create(0)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		replay.Add(transition(i))
	}
	if replay.Capacity() != 3 {
		t.Errorf("capacity: want(3) have(%v)", replay.Capacity())
	}

	// Transitions 0 and 1 were overwritten
	samples, err := replay.Sample(3)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range samples {
		if s.Reward != float64(i+2) {
			t.Errorf("sample %v: want reward %v have %v", i, i+2, s.Reward)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		config Config
		valid  bool
	}{
		{Config{BatchSize: 4, MinCapacity: 1, MaxCapacity: 10}, true},
		{Config{BatchSize: 0, MinCapacity: 1, MaxCapacity: 10}, false},
		{Config{BatchSize: 4, MinCapacity: 0, MaxCapacity: 10}, false},
		{Config{BatchSize: 4, MinCapacity: 11, MaxCapacity: 10}, false},
	}

	for i, test := range tests {
		err := test.config.Validate()
		if (err == nil) != test.valid {
			t.Errorf("test %v: want valid=%v have err=%v", i, test.valid, err)
		}
	}
}

func BenchmarkSampleSingle(b *testing.B) {
	replay, _ := New(NewUniformSelector(1), 32, 1, 10_000)
	for i := 0; i < 10_000; i++ {
		replay.Add(transition(i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		replay.Sample(1)
	}
}
