package latency

import (
	"math/rand"
	"testing"
)

func TestUniformJitterDeterminism(t *testing.T) {
	j := UniformJitter{MaxNs: MsToNs(2)}
	r1 := rand.New(rand.NewSource(42))
	r2 := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		a1 := j.Sample(r1)
		a2 := j.Sample(r2)
		if a1 != a2 {
			t.Fatalf("non-deterministic at iteration %d: %d != %d", i, a1, a2)
		}
	}
}

func TestUniformJitterZeroWhenMaxIsZero(t *testing.T) {
	j := UniformJitter{MaxNs: 0}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if got := j.Sample(r); got != 0 {
			t.Fatalf("expected 0 jitter with MaxNs=0, got %d", got)
		}
	}
}

func TestUniformJitterBounds(t *testing.T) {
	maxNs := MsToNs(3)
	j := UniformJitter{MaxNs: maxNs}
	r := rand.New(rand.NewSource(99))

	for i := 0; i < 10000; i++ {
		delay := j.Sample(r)
		if delay < 0 {
			t.Fatalf("delay %d < 0", delay)
		}
		if delay >= maxNs {
			t.Fatalf("delay %d >= max %d", delay, maxNs)
		}
	}
}

func TestMsToNs(t *testing.T) {
	if MsToNs(1) != 1_000_000 {
		t.Errorf("MsToNs(1) = %d, want 1000000", MsToNs(1))
	}
	if MsToNs(50) != 50_000_000 {
		t.Errorf("MsToNs(50) = %d, want 50000000", MsToNs(50))
	}
}
