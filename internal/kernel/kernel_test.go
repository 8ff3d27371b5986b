package kernel

import (
	"math/rand"
	"testing"
)

// recordingAgent checks the callback-time invariant on every callback it
// receives and lets a test install hooks to drive further kernel calls (sendMessage/setWakeup) from inside
// a callback, the way a real agent would.
type recordingAgent struct {
	id     AgentID
	k      *Kernel
	onWake func(t SimTime)
	onMsg  func(t SimTime, payload any)
}

func (a *recordingAgent) KernelInitializing(k *Kernel) { a.k = k }
func (a *recordingAgent) KernelStarting(SimTime)        {}
func (a *recordingAgent) KernelStopping()               {}
func (a *recordingAgent) KernelTerminating()            {}
func (a *recordingAgent) Wakeup(t SimTime) {
	if a.k.AgentClock(a.id) != a.k.CurrentTime() || t != a.k.CurrentTime() {
		panic("invariant violated: callback time mismatch")
	}
	if a.onWake != nil {
		a.onWake(t)
	}
}
func (a *recordingAgent) ReceiveMessage(t SimTime, payload any) {
	if a.k.AgentClock(a.id) != a.k.CurrentTime() || t != a.k.CurrentTime() {
		panic("invariant violated: callback time mismatch")
	}
	if a.onMsg != nil {
		a.onMsg(t, payload)
	}
}

// TestEventOrderingByDeliverTime verifies the primary key of the
// (DeliverAt, Seq) ordering: wakeups inserted out of time order (a later
// time with an earlier seq) are still dispatched by time.
func TestEventOrderingByDeliverTime(t *testing.T) {
	var order []SimTime
	agentA := &recordingAgent{id: 0}
	agentA.onWake = func(tm SimTime) { order = append(order, tm) }

	k := New(Config{StartTime: 0, StopTime: 1000}, []Agent{agentA})
	agentA.k = k

	k.SetWakeup(0, 300)
	k.SetWakeup(0, 100)
	k.SetWakeup(0, 200)

	k.Run()

	want := []SimTime{100, 200, 300}
	if len(order) != len(want) {
		t.Fatalf("expected %d wakeups, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], order[i])
		}
	}
}

// TestBusyRequeue pins concrete scenario 4 from spec.md §8: an agent with
// a 1ms computation delay, woken at t=5000, with a second wakeup already
// scheduled for t=5001, is delivered that second wakeup at
// t=5000+1_000_000, not at 5001.
func TestBusyRequeue(t *testing.T) {
	var times []SimTime
	agentA := &recordingAgent{id: 0}
	agentA.onWake = func(tm SimTime) { times = append(times, tm) }

	k := New(Config{StartTime: 0, StopTime: 10_000_000}, []Agent{agentA})
	agentA.k = k
	k.SetComputationDelay(0, 1_000_000)

	k.SetWakeup(0, 5000)
	k.SetWakeup(0, 5001)

	k.Run()

	if len(times) != 2 {
		t.Fatalf("expected 2 wakeups, got %d: %v", len(times), times)
	}
	if times[0] != 5000 {
		t.Errorf("first wakeup: expected 5000, got %d", times[0])
	}
	if times[1] != 5000+1_000_000 {
		t.Errorf("second wakeup: expected %d, got %d", 5000+1_000_000, times[1])
	}
}

// TestLatencyNoiseTiebreak pins concrete scenario 5: two sends from A to B
// at the same currentTime, zero noise, equal latency, first with
// oneShotDelay=0 then oneShotDelay=10. B must observe them in send order,
// 10ns apart.
func TestLatencyNoiseTiebreak(t *testing.T) {
	var deliveries []SimTime
	agentB := &recordingAgent{id: 1}
	agentB.onMsg = func(tm SimTime, _ any) { deliveries = append(deliveries, tm) }
	agentA := &recordingAgent{id: 0}
	agentA.onWake = func(SimTime) {
		agentA.k.SendMessage(0, 1, "first", 0)
		agentA.k.SendMessage(0, 1, "second", 10)
	}

	k := New(Config{
		StartTime: 0, StopTime: 1_000_000,
		Noise: ZeroNoise{}, RNG: rand.New(rand.NewSource(1)),
	}, []Agent{agentA, agentB})
	agentA.k = k
	agentB.k = k
	k.SetLatency(0, 1, 100)

	k.SetWakeup(0, 0)
	k.Run()

	if len(deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries))
	}
	if deliveries[1]-deliveries[0] != 10 {
		t.Errorf("expected 10ns gap, got %d", deliveries[1]-deliveries[0])
	}
}

func TestSetWakeupRejectsTimeInPast(t *testing.T) {
	agentA := &recordingAgent{id: 0}
	k := New(Config{StartTime: 100, StopTime: 1000}, []Agent{agentA})
	agentA.k = k
	k.currentTime = 100
	if err := k.SetWakeup(0, 50); err != ErrTimeInPast {
		t.Errorf("expected ErrTimeInPast, got %v", err)
	}
}

func TestMonotonicCurrentTime(t *testing.T) {
	agentA := &recordingAgent{id: 0}
	var seen []SimTime
	agentA.onWake = func(tm SimTime) { seen = append(seen, tm) }
	k := New(Config{StartTime: 0, StopTime: 1000}, []Agent{agentA})
	agentA.k = k
	k.SetWakeup(0, 10)
	k.SetWakeup(0, 5)
	k.SetWakeup(0, 20)
	k.Run()

	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("currentTime went backwards: %v", seen)
		}
	}
}

func TestWeightedNoiseDegenerate(t *testing.T) {
	d := NewWeightedNoise([]int64{42}, []float64{1.0})
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		if got := d.Sample(rng); got != 42 {
			t.Errorf("expected 42, got %d", got)
		}
	}
}

func TestWeightedNoiseRespectsWeights(t *testing.T) {
	d := NewWeightedNoise([]int64{0, 1000}, []float64{0.9, 0.1})
	rng := rand.New(rand.NewSource(2))
	var highCount int
	const n = 2000
	for i := 0; i < n; i++ {
		if d.Sample(rng) == 1000 {
			highCount++
		}
	}
	frac := float64(highCount) / n
	if frac < 0.05 || frac > 0.16 {
		t.Errorf("expected ~10%% draws of 1000, got %.3f", frac)
	}
}
