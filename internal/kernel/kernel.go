// Package kernel implements the virtual-time discrete-event dispatcher: a
// priority queue of scheduled events, per-agent "busy until" clocks,
// asymmetric communication latency with stochastic noise, and the agent
// lifecycle (initializing/starting/running/stopping/terminating).
//
// The kernel never inspects message payloads. It only carries them between
// a sender and a recipient at a computed virtual-time delivery instant.
package kernel

import (
	"container/heap"
	"fmt"

	"go.uber.org/zap"
)

// AgentID is a dense, non-negative index assigned at registration time. It
// is the primary key into every per-agent array the kernel keeps (clocks,
// delays, latency rows).
type AgentID int

// Kind distinguishes the two kernel-level event flavors. Application-level
// message kinds live one layer up, inside the opaque Payload a Deliver
// event carries.
type Kind int8

const (
	Wakeup Kind = iota
	Deliver
)

func (k Kind) String() string {
	if k == Wakeup {
		return "WAKEUP"
	}
	return "DELIVER"
}

// Agent is the capability interface every kernel participant implements.
// The kernel dispatches to these methods; it never inspects concrete
// agent types (agents find each other through Registry's type-tag
// lookup instead).
type Agent interface {
	// KernelInitializing is called once, in registration order, before any
	// agent may message another.
	KernelInitializing(k *Kernel)
	// KernelStarting is called once all agents have initialized. Agents may
	// resolve peer AgentIDs and enqueue initial wakeups here.
	KernelStarting(startTime SimTime)
	// Wakeup handles a self-delivered timer event.
	Wakeup(t SimTime)
	// ReceiveMessage handles a Deliver event's opaque payload.
	ReceiveMessage(t SimTime, payload any)
	// KernelStopping is called once, after the run loop ends (queue empty
	// or the next event past StopTime), before KernelTerminating.
	KernelStopping()
	// KernelTerminating is called once, after KernelStopping, on every
	// agent in registration order.
	KernelTerminating()
}

// ScheduledEvent is one entry in the kernel's priority queue.
type ScheduledEvent struct {
	DeliverAt SimTime
	Seq       uint64
	Recipient AgentID
	Kind      Kind
	Payload   any
}

// eventHeap is a min-heap ordered by (DeliverAt, Seq) — the explicit,
// mandatory tie-break that makes replay with a seeded RNG deterministic.
type eventHeap []*ScheduledEvent

func (h eventHeap) Len() int      { return len(h) }
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h eventHeap) Less(i, j int) bool {
	if h[i].DeliverAt != h[j].DeliverAt {
		return h[i].DeliverAt < h[j].DeliverAt
	}
	return h[i].Seq < h[j].Seq
}
func (h *eventHeap) Push(x any) { *h = append(*h, x.(*ScheduledEvent)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// NoiseDistribution draws a non-negative nanosecond latency addend from
// the kernel's single RNG stream. Kept as an interface so tests can pin a
// degenerate (always-zero) distribution without touching the kernel.
type NoiseDistribution interface {
	Sample(rng RNG) int64
}

// RNG is the minimal random source the kernel and its noise distribution
// need; *rand.Rand satisfies it.
type RNG interface {
	Int63n(n int64) int64
	Float64() float64
}

// Kernel is the virtual-time event dispatcher.
type Kernel struct {
	queue eventHeap
	seq   uint64

	currentTime SimTime
	startTime   SimTime
	stopTime    SimTime

	agents   []Agent
	byID     map[AgentID]Agent
	registry *Registry

	agentClock           []SimTime
	agentComputationDelay []int64
	agentLatency          [][]int64 // [sender][recipient], ns
	currentAgentExtraDelay int64

	noise NoiseDistribution
	rng   RNG

	log *zap.Logger
}

// Config bundles the construction-time parameters of a kernel run.
type Config struct {
	StartTime SimTime
	StopTime  SimTime
	// DefaultComputationDelay is applied to every agent unless overridden
	// with SetComputationDelay after construction.
	DefaultComputationDelay int64
	// DefaultLatency is applied to every [i][j] pair unless overridden with
	// SetLatency.
	DefaultLatency int64
	Noise          NoiseDistribution
	RNG            RNG
	Logger         *zap.Logger
}

// New constructs a Kernel for the given set of agents, registered in the
// given order (agents do not hold owning references to each other; they
// hold AgentIDs resolved through the Registry).
func New(cfg Config, agents []Agent) *Kernel {
	n := len(agents)
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	k := &Kernel{
		startTime:             cfg.StartTime,
		stopTime:              cfg.StopTime,
		agents:                agents,
		byID:                  make(map[AgentID]Agent, n),
		registry:              NewRegistry(),
		agentClock:            make([]SimTime, n),
		agentComputationDelay: make([]int64, n),
		agentLatency:          make([][]int64, n),
		noise:                 cfg.Noise,
		rng:                   cfg.RNG,
		log:                   logger,
	}
	for i := range agents {
		k.byID[AgentID(i)] = agents[i]
		k.agentComputationDelay[i] = cfg.DefaultComputationDelay
		row := make([]int64, n)
		for j := range row {
			row[j] = cfg.DefaultLatency
		}
		k.agentLatency[i] = row
	}
	heap.Init(&k.queue)
	return k
}

// Registry returns the kernel's type-tag → AgentID registry, used to
// resolve peers without runtime type assertions.
func (k *Kernel) Registry() *Registry { return k.registry }

// CurrentTime returns the kernel's current virtual time.
func (k *Kernel) CurrentTime() SimTime { return k.currentTime }

// AgentClock returns the busy-until clock for the given agent.
func (k *Kernel) AgentClock(a AgentID) SimTime { return k.agentClock[a] }

// SetComputationDelay sets the persistent per-callback "thinking time" for
// an agent. Panics on a negative delay: this is a programmer error, not a
// recoverable condition (InvalidArgument, §7).
func (k *Kernel) SetComputationDelay(a AgentID, ns int64) {
	if ns < 0 {
		panic(fmt.Sprintf("kernel: negative computation delay %d for agent %d", ns, a))
	}
	k.agentComputationDelay[int(a)] = ns
}

// SetLatency overrides the asymmetric [sender][recipient] latency matrix
// entry.
func (k *Kernel) SetLatency(sender, recipient AgentID, ns int64) {
	if ns < 0 {
		panic(fmt.Sprintf("kernel: negative latency %d for %d->%d", ns, sender, recipient))
	}
	k.agentLatency[int(sender)][int(recipient)] = ns
}

// DelayAgent adds a transient extra delay to the agent currently being
// dispatched, reset to zero after the callback returns. Use this instead
// of mutating the persistent computation delay for a one-off slowdown.
func (k *Kernel) DelayAgent(ns int64) {
	if ns < 0 {
		panic(fmt.Sprintf("kernel: negative delay %d", ns))
	}
	k.currentAgentExtraDelay += ns
}

// SetWakeup schedules a self-delivered Wakeup event. at must not be in the
// past relative to the kernel's current time: this is the one place the
// source's "TimeInPast" error taxonomy entry applies, and per spec it
// requires an explicit time — there is no default.
func (k *Kernel) SetWakeup(sender AgentID, at SimTime) error {
	if at < k.currentTime {
		return ErrTimeInPast
	}
	k.seq++
	heap.Push(&k.queue, &ScheduledEvent{
		DeliverAt: at,
		Seq:       k.seq,
		Recipient: sender,
		Kind:      Wakeup,
	})
	return nil
}

// SendMessage enqueues a Deliver event from sender to recipient. sendTime
// is computed as currentTime + computationDelay[sender] + the sender's
// transient extra delay + oneShotDelay, so that every message emitted
// during one wake "pops out" no earlier than the end of that agent's
// thinking; oneShotDelay staggers multiple sends from the same callback
// without mutating any persistent delay. Latency (plus noise drawn from
// the kernel's single RNG stream) is then added on top.
func (k *Kernel) SendMessage(sender, recipient AgentID, payload any, oneShotDelay int64) {
	if payload == nil {
		panic("kernel: sendMessage with nil payload")
	}
	sendTime := k.currentTime.Add(k.agentComputationDelay[int(sender)] + k.currentAgentExtraDelay + oneShotDelay)
	var noise int64
	if k.noise != nil && k.rng != nil {
		noise = k.noise.Sample(k.rng)
	}
	deliverAt := sendTime.Add(k.agentLatency[int(sender)][int(recipient)] + noise)
	k.seq++
	heap.Push(&k.queue, &ScheduledEvent{
		DeliverAt: deliverAt,
		Seq:       k.seq,
		Recipient: recipient,
		Kind:      Deliver,
		Payload:   payload,
	})
}

// Run executes the full kernel lifecycle: initializing, starting, the
// drain loop, stopping, terminating.
func (k *Kernel) Run() {
	for _, a := range k.agents {
		a.KernelInitializing(k)
	}
	for _, a := range k.agents {
		a.KernelStarting(k.startTime)
	}

	k.currentTime = k.startTime
	for k.queue.Len() > 0 {
		event := heap.Pop(&k.queue).(*ScheduledEvent)

		if event.DeliverAt > k.stopTime {
			break
		}
		if event.DeliverAt < k.currentTime {
			// Invariant violation (kernel-level, fail fast).
			panic(fmt.Sprintf("kernel: popped event at %d before current time %d", event.DeliverAt, k.currentTime))
		}
		k.currentTime = event.DeliverAt

		// Busy-requeue: the recipient may not act while still busy in the
		// future. Re-enqueue at the end of its busy window; a fresh
		// insertion sequence is simpler than preserving the old one and
		// equally correct since relative order among re-queued events is
		// still governed by (DeliverAt, Seq).
		if k.agentClock[int(event.Recipient)] > event.DeliverAt {
			requeueAt := k.agentClock[int(event.Recipient)]
			k.seq++
			heap.Push(&k.queue, &ScheduledEvent{
				DeliverAt: requeueAt,
				Seq:       k.seq,
				Recipient: event.Recipient,
				Kind:      event.Kind,
				Payload:   event.Payload,
			})
			continue
		}

		k.currentAgentExtraDelay = 0
		k.agentClock[int(event.Recipient)] = event.DeliverAt

		agent, ok := k.byID[event.Recipient]
		if !ok {
			k.log.Error("kernel: event for unknown agent", zap.Int("recipient", int(event.Recipient)))
			continue
		}

		switch event.Kind {
		case Wakeup:
			agent.Wakeup(event.DeliverAt)
		case Deliver:
			agent.ReceiveMessage(event.DeliverAt, event.Payload)
		default:
			panic(fmt.Sprintf("kernel: unknown event kind %v", event.Kind))
		}

		k.agentClock[int(event.Recipient)] += SimTime(k.agentComputationDelay[int(event.Recipient)] + k.currentAgentExtraDelay)
	}

	for _, a := range k.agents {
		a.KernelStopping()
	}
	for _, a := range k.agents {
		a.KernelTerminating()
	}
}

// Pending returns the number of events still queued (useful for tests and
// for a clean shutdown check).
func (k *Kernel) Pending() int { return k.queue.Len() }
