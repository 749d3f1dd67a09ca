// Package coordinator implements the processing-state coordinator
// (component I): the idle/processing/done state machine the tool surface
// drives and pushes into the overlay through page-script evaluation.
// Grounded on the annotation package's sendGate single-slot pattern
// (internal/annotation/sendgate.go) for the same "mutate small shared
// state, no locks held across suspension points" shape.
package coordinator

import "sync"

// State is one of the three processing-state coordinator states.
type State string

const (
	Idle       State = "idle"
	Processing State = "processing"
	Done       State = "done"
)

// Pusher pushes a processing state into the live page. It is a best-effort
// call through runtime evaluation; spec §4.I requires failures (including
// "not currently connected") to be silently skipped.
type Pusher func(state State)

// Coordinator tracks the idle/processing/done machine described in spec
// §4.I and §9: idle->processing on a consumed send, processing->done on
// the next tool call that is not itself a new send, done->idle pushed by
// the overlay itself (the server holds no timer for that transition).
type Coordinator struct {
	mu    sync.Mutex
	state State
	push  Pusher
}

// New creates a coordinator starting in the idle state.
func New(push Pusher) *Coordinator {
	return &Coordinator{state: Idle, push: push}
}

// NotifySendConsumed transitions idle->processing, as the tool surface does
// when it observes a consumed "send" signal at the end of a tool call.
func (c *Coordinator) NotifySendConsumed() {
	c.mu.Lock()
	c.state = Processing
	c.mu.Unlock()
	c.pushSafely(Processing)
}

// BeforeToolCall runs at the start of every tool call (before the core
// handler logic). If the previous cycle had pushed "processing" and this
// cycle is not itself a new send, it pushes "done" and returns to idle.
func (c *Coordinator) BeforeToolCall(isNewSend bool) {
	c.mu.Lock()
	wasProcessing := c.state == Processing
	if wasProcessing && !isNewSend {
		c.state = Idle
	}
	c.mu.Unlock()

	if wasProcessing && !isNewSend {
		c.pushSafely(Done)
	}
}

// Current returns the coordinator's current state, for diagnostics.
func (c *Coordinator) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) pushSafely(state State) {
	if c.push == nil {
		return
	}
	defer func() { _ = recover() }()
	c.push(state)
}
