package annotation

import (
	"sync"
	"time"
)

// sendWaiter is the single in-flight waitForSend call; at most one exists
// at a time, per spec §4.F (a new wait cancels whatever wait preceded it).
type sendWaiter struct {
	resolve chan bool
}

// sendGate implements the latch + single-slot waiter rendezvous described
// in spec §4.F/§9 ("Promise-based rendezvous"), adapted from the closed-
// then-recreated channel idea in gasoline's annotation store into an
// explicit single-slot structure since spec requires at most one active
// waiter (not a broadcast to all blocked callers).
type sendGate struct {
	mu       sync.Mutex
	latch    bool
	current  *sendWaiter
	sentSeen bool
}

func newSendGate() *sendGate {
	return &sendGate{}
}

// wait blocks until a send arrives, a competing wait cancels this one, or
// timeout elapses, returning whether this wait was the one actually
// triggered by a send.
func (g *sendGate) wait(timeout time.Duration) bool {
	g.mu.Lock()
	if g.latch {
		g.latch = false
		g.mu.Unlock()
		return true
	}
	if g.current != nil {
		prev := g.current
		select {
		case prev.resolve <- false:
		default:
		}
	}
	w := &sendWaiter{resolve: make(chan bool, 1)}
	g.current = w
	g.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-w.resolve:
		return v
	case <-timer.C:
		g.mu.Lock()
		if g.current == w {
			g.current = nil
		}
		g.mu.Unlock()
		return false
	}
}

// notify resolves the active waiter if any, otherwise sets the latch for a
// future wait; always marks sent-seen. Returns whether a waiter was woken.
func (g *sendGate) notify() bool {
	g.mu.Lock()
	g.sentSeen = true
	if g.current != nil {
		w := g.current
		g.current = nil
		g.mu.Unlock()
		select {
		case w.resolve <- true:
			return true
		default:
			return false
		}
	}
	g.latch = true
	g.mu.Unlock()
	return false
}

// consumeSentState is one-shot: true on the first call after a send, false
// until the next send.
func (g *sendGate) consumeSentState() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.sentSeen
	g.sentSeen = false
	return v
}
