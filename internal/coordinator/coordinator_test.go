package coordinator

import "testing"

func TestIdleToProcessingToDone(t *testing.T) {
	var pushed []State
	c := New(func(s State) { pushed = append(pushed, s) })

	if c.Current() != Idle {
		t.Fatalf("initial state = %s, want idle", c.Current())
	}

	c.NotifySendConsumed()
	if c.Current() != Processing {
		t.Fatalf("state after send consumed = %s, want processing", c.Current())
	}

	c.BeforeToolCall(false)
	if c.Current() != Idle {
		t.Fatalf("state after next non-send call = %s, want idle", c.Current())
	}

	if len(pushed) != 2 || pushed[0] != Processing || pushed[1] != Done {
		t.Fatalf("pushed = %v, want [processing done]", pushed)
	}
}

func TestProcessingHoldsAcrossAnotherSend(t *testing.T) {
	var pushed []State
	c := New(func(s State) { pushed = append(pushed, s) })

	c.NotifySendConsumed()
	c.BeforeToolCall(true) // this call is itself a new send; stay in processing
	if c.Current() != Processing {
		t.Fatalf("state = %s, want processing to persist across a new send", c.Current())
	}
	if len(pushed) != 1 {
		t.Fatalf("pushed = %v, want only the initial processing push", pushed)
	}
}

func TestPushPanicIsSwallowed(t *testing.T) {
	c := New(func(State) { panic("boom") })
	c.NotifySendConsumed() // must not propagate the panic
	if c.Current() != Processing {
		t.Fatalf("state = %s, want processing despite push panic", c.Current())
	}
}
