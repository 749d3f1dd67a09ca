package procmgr

import (
	"context"
	"testing"
	"time"

	"agentbridge-mcp-server/internal/ring"
)

func TestStartStopLifecycle(t *testing.T) {
	m := NewManager(100, 2*time.Second)

	desc, err := m.Start(StartRequest{ID: "sleeper", Command: "sh", Argv: []string{"-c", "echo hi; sleep 30"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if desc.PID == 0 {
		t.Fatalf("expected a pid")
	}

	deadline := time.Now().Add(2 * time.Second)
	var lines []LogLine
	for time.Now().Before(deadline) {
		lines, _ = m.Logs("sleeper", false)
		if len(lines) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(lines) == 0 || lines[0].Text != "hi" {
		t.Fatalf("expected buffered stdout line, got %v", lines)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.Stop(ctx, "sleeper"); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStartDuplicateIDWhileLiveFails(t *testing.T) {
	m := NewManager(10, time.Second)
	if _, err := m.Start(StartRequest{ID: "x", Command: "sleep", Argv: []string{"5"}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start(StartRequest{ID: "x", Command: "sleep", Argv: []string{"5"}}); err == nil {
		t.Fatalf("expected duplicate-id error")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.Stop(ctx, "x")
}

func TestLogsNotFound(t *testing.T) {
	m := NewManager(10, time.Second)
	if _, err := m.Logs("missing", false); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestLogsAroundWindow(t *testing.T) {
	m := NewManager(10, time.Second)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	proc := &managedProcess{
		Descriptor: Descriptor{ID: "p"},
		logs:       ring.New[LogLine](10),
		done:       make(chan struct{}),
	}
	for _, offset := range []time.Duration{-5 * time.Second, -500 * time.Millisecond, 0, 500 * time.Millisecond, 5 * time.Second} {
		proc.logs.Push(LogLine{TimestampIso: base.Add(offset).Format(time.RFC3339Nano), Stream: "stdout", Text: offset.String()})
	}
	m.processes = map[string]*managedProcess{"p": proc}

	lines, err := m.LogsAround("p", base, time.Second)
	if err != nil {
		t.Fatalf("logs around: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines within +/-1s window, got %d: %v", len(lines), lines)
	}
}
