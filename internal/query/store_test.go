package query

import "testing"

func TestAddAndQueryConsoleEvent(t *testing.T) {
	s := NewStore()
	if err := s.AddConsoleEvent("error", "boom", "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("AddConsoleEvent: %v", err)
	}

	results, err := s.Query("console_event", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(results))
	}
	if results[0].Args[0] != "error" || results[0].Args[1] != "boom" {
		t.Fatalf("unexpected args: %#v", results[0].Args)
	}
}

func TestQueryWithBoundArg(t *testing.T) {
	s := NewStore()
	_ = s.AddNetRequest("req-1", "GET", "http://localhost/a", "2026-01-01T00:00:00Z")
	_ = s.AddNetRequest("req-2", "POST", "http://localhost/b", "2026-01-01T00:00:01Z")

	results, err := s.Query("net_request", []interface{}{"req-1", nil, nil, nil})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 fact bound to req-1, got %d", len(results))
	}
	if results[0].Args[2] != "http://localhost/a" {
		t.Fatalf("unexpected url: %#v", results[0].Args[2])
	}
}

func TestQueryUnknownPredicateReturnsEmpty(t *testing.T) {
	s := NewStore()
	results, err := s.Query("nothing_here", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no facts, got %d", len(results))
	}
}

func TestAddCorrelationKeyAndResponse(t *testing.T) {
	s := NewStore()
	if err := s.AddCorrelationKey("req-1", "trace-abc"); err != nil {
		t.Fatalf("AddCorrelationKey: %v", err)
	}
	if err := s.AddNetResponse("req-1", 200, 12.5); err != nil {
		t.Fatalf("AddNetResponse: %v", err)
	}

	results, err := s.Query("net_response", []interface{}{"req-1", nil, nil})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Args[1] != int64(200) {
		t.Fatalf("unexpected net_response facts: %#v", results)
	}
}
