package session

import (
	"testing"

	"agentbridge-mcp-server/internal/telemetry"
)

func TestChooseDefaultTargetPrefersLoopbackHTTP(t *testing.T) {
	targets := []telemetry.PageTarget{
		{ID: "1", Type: "page", URL: "devtools://devtools/bundled/inspector.html"},
		{ID: "2", Type: "page", URL: "http://example.com/"},
		{ID: "3", Type: "page", URL: "http://localhost:3000/"},
	}
	got, ok := chooseDefaultTarget(targets)
	if !ok || got.ID != "3" {
		t.Fatalf("expected loopback target 3, got %+v (ok=%v)", got, ok)
	}
}

func TestChooseDefaultTargetFallsBackToFileURL(t *testing.T) {
	targets := []telemetry.PageTarget{
		{ID: "1", Type: "page", URL: "chrome://settings"},
		{ID: "2", Type: "page", URL: "file:///tmp/index.html"},
	}
	got, ok := chooseDefaultTarget(targets)
	if !ok || got.ID != "2" {
		t.Fatalf("expected file target 2, got %+v (ok=%v)", got, ok)
	}
}

func TestChooseDefaultTargetAllInternalReturnsFirst(t *testing.T) {
	targets := []telemetry.PageTarget{
		{ID: "1", Type: "page", URL: "chrome://settings"},
		{ID: "2", Type: "page", URL: "about:blank"},
	}
	got, ok := chooseDefaultTarget(targets)
	if !ok || got.ID != "1" {
		t.Fatalf("expected first target 1, got %+v (ok=%v)", got, ok)
	}
}

func TestSelectTargetByID(t *testing.T) {
	targets := []telemetry.PageTarget{
		{ID: "a", Type: "page", URL: "http://localhost/"},
		{ID: "b", Type: "page", URL: "http://localhost/other"},
	}
	got, ok := selectTarget(targets, ConnectOptions{ID: "b"})
	if !ok || got.ID != "b" {
		t.Fatalf("expected target b, got %+v (ok=%v)", got, ok)
	}
}

func TestSelectTargetByURLPattern(t *testing.T) {
	targets := []telemetry.PageTarget{
		{ID: "a", Type: "page", URL: "http://localhost/dashboard"},
		{ID: "b", Type: "page", URL: "http://localhost/SETTINGS"},
	}
	got, ok := selectTarget(targets, ConnectOptions{URLPattern: "settings"})
	if !ok || got.ID != "b" {
		t.Fatalf("expected case-insensitive match on b, got %+v (ok=%v)", got, ok)
	}
}

func TestIsLoopbackHTTP(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"http://localhost:9222/", true},
		{"http://127.0.0.1:9222/", true},
		{"http://[::1]:9222/", true},
		{"http://example.com/", false},
		{"ftp://localhost/", false},
		{"not a url", false},
	}
	for _, c := range cases {
		if got := isLoopbackHTTP(c.url); got != c.want {
			t.Errorf("isLoopbackHTTP(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}
