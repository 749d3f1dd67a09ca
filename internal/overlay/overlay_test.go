package overlay

import (
	"strings"
	"testing"
)

func TestBuildEmbedsPort(t *testing.T) {
	script := Build(9223)
	if !strings.Contains(script, "PORT = 9223") {
		t.Fatalf("expected port embedded in script, got: %s", script)
	}
}

func TestBuildGuardsDoubleInjection(t *testing.T) {
	script := Build(9223)
	if !strings.Contains(script, "__agentbridgeOverlay") {
		t.Fatal("expected double-injection guard flag")
	}
}

func TestBuildVariesByPort(t *testing.T) {
	if Build(9224) == Build(9225) {
		t.Fatal("scripts for different ports must differ")
	}
}
