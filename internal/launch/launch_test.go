package launch

import (
	"os"
	"testing"
)

func TestIsAliveCurrentProcess(t *testing.T) {
	if !IsAlive(os.Getpid()) {
		t.Fatal("current process should be reported alive")
	}
}

func TestIsAliveRejectsNonPositive(t *testing.T) {
	if IsAlive(0) || IsAlive(-1) {
		t.Fatal("non-positive pid should never be alive")
	}
}

func TestIsBrowserProcessFailsClosedForNonBrowser(t *testing.T) {
	// The test binary itself is not a browser process; verification must
	// fail closed rather than assume it is one.
	if IsBrowserProcess(os.Getpid()) {
		t.Fatal("test process must not verify as a browser process")
	}
}

func TestLocateRejectsMissingOverride(t *testing.T) {
	if _, err := Locate("/does/not/exist/chrome"); err == nil {
		t.Fatal("expected error for nonexistent override path")
	}
}
