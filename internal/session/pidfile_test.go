package session

import (
	"os"
	"testing"
)

func TestPIDFileRoundTrip(t *testing.T) {
	port := 19222
	defer os.Remove(pidFilePath(port))

	if err := writePIDFile(port, 4242); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, ok := readPIDFile(port)
	if !ok || pid != 4242 {
		t.Fatalf("readPIDFile = (%d, %v), want (4242, true)", pid, ok)
	}

	removePIDFile(port)
	if _, ok := readPIDFile(port); ok {
		t.Fatal("expected pid file to be gone after removePIDFile")
	}
}

func TestReadPIDFileMissingIsFalse(t *testing.T) {
	if _, ok := readPIDFile(19999); ok {
		t.Fatal("expected false for nonexistent pid file")
	}
}
