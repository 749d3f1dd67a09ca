// Package launch locates and spawns the controlled browser (component B):
// path discovery, process spawn with a debug port, HTTP readiness polling,
// and PID verification/tree-kill. Grounded on the teacher's use of
// go-rod's launcher package in internal/browser/session_manager.go, but
// split out so the PID can be tracked and verified independently of Rod's
// own process bookkeeping, as spec §4.B requires.
package launch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/go-rod/rod/lib/launcher"
)

// ErrNotFound is returned by Locate when no browser executable can be found.
var ErrNotFound = errors.New("launch: no browser executable found")

// Handle describes a spawned (or adopted) browser process.
type Handle struct {
	PID        int
	ControlURL string
}

// Locate resolves the browser executable to launch: an explicit override
// first, then go-rod's own platform-conventional search (which covers the
// usual Chrome/Chromium/Edge install locations per OS).
func Locate(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("%w: override path %s: %v", ErrNotFound, override, err)
		}
		return override, nil
	}
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}
	return "", ErrNotFound
}

// Launch spawns the browser with remote debugging bound to host:port and an
// isolated profile directory, then polls the HTTP readiness endpoint until
// it answers or the deadline elapses.
func Launch(ctx context.Context, bin, host string, port int, launchURL string) (Handle, error) {
	profileDir, err := os.MkdirTemp("", "agentbridge-profile-*")
	if err != nil {
		return Handle{}, fmt.Errorf("launch: profile dir: %w", err)
	}

	l := launcher.New().
		Bin(bin).
		Set("remote-debugging-port", fmt.Sprint(port)).
		Set("remote-debugging-address", host).
		Set("user-data-dir", profileDir).
		Set("no-first-run").
		Set("no-default-browser-check").
		Headless(true)
	if launchURL != "" {
		l = l.Set("app", launchURL)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return Handle{}, fmt.Errorf("launch: %w", err)
	}

	pid := l.PID()

	pollCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := waitReady(pollCtx, host, port); err != nil {
		_ = killPID(pid)
		return Handle{}, fmt.Errorf("launch: readiness: %w", err)
	}

	return Handle{PID: pid, ControlURL: controlURL}, nil
}

func waitReady(ctx context.Context, host string, port int) error {
	url := fmt.Sprintf("http://%s:%d/json/version", host, port)
	client := &http.Client{Timeout: 500 * time.Millisecond}
	for {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(150 * time.Millisecond):
		}
	}
}

// IsAlive reports whether pid refers to a live process, without asserting
// anything about what that process is.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// IsBrowserProcess verifies, as best as the platform allows, that pid is
// actually a browser process rather than an unrelated process that has
// since reused the pid. Verification is Linux-specific (procfs cmdline
// inspection); other platforms fail closed since spec §9 mandates never
// killing an unverified PID.
func IsBrowserProcess(pid int) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return false
	}
	cmdline := strings.ToLower(strings.ReplaceAll(string(data), "\x00", " "))
	for _, marker := range []string{"chrome", "chromium", "msedge"} {
		if strings.Contains(cmdline, marker) {
			return true
		}
	}
	return false
}

// Kill tree-kills pid: SIGTERM to the process group if it is one, falling
// back to the individual pid.
func Kill(pid int) error {
	if pid <= 0 {
		return nil
	}
	if err := killPID(pid); err != nil && IsAlive(pid) {
		return err
	}
	return nil
}

func killPID(pid int) error {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err == nil {
		return nil
	}
	return syscall.Kill(pid, syscall.SIGTERM)
}
