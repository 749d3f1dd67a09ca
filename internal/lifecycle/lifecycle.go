// Package lifecycle wires components C (session), F (annotation), G
// (process manager), H (tool surface), and I (coordinator) into one running
// bridge and owns the shutdown sequence. Grounded on the teacher's
// cmd/server/main.go construction order (mangle engine -> session manager
// -> MCP server) and its signal-driven shutdown, generalized from a single
// linear build into an explicit Bridge value the entry point constructs
// once and tears down in reverse dependency order.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"agentbridge-mcp-server/internal/annotation"
	"agentbridge-mcp-server/internal/config"
	"agentbridge-mcp-server/internal/coordinator"
	"agentbridge-mcp-server/internal/overlay"
	"agentbridge-mcp-server/internal/procmgr"
	"agentbridge-mcp-server/internal/query"
	"agentbridge-mcp-server/internal/session"
	"agentbridge-mcp-server/internal/telemetry"
	"agentbridge-mcp-server/internal/tools"
)

// Bridge owns every long-lived component and the order they start and stop in.
type Bridge struct {
	cfg config.Config

	Pipeline    *telemetry.Pipeline
	Facts       *query.Store
	Sessions    *session.Manager
	Annotations *annotation.Service
	Processes   *procmgr.Manager
	Coordinator *coordinator.Coordinator
	Tools       *tools.Server

	annotationStartOnce sync.Once
	annotationStartErr  error
}

// New constructs every component and wires their cross-cutting hooks, but
// starts nothing: Run does that so construction never fails partway through
// a listening socket.
func New(cfg config.Config) (*Bridge, error) {
	facts := query.NewStore()

	pipeline := telemetry.NewPipeline(cfg.Buffers.ConsoleSize, cfg.Buffers.NetworkSize)
	pipeline.SetFactSink(facts)

	sessions := session.NewManager(cfg.Debug, pipeline)

	annotations, err := annotation.NewService(cfg.Annotation.AuditDir)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: new annotation service: %w", err)
	}

	processes := procmgr.NewManager(cfg.Buffers.ServerLogSize, cfg.Process.GraceTimeout)

	b := &Bridge{
		cfg:         cfg,
		Pipeline:    pipeline,
		Facts:       facts,
		Sessions:    sessions,
		Annotations: annotations,
		Processes:   processes,
	}

	b.Coordinator = coordinator.New(b.pushProcessingState)

	annotations.OnScreenshot(b.captureScreenshot)
	annotations.OnSendNotify(b.onSendNotify)

	sessions.OnConnect(b.onConnect)
	sessions.OnNavigate(b.onNavigate)

	b.Tools = tools.NewServer("agentbridge-mcp-server", "0.1.0", sessions, annotations, processes, b.Coordinator, facts)

	return b, nil
}

// Run starts the telemetry sweep and blocks serving the stdio tool-call
// transport until ctx is canceled or the transport exits. It does not start
// the annotation service itself — per spec §2/§3 the annotation service is
// started lazily, the first time the overlay is injected on a session's
// first onConnect, and nothing contacts the browser at startup.
func (b *Bridge) Run(ctx context.Context) error {
	b.Pipeline.RunSweep(ctx)

	return b.Tools.Start(ctx)
}

// ensureAnnotationsStarted binds the annotation HTTP service on first use
// and is a no-op on every call after that, so a reconnect's onConnect hook
// doesn't try to rebind an already-listening service.
func (b *Bridge) ensureAnnotationsStarted() error {
	b.annotationStartOnce.Do(func() {
		port, err := b.Annotations.Start(b.cfg.Annotation.BasePort)
		if err != nil {
			b.annotationStartErr = fmt.Errorf("lifecycle: start annotation service: %w", err)
			return
		}
		log.Printf("lifecycle: annotation service listening on 127.0.0.1:%d", port)
	})
	return b.annotationStartErr
}

// Shutdown tears components down in reverse dependency order: managed
// subprocesses first (they're the agent's own children and owe nothing to
// the browser session), then the browser session, then the annotation
// service and its audit log.
func (b *Bridge) Shutdown(ctx context.Context) {
	b.Processes.StopAll(ctx)

	if err := b.Sessions.Shutdown(ctx); err != nil {
		log.Printf("lifecycle: session shutdown: %v", err)
	}

	if err := b.Annotations.Shutdown(ctx); err != nil {
		log.Printf("lifecycle: annotation shutdown: %v", err)
	}
}

// ShutdownSync is the last-resort synchronous cleanup for a normal process
// exit where ctx-driven Shutdown didn't run (e.g. a panic unwinding past
// main). It must not block.
func (b *Bridge) ShutdownSync() {
	b.Sessions.ShutdownSync()
}

// onConnect starts the annotation service on the very first successful
// connect (spec §2: "started the first time the overlay is injected...
// and once started survives subsequent reconnects"), then injects the
// overlay on every fresh browser-control connection.
func (b *Bridge) onConnect(ctx context.Context) {
	if err := b.ensureAnnotationsStarted(); err != nil {
		log.Printf("lifecycle: %v", err)
		return
	}
	script := overlay.Build(b.Annotations.Port())
	if _, err := b.Sessions.Evaluate(ctx, script); err != nil {
		log.Printf("lifecycle: overlay injection on connect failed: %v", err)
	}
}

// onNavigate re-injects the overlay after every page load, since a
// navigation tears down the prior document's injected script.
func (b *Bridge) onNavigate(ctx context.Context) {
	script := overlay.Build(b.Annotations.Port())
	if _, err := b.Sessions.Evaluate(ctx, script); err != nil {
		log.Printf("lifecycle: overlay re-injection on navigate failed: %v", err)
	}
}

// captureScreenshot adapts the annotation service's Rect to the session
// package's identically-shaped Rect so annotation stays decoupled from
// browser-control internals.
func (b *Bridge) captureScreenshot(ctx context.Context, rect *annotation.Rect) (string, error) {
	if !b.Sessions.IsConnected() {
		return "", fmt.Errorf("lifecycle: cannot capture annotation screenshot: no live session")
	}
	var sr *session.Rect
	if rect != nil {
		sr = &session.Rect{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}
	}
	return b.Sessions.Screenshot(ctx, sr)
}

// onSendNotify pushes a processing-state hint to the overlay the moment a
// send is registered, ahead of whatever tool call eventually consumes it.
func (b *Bridge) onSendNotify(openCount int) {
	if openCount == 0 {
		return
	}
	b.pushProcessingState(coordinator.Processing)
}

func (b *Bridge) pushProcessingState(state coordinator.State) {
	if !b.Sessions.IsConnected() {
		return
	}
	expr := fmt.Sprintf(
		"window.__agentbridgeOverlay && window.__agentbridgeOverlay.setProcessingState(%q)",
		string(state),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := b.Sessions.Evaluate(ctx, expr); err != nil {
		log.Printf("lifecycle: push processing state %q failed: %v", state, err)
	}
}
