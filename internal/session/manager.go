// Package session implements the browser-control session manager
// (component C): target discovery/selection, one BCP session, event
// subscription into bounded buffers, lazy reconnect, and the
// onConnect/onNavigate injection hooks. Grounded on the teacher's
// internal/browser/session_manager.go (go-rod connect/attach/event-stream
// shape), generalized to spec §4.C's explicit connection-state machine
// instead of the teacher's persistent multi-session registry.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"agentbridge-mcp-server/internal/bridgeerr"
	"agentbridge-mcp-server/internal/config"
	"agentbridge-mcp-server/internal/launch"
	"agentbridge-mcp-server/internal/telemetry"
)

const livenessTTL = 30 * time.Second

var retryBackoff = []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second}

// ConnectHook runs once per successful connect.
type ConnectHook func(ctx context.Context)

// NavigateHook runs on every page load event.
type NavigateHook func(ctx context.Context)

// Manager owns the single live BCP session and the console/network
// telemetry it produces.
type Manager struct {
	cfg config.DebugConfig

	Pipeline *telemetry.Pipeline

	mu         sync.Mutex
	browser    *rod.Browser
	page       *rod.Page
	target     telemetry.PageTarget
	lastOK     time.Time
	eventStop  context.CancelFunc
	connecting *connectFuture

	sweepOnce sync.Once

	hookMu        sync.Mutex
	onConnectFns  []ConnectHook
	onNavigateFns []NavigateHook
}

// connectFuture lets concurrent ensureConnected callers dedupe onto a
// single in-flight connect attempt.
type connectFuture struct {
	done chan struct{}
	err  error
}

// NewManager creates a manager bound to the given debug-host configuration
// and backed by pipeline for buffered telemetry.
func NewManager(cfg config.DebugConfig, pipeline *telemetry.Pipeline) *Manager {
	return &Manager{cfg: cfg, Pipeline: pipeline}
}

// OnConnect registers a best-effort connect hook.
func (m *Manager) OnConnect(fn ConnectHook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onConnectFns = append(m.onConnectFns, fn)
}

// OnNavigate registers a best-effort navigate hook.
func (m *Manager) OnNavigate(fn NavigateHook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onNavigateFns = append(m.onNavigateFns, fn)
}

// IsConnected is a passive check — it does not probe liveness.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil && m.page != nil
}

// EnsureConnected implements the fast-path/liveness cascade from spec §4.C.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	m.mu.Lock()
	if m.page != nil && time.Since(m.lastOK) < livenessTTL {
		m.mu.Unlock()
		return nil
	}
	if m.page != nil {
		page, lastOK := m.page, m.lastOK
		m.mu.Unlock()
		_ = lastOK
		if probeLiveness(ctx, page) {
			m.mu.Lock()
			m.lastOK = time.Now()
			m.mu.Unlock()
			return nil
		}
		m.teardown()
	} else {
		m.mu.Unlock()
	}

	return m.connectDeduped(ctx, ConnectOptions{})
}

// ConnectToPage explicitly (re)selects a page target, honoring id/pattern
// and an optional poll deadline, then connects to it.
func (m *Manager) ConnectToPage(ctx context.Context, opts ConnectOptions) (telemetry.PageTarget, error) {
	if err := m.connectDeduped(ctx, opts); err != nil {
		return telemetry.PageTarget{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target, nil
}

func probeLiveness(ctx context.Context, page *rod.Page) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := page.Context(probeCtx).Eval(`() => true`)
	return err == nil
}

func (m *Manager) teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventStop != nil {
		m.eventStop()
		m.eventStop = nil
	}
	if m.browser != nil {
		_ = m.browser.Close()
	}
	m.browser = nil
	m.page = nil
	m.target = telemetry.PageTarget{}
	m.Pipeline.Reset()
}

// connectDeduped ensures only one connect attempt runs at a time; other
// callers wait on the in-flight attempt's result.
func (m *Manager) connectDeduped(ctx context.Context, opts ConnectOptions) error {
	m.mu.Lock()
	if m.connecting != nil {
		fut := m.connecting
		m.mu.Unlock()
		<-fut.done
		return fut.err
	}
	fut := &connectFuture{done: make(chan struct{})}
	m.connecting = fut
	m.mu.Unlock()

	err := m.connectWithRetry(ctx, opts)

	m.mu.Lock()
	m.connecting = nil
	m.mu.Unlock()
	fut.err = err
	close(fut.done)
	return err
}

func (m *Manager) connectWithRetry(ctx context.Context, opts ConnectOptions) error {
	m.sweepOnce.Do(func() { sweepPIDFile(m.cfg.Port) })

	var lastErr error
	for attempt := 0; attempt <= len(retryBackoff); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff[attempt-1]):
			}
		}

		err := m.attemptConnect(ctx, opts)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == 0 {
			if m.cfg.DirectWSURL != "" {
				return bridgeerr.Wrap(bridgeerr.KindUnreachable, "direct websocket override failed", err)
			}
			if !m.cfg.AutoLaunch {
				return bridgeerr.Wrap(bridgeerr.KindUnreachable, "browser unreachable and auto-launch disabled", err)
			}
			if _, launchErr := m.autoLaunch(ctx); launchErr != nil {
				return bridgeerr.Wrap(bridgeerr.KindUnreachable, "auto-launch failed", launchErr)
			}
		}
	}
	return bridgeerr.Wrap(bridgeerr.KindUnreachable, "exhausted connection retries", lastErr)
}

func (m *Manager) autoLaunch(ctx context.Context) (launch.Handle, error) {
	bin, err := launch.Locate(m.cfg.BrowserPath)
	if err != nil {
		return launch.Handle{}, err
	}
	handle, err := launch.Launch(ctx, bin, m.cfg.Host, m.cfg.Port, m.cfg.LaunchURL)
	if err != nil {
		return launch.Handle{}, err
	}
	if err := writePIDFile(m.cfg.Port, handle.PID); err != nil {
		log.Printf("session: write pid file: %v", err)
	}
	return handle, nil
}

func (m *Manager) attemptConnect(ctx context.Context, opts ConnectOptions) error {
	target, err := waitForTarget(ctx, m.cfg.Host, m.cfg.Port, opts)
	if err != nil {
		return bridgeerr.Wrap(bridgeerr.KindNotFound, "target not found", err)
	}

	controlURL := m.cfg.DirectWSURL
	if controlURL == "" {
		controlURL = fmt.Sprintf("http://%s:%d", m.cfg.Host, m.cfg.Port)
	}

	browser := rod.New().Context(ctx)
	if m.cfg.DirectWSURL != "" {
		browser = browser.ControlURL(m.cfg.DirectWSURL)
	} else {
		browser = browser.ControlURL(controlURL)
	}
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	page, err := browser.PageFromTarget(proto.TargetTargetID(target.ID))
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("attach to target %s: %w", target.ID, err)
	}

	if err := enableDomains(page); err != nil {
		_ = browser.Close()
		return fmt.Errorf("enable domains: %w", err)
	}

	eventCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.browser = browser
	m.page = page
	m.target = target
	m.lastOK = time.Now()
	m.eventStop = cancel
	m.mu.Unlock()

	m.startEventStream(eventCtx, page)
	m.fireOnConnect(ctx)

	return nil
}

// enableDomains enables the runtime/network/DOM/page/log domains in
// parallel, per spec §4.C step 4 ("Enable the required BCP domains ...
// in parallel"), and returns the first error encountered, if any.
func enableDomains(page *rod.Page) error {
	fns := []func() error{
		func() error { return proto.RuntimeEnable{}.Call(page) },
		func() error { return proto.NetworkEnable{}.Call(page) },
		func() error { return proto.DOMEnable{}.Call(page) },
		func() error { return proto.PageEnable{}.Call(page) },
		func() error { return proto.LogEnable{}.Call(page) },
	}

	var wg sync.WaitGroup
	errs := make([]error, len(fns))
	wg.Add(len(fns))
	for i, fn := range fns {
		go func(i int, fn func() error) {
			defer wg.Done()
			errs[i] = fn()
		}(i, fn)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) fireOnConnect(ctx context.Context) {
	m.hookMu.Lock()
	hooks := append([]ConnectHook(nil), m.onConnectFns...)
	m.hookMu.Unlock()
	for _, hook := range hooks {
		safeCall(func() { hook(ctx) })
	}
}

func (m *Manager) fireOnNavigate(ctx context.Context) {
	m.hookMu.Lock()
	hooks := append([]NavigateHook(nil), m.onNavigateFns...)
	m.hookMu.Unlock()
	for _, hook := range hooks {
		safeCall(func() { hook(ctx) })
	}
}

func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session: hook panic recovered: %v", r)
		}
	}()
	fn()
}

func (m *Manager) startEventStream(ctx context.Context, page *rod.Page) {
	p := page.Context(ctx)

	go func() {
		p.EachEvent(
			func(ev *proto.PageLoadEventFired) {
				m.fireOnNavigate(ctx)
			},
			func(ev *proto.RuntimeConsoleAPICalled) {
				m.Pipeline.OnConsoleAPI(string(ev.Type), stringifyConsoleArgs(ev.Args))
			},
			func(ev *proto.LogEntryAdded) {
				m.Pipeline.OnBrowserLog(string(ev.Entry.Level), ev.Entry.Text)
			},
			func(ev *proto.NetworkRequestWillBeSent) {
				m.Pipeline.OnRequestWillBeSent(string(ev.RequestID), ev.Request.URL, ev.Request.Method)
			},
			func(ev *proto.NetworkResponseReceived) {
				headers := map[string]string{}
				for k, v := range ev.Response.Headers {
					headers[k] = fmt.Sprint(v)
				}
				m.Pipeline.OnResponseReceived(string(ev.RequestID), ev.Response.Status, headers)
			},
			func(ev *proto.NetworkLoadingFailed) {
				m.Pipeline.OnLoadingFailed(string(ev.RequestID), ev.ErrorText)
			},
			func(ev *proto.InspectorDetached) {
				log.Printf("session: disconnect (%s)", ev.Reason)
				m.teardown()
			},
		)()
	}()
}

// stringifyConsoleArgs renders a console-call argument array to a single
// string per spec §3: strings verbatim, undefined as "undefined", anything
// with a JSON representation stringified, otherwise a descriptive
// placeholder.
func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		switch {
		case a.Type == proto.RuntimeRemoteObjectTypeUndefined:
			parts = append(parts, "undefined")
		case !a.Value.Nil():
			parts = append(parts, a.Value.String())
		case a.Description != "":
			parts = append(parts, a.Description)
		default:
			parts = append(parts, fmt.Sprintf("<%s>", a.Type))
		}
	}
	return strings.Join(parts, " ")
}

// Shutdown closes the active session gracefully.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.teardown()
	removePIDFile(m.cfg.Port)
	return nil
}

// ShutdownSync is the last-resort synchronous cleanup used from a normal-exit
// handler: it must not block on anything that could stall process exit.
func (m *Manager) ShutdownSync() {
	removePIDFile(m.cfg.Port)
}

// ErrNotConnected is returned by primitives that require a live page when
// none is attached.
var ErrNotConnected = errors.New("session: not connected")

func (m *Manager) currentPage() (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page == nil {
		return nil, ErrNotConnected
	}
	return m.page, nil
}

// CurrentTarget returns the presently selected page target.
func (m *Manager) CurrentTarget() (telemetry.PageTarget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page == nil {
		return telemetry.PageTarget{}, false
	}
	return m.target, true
}
