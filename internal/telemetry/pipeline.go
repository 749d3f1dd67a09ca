package telemetry

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"agentbridge-mcp-server/internal/correlation"
	"agentbridge-mcp-server/internal/ring"
)

const (
	pendingRequestTTL = 5 * time.Minute
	sweepInterval     = 60 * time.Second
)

// FactSink mirrors telemetry events into a queryable fact store (the
// internal/query package satisfies this structurally; telemetry never
// imports it, to keep component D's dependency surface to internal/ring
// and internal/correlation only).
type FactSink interface {
	AddConsoleEvent(level, message, timestampIso string) error
	AddNetRequest(id, method, url, timestampIso string) error
	AddNetResponse(id string, status int, timingMs float64) error
	AddCorrelationKey(id, key string) error
}

// Pipeline owns the console and network ring buffers and the in-flight
// request map that correlates request/response/failure events by id.
type Pipeline struct {
	console *ring.Buffer[ConsoleEntry]
	network *ring.Buffer[NetworkEntry]

	mu      sync.Mutex
	pending map[string]PendingRequest

	facts FactSink
}

// NewPipeline creates a pipeline with the given console/network buffer
// capacities (spec §6: BRIDGE_CONSOLE_BUFFER_SIZE / BRIDGE_NETWORK_BUFFER_SIZE).
func NewPipeline(consoleCap, networkCap int) *Pipeline {
	return &Pipeline{
		console: ring.New[ConsoleEntry](consoleCap),
		network: ring.New[NetworkEntry](networkCap),
		pending: make(map[string]PendingRequest),
	}
}

// SetFactSink registers the optional fact-store mirror (supplemental
// feature backing the query_telemetry tool). Must be called before events
// start flowing; nil disables mirroring.
func (p *Pipeline) SetFactSink(sink FactSink) { p.facts = sink }

// RunSweep starts the periodic eviction of stale pending requests (§3:
// entries older than 5 minutes are swept every 60 seconds so long-lived
// streams that never complete don't leak memory). Stops when ctx is done.
func (p *Pipeline) RunSweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.evictStalePending()
			}
		}
	}()
}

func (p *Pipeline) evictStalePending() {
	cutoff := time.Now().Add(-pendingRequestTTL)
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, req := range p.pending {
		if req.StartMonotonic.Before(cutoff) {
			delete(p.pending, id)
		}
	}
}

// OnConsoleAPI records a page-side console.* call.
func (p *Pipeline) OnConsoleAPI(level, message string) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	p.console.Push(ConsoleEntry{
		TimestampIso:    ts,
		Level:           level,
		Message:         message,
		CorrelationKeys: correlation.FromMessage(message),
	})
	p.mirrorConsole(level, message, ts)
}

// OnBrowserLog records a browser-level log entry (Log domain), prefixed so
// it's distinguishable from page console output.
func (p *Pipeline) OnBrowserLog(level, message string) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	text := "[browser] " + message
	p.console.Push(ConsoleEntry{
		TimestampIso:    ts,
		Level:           level,
		Message:         text,
		CorrelationKeys: correlation.FromMessage(message),
	})
	p.mirrorConsole(level, text, ts)
}

// OnRequestWillBeSent records a new in-flight request keyed by id.
func (p *Pipeline) OnRequestWillBeSent(id, url, method string) {
	now := time.Now()
	wallClock := now.UTC().Format(time.RFC3339Nano)
	p.mu.Lock()
	p.pending[id] = PendingRequest{
		ID:             id,
		URL:            url,
		Method:         method,
		StartMonotonic: now,
		WallClockIso:   wallClock,
	}
	p.mu.Unlock()
	if p.facts != nil {
		_ = p.facts.AddNetRequest(id, method, url, wallClock)
	}
}

func (p *Pipeline) mirrorConsole(level, message, timestampIso string) {
	if p.facts == nil {
		return
	}
	_ = p.facts.AddConsoleEvent(level, message, timestampIso)
	for _, key := range correlation.FromMessage(message) {
		_ = p.facts.AddCorrelationKey(timestampIso, key)
	}
}

// OnResponseReceived converts a pending request into a completed
// NetworkEntry. Unknown ids (no matching request-will-be-sent) are ignored.
func (p *Pipeline) OnResponseReceived(id string, status int, headers map[string]string) {
	p.mu.Lock()
	req, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	timing := round2(time.Since(req.StartMonotonic).Seconds() * 1000)
	statusCopy := status
	entry := NetworkEntry{
		ID:           id,
		URL:          req.URL,
		Method:       req.Method,
		Status:       &statusCopy,
		TimingMs:     &timing,
		TimestampIso: req.WallClockIso,
	}
	for name, value := range headers {
		if key := correlation.FromHeader(name, value); key != "" {
			entry.CorrelationKeys = append(entry.CorrelationKeys, key)
		}
	}
	p.network.Push(entry)

	if p.facts != nil {
		_ = p.facts.AddNetResponse(id, status, timing)
		for _, key := range entry.CorrelationKeys {
			_ = p.facts.AddCorrelationKey(id, key)
		}
	}
}

// OnLoadingFailed converts a pending request into a failed NetworkEntry.
// Unknown ids are ignored.
func (p *Pipeline) OnLoadingFailed(id, reason string) {
	p.mu.Lock()
	req, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	p.network.Push(NetworkEntry{
		ID:           id,
		URL:          req.URL,
		Method:       req.Method,
		Error:        reason,
		TimestampIso: req.WallClockIso,
	})
}

// DrainConsole returns and clears all buffered console entries.
func (p *Pipeline) DrainConsole() []ConsoleEntry { return p.console.Drain() }

// PeekConsole returns buffered console entries without clearing them.
func (p *Pipeline) PeekConsole() []ConsoleEntry { return p.console.Peek() }

// DrainNetwork returns and clears all buffered network entries.
func (p *Pipeline) DrainNetwork() []NetworkEntry { return p.network.Drain() }

// PeekNetwork returns buffered network entries without clearing them.
func (p *Pipeline) PeekNetwork() []NetworkEntry { return p.network.Peek() }

// FindNetworkByID returns the buffered entry with the given request id, if
// any (used by the "network detail lookup" tool).
func (p *Pipeline) FindNetworkByID(id string) (NetworkEntry, bool) {
	for _, entry := range p.network.Peek() {
		if entry.ID == id {
			return entry, true
		}
	}
	return NetworkEntry{}, false
}

// PendingCount reports the number of in-flight requests, for diagnostics.
func (p *Pipeline) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Reset clears buffers and pending state (called on session disconnect).
func (p *Pipeline) Reset() {
	p.console.Drain()
	p.network.Drain()
	p.mu.Lock()
	p.pending = make(map[string]PendingRequest)
	p.mu.Unlock()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RequestLabel formats a compact human label for logs.
func RequestLabel(method, url string) string {
	return fmt.Sprintf("%s %s", method, url)
}
