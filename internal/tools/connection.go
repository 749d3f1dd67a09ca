package tools

import (
	"context"

	"agentbridge-mcp-server/internal/bridgeerr"
	"agentbridge-mcp-server/internal/overlay"
	"agentbridge-mcp-server/internal/session"
)

// statusTool is the connection-diagnostics operation: it ensures
// connectivity and reports the currently selected target.
type statusTool struct{ s *Server }

func (t *statusTool) Name() string        { return "connection_status" }
func (t *statusTool) Description() string { return "Report whether the bridge has a live browser connection and, if so, which page target it is attached to." }
func (t *statusTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *statusTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	if err := t.s.sessions.EnsureConnected(ctx); err != nil {
		hint := "browser unreachable"
		if bridgeerr.KindOf(err) == bridgeerr.KindUnreachable {
			hint = "browser unreachable; set the direct-websocket override or enable auto-launch"
		}
		return Result{}, bridgeerr.Wrap(bridgeerr.KindOf(err), hint, err)
	}
	target, _ := t.s.sessions.CurrentTarget()
	return textResult(map[string]interface{}{
		"connected": t.s.sessions.IsConnected(),
		"target":    target,
	}), nil
}

// connectPageTool is the page-selection operation: connect to a specific
// target id, or the best match for a URL substring pattern, with an
// optional wait budget for the target to appear.
type connectPageTool struct{ s *Server }

func (t *connectPageTool) Name() string { return "connect_page" }
func (t *connectPageTool) Description() string {
	return "Select and connect to a browser page target, by exact id or a case-insensitive URL substring pattern, optionally waiting for it to appear."
}
func (t *connectPageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":          map[string]interface{}{"type": "string"},
			"url_pattern": map[string]interface{}{"type": "string"},
			"wait_ms":     map[string]interface{}{"type": "integer"},
		},
	}
}

func (t *connectPageTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	opts := session.ConnectOptions{
		ID:         argString(args, "id", ""),
		URLPattern: argString(args, "url_pattern", ""),
		WaitMs:     argInt(args, "wait_ms", 0),
	}
	target, err := t.s.sessions.ConnectToPage(ctx, opts)
	if err != nil {
		return Result{}, bridgeerr.Wrap(bridgeerr.KindNotFound, "connect to page", err)
	}
	return textResult(target), nil
}

// reinjectOverlayTool re-runs the overlay injection, idempotently (the
// overlay script itself guards against double-load, per spec §4.E).
type reinjectOverlayTool struct{ s *Server }

func (t *reinjectOverlayTool) Name() string        { return "reinject_overlay" }
func (t *reinjectOverlayTool) Description() string { return "Re-inject the annotation overlay into the current page, refreshing its badge state." }
func (t *reinjectOverlayTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *reinjectOverlayTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	if err := t.s.sessions.EnsureConnected(ctx); err != nil {
		return Result{}, bridgeerr.Wrap(bridgeerr.KindUnreachable, "reinject overlay", err)
	}
	script := overlay.Build(t.s.annotations.Port())
	if _, err := t.s.sessions.Evaluate(ctx, script); err != nil {
		return Result{}, bridgeerr.Wrap(bridgeerr.KindEval, "overlay injection failed", err)
	}
	return textResult(map[string]bool{"injected": true}), nil
}
