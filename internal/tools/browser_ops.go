package tools

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"agentbridge-mcp-server/internal/bridgeerr"
	"agentbridge-mcp-server/internal/session"
)

// evaluateTool runs an arbitrary page-script expression.
type evaluateTool struct{ s *Server }

func (t *evaluateTool) Name() string        { return "evaluate" }
func (t *evaluateTool) Description() string { return "Evaluate a JavaScript expression in the current page and return its JSON representation." }
func (t *evaluateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"expression": map[string]interface{}{"type": "string"}},
		"required":   []string{"expression"},
	}
}

func (t *evaluateTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	if err := t.s.sessions.EnsureConnected(ctx); err != nil {
		return Result{}, bridgeerr.Wrap(bridgeerr.KindUnreachable, "evaluate", err)
	}
	expr := argString(args, "expression", "")
	value, err := t.s.sessions.Evaluate(ctx, expr)
	if err != nil {
		// EvaluationException per spec §7: the call is not a protocol error,
		// the page-script exception is returned as structured content.
		return textResult(map[string]interface{}{"exception": err.Error()}), nil
	}
	return textResult(map[string]interface{}{"value": value}), nil
}

// screenshotTool captures the page (or a clipped rect) as an image block.
type screenshotTool struct{ s *Server }

func (t *screenshotTool) Name() string        { return "screenshot" }
func (t *screenshotTool) Description() string { return "Capture a PNG screenshot of the current page, optionally clipped to a rectangle." }
func (t *screenshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"x": map[string]interface{}{"type": "number"}, "y": map[string]interface{}{"type": "number"},
			"width": map[string]interface{}{"type": "number"}, "height": map[string]interface{}{"type": "number"},
		},
	}
}

func (t *screenshotTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	if err := t.s.sessions.EnsureConnected(ctx); err != nil {
		return Result{}, bridgeerr.Wrap(bridgeerr.KindUnreachable, "screenshot", err)
	}
	var rect *session.Rect
	if w, ok := args["width"].(float64); ok && w > 0 {
		rect = &session.Rect{
			X: floatArg(args, "x"), Y: floatArg(args, "y"),
			Width: w, Height: floatArg(args, "height"),
		}
	}
	dataURL, err := t.s.sessions.Screenshot(ctx, rect)
	if err != nil {
		return Result{}, err
	}
	data, mime, ok := splitDataURL(dataURL)
	if !ok {
		return textResult(map[string]string{"dataUrl": dataURL}), nil
	}
	return Result{Blocks: []mcp.Content{mcp.NewImageContent(data, mime)}}, nil
}

func floatArg(args map[string]interface{}, key string) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return 0
}

// reloadTool reloads the current page.
type reloadTool struct{ s *Server }

func (t *reloadTool) Name() string        { return "reload" }
func (t *reloadTool) Description() string { return "Reload the current page." }
func (t *reloadTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *reloadTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	if err := t.s.sessions.EnsureConnected(ctx); err != nil {
		return Result{}, bridgeerr.Wrap(bridgeerr.KindUnreachable, "reload", err)
	}
	if err := t.s.sessions.Reload(ctx); err != nil {
		return Result{}, err
	}
	return textResult(map[string]bool{"reloaded": true}), nil
}

// navigateTool navigates the current page, restricted to http/https/file.
type navigateTool struct{ s *Server }

func (t *navigateTool) Name() string        { return "navigate" }
func (t *navigateTool) Description() string { return "Navigate the current page to a URL (http, https, or file scheme only)." }
func (t *navigateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"url": map[string]interface{}{"type": "string"}},
		"required":   []string{"url"},
	}
}

func (t *navigateTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	url := argString(args, "url", "")
	if !hasAllowedScheme(url) {
		return Result{}, bridgeerr.New(bridgeerr.KindBadRequest, "navigate: url scheme must be http, https, or file")
	}
	if err := t.s.sessions.EnsureConnected(ctx); err != nil {
		return Result{}, bridgeerr.Wrap(bridgeerr.KindUnreachable, "navigate", err)
	}
	if err := t.s.sessions.Navigate(ctx, url); err != nil {
		return Result{}, err
	}
	return textResult(map[string]bool{"navigated": true}), nil
}

func hasAllowedScheme(rawURL string) bool {
	for _, scheme := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(strings.ToLower(rawURL), scheme) {
			return true
		}
	}
	return false
}

// querySelectorTool returns the outer HTML of every element matching a CSS
// selector, each truncated per spec §4.H's output-truncation rule.
type querySelectorTool struct{ s *Server }

func (t *querySelectorTool) Name() string        { return "query_selector_all" }
func (t *querySelectorTool) Description() string { return "Return the outer HTML of every element in the current page matching a CSS selector." }
func (t *querySelectorTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"selector": map[string]interface{}{"type": "string"}},
		"required":   []string{"selector"},
	}
}

func (t *querySelectorTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	if err := t.s.sessions.EnsureConnected(ctx); err != nil {
		return Result{}, bridgeerr.Wrap(bridgeerr.KindUnreachable, "query_selector_all", err)
	}
	selector := argString(args, "selector", "")
	elements, err := t.s.sessions.QuerySelectorAll(ctx, selector)
	if err != nil {
		return Result{}, err
	}
	out := make([]map[string]interface{}, 0, len(elements))
	for _, html := range elements {
		body, truncated := truncateBody(html)
		entry := map[string]interface{}{"html": body}
		if truncated {
			entry["truncated"] = true
		}
		out = append(out, entry)
	}
	return textResult(map[string]interface{}{"elements": out}), nil
}

// waitAndRetrieveTool polls for a page target to appear (or a short settle
// delay) then returns the currently buffered console/network state, saving
// the caller a separate connect+retrieve round trip.
type waitAndRetrieveTool struct{ s *Server }

func (t *waitAndRetrieveTool) Name() string        { return "wait_and_retrieve" }
func (t *waitAndRetrieveTool) Description() string { return "Wait up to wait_ms for the page to settle, then return buffered console and network telemetry." }
func (t *waitAndRetrieveTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"wait_ms": map[string]interface{}{"type": "integer"}},
	}
}

func (t *waitAndRetrieveTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	if err := t.s.sessions.EnsureConnected(ctx); err != nil {
		return Result{}, bridgeerr.Wrap(bridgeerr.KindUnreachable, "wait_and_retrieve", err)
	}
	waitMs := argInt(args, "wait_ms", 0)
	if waitMs > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(time.Duration(waitMs) * time.Millisecond):
		}
	}
	return textResult(map[string]interface{}{
		"console": t.s.sessions.Pipeline.PeekConsole(),
		"network": t.s.sessions.Pipeline.PeekNetwork(),
	}), nil
}
