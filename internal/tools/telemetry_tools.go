package tools

import (
	"context"

	"agentbridge-mcp-server/internal/bridgeerr"
)

// getConsoleTool returns buffered console telemetry, draining the buffer
// unless the caller asks to only peek at it.
type getConsoleTool struct{ s *Server }

func (t *getConsoleTool) Name() string        { return "get_console" }
func (t *getConsoleTool) Description() string { return "Return buffered console log entries, draining the buffer unless peek is true." }
func (t *getConsoleTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"peek": map[string]interface{}{"type": "boolean"}},
	}
}

func (t *getConsoleTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	if argBool(args, "peek", false) {
		return textResult(map[string]interface{}{"entries": t.s.sessions.Pipeline.PeekConsole()}), nil
	}
	return textResult(map[string]interface{}{"entries": t.s.sessions.Pipeline.DrainConsole()}), nil
}

// getNetworkTool returns buffered network telemetry, draining the buffer
// unless the caller asks to only peek at it.
type getNetworkTool struct{ s *Server }

func (t *getNetworkTool) Name() string        { return "get_network" }
func (t *getNetworkTool) Description() string { return "Return buffered network request/response entries, draining the buffer unless peek is true." }
func (t *getNetworkTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"peek": map[string]interface{}{"type": "boolean"}},
	}
}

func (t *getNetworkTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	if argBool(args, "peek", false) {
		return textResult(map[string]interface{}{"entries": t.s.sessions.Pipeline.PeekNetwork()}), nil
	}
	return textResult(map[string]interface{}{"entries": t.s.sessions.Pipeline.DrainNetwork()}), nil
}

// getNetworkDetailTool looks up a single buffered network entry by request
// id and, if it's still connected, fetches the response body for it.
type getNetworkDetailTool struct{ s *Server }

func (t *getNetworkDetailTool) Name() string        { return "get_network_detail" }
func (t *getNetworkDetailTool) Description() string {
	return "Look up a buffered network entry by request id and fetch its response body, truncated past 10KiB."
}
func (t *getNetworkDetailTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"request_id": map[string]interface{}{"type": "string"}},
		"required":   []string{"request_id"},
	}
}

func (t *getNetworkDetailTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	id := argString(args, "request_id", "")
	entry, ok := t.s.sessions.Pipeline.FindNetworkByID(id)
	if !ok {
		return Result{}, bridgeerr.New(bridgeerr.KindNotFound, "no buffered network entry for request id "+id)
	}

	out := map[string]interface{}{"entry": entry}
	if t.s.sessions.IsConnected() {
		if body, err := t.s.sessions.NetworkResponseBody(ctx, id); err == nil {
			truncated, wasTruncated := truncateBody(body)
			out["body"] = truncated
			if wasTruncated {
				out["bodyTruncated"] = true
			}
		}
	}
	return textResult(out), nil
}

// queryTelemetryTool pattern-matches mirrored telemetry facts by predicate,
// the supplemental Mangle-backed lookup spec §4.H describes alongside the
// buffer-draining tools.
type queryTelemetryTool struct{ s *Server }

func (t *queryTelemetryTool) Name() string        { return "query_telemetry" }
func (t *queryTelemetryTool) Description() string {
	return "Pattern-match mirrored telemetry facts (console_event, net_request, net_response, correlation_key) by predicate, with string arguments as exact matches and nulls as wildcards."
}
func (t *queryTelemetryTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"predicate": map[string]interface{}{"type": "string"},
			"args":      map[string]interface{}{"type": "array"},
		},
		"required": []string{"predicate"},
	}
}

func (t *queryTelemetryTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	predicate := argString(args, "predicate", "")
	if predicate == "" {
		return Result{}, bridgeerr.New(bridgeerr.KindBadRequest, "query_telemetry: predicate is required")
	}

	var queryArgs []interface{}
	if raw, ok := args["args"].([]interface{}); ok {
		queryArgs = raw
	}

	facts, err := t.s.facts.Query(predicate, queryArgs)
	if err != nil {
		return Result{}, bridgeerr.Wrap(bridgeerr.KindBadRequest, "query_telemetry", err)
	}
	return textResult(map[string]interface{}{"facts": facts}), nil
}
