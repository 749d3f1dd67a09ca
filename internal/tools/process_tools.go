package tools

import (
	"context"
	"time"

	"agentbridge-mcp-server/internal/bridgeerr"
	"agentbridge-mcp-server/internal/procmgr"
)

// startProcessTool launches a managed dev-server subprocess under an
// agent-supplied id.
type startProcessTool struct{ s *Server }

func (t *startProcessTool) Name() string        { return "start_process" }
func (t *startProcessTool) Description() string {
	return "Start a managed subprocess under the given id, running it as its own process group so it can be cleanly torn down."
}
func (t *startProcessTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":      map[string]interface{}{"type": "string"},
			"command": map[string]interface{}{"type": "string"},
			"argv":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"cwd":     map[string]interface{}{"type": "string"},
			"env":     map[string]interface{}{"type": "object"},
		},
		"required": []string{"id", "command"},
	}
}

func (t *startProcessTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	req := procmgr.StartRequest{
		ID:      argString(args, "id", ""),
		Command: argString(args, "command", ""),
		Argv:    argStringSlice(args, "argv"),
		Cwd:     argString(args, "cwd", ""),
		Env:     argStringMap(args, "env"),
	}
	desc, err := t.s.processes.Start(req)
	if err != nil {
		return Result{}, err
	}
	return textResult(desc), nil
}

// stopProcessTool terminates a managed subprocess, escalating to SIGKILL if
// it doesn't exit within the grace period.
type stopProcessTool struct{ s *Server }

func (t *stopProcessTool) Name() string        { return "stop_process" }
func (t *stopProcessTool) Description() string { return "Stop a managed subprocess by id, escalating from SIGTERM to SIGKILL if it doesn't exit within the grace period." }
func (t *stopProcessTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"id": map[string]interface{}{"type": "string"}},
		"required":   []string{"id"},
	}
}

func (t *stopProcessTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	id := argString(args, "id", "")
	if id == "" {
		return Result{}, bridgeerr.New(bridgeerr.KindBadRequest, "stop_process: id is required")
	}
	if err := t.s.processes.Stop(ctx, id); err != nil {
		return Result{}, err
	}
	return textResult(map[string]bool{"stopped": true}), nil
}

// listProcessesTool reports every tracked subprocess and its status.
type listProcessesTool struct{ s *Server }

func (t *listProcessesTool) Name() string        { return "list_processes" }
func (t *listProcessesTool) Description() string { return "List every managed subprocess and its current status." }
func (t *listProcessesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *listProcessesTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	return textResult(map[string]interface{}{"processes": t.s.processes.List()}), nil
}

// processLogsTool returns a managed subprocess's buffered log lines,
// optionally narrowed to lines at or after since_iso or within window_ms of
// around_iso.
type processLogsTool struct{ s *Server }

func (t *processLogsTool) Name() string        { return "process_logs" }
func (t *processLogsTool) Description() string {
	return "Return a managed subprocess's buffered log lines, optionally narrowed to an RFC3339 timestamp window (since_iso, or around_iso +/- window_ms); with no window, clear=true also empties the buffer afterward."
}
func (t *processLogsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":         map[string]interface{}{"type": "string"},
			"since_iso":  map[string]interface{}{"type": "string"},
			"around_iso": map[string]interface{}{"type": "string"},
			"window_ms":  map[string]interface{}{"type": "integer"},
			"clear":      map[string]interface{}{"type": "boolean"},
		},
		"required": []string{"id"},
	}
}

func (t *processLogsTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	id := argString(args, "id", "")
	sinceIso := argString(args, "since_iso", "")
	aroundIso := argString(args, "around_iso", "")

	switch {
	case aroundIso != "":
		around, err := time.Parse(time.RFC3339Nano, aroundIso)
		if err != nil {
			return Result{}, bridgeerr.Wrap(bridgeerr.KindBadRequest, "process_logs: around_iso must be RFC3339", err)
		}
		windowMs := argInt(args, "window_ms", 2000)
		lines, err := t.s.processes.LogsAround(id, around, time.Duration(windowMs)*time.Millisecond)
		if err != nil {
			return Result{}, err
		}
		return textResult(map[string]interface{}{"lines": lines}), nil

	case sinceIso != "":
		since, err := time.Parse(time.RFC3339Nano, sinceIso)
		if err != nil {
			return Result{}, bridgeerr.Wrap(bridgeerr.KindBadRequest, "process_logs: since_iso must be RFC3339", err)
		}
		lines, err := t.s.processes.LogsSince(id, since)
		if err != nil {
			return Result{}, err
		}
		return textResult(map[string]interface{}{"lines": lines}), nil
	}

	lines, err := t.s.processes.Logs(id, argBool(args, "clear", false))
	if err != nil {
		return Result{}, err
	}
	return textResult(map[string]interface{}{"lines": lines}), nil
}
