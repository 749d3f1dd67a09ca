package tools

import (
	"context"

	"agentbridge-mcp-server/internal/bridgeerr"
)

// listAnnotationsTool returns every annotation, open and resolved.
type listAnnotationsTool struct{ s *Server }

func (t *listAnnotationsTool) Name() string        { return "list_annotations" }
func (t *listAnnotationsTool) Description() string { return "List every annotation currently held by the annotation service, open and resolved." }
func (t *listAnnotationsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *listAnnotationsTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	return textResult(map[string]interface{}{"annotations": t.s.annotations.Annotations()}), nil
}

// resolveAnnotationTool transitions a single annotation to resolved without
// deleting it, for callers that want to address feedback incrementally
// rather than waiting for the next send to auto-resolve everything open.
type resolveAnnotationTool struct{ s *Server }

func (t *resolveAnnotationTool) Name() string        { return "resolve_annotation" }
func (t *resolveAnnotationTool) Description() string { return "Mark a single annotation resolved by id, without deleting it." }
func (t *resolveAnnotationTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"id": map[string]interface{}{"type": "string"}},
		"required":   []string{"id"},
	}
}

func (t *resolveAnnotationTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	id := argString(args, "id", "")
	if id == "" {
		return Result{}, bridgeerr.New(bridgeerr.KindBadRequest, "resolve_annotation: id is required")
	}
	a, err := t.s.annotations.Resolve(id)
	if err != nil {
		return Result{}, err
	}
	t.s.removeBadge(a.ID)
	return textResult(a), nil
}

// waitForSendTool blocks until the user clicks send in the overlay (or the
// timeout elapses). It is the single tool for which the wrapping dispatcher
// sets isNewSend, so calling it does not push "done"; the idle ->
// processing transition itself happens when any tool's response consumes
// the sent state.
type waitForSendTool struct{ s *Server }

func (t *waitForSendTool) Name() string        { return "wait_for_send" }
func (t *waitForSendTool) Description() string {
	return "Block until the user clicks send on the annotation overlay, or until timeout_ms elapses (capped at 600000)."
}
func (t *waitForSendTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"timeout_ms": map[string]interface{}{"type": "integer"}},
	}
}

func (t *waitForSendTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	timeoutMs := argInt(args, "timeout_ms", 600000)
	sent := t.s.annotations.WaitForSend(timeoutMs)
	return textResult(map[string]bool{"sent": sent}), nil
}
