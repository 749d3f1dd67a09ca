// Package tools implements the tool-call surface (component H): the
// registry of operations the agent may invoke over the stdio MCP
// transport, each validated, dispatched against the session/annotation/
// process-manager APIs, and response-envelope-augmented with pending
// annotation state per spec §4.H. Grounded on the teacher's
// internal/mcp/server.go Tool-interface/registry/wrapTool shape
// (mark3labs/mcp-go), generalized from BrowserNERD's Rod-session tool set
// to this bridge's session/annotation/process domain.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"agentbridge-mcp-server/internal/annotation"
	"agentbridge-mcp-server/internal/bridgeerr"
	"agentbridge-mcp-server/internal/coordinator"
	"agentbridge-mcp-server/internal/procmgr"
	"agentbridge-mcp-server/internal/query"
	"agentbridge-mcp-server/internal/session"
)

// Tool is the contract every tool-call operation implements.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (Result, error)
}

// Result is a tool's output: either a JSON-serializable payload (rendered
// as a text content block) or an explicit set of content blocks (e.g. a
// screenshot's image block).
type Result struct {
	JSON   interface{}
	Blocks []mcp.Content
}

func textResult(v interface{}) Result { return Result{JSON: v} }

// Server is the stdio tool-call RPC surface. It owns no domain state
// itself — every handler closes over the session manager, annotation
// service, and process manager passed in at construction.
type Server struct {
	sessions    *session.Manager
	annotations *annotation.Service
	processes   *procmgr.Manager
	coord       *coordinator.Coordinator
	facts       *query.Store

	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer
}

// NewServer builds the tool surface and registers every operation named in
// spec §4.H.
func NewServer(name, version string, sessions *session.Manager, annotations *annotation.Service, processes *procmgr.Manager, coord *coordinator.Coordinator, facts *query.Store) *Server {
	mcpSrv := mcpserver.NewMCPServer(
		name, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithRecovery(),
	)

	s := &Server{
		sessions:    sessions,
		annotations: annotations,
		processes:   processes,
		coord:       coord,
		facts:       facts,
		tools:       make(map[string]Tool),
		mcpServer:   mcpSrv,
	}
	s.registerAll()
	return s
}

// Start serves the tool registry over the blocking stdio transport (spec
// §6: "text on standard output is reserved for protocol framing").
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerAll() {
	s.registerTool(&statusTool{s})
	s.registerTool(&connectPageTool{s})
	s.registerTool(&reinjectOverlayTool{s})

	s.registerTool(&evaluateTool{s})
	s.registerTool(&screenshotTool{s})
	s.registerTool(&reloadTool{s})
	s.registerTool(&navigateTool{s})
	s.registerTool(&querySelectorTool{s})
	s.registerTool(&waitAndRetrieveTool{s})

	s.registerTool(&getConsoleTool{s})
	s.registerTool(&getNetworkTool{s})
	s.registerTool(&getNetworkDetailTool{s})
	s.registerTool(&queryTelemetryTool{s})

	s.registerTool(&startProcessTool{s})
	s.registerTool(&stopProcessTool{s})
	s.registerTool(&listProcessesTool{s})
	s.registerTool(&processLogsTool{s})

	s.registerTool(&listAnnotationsTool{s})
	s.registerTool(&resolveAnnotationTool{s})
	s.registerTool(&waitForSendTool{s})
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

// wrapTool is where spec §4.H's response-envelope augmentation happens:
// the coordinator's processing/done transition runs before the handler,
// and the pending-annotation enrichment (or full send payload) runs after.
func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		isNewSend := tool.Name() == "wait_for_send"
		s.coord.BeforeToolCall(isNewSend)

		result, err := tool.Execute(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(errorEnvelope(tool.Name(), err))},
				IsError: true,
			}, nil
		}

		blocks := s.augmentEnvelope(result)
		return &mcp.CallToolResult{Content: blocks, IsError: false}, nil
	}
}

// augmentEnvelope implements the post-handler part of spec §4.H's
// augmentation: a consumed send appends the full open-annotation payload
// after the primary block and auto-resolves it; otherwise an
// open-annotation count is stitched into the primary JSON block when that
// block parses as JSON. Results that carry explicit Blocks are returned
// unchanged.
func (s *Server) augmentEnvelope(result Result) []mcp.Content {
	if result.Blocks != nil {
		return result.Blocks
	}

	primary := marshalResult(result.JSON)

	if s.annotations.ConsumeSentState() {
		s.coord.NotifySendConsumed()
		open := s.annotations.OpenAnnotations()
		blocks := []mcp.Content{mcp.NewTextContent(primary)}
		blocks = append(blocks, annotationBlocks(open)...)
		for _, a := range open {
			s.removeBadge(a.ID)
		}
		s.annotations.AutoResolveAndRemove()
		return blocks
	}

	if n := len(s.annotations.OpenAnnotations()); n > 0 {
		primary = injectPendingCount(primary, n)
	}
	return []mcp.Content{mcp.NewTextContent(primary)}
}

// removeBadge asks the overlay to drop a single pin marker by annotation
// id, best-effort: the id is whitelisted per spec §4.H before it is
// interpolated into the page-script expression.
func (s *Server) removeBadge(annotationID string) {
	if !s.sessions.IsConnected() {
		return
	}
	safeID := sanitizeIdentifier(annotationID)
	expr := fmt.Sprintf(
		"window.__agentbridgeOverlay && window.__agentbridgeOverlay.removeBadge(%q)",
		safeID,
	)
	_, _ = s.sessions.Evaluate(context.Background(), expr)
}

func annotationBlocks(open []*annotation.Annotation) []mcp.Content {
	blocks := make([]mcp.Content, 0, len(open)*2)
	for _, a := range open {
		summary, err := json.Marshal(a)
		if err != nil {
			continue
		}
		blocks = append(blocks, mcp.NewTextContent(string(summary)))
		if a.ScreenshotDataURL != "" {
			if data, mime, ok := splitDataURL(a.ScreenshotDataURL); ok {
				blocks = append(blocks, mcp.NewImageContent(data, mime))
			}
		}
	}
	return blocks
}

func splitDataURL(dataURL string) (data, mime string, ok bool) {
	const prefix = "data:"
	if !strings.HasPrefix(dataURL, prefix) {
		return "", "", false
	}
	rest := dataURL[len(prefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", "", false
	}
	meta, payload := rest[:comma], rest[comma+1:]
	mimeType := strings.TrimSuffix(meta, ";base64")
	return payload, mimeType, true
}

func marshalResult(v interface{}) string {
	payload, err := json.Marshal(v)
	if err != nil {
		fallback, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("non-serializable result: %v", err)})
		return string(fallback)
	}
	return string(payload)
}

// injectPendingCount adds a top-level "pending_annotations" field to a JSON
// object payload, leaving non-object payloads (e.g. a bare array or string)
// untouched per spec §4.H ("added only when that block parses as JSON").
func injectPendingCount(primary string, n int) string {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(primary), &obj); err != nil {
		return primary
	}
	obj["pending_annotations"] = n
	out, err := json.Marshal(obj)
	if err != nil {
		return primary
	}
	return string(out)
}

func errorEnvelope(toolName string, err error) string {
	payload, marshalErr := json.Marshal(map[string]interface{}{
		"error": err.Error(),
		"kind":  string(bridgeerr.KindOf(err)),
	})
	if marshalErr != nil {
		return fmt.Sprintf(`{"error":%q}`, fmt.Sprintf("tool %s failed", toolName))
	}
	return string(payload)
}

// sanitizeIdentifier whitelists an identifier interpolated into a
// page-script expression to [a-f0-9-], per spec §4.H's evaluation-safety
// requirement, to keep user/agent-controlled ids from escaping the
// expression they're embedded in.
func sanitizeIdentifier(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'f') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const truncateLimit = 10 * 1024

// truncateBody applies spec §4.H's 10 KiB output-truncation rule to large
// body payloads (network request/response bodies), flagging truncation
// explicitly rather than silently cutting it off.
func truncateBody(body string) (string, bool) {
	if len(body) <= truncateLimit {
		return body, false
	}
	return body[:truncateLimit], true
}
