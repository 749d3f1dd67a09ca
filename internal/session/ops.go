package session

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"agentbridge-mcp-server/internal/bridgeerr"
)

const evalTimeout = 10 * time.Second

// Evaluate runs expr as a page-script expression and returns its JSON
// representation, bounded by the 10s evaluation timeout from spec §5.
func (m *Manager) Evaluate(ctx context.Context, expr string) (string, error) {
	page, err := m.currentPage()
	if err != nil {
		return "", bridgeerr.Wrap(bridgeerr.KindSessionLost, "not connected", err)
	}

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	res, err := page.Context(evalCtx).Eval(expr)
	if err != nil {
		return "", bridgeerr.Wrap(bridgeerr.KindEval, "evaluation failed", err)
	}
	return res.Value.String(), nil
}

// Rect is a clip rectangle for screenshot capture.
type Rect struct {
	X, Y, Width, Height float64
}

// Screenshot captures the page (optionally clipped to rect) and returns a
// base64 PNG data URL.
func (m *Manager) Screenshot(ctx context.Context, rect *Rect) (string, error) {
	page, err := m.currentPage()
	if err != nil {
		return "", bridgeerr.Wrap(bridgeerr.KindSessionLost, "not connected", err)
	}

	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if rect != nil {
		req.Clip = &proto.PageViewport{
			X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height, Scale: 1,
		}
	}

	data, err := page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return "", bridgeerr.Wrap(bridgeerr.KindIO, "screenshot failed", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Reload reloads the current page.
func (m *Manager) Reload(ctx context.Context) error {
	page, err := m.currentPage()
	if err != nil {
		return bridgeerr.Wrap(bridgeerr.KindSessionLost, "not connected", err)
	}
	if err := page.Context(ctx).Reload(); err != nil {
		return bridgeerr.Wrap(bridgeerr.KindIO, "reload failed", err)
	}
	return nil
}

// Navigate navigates the current page to rawURL. Scheme restriction
// (http/https/file) is enforced by the tool surface, not here.
func (m *Manager) Navigate(ctx context.Context, rawURL string) error {
	page, err := m.currentPage()
	if err != nil {
		return bridgeerr.Wrap(bridgeerr.KindSessionLost, "not connected", err)
	}
	if err := page.Context(ctx).Navigate(rawURL); err != nil {
		return bridgeerr.Wrap(bridgeerr.KindIO, "navigate failed", err)
	}
	return nil
}

// QuerySelectorAll returns the outer HTML of every element matching
// selector, truncated per element is the caller's responsibility.
func (m *Manager) QuerySelectorAll(ctx context.Context, selector string) ([]string, error) {
	page, err := m.currentPage()
	if err != nil {
		return nil, bridgeerr.Wrap(bridgeerr.KindSessionLost, "not connected", err)
	}

	elements, err := page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, bridgeerr.Wrap(bridgeerr.KindEval, "query selector failed", err)
	}

	out := make([]string, 0, len(elements))
	for _, el := range elements {
		html, err := el.HTML()
		if err != nil {
			continue
		}
		out = append(out, html)
	}
	return out, nil
}

// DocumentHTML returns the outer HTML of the document root.
func (m *Manager) DocumentHTML(ctx context.Context) (string, error) {
	page, err := m.currentPage()
	if err != nil {
		return "", bridgeerr.Wrap(bridgeerr.KindSessionLost, "not connected", err)
	}
	root, err := page.Context(ctx).Element("html")
	if err != nil {
		return "", bridgeerr.Wrap(bridgeerr.KindEval, "get document failed", err)
	}
	return root.HTML()
}

// NetworkResponseBody fetches the response body for a previously observed
// request id (truncation is applied by the tool surface).
func (m *Manager) NetworkResponseBody(ctx context.Context, requestID string) (string, error) {
	page, err := m.currentPage()
	if err != nil {
		return "", bridgeerr.Wrap(bridgeerr.KindSessionLost, "not connected", err)
	}
	res, err := proto.NetworkGetResponseBody{RequestID: proto.NetworkRequestID(requestID)}.Call(page)
	if err != nil {
		return "", bridgeerr.Wrap(bridgeerr.KindIO, "get response body failed", err)
	}
	return res.Body, nil
}
