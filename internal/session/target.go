package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agentbridge-mcp-server/internal/telemetry"
)

// rawTarget mirrors the shape of one entry in the browser's /json/list
// inspection endpoint response.
type rawTarget struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	URL   string `json:"url"`
}

// listTargets fetches the current page target list from the browser's HTTP
// inspection endpoint. The result is never cached by callers (spec §4.C:
// "always re-discover via the HTTP listing").
func listTargets(ctx context.Context, host string, port int) ([]telemetry.PageTarget, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("http://%s:%d/json/list", host, port), nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer resp.Body.Close()

	var raw []rawTarget
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("list targets: decode: %w", err)
	}

	targets := make([]telemetry.PageTarget, 0, len(raw))
	for _, t := range raw {
		if t.Type != "page" {
			continue
		}
		targets = append(targets, telemetry.PageTarget{ID: t.ID, Title: t.Title, Type: t.Type, URL: t.URL})
	}
	return targets, nil
}

// isLoopbackHTTP reports whether rawURL is an http(s) URL whose hostname is
// localhost or a loopback address.
func isLoopbackHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return isLoopbackHost(u.Hostname())
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func isHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// chooseDefaultTarget applies spec §4.C's selection rules: filter internal
// URLs, then prefer loopback-http, then any http(s), then any non-internal,
// then whatever is left.
func chooseDefaultTarget(targets []telemetry.PageTarget) (telemetry.PageTarget, bool) {
	var external []telemetry.PageTarget
	for _, t := range targets {
		if !telemetry.IsInternalURL(t.URL) {
			external = append(external, t)
		}
	}
	if len(external) == 0 {
		if len(targets) == 0 {
			return telemetry.PageTarget{}, false
		}
		return targets[0], true
	}

	for _, t := range external {
		if isLoopbackHTTP(t.URL) {
			return t, true
		}
	}
	for _, t := range external {
		if isHTTP(t.URL) {
			return t, true
		}
	}
	return external[0], true
}

// ConnectOptions parameterizes connectToPage: an exact target id, or a
// case-insensitive URL substring pattern, plus an optional poll deadline.
type ConnectOptions struct {
	ID        string
	URLPattern string
	WaitMs    int
}

// selectTarget applies id/pattern matching on top of the default preference
// order, for use once ConnectOptions narrows the candidate set.
func selectTarget(targets []telemetry.PageTarget, opts ConnectOptions) (telemetry.PageTarget, bool) {
	if opts.ID != "" {
		for _, t := range targets {
			if t.ID == opts.ID {
				return t, true
			}
		}
		return telemetry.PageTarget{}, false
	}
	if opts.URLPattern != "" {
		pattern := strings.ToLower(opts.URLPattern)
		var matches []telemetry.PageTarget
		for _, t := range targets {
			if strings.Contains(strings.ToLower(t.URL), pattern) {
				matches = append(matches, t)
			}
		}
		return chooseDefaultTarget(matches)
	}
	return chooseDefaultTarget(targets)
}

// waitForTarget polls listTargets every min(300ms, waitMs) until a match
// appears or the deadline (waitMs, possibly zero meaning "try once") elapses.
func waitForTarget(ctx context.Context, host string, port int, opts ConnectOptions) (telemetry.PageTarget, error) {
	interval := 300 * time.Millisecond
	if opts.WaitMs > 0 && time.Duration(opts.WaitMs)*time.Millisecond < interval {
		interval = time.Duration(opts.WaitMs) * time.Millisecond
	}

	deadline := time.Now().Add(time.Duration(opts.WaitMs) * time.Millisecond)
	for {
		targets, err := listTargets(ctx, host, port)
		if err == nil {
			if t, ok := selectTarget(targets, opts); ok {
				return t, nil
			}
		}
		if opts.WaitMs <= 0 || time.Now().After(deadline) {
			if err != nil {
				return telemetry.PageTarget{}, err
			}
			return telemetry.PageTarget{}, fmt.Errorf("target not found: id=%q pattern=%q", opts.ID, opts.URLPattern)
		}
		select {
		case <-ctx.Done():
			return telemetry.PageTarget{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}
