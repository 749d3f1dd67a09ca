// Package correlation extracts well-known request/trace identifiers out of
// network headers and console text so telemetry entries can be grouped by
// the request they belong to, even across process boundaries.
package correlation

import (
	"regexp"
	"strings"
)

var (
	traceparentPattern = regexp.MustCompile(`(?i)^\s*([0-9a-f]{2})-([0-9a-f]{32})-([0-9a-f]{16})-([0-9a-f]{2})\s*$`)
	cloudTracePattern  = regexp.MustCompile(`(?i)^\s*([0-9a-f]{32})(?:/[0-9]+)?(?:;o=\d+)?\s*$`)

	requestIDPattern  = regexp.MustCompile(`(?i)\b(?:x-request-id|request[_-]?id)\b["']?\s*(?:=|:)\s*["']?([a-z0-9][a-z0-9._:/\-]{5,127})`)
	traceparentMsgPat = regexp.MustCompile(`(?i)\btraceparent\b["']?\s*(?:=|:)\s*["']?([0-9a-f]{2}-[0-9a-f]{32}-[0-9a-f]{16}-[0-9a-f]{2})`)
	cloudTraceMsgPat  = regexp.MustCompile(`(?i)\bx-cloud-trace-context\b["']?\s*(?:=|:)\s*["']?([0-9a-f]{32})(?:/[0-9]+)?`)
)

// FromHeader extracts a normalized correlation key from a single network
// request/response header, or "" if the header carries none.
func FromHeader(name, value string) string {
	headerName := strings.ToLower(strings.TrimSpace(name))
	headerValue := normalize(value)
	if headerName == "" || headerValue == "" {
		return ""
	}

	switch headerName {
	case "x-request-id", "request-id", "request_id":
		return headerValue
	case "x-correlation-id", "correlation-id", "correlation_id":
		return headerValue
	case "x-trace-id", "trace-id", "trace_id", "x-b3-traceid":
		return headerValue
	case "traceparent":
		return traceFromTraceparent(headerValue)
	case "x-cloud-trace-context":
		return traceFromCloudTrace(headerValue)
	}
	return ""
}

// FromMessage scans arbitrary console/log text for embedded correlation
// identifiers (x-request-id=..., traceparent: ..., etc.) and returns the
// deduplicated set found, if any.
func FromMessage(message string) []string {
	msg := strings.ToLower(message)
	if strings.TrimSpace(msg) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for _, m := range requestIDPattern.FindAllStringSubmatch(msg, -1) {
		if len(m) >= 2 {
			add(normalize(m[1]))
		}
	}
	for _, m := range traceparentMsgPat.FindAllStringSubmatch(msg, -1) {
		if len(m) >= 2 {
			add(traceFromTraceparent(m[1]))
		}
	}
	for _, m := range cloudTraceMsgPat.FindAllStringSubmatch(msg, -1) {
		if len(m) >= 2 {
			add(traceFromCloudTrace(m[1]))
		}
	}
	return out
}

func traceFromTraceparent(value string) string {
	m := traceparentPattern.FindStringSubmatch(value)
	if len(m) != 5 {
		return ""
	}
	return normalize(m[2])
}

func traceFromCloudTrace(value string) string {
	m := cloudTracePattern.FindStringSubmatch(value)
	if len(m) != 2 {
		return ""
	}
	return normalize(m[1])
}

func normalize(value string) string {
	v := strings.TrimSpace(strings.ToLower(value))
	v = strings.Trim(v, "\"'`")
	v = strings.TrimRight(v, ".,;:)]}")
	return v
}
