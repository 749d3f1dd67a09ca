package annotation

import (
	"net"
	"net/url"
	"strings"
)

const neutralOrigin = "http://localhost"

// isAllowedOrigin reports whether origin parses as an absolute http(s) URL
// whose hostname is localhost or a loopback address (spec §4.F CORS rule).
func isAllowedOrigin(origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return origin, true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return origin, true
	}
	return "", false
}

// allowedMethods is echoed on preflight responses.
const allowedMethods = "GET, POST, PATCH, DELETE, OPTIONS"

// allowedHeaders is echoed on preflight responses.
const allowedHeaders = "Content-Type"
