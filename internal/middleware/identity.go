package middleware

// identity.go derives the per-client key used by the limiters.  The
// service runs behind a proxy, so the first X-Forwarded-For hop wins, then
// X-Real-IP.  Requests carrying neither share the "unknown" bucket.

import (
	"net"
	"strings"

	"github.com/labstack/echo/v4"
)

const unknownClient = "unknown"

// clientKey returns the caller's address as reported by the proxy.
func clientKey(c echo.Context) string {
	h := c.Request().Header
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return unknownClient
}

// remoteIP is the token bucket's key: proxy headers first, then the socket
// address.
func remoteIP(c echo.Context) string {
	if k := clientKey(c); k != unknownClient {
		return k
	}
	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil || host == "" {
		return unknownClient
	}
	return host
}
