// Package device derives a human-readable device description and the client
// IP for each request. The description ends up on attendance sessions and
// audit events so a reviewer can see which device checked an employee in.
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"rollcall/pkg/requestcontext"
)

// Middleware parses the User-Agent header and resolves the client IP, then
// stores both in the request context. Apply early in the chain.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithDeviceName(ctx, describe(r.Header.Get("User-Agent")))
		ctx = requestcontext.WithClientIP(ctx, clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// describe turns a raw User-Agent into "Chrome 120 on Linux (mobile)" form.
func describe(rawUA string) string {
	if rawUA == "" {
		return "unknown device"
	}
	ua := useragent.New(rawUA)

	browser, version := ua.Browser()
	if browser == "" {
		// Non-browser clients (curl, SDKs) keep their product token.
		if idx := strings.IndexAny(rawUA, " /"); idx > 0 {
			return rawUA[:idx]
		}
		return rawUA
	}

	var b strings.Builder
	b.WriteString(browser)
	if version != "" {
		if idx := strings.Index(version, "."); idx > 0 {
			version = version[:idx]
		}
		b.WriteString(" " + version)
	}
	if os := ua.OS(); os != "" {
		b.WriteString(" on " + os)
	}
	if ua.Mobile() {
		b.WriteString(" (mobile)")
	}
	return b.String()
}

// clientIP extracts the real client IP, handling proxies and load balancers.
func clientIP(r *http.Request) string {
	// X-Forwarded-For can hold a chain; the first hop is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port"; IPv6 is "[::1]:port".
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}
	return "unknown"
}
