// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
// Tests inject values directly:
//
//	ctx = requestcontext.WithEmployeeID(ctx, employeeID)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "rollcall/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	employeeIDKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	deviceNameKey  struct{}
	clientIPKey    struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyEmployeeID  = employeeIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyDeviceName  = deviceNameKey{}
	ContextKeyClientIP    = clientIPKey{}
)

// EmployeeID retrieves the authenticated employee ID from the context.
// Returns the zero value (nil UUID) if not set.
func EmployeeID(ctx context.Context) id.EmployeeID {
	if eid, ok := ctx.Value(ContextKeyEmployeeID).(id.EmployeeID); ok {
		return eid
	}
	return id.EmployeeID{}
}

// WithEmployeeID injects an employee ID into the context.
func WithEmployeeID(ctx context.Context, eid id.EmployeeID) context.Context {
	return context.WithValue(ctx, ContextKeyEmployeeID, eid)
}

// RequestID retrieves the correlation ID assigned by middleware.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, rid)
}

// Now returns the request-pinned time when set, falling back to time.Now.
// Pinning the clock at the middleware boundary keeps all timestamps within a
// request consistent and makes duration math testable.
func Now(ctx context.Context) time.Time {
	if ts, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return ts
	}
	return time.Now()
}

// WithTime pins the request time in the context.
func WithTime(ctx context.Context, ts time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, ts)
}

// DeviceName retrieves the human-readable device description parsed from the
// User-Agent header.
func DeviceName(ctx context.Context) string {
	if name, ok := ctx.Value(ContextKeyDeviceName).(string); ok {
		return name
	}
	return ""
}

// WithDeviceName injects a device description into the context.
func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKeyDeviceName, name)
}

// ClientIP retrieves the caller's IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the caller's IP address into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}
