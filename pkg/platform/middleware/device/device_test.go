package device

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"rollcall/pkg/requestcontext"
)

func TestDescribe(t *testing.T) {
	t.Run("browser gets name and major version", func(t *testing.T) {
		desc := describe("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		assert.Contains(t, desc, "Chrome 120")
		assert.NotContains(t, desc, "120.0", "only the major version is kept")
	})

	t.Run("curl keeps its product token", func(t *testing.T) {
		assert.Equal(t, "curl", describe("curl/8.4.0"))
	})

	t.Run("empty header", func(t *testing.T) {
		assert.Equal(t, "unknown device", describe(""))
	})
}

func TestClientIP(t *testing.T) {
	newRequest := func(remoteAddr string, headers map[string]string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remoteAddr
		for k, v := range headers {
			r.Header.Set(k, v)
		}
		return r
	}

	t.Run("forwarded chain takes the first hop", func(t *testing.T) {
		r := newRequest("10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"})
		assert.Equal(t, "203.0.113.7", clientIP(r))
	})

	t.Run("real IP header", func(t *testing.T) {
		r := newRequest("10.0.0.1:1234", map[string]string{"X-Real-IP": "203.0.113.9"})
		assert.Equal(t, "203.0.113.9", clientIP(r))
	})

	t.Run("falls back to remote addr without the port", func(t *testing.T) {
		assert.Equal(t, "203.0.113.5", clientIP(newRequest("203.0.113.5:5000", nil)))
	})

	t.Run("strips IPv6 brackets", func(t *testing.T) {
		assert.Equal(t, "::1", clientIP(newRequest("[::1]:5000", nil)))
	})
}

func TestMiddleware_PopulatesContext(t *testing.T) {
	var deviceName, ip string
	handler := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deviceName = requestcontext.DeviceName(r.Context())
		ip = requestcontext.ClientIP(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "curl/8.4.0")
	req.RemoteAddr = "203.0.113.5:5000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "curl", deviceName)
	assert.Equal(t, "203.0.113.5", ip)
}
