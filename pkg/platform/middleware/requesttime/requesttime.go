// Package requesttime pins "now" at the start of each request so all
// timestamps within it (check-in time, audit events, working hours math)
// agree.
package requesttime

import (
	"net/http"
	"time"

	"rollcall/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
