package testutil

import (
	"net/http"
	"time"

	id "rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
)

// AsEmployee stamps the request with an authenticated employee ID, the way
// the auth middleware would for a valid bearer token.
func AsEmployee(req *http.Request, employeeID id.EmployeeID) *http.Request {
	return req.WithContext(requestcontext.WithEmployeeID(req.Context(), employeeID))
}

// AtTime pins the request-scoped clock, the way the requesttime middleware
// would at the start of a request.
func AtTime(req *http.Request, ts time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), ts))
}
