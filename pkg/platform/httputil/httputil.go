// Package httputil centralizes JSON response writing and domain error
// translation so handlers stay thin.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "rollcall/pkg/domain-errors"
)

// errorResponse is the uniform error body returned to callers.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// statusByCode maps domain error codes to HTTP statuses.
var statusByCode = map[dErrors.Code]int{
	dErrors.CodeInvalidInput:        http.StatusBadRequest,
	dErrors.CodeValidation:          http.StatusBadRequest,
	dErrors.CodeBadRequest:          http.StatusBadRequest,
	dErrors.CodeUnauthorized:        http.StatusUnauthorized,
	dErrors.CodeForbidden:           http.StatusForbidden,
	dErrors.CodeNotFound:            http.StatusNotFound,
	dErrors.CodeConflict:            http.StatusConflict,
	dErrors.CodeTimeout:             http.StatusGatewayTimeout,
	dErrors.CodeInternal:            http.StatusInternalServerError,
	dErrors.CodeAlreadyCheckedIn:    http.StatusConflict,
	dErrors.CodeNotCheckedIn:        http.StatusConflict,
	dErrors.CodeOutOfRange:          http.StatusForbidden,
	dErrors.CodeSampleRequired:      http.StatusBadRequest,
	dErrors.CodeNoSubjectDetected:   http.StatusUnprocessableEntity,
	dErrors.CodeAmbiguousSample:     http.StatusUnprocessableEntity,
	dErrors.CodeBiometricMismatch:   http.StatusForbidden,
	dErrors.CodeVerificationTimeout: http.StatusGatewayTimeout,
	dErrors.CodeSubjectDisabled:     http.StatusForbidden,
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into an HTTP response. Internal errors
// omit the description so infrastructure details never reach callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		code = dErrors.CodeInternal
	}

	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, status, resp)
}

// DecodeJSON decodes the request body into T, reporting malformed payloads as
// bad_request. Returns false after writing the error response.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "malformed request body", "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return v, false
	}
	return v, true
}
