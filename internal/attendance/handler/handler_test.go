package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rollcall/internal/attendance/handler/mocks"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/service"
	"rollcall/internal/geofence"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

func passthrough(next http.Handler) http.Handler { return next }

// asEmployee injects the authenticated employee the way the auth middleware
// would.
func asEmployee(employeeID id.EmployeeID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithEmployeeID(r.Context(), employeeID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestRouter(t *testing.T, employeeID id.EmployeeID) (*chi.Mux, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(mockService, logger).Register(r, asEmployee(employeeID), passthrough)
	return r, mockService
}

func TestHandleCheckIn(t *testing.T) {
	employeeID := id.NewEmployeeID()
	loc := geofence.Coordinate{Lat: 40.7129, Lng: -74.0061}

	t.Run("accepted check-in returns the open session", func(t *testing.T) {
		r, mockService := newTestRouter(t, employeeID)
		session := models.NewSession(employeeID, time.Now().UTC(), loc)
		mockService.EXPECT().CheckIn(gomock.Any(), employeeID, "sample-data", loc).Return(session, nil)

		body, err := json.Marshal(transitionRequest{Lat: loc.Lat, Lng: loc.Lng, Sample: "sample-data"})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/attendance/check-in", bytes.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		var resp models.Session
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, session.ID, resp.ID)
		assert.Equal(t, models.StatusOpen, resp.Status)
	})

	t.Run("out-of-range rejection maps to 403 with the distance", func(t *testing.T) {
		r, mockService := newTestRouter(t, employeeID)
		mockService.EXPECT().CheckIn(gomock.Any(), employeeID, "", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeOutOfRange, "location is 11.14 km from the authorized zone"))

		body := []byte(`{"lat": 40.730, "lng": -73.935}`)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/attendance/check-in", bytes.NewReader(body)))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "out_of_range")
		assert.Contains(t, w.Body.String(), "11.14")
	})

	t.Run("duplicate check-in maps to 409", func(t *testing.T) {
		r, mockService := newTestRouter(t, employeeID)
		mockService.EXPECT().CheckIn(gomock.Any(), employeeID, "", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeAlreadyCheckedIn, "an open session already exists"))

		body := []byte(`{"lat": 40.7129, "lng": -74.0061}`)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/attendance/check-in", bytes.NewReader(body)))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "already_checked_in")
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		r, _ := newTestRouter(t, employeeID)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/attendance/check-in", bytes.NewReader([]byte("{"))))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleStatus(t *testing.T) {
	employeeID := id.NewEmployeeID()

	t.Run("no open session", func(t *testing.T) {
		r, mockService := newTestRouter(t, employeeID)
		mockService.EXPECT().CurrentStatus(gomock.Any(), employeeID).Return(nil, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/attendance/status", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp statusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.CheckedIn)
		assert.Nil(t, resp.Session)
	})

	t.Run("open session present", func(t *testing.T) {
		r, mockService := newTestRouter(t, employeeID)
		session := models.NewSession(employeeID, time.Now().UTC(), geofence.Coordinate{Lat: 1, Lng: 1})
		mockService.EXPECT().CurrentStatus(gomock.Any(), employeeID).Return(session, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/attendance/status", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp statusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.CheckedIn)
		require.NotNil(t, resp.Session)
	})
}

func TestHandleSummary(t *testing.T) {
	employeeID := id.NewEmployeeID()

	t.Run("parses range bounds", func(t *testing.T) {
		r, mockService := newTestRouter(t, employeeID)
		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
		mockService.EXPECT().Summarize(gomock.Any(), employeeID, from, to).
			Return(service.Summary{Sessions: 20, TotalHours: 160, AverageHours: 8}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
			"/attendance/summary?from=2026-03-01T00:00:00Z&to=2026-03-31T00:00:00Z", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp service.Summary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 20, resp.Sessions)
		assert.InDelta(t, 8.0, resp.AverageHours, 1e-9)
	})

	t.Run("rejects a malformed bound", func(t *testing.T) {
		r, _ := newTestRouter(t, employeeID)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/attendance/summary?from=yesterday", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleForceCheckOut(t *testing.T) {
	employeeID := id.NewEmployeeID()

	t.Run("closes with a reason", func(t *testing.T) {
		r, mockService := newTestRouter(t, id.NewEmployeeID())
		session := models.NewSession(employeeID, time.Now().UTC(), geofence.Coordinate{Lat: 1, Lng: 1})
		mockService.EXPECT().ForceCheckOut(gomock.Any(), employeeID, "forgot to check out").Return(session, nil)

		body := []byte(`{"reason": "forgot to check out"}`)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
			"/admin/attendance/"+employeeID.String()+"/force-check-out", bytes.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects a malformed employee ID", func(t *testing.T) {
		r, _ := newTestRouter(t, id.NewEmployeeID())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
			"/admin/attendance/not-a-uuid/force-check-out", bytes.NewReader([]byte(`{"reason":"x"}`))))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthContextMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(mocks.NewMockService(ctrl), logger).Register(r, passthrough, passthrough)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/attendance/status", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
