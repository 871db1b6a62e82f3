// Package integrationtests drives the assembled HTTP surface end to end on
// in-memory stores: real router, real middleware, real JWT signing, real
// biometric encoder.
package integrationtests

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attendancehandler "rollcall/internal/attendance/handler"
	"rollcall/internal/attendance/ledger"
	attendanceservice "rollcall/internal/attendance/service"
	"rollcall/internal/biometric/pixelmatch"
	"rollcall/internal/geofence"
	jwttoken "rollcall/internal/jwt_token"
	rosterhandler "rollcall/internal/roster/handler"
	rosterservice "rollcall/internal/roster/service"
	rosterstore "rollcall/internal/roster/store"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/audit/publisher"
	auditmem "rollcall/pkg/platform/audit/store/memory"
	"rollcall/pkg/platform/middleware/admin"
	"rollcall/pkg/platform/middleware/auth"
	"rollcall/pkg/platform/middleware/device"
	"rollcall/pkg/platform/middleware/requestid"
	"rollcall/pkg/platform/middleware/requesttime"
	"rollcall/pkg/testutil"
)

const adminToken = "test-admin-token"

var (
	nearOffice = map[string]any{"lat": 40.7129, "lng": -74.0061}
	brooklyn   = map[string]any{"lat": 40.730, "lng": -73.935}
)

type testApp struct {
	router http.Handler
	audit  *auditmem.InMemoryStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	zone, err := geofence.New(geofence.Zone{
		Center:      geofence.Coordinate{Lat: 40.7128, Lng: -74.0060},
		ToleranceKm: 0.5,
	})
	require.NoError(t, err)

	rosterStore := rosterstore.NewInMemoryStore()
	auditStore := auditmem.NewInMemoryStore()
	emitter := publisher.NewPublisher(auditStore)
	t.Cleanup(emitter.Close)

	roster, err := rosterservice.New(rosterStore,
		rosterservice.WithLogger(log),
		rosterservice.WithAuditEmitter(emitter),
	)
	require.NoError(t, err)

	gate, err := attendanceservice.New(rosterStore, ledger.NewInMemoryStore(), zone, pixelmatch.New(),
		attendanceservice.WithLogger(log),
		attendanceservice.WithAuditEmitter(emitter),
	)
	require.NoError(t, err)

	tokens := jwttoken.NewJWTService("integration-signing-key", "rollcall", time.Hour)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(device.Middleware)

	requireAuth := auth.RequireAuth(tokens, log)
	requireAdmin := admin.RequireAdminToken(adminToken, log)
	attendancehandler.New(gate, log).Register(r, requireAuth, requireAdmin)
	rosterhandler.New(roster, tokens, log).Register(r, requireAdmin)

	return &testApp{router: r, audit: auditStore}
}

// register creates an employee through the admin API and returns its ID.
func (a *testApp) register(t *testing.T, email string) string {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/employees", map[string]any{
		"email":     email,
		"full_name": "Ada Lovelace",
		"password":  "correct horse",
	})
	req.Header.Set("X-Admin-Token", adminToken)
	rr := testutil.DoRequest(a.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return testutil.UnmarshalResponse[struct {
		ID string `json:"id"`
	}](t, rr).ID
}

// login authenticates and returns a bearer token.
func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()
	rr := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}](t, rr)
	assert.Equal(t, "Bearer", resp.TokenType)
	return resp.AccessToken
}

type sessionResponse struct {
	ID           string   `json:"id"`
	EmployeeID   string   `json:"employee_id"`
	Status       string   `json:"status"`
	WorkingHours *float64 `json:"working_hours"`
}

func TestAPI_AttendanceLifecycle(t *testing.T) {
	app := newTestApp(t)

	var (
		employeeID string
		token      string
	)

	testutil.Given(t, "a registered employee with a valid token", func(t *testing.T) {
		employeeID = app.register(t, "ada@example.com")
		token = app.login(t, "ada@example.com", "correct horse")
	})

	testutil.Then(t, "they start checked out", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/attendance/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[struct {
			CheckedIn bool `json:"checked_in"`
		}](t, rr)
		assert.False(t, resp.CheckedIn)
	})

	testutil.When(t, "they check in from inside the zone", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/attendance/check-in", nearOffice)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		session := testutil.UnmarshalResponse[sessionResponse](t, rr)
		assert.Equal(t, employeeID, session.EmployeeID)
		assert.Equal(t, "OPEN", session.Status)
	})

	testutil.Then(t, "a second check-in conflicts", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/attendance/check-in", nearOffice)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "already_checked_in")
	})

	testutil.Then(t, "the admin sees them as present", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/admin/attendance/present", nil)
		req.Header.Set("X-Admin-Token", adminToken)
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[struct {
			Present []struct {
				Employee struct {
					ID string `json:"id"`
				} `json:"employee"`
			} `json:"present"`
		}](t, rr)
		require.Len(t, resp.Present, 1)
		assert.Equal(t, employeeID, resp.Present[0].Employee.ID)
	})

	testutil.When(t, "they check out", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/attendance/check-out", nearOffice)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		session := testutil.UnmarshalResponse[sessionResponse](t, rr)
		assert.Equal(t, "CLOSED", session.Status)
		require.NotNil(t, session.WorkingHours)
		assert.GreaterOrEqual(t, *session.WorkingHours, 0.0)
	})

	testutil.Then(t, "the summary counts the closed session", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/attendance/summary", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		summary := testutil.UnmarshalResponse[struct {
			Sessions int `json:"sessions"`
		}](t, rr)
		assert.Equal(t, 1, summary.Sessions)
	})

	testutil.Then(t, "the audit trail recorded both transitions", func(t *testing.T) {
		parsed, err := id.ParseEmployeeID(employeeID)
		require.NoError(t, err)
		events, err := app.audit.ListByEmployee(t.Context(), parsed)
		require.NoError(t, err)

		var actions []audit.AuditEvent
		for _, e := range events {
			actions = append(actions, e.Action)
		}
		assert.Contains(t, actions, audit.EventCheckedIn)
		assert.Contains(t, actions, audit.EventCheckedOut)
	})
}

func TestAPI_GeofenceRejectsRemoteCheckIn(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "ada@example.com")
	token := app.login(t, "ada@example.com", "correct horse")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/attendance/check-in", brooklyn)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := testutil.DoRequest(app.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "out_of_range")
}

func TestAPI_BiometricGate(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "ada@example.com")
	token := app.login(t, "ada@example.com", "correct horse")

	enrolled := checkerboardSample(t)

	testutil.Given(t, "a first check-in with a sample enrolls the employee", func(t *testing.T) {
		body := map[string]any{"lat": 40.7129, "lng": -74.0061, "sample": enrolled}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/attendance/check-in", body)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	testutil.Then(t, "checking out without a sample is rejected", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/attendance/check-out", nearOffice)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "sample_required")
	})

	testutil.Then(t, "a different subject's sample is rejected", func(t *testing.T) {
		body := map[string]any{"lat": 40.7129, "lng": -74.0061, "sample": splitSample(t)}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/attendance/check-out", body)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "biometric_mismatch")
	})

	testutil.Then(t, "the enrolled sample checks out", func(t *testing.T) {
		body := map[string]any{"lat": 40.7129, "lng": -74.0061, "sample": enrolled}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/attendance/check-out", body)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}

func TestAPI_ForceCheckOut(t *testing.T) {
	app := newTestApp(t)
	employeeID := app.register(t, "ada@example.com")
	token := app.login(t, "ada@example.com", "correct horse")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/attendance/check-in", nearOffice)
	req.Header.Set("Authorization", "Bearer "+token)
	testutil.AssertStatus(t, testutil.DoRequest(app.router, req), http.StatusOK)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/admin/attendance/"+employeeID+"/force-check-out",
		map[string]any{"reason": "forgot badge at the office"})
	req.Header.Set("X-Admin-Token", adminToken)
	rr := testutil.DoRequest(app.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	session := testutil.UnmarshalResponse[struct {
		Status string `json:"status"`
		Reason string `json:"force_close_reason"`
	}](t, rr)
	assert.Equal(t, "CLOSED", session.Status)
	assert.Equal(t, "forgot badge at the office", session.Reason)
}

func TestAPI_AuthBoundaries(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "ada@example.com")

	t.Run("attendance requires a bearer token", func(t *testing.T) {
		rr := testutil.DoRequest(app.router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/check-in", nearOffice))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("admin routes require the admin token", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/admin/employees", nil)
		req.Header.Set("X-Admin-Token", "wrong")
		rr := testutil.DoRequest(app.router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("login rejects a bad password", func(t *testing.T) {
		rr := testutil.DoRequest(app.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
			"email":    "ada@example.com",
			"password": "wrong",
		}))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})
}

// checkerboardSample renders a single high-contrast checkerboard patch on a
// flat canvas, the shape the encoder reads as one subject.
func checkerboardSample(t *testing.T) string {
	t.Helper()
	return encodeCanvas(t, func(canvas *image.Gray) {
		for y := 64; y < 160; y++ {
			for x := 64; x < 160; x++ {
				if (x/4+y/4)%2 == 0 {
					canvas.SetGray(x, y, color.Gray{Y: 0})
				} else {
					canvas.SetGray(x, y, color.Gray{Y: 255})
				}
			}
		}
	})
}

// splitSample renders a half-black half-white patch: still one subject, but
// with a texture far from the checkerboard encoding.
func splitSample(t *testing.T) string {
	t.Helper()
	return encodeCanvas(t, func(canvas *image.Gray) {
		for y := 64; y < 160; y++ {
			for x := 64; x < 160; x++ {
				if x < 112 {
					canvas.SetGray(x, y, color.Gray{Y: 0})
				} else {
					canvas.SetGray(x, y, color.Gray{Y: 255})
				}
			}
		}
	})
}

func encodeCanvas(t *testing.T, draw func(*image.Gray)) string {
	t.Helper()
	canvas := image.NewGray(image.Rect(0, 0, 256, 256))
	for y := range 256 {
		for x := range 256 {
			canvas.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	draw(canvas)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, canvas))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
