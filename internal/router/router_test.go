package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	appointmenthandler "github.com/vidaplus/hospital-api/internal/handler/appointment"
	authhandler "github.com/vidaplus/hospital-api/internal/handler/auth"
	"github.com/vidaplus/hospital-api/internal/handler/health"
	patienthandler "github.com/vidaplus/hospital-api/internal/handler/patient"
	promhandler "github.com/vidaplus/hospital-api/internal/handler/prometheus"
	"github.com/vidaplus/hospital-api/internal/middleware"
	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository/memory"
	"github.com/vidaplus/hospital-api/internal/router"
	"github.com/vidaplus/hospital-api/internal/service/appointment"
	"github.com/vidaplus/hospital-api/internal/service/audit"
	authservice "github.com/vidaplus/hospital-api/internal/service/auth"
	"github.com/vidaplus/hospital-api/internal/service/patient"
	"github.com/vidaplus/hospital-api/pkg/auth"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
	"github.com/vidaplus/hospital-api/pkg/httputil"
	"github.com/vidaplus/hospital-api/pkg/logger"
	"github.com/vidaplus/hospital-api/pkg/metrics"
	"github.com/vidaplus/hospital-api/pkg/security"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

// TestResponse is the decoded envelope with data left raw
type TestResponse struct {
	Status     int                  `json:"-"`
	Success    bool                 `json:"success"`
	Message    string               `json:"message"`
	Data       json.RawMessage      `json:"data"`
	Errors     interface{}          `json:"errors"`
	Pagination *httputil.Pagination `json:"pagination"`
	Code       apperrors.ErrorCode  `json:"code"`
}

func (r TestResponse) into(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v), "data: %s", r.Data)
}

type testServer struct {
	engine *gin.Engine
	store  *memory.Store
	audit  *audit.AsyncLogger
	db     *pinger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	log := logger.Nop()
	m := metrics.NewNop()
	store := memory.NewStore()
	jwtSvc := auth.NewJWTService("router-test-secret", "hospital-api", time.Hour)

	authSvc := authservice.NewService(store.Identities(), store.Patients(), store.Professionals(),
		security.NewBcryptHasher(bcrypt.MinCost), jwtSvc, m, log)
	appointmentSvc := appointment.NewService(store.Appointments(), store.Patients(), store.Professionals(), nil, m, log)
	patientSvc := patient.NewService(store.Patients(), store.History(), log)
	auditLogger := audit.NewAsyncLogger(audit.NewService(store.Audit(), m), time.Second, log)

	db := &pinger{}
	r := router.NewRouter(log, middleware.NewAuthMiddleware(jwtSvc), auditLogger, router.Handlers{
		Auth:         authhandler.NewHandler(authSvc),
		Appointments: appointmenthandler.NewHandler(appointmentSvc),
		Patients:     patienthandler.NewHandler(patientSvc),
		Health:       health.NewHandler(db, "test", "1.2.3"),
		Metrics:      promhandler.New(prometheus.NewRegistry(), "hospital_api"),
	}, router.RouterConfig{
		AuthRateLimit:  rate.Inf,
		AuthRateBurst:  100,
		CORSConfig:     middleware.DefaultCORSConfig([]string{"http://localhost:3000"}),
		RequestTimeout: 5 * time.Second,
	})
	r.Setup()

	return &testServer{engine: r.Engine(), store: store, audit: auditLogger, db: db}
}

func (s *testServer) makeRequest(t *testing.T, method, path, token string, body interface{}) TestResponse {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	resp := TestResponse{Status: w.Code}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	}
	return resp
}

func (s *testServer) drainAudit(t *testing.T) []model.AuditRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.audit.Drain(ctx))
	return s.store.AuditRecords()
}

type registered struct {
	Token        string
	IdentityID   int64
	PatientID    int64
	Professional int64
}

var nationalIDSeq = 10000000000

func (s *testServer) register(t *testing.T, name string, role model.Role, extra map[string]interface{}) registered {
	t.Helper()
	nationalIDSeq++
	body := map[string]interface{}{
		"name":        name,
		"email":       strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@vidaplus.test",
		"password":    "secret123",
		"role":        role,
		"national_id": fmt.Sprintf("%011d", nationalIDSeq),
	}
	for k, v := range extra {
		body[k] = v
	}

	resp := s.makeRequest(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, resp.Status, "register %s: %s", name, resp.Message)

	var out model.AuthResponse
	resp.into(t, &out)
	r := registered{Token: out.Token, IdentityID: out.Identity.ID}
	if out.Patient != nil {
		r.PatientID = out.Patient.ID
	}
	if out.Professional != nil {
		r.Professional = out.Professional.ID
	}
	return r
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := s.makeRequest(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.Status)

	ready := s.makeRequest(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, ready.Status)

	s.db.err = fmt.Errorf("connection refused")
	ready = s.makeRequest(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, ready.Status)

	info := s.makeRequest(t, http.MethodGet, "/api", "", nil)
	assert.Equal(t, http.StatusOK, info.Status)
	assert.True(t, info.Success)
	assert.Contains(t, string(info.Data), "/api/consultas")
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	resp := s.makeRequest(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.False(t, resp.Success)
	assert.Equal(t, apperrors.ErrNotFound, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.makeRequest(t, http.MethodGet, "/health", "", nil)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `hospital_api_http_requests_total{method="GET",path="/health",status="200"}`)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice Souza", model.RolePatient, map[string]interface{}{"blood_type": "O+"})
	require.NotEmpty(t, alice.Token)
	require.NotZero(t, alice.PatientID)

	t.Run("duplicate email", func(t *testing.T) {
		resp := s.makeRequest(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
			"name": "Alice Again", "email": "alice.souza@vidaplus.test", "password": "secret123",
			"role": "PATIENT", "national_id": "99999999999",
		})
		assert.Equal(t, http.StatusConflict, resp.Status)
		assert.Equal(t, apperrors.ErrConflict, resp.Code)
	})

	t.Run("invalid payload", func(t *testing.T) {
		resp := s.makeRequest(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
			"name": "B", "email": "not-an-email", "password": "123", "role": "SURGEON", "national_id": "1",
		})
		assert.Equal(t, http.StatusBadRequest, resp.Status)
		assert.Equal(t, apperrors.ErrValidation, resp.Code)
		assert.NotNil(t, resp.Errors)
	})

	t.Run("login", func(t *testing.T) {
		resp := s.makeRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice.souza@vidaplus.test", "password": "secret123",
		})
		require.Equal(t, http.StatusOK, resp.Status)
		var out model.AuthResponse
		resp.into(t, &out)
		assert.NotEmpty(t, out.Token)

		bad := s.makeRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice.souza@vidaplus.test", "password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, bad.Status)
	})

	t.Run("me", func(t *testing.T) {
		resp := s.makeRequest(t, http.MethodGet, "/api/auth/me", alice.Token, nil)
		require.Equal(t, http.StatusOK, resp.Status)
		var profile struct {
			Email   string                `json:"email"`
			Patient *model.PatientProfile `json:"patient"`
		}
		resp.into(t, &profile)
		assert.Equal(t, "alice.souza@vidaplus.test", profile.Email)
		require.NotNil(t, profile.Patient)
		assert.Equal(t, model.RecordNumberFor(alice.IdentityID), profile.Patient.RecordNumber)

		assert.Equal(t, http.StatusUnauthorized, s.makeRequest(t, http.MethodGet, "/api/auth/me", "", nil).Status)
		assert.Equal(t, http.StatusUnauthorized, s.makeRequest(t, http.MethodGet, "/api/auth/me", "garbage", nil).Status)
	})

	t.Run("change password", func(t *testing.T) {
		resp := s.makeRequest(t, http.MethodPut, "/api/auth/change-password", alice.Token, map[string]string{
			"current_password": "wrong-password", "new_password": "newsecret1",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.Status)

		resp = s.makeRequest(t, http.MethodPut, "/api/auth/change-password", alice.Token, map[string]string{
			"current_password": "secret123", "new_password": "newsecret1",
		})
		assert.Equal(t, http.StatusOK, resp.Status)

		login := s.makeRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice.souza@vidaplus.test", "password": "newsecret1",
		})
		assert.Equal(t, http.StatusOK, login.Status)
	})

	records := s.drainAudit(t)
	actions := map[string]int{}
	for _, r := range records {
		actions[r.Action]++
		assert.NotContains(t, string(r.NewData), "token", "credentials never reach the audit trail")
	}
	assert.Equal(t, 1, actions[model.AuditActionRegister])
	assert.Equal(t, 2, actions[model.AuditActionLogin], "failed logins have no actor")
	assert.Equal(t, 2, actions[model.AuditActionChangePassword])
}

func TestAppointmentFlow(t *testing.T) {
	s := newTestServer(t)

	doctor := s.register(t, "Carla Mendes", model.RoleDoctor, map[string]interface{}{
		"specialty":      "Cardiology",
		"license_number": "CRM12345",
		"council":        "CRM",
		"availability":   map[string][]string{"monday": {"08:00-12:00"}},
	})
	nurse := s.register(t, "Nina Rocha", model.RoleNurse, map[string]interface{}{
		"specialty": "Triage", "license_number": "COREN999", "council": "COREN",
	})
	admin := s.register(t, "Ana Admin", model.RoleAdmin, nil)
	alice := s.register(t, "Alice Souza", model.RolePatient, nil)
	bob := s.register(t, "Bob Lima", model.RolePatient, nil)
	require.NotZero(t, doctor.Professional)

	// 2025-03-10 is a Monday
	book := func(token string, patientID int64, at string) TestResponse {
		return s.makeRequest(t, http.MethodPost, "/api/consultas", token, map[string]interface{}{
			"patient_id":      patientID,
			"professional_id": doctor.Professional,
			"scheduled_at":    at,
			"reason":          "check-up",
		})
	}

	resp := book(alice.Token, alice.PatientID, "2025-03-10T09:00:00")
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)
	var booked model.Appointment
	resp.into(t, &booked)
	assert.Equal(t, model.AppointmentStatusScheduled, booked.Status)
	assert.Equal(t, model.ModalityInPerson, booked.Modality)
	assert.Equal(t, model.DefaultAppointmentDuration, booked.DurationMinutes)

	t.Run("slot is exclusive", func(t *testing.T) {
		resp := book(admin.Token, bob.PatientID, "2025-03-10T09:00:00")
		assert.Equal(t, http.StatusConflict, resp.Status)
		assert.Equal(t, apperrors.ErrConflict, resp.Code)
	})

	t.Run("patients book only for themselves", func(t *testing.T) {
		resp := book(bob.Token, alice.PatientID, "2025-03-10T10:00:00")
		assert.Equal(t, http.StatusForbidden, resp.Status)
	})

	t.Run("bad scheduled_at", func(t *testing.T) {
		resp := book(alice.Token, alice.PatientID, "next monday")
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})

	t.Run("list is scoped to the caller", func(t *testing.T) {
		mine := s.makeRequest(t, http.MethodGet, "/api/consultas", alice.Token, nil)
		require.Equal(t, http.StatusOK, mine.Status)
		require.NotNil(t, mine.Pagination)
		assert.Equal(t, 1, mine.Pagination.Total)

		theirs := s.makeRequest(t, http.MethodGet, "/api/consultas", bob.Token, nil)
		require.Equal(t, http.StatusOK, theirs.Status)
		assert.Equal(t, 0, theirs.Pagination.Total)

		other := s.makeRequest(t, http.MethodGet, fmt.Sprintf("/api/consultas?patient_id=%d", alice.PatientID), bob.Token, nil)
		assert.Equal(t, http.StatusForbidden, other.Status)

		all := s.makeRequest(t, http.MethodGet, "/api/consultas?page=1&limit=5", admin.Token, nil)
		require.Equal(t, http.StatusOK, all.Status)
		assert.Equal(t, 1, all.Pagination.Total)
		assert.Equal(t, 5, all.Pagination.Limit)
	})

	t.Run("get", func(t *testing.T) {
		resp := s.makeRequest(t, http.MethodGet, fmt.Sprintf("/api/consultas/%d", booked.ID), alice.Token, nil)
		require.Equal(t, http.StatusOK, resp.Status)
		var detail model.AppointmentDetail
		resp.into(t, &detail)
		assert.Equal(t, "Carla Mendes", detail.ProfessionalName)

		missing := s.makeRequest(t, http.MethodGet, "/api/consultas/999999", alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, missing.Status)

		invalid := s.makeRequest(t, http.MethodGet, "/api/consultas/abc", alice.Token, nil)
		assert.Equal(t, http.StatusBadRequest, invalid.Status)
	})

	t.Run("availability", func(t *testing.T) {
		path := fmt.Sprintf("/api/consultas/disponibilidade/%d?data=2025-03-10", doctor.Professional)
		resp := s.makeRequest(t, http.MethodGet, path, bob.Token, nil)
		require.Equal(t, http.StatusOK, resp.Status)
		var availability model.Availability
		resp.into(t, &availability)
		assert.Equal(t, []model.BookedSlot{{Time: "09:00", Duration: 30}}, availability.BookedSlots)
		require.Len(t, availability.DeclaredWindows, 1)

		noDate := s.makeRequest(t, http.MethodGet, fmt.Sprintf("/api/consultas/disponibilidade/%d", doctor.Professional), bob.Token, nil)
		assert.Equal(t, http.StatusBadRequest, noDate.Status)
	})

	t.Run("status changes", func(t *testing.T) {
		path := fmt.Sprintf("/api/consultas/%d/status", booked.ID)

		denied := s.makeRequest(t, http.MethodPut, path, alice.Token, map[string]string{"status": "CONFIRMED"})
		assert.Equal(t, http.StatusForbidden, denied.Status)

		ok := s.makeRequest(t, http.MethodPut, path, nurse.Token, map[string]string{"status": "CONFIRMED"})
		require.Equal(t, http.StatusOK, ok.Status, ok.Message)

		illegal := s.makeRequest(t, http.MethodPut, path, doctor.Token, map[string]string{"status": "SCHEDULED"})
		assert.Equal(t, http.StatusConflict, illegal.Status)

		unknown := s.makeRequest(t, http.MethodPut, path, doctor.Token, map[string]string{"status": "LOST"})
		assert.Equal(t, http.StatusBadRequest, unknown.Status)
	})

	t.Run("cancel", func(t *testing.T) {
		path := fmt.Sprintf("/api/consultas/%d", booked.ID)

		notOwner := s.makeRequest(t, http.MethodDelete, path, bob.Token, nil)
		assert.Equal(t, http.StatusForbidden, notOwner.Status)

		nurseDenied := s.makeRequest(t, http.MethodDelete, path, nurse.Token, nil)
		assert.Equal(t, http.StatusForbidden, nurseDenied.Status)

		resp := s.makeRequest(t, http.MethodDelete, path, alice.Token, map[string]string{"reason": "travelling"})
		require.Equal(t, http.StatusOK, resp.Status, resp.Message)
		var cancelled model.Appointment
		resp.into(t, &cancelled)
		assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.Notes)
		assert.Contains(t, *cancelled.Notes, "travelling")

		again := s.makeRequest(t, http.MethodDelete, path, alice.Token, nil)
		assert.Equal(t, http.StatusConflict, again.Status)
	})

	t.Run("cancelled slot can be rebooked", func(t *testing.T) {
		resp := book(bob.Token, bob.PatientID, "2025-03-10T09:00:00")
		assert.Equal(t, http.StatusCreated, resp.Status, resp.Message)
	})

	records := s.drainAudit(t)
	var bookings, denials int
	for _, r := range records {
		if r.Action == model.AuditActionBook && r.StatusCode == http.StatusCreated {
			bookings++
			require.NotNil(t, r.ResourceID)
			require.NotNil(t, r.ResourceType)
			assert.Equal(t, "consultas", *r.ResourceType)
		}
		if r.StatusCode == http.StatusForbidden {
			denials++
		}
	}
	assert.Equal(t, 2, bookings)
	assert.GreaterOrEqual(t, denials, 4)
}

func TestPatientFlow(t *testing.T) {
	s := newTestServer(t)

	admin := s.register(t, "Ana Admin", model.RoleAdmin, nil)
	doctor := s.register(t, "Davi Castro", model.RoleDoctor, map[string]interface{}{
		"specialty": "Pediatrics", "license_number": "CRM777", "council": "CRM",
	})
	alice := s.register(t, "Alice Souza", model.RolePatient, nil)
	bob := s.register(t, "Bob Lima", model.RolePatient, nil)

	patientPath := func(id int64) string { return fmt.Sprintf("/api/pacientes/%d", id) }

	t.Run("list is staff only", func(t *testing.T) {
		denied := s.makeRequest(t, http.MethodGet, "/api/pacientes", alice.Token, nil)
		assert.Equal(t, http.StatusForbidden, denied.Status)

		resp := s.makeRequest(t, http.MethodGet, "/api/pacientes?search=bob", doctor.Token, nil)
		require.Equal(t, http.StatusOK, resp.Status)
		var items []model.PatientSummary
		resp.into(t, &items)
		require.Len(t, items, 1)
		assert.Equal(t, "Bob Lima", items[0].Name)
		assert.Equal(t, 1, resp.Pagination.Total)
	})

	t.Run("get self or staff", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, s.makeRequest(t, http.MethodGet, patientPath(alice.PatientID), alice.Token, nil).Status)
		assert.Equal(t, http.StatusOK, s.makeRequest(t, http.MethodGet, patientPath(alice.PatientID), doctor.Token, nil).Status)
		assert.Equal(t, http.StatusForbidden, s.makeRequest(t, http.MethodGet, patientPath(alice.PatientID), bob.Token, nil).Status)
		assert.Equal(t, http.StatusNotFound, s.makeRequest(t, http.MethodGet, patientPath(424242), admin.Token, nil).Status)
	})

	t.Run("update", func(t *testing.T) {
		empty := s.makeRequest(t, http.MethodPut, patientPath(alice.PatientID), alice.Token, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, empty.Status)

		denied := s.makeRequest(t, http.MethodPut, patientPath(alice.PatientID), doctor.Token, map[string]string{"phone": "1199999"})
		assert.Equal(t, http.StatusForbidden, denied.Status)

		resp := s.makeRequest(t, http.MethodPut, patientPath(alice.PatientID), alice.Token, map[string]string{
			"phone": "11988887777", "allergies": "penicillin",
		})
		require.Equal(t, http.StatusOK, resp.Status, resp.Message)
		var updated model.Patient
		resp.into(t, &updated)
		require.NotNil(t, updated.Phone)
		assert.Equal(t, "11988887777", *updated.Phone)
		require.NotNil(t, updated.Allergies)
		assert.Equal(t, "penicillin", *updated.Allergies)
	})

	t.Run("history", func(t *testing.T) {
		s.store.AddExam(alice.PatientID, model.Exam{Type: model.ExamTypeBlood, Name: "Hemogram", RequestedAt: time.Now()})

		resp := s.makeRequest(t, http.MethodGet, patientPath(alice.PatientID)+"/historico", alice.Token, nil)
		require.Equal(t, http.StatusOK, resp.Status)
		var history model.PatientHistory
		resp.into(t, &history)
		require.Len(t, history.Exams, 1)
		assert.Equal(t, "Hemogram", history.Exams[0].Name)

		denied := s.makeRequest(t, http.MethodGet, patientPath(alice.PatientID)+"/historico", bob.Token, nil)
		assert.Equal(t, http.StatusForbidden, denied.Status)
	})

	t.Run("deactivate", func(t *testing.T) {
		denied := s.makeRequest(t, http.MethodDelete, patientPath(bob.PatientID), doctor.Token, nil)
		assert.Equal(t, http.StatusForbidden, denied.Status)

		resp := s.makeRequest(t, http.MethodDelete, patientPath(bob.PatientID), admin.Token, nil)
		require.Equal(t, http.StatusOK, resp.Status, resp.Message)

		login := s.makeRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "bob.lima@vidaplus.test", "password": "secret123",
		})
		assert.Equal(t, http.StatusForbidden, login.Status)
	})

	records := s.drainAudit(t)
	var update *model.AuditRecord
	var deactivations int
	for i := range records {
		r := records[i]
		if r.Action == model.AuditActionUpdatePatient && r.StatusCode == http.StatusOK {
			update = &records[i]
		}
		if r.Action == model.AuditActionDeactivate {
			deactivations++
		}
	}
	require.NotNil(t, update)
	assert.Equal(t, alice.IdentityID, update.ActorID)
	require.NotNil(t, update.ResourceID)
	assert.Equal(t, alice.PatientID, *update.ResourceID)
	assert.NotContains(t, string(update.PreviousData), "penicillin")
	assert.Contains(t, string(update.NewData), "penicillin")
	assert.Equal(t, 2, deactivations, "the denied attempt is recorded too")
}
