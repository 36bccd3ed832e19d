package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/almatopete/clinica-backend/libs/auth"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/authz"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/booking"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/lifecycle"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/storage/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubLister struct {
	appts []model.Appointment
}

func (s *stubLister) ListByUser(_ context.Context, _ string, _ int) ([]model.Appointment, error) {
	return s.appts, nil
}

func (s *stubLister) ListByDoctor(_ context.Context, _ string, _ int) ([]model.Appointment, error) {
	return s.appts, nil
}

func (s *stubLister) ListAll(_ context.Context, _ int) ([]model.Appointment, error) {
	return s.appts, nil
}

func newTestHandler(store *memory.Store) *AppointmentHandler {
	logger := discardLogger()
	return NewAppointmentHandler(
		booking.NewEngine(store, logger),
		lifecycle.NewController(store, logger),
		&stubLister{},
		logger,
	)
}

func authedRequest(method, target, body string, caller authz.Identity) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), ctxKeyIdentity, caller)
	return req.WithContext(ctx)
}

func TestRequireAuthHS256(t *testing.T) {
	secret := "test-secret"
	claims := auth.Claims{
		Sub:  "user-1",
		Role: "PATIENT",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(1 * time.Hour).Unix(),
	}
	token, err := auth.SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	h := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := IdentityFromContext(r.Context())
		if !ok || caller.UserID != claims.Sub || caller.Role != authz.RolePatient {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), secret, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}

	reqMissing := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	rwMissing := httptest.NewRecorder()
	h.ServeHTTP(rwMissing, reqMissing)
	if rwMissing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwMissing.Code)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), authz.RoleAdmin)

	req := authedRequest(http.MethodGet, "http://example.com", "", authz.Identity{UserID: "u1", Role: authz.RolePatient})
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}

	reqOK := authedRequest(http.MethodGet, "http://example.com", "", authz.Identity{UserID: "a1", Role: authz.RoleAdmin})
	rwOK := httptest.NewRecorder()
	h.ServeHTTP(rwOK, reqOK)
	if rwOK.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rwOK.Code)
	}
}

func TestCreateAppointment(t *testing.T) {
	store := memory.NewStore()
	store.AddSlot(model.Slot{ID: "slot-1", DoctorID: "doc-1", StartsAt: time.Now().Add(48 * time.Hour)})
	h := newTestHandler(store)

	body := `{"slot_id":"slot-1","patient_name":"Ana Gomez","patient_email":"ana@example.com","reason":"checkup"}`
	caller := authz.Identity{UserID: "user-1", Role: authz.RolePatient}

	rw := httptest.NewRecorder()
	h.Create(rw, authedRequest(http.MethodPost, "http://example.com/api/v1/appointments", body, caller))
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}

	// Same slot again: the uniqueness constraint rejects the second claim.
	rwDup := httptest.NewRecorder()
	h.Create(rwDup, authedRequest(http.MethodPost, "http://example.com/api/v1/appointments", body, caller))
	if rwDup.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rwDup.Code)
	}

	rwBad := httptest.NewRecorder()
	h.Create(rwBad, authedRequest(http.MethodPost, "http://example.com/api/v1/appointments", `{"slot_id":"slot-1"}`, caller))
	if rwBad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rwBad.Code)
	}

	rwMissing := httptest.NewRecorder()
	h.Create(rwMissing, authedRequest(http.MethodPost, "http://example.com/api/v1/appointments",
		`{"slot_id":"nope","patient_name":"Ana","patient_email":"ana@example.com","reason":"checkup"}`, caller))
	if rwMissing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rwMissing.Code)
	}
}

func TestCancelForbiddenForOtherPatient(t *testing.T) {
	store := memory.NewStore()
	store.AddSlot(model.Slot{ID: "slot-1", DoctorID: "doc-1", StartsAt: time.Now().Add(48 * time.Hour)})
	h := newTestHandler(store)
	owner := authz.Identity{UserID: "user-1", Role: authz.RolePatient}

	rw := httptest.NewRecorder()
	h.Create(rw, authedRequest(http.MethodPost, "http://example.com/api/v1/appointments",
		`{"slot_id":"slot-1","patient_name":"Ana Gomez","patient_email":"ana@example.com","reason":"checkup"}`, owner))
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rw.Code)
	}
	var created appointmentResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	other := authz.Identity{UserID: "user-2", Role: authz.RolePatient}
	rwCancel := httptest.NewRecorder()
	h.Cancel(rwCancel, authedRequest(http.MethodPost, "http://example.com/api/v1/appointments/cancel",
		`{"appointment_id":"`+created.AppointmentID+`","reason":"nope"}`, other))
	if rwCancel.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rwCancel.Code)
	}

	rwOwner := httptest.NewRecorder()
	h.Cancel(rwOwner, authedRequest(http.MethodPost, "http://example.com/api/v1/appointments/cancel",
		`{"appointment_id":"`+created.AppointmentID+`","reason":"sick"}`, owner))
	if rwOwner.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rwOwner.Code, rwOwner.Body.String())
	}
}
