package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/almatopete/clinica-backend/services/clinic-service/internal/authz"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/booking"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/lifecycle"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
)

// AppointmentLister is the read side of the appointment store used for the
// role-scoped listing endpoint.
type AppointmentLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int) ([]model.Appointment, error)
	ListAll(ctx context.Context, limit int) ([]model.Appointment, error)
}

type AppointmentHandler struct {
	engine *booking.Engine
	ctrl   *lifecycle.Controller
	lister AppointmentLister
	logger *slog.Logger
}

func NewAppointmentHandler(engine *booking.Engine, ctrl *lifecycle.Controller, lister AppointmentLister, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		engine: engine,
		ctrl:   ctrl,
		lister: lister,
		logger: logger,
	}
}

type createAppointmentRequest struct {
	SlotID       string `json:"slot_id"`
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
	PatientPhone string `json:"patient_phone"`
	Reason       string `json:"reason"`
}

// Create books a slot for the authenticated account. Losing the race for the
// slot comes back as 409; the client picks another slot and retries.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientEmail = strings.TrimSpace(req.PatientEmail)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.SlotID == "" || req.PatientName == "" || req.PatientEmail == "" || req.Reason == "" {
		http.Error(w, "slot_id, patient_name, patient_email and reason are required", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.Book(r.Context(), booking.Request{
		SlotID:       req.SlotID,
		UserID:       caller.UserID,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: strings.TrimSpace(req.PatientPhone),
		Reason:       req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

// List returns appointments scoped by role: patients see their own, doctors
// see appointments on their slots, admins see everything.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	var appts []model.Appointment
	var err error
	switch caller.Role {
	case authz.RoleAdmin:
		appts, err = h.lister.ListAll(r.Context(), limit)
	case authz.RoleDoctor:
		appts, err = h.lister.ListByDoctor(r.Context(), caller.UserID, limit)
	case authz.RolePatient:
		appts, err = h.lister.ListByUser(r.Context(), caller.UserID, limit)
	default:
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]appointmentResponse, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toAppointmentResponse(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	appt, err := h.ctrl.Cancel(r.Context(), caller, req.AppointmentID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	NewSlotID     string `json:"new_slot_id"`
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.NewSlotID = strings.TrimSpace(req.NewSlotID)
	if req.AppointmentID == "" || req.NewSlotID == "" {
		http.Error(w, "appointment_id and new_slot_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.ctrl.Reschedule(r.Context(), caller, req.AppointmentID, req.NewSlotID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	appt, err := h.ctrl.Confirm(r.Context(), caller, req.AppointmentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) MarkAttended(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	appt, err := h.ctrl.MarkAttended(r.Context(), caller, req.AppointmentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	appt, err := h.ctrl.MarkNoShow(r.Context(), caller, req.AppointmentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) decodeAction(w http.ResponseWriter, r *http.Request) (authz.Identity, cancelRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return authz.Identity{}, cancelRequest{}, false
	}
	caller, ok := IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return authz.Identity{}, cancelRequest{}, false
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return authz.Identity{}, cancelRequest{}, false
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return authz.Identity{}, cancelRequest{}, false
	}
	return caller, req, true
}
