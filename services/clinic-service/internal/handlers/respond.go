package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
)

type appointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	SlotID        string `json:"slot_id,omitempty"`
	Status        string `json:"status"`
	OccursAt      string `json:"occurs_at"`
	CancelReason  string `json:"cancel_reason,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

func toAppointmentResponse(appt model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID: appt.ID,
		SlotID:        appt.SlotID,
		Status:        string(appt.Status),
		OccursAt:      appt.OccursAt.UTC().Format(time.RFC3339),
		CancelReason:  appt.CancelReason,
	}
	if appt.CancelledAt != nil {
		resp.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	if !appt.CreatedAt.IsZero() {
		resp.CreatedAt = appt.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeDomainError maps storage and lifecycle outcomes onto the HTTP surface.
// A taken slot and an illegal transition are both 409, with distinct bodies so
// clients can tell them apart.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrSlotNotFound):
		http.Error(w, "slot not found", http.StatusNotFound)
	case errors.Is(err, model.ErrAppointmentNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, model.ErrSlotTaken):
		http.Error(w, "slot no longer available", http.StatusConflict)
	case errors.Is(err, model.ErrInvalidTransition):
		http.Error(w, "appointment state does not allow this action", http.StatusConflict)
	case errors.Is(err, model.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, model.ErrUnavailable):
		http.Error(w, "storage unavailable, retry later", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
