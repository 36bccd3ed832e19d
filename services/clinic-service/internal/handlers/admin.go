package handlers

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/almatopete/clinica-backend/services/clinic-service/internal/storage"
)

// AdminHandler is mounted behind RequireRole(ADMIN). Export is a plain CSV
// dump; purge hard-deletes a record and bypasses the lifecycle state machine.
type AdminHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewAdminHandler(repo *storage.Repository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{repo: repo, logger: logger}
}

func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	appts, err := h.repo.ListAll(r.Context(), 500)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"appointment_id", "slot_id", "user_id", "patient_name", "patient_email",
		"patient_phone", "reason", "status", "occurs_at", "cancel_reason",
		"cancelled_at", "created_at",
	})
	for _, appt := range appts {
		cancelledAt := ""
		if appt.CancelledAt != nil {
			cancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		if err := cw.Write([]string{
			appt.ID,
			appt.SlotID,
			appt.UserID,
			appt.PatientName,
			appt.PatientEmail,
			appt.PatientPhone,
			appt.Reason,
			string(appt.Status),
			appt.OccursAt.UTC().Format(time.RFC3339),
			appt.CancelReason,
			cancelledAt,
			appt.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			h.logger.Error("csv write failed", "err", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("csv flush failed", "err", err)
	}
}

type purgeRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func (h *AdminHandler) Purge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Purge(r.Context(), req.AppointmentID); err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info("appointment purged", "appointment_id", req.AppointmentID)
	w.WriteHeader(http.StatusNoContent)
}
