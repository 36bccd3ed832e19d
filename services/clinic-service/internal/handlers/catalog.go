package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/almatopete/clinica-backend/services/clinic-service/internal/storage"
)

// CatalogHandler serves the public read surface: doctor directory and free
// slots. No authentication; the rate limiter in main is the only guard.
type CatalogHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewCatalogHandler(repo *storage.Repository, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{repo: repo, logger: logger}
}

type doctorItem struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Specialty string `json:"specialty"`
	Bio       string `json:"bio,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	Resume    string `json:"resume,omitempty"`
}

type slotResponseItem struct {
	ID       string `json:"id"`
	DoctorID string `json:"doctor_id"`
	StartsAt string `json:"starts_at"`
}

func (h *CatalogHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	specialty := strings.TrimSpace(r.URL.Query().Get("specialty"))
	doctors, err := h.repo.ListDoctors(r.Context(), specialty)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]doctorItem, 0, len(doctors))
	for _, d := range doctors {
		items = append(items, doctorItem{
			ID:        d.ID,
			FullName:  d.FullName,
			Specialty: d.Specialty,
			Bio:       d.Bio,
			PhotoURL:  d.PhotoURL,
			Resume:    d.Resume,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// Slots lists free slots for a doctor inside [from, to). Occupied slots are
// filtered out at query time, so what the client sees is bookable at that
// instant, though a concurrent claim can still win the race.
func (h *CatalogHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	if doctorID == "" {
		http.Error(w, "doctor_id required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	from := now
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = t
	}
	to := from.AddDate(0, 0, 14)
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		to = t
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	slots, err := h.repo.ListFreeSlots(r.Context(), doctorID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]slotResponseItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotResponseItem{
			ID:       s.ID,
			DoctorID: s.DoctorID,
			StartsAt: s.StartsAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}
