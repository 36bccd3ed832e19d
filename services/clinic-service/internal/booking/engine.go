// Package booking claims free slots. There is no pre-locking: concurrent
// claims on the same slot race and the storage-level uniqueness constraint
// picks exactly one winner; the losers get model.ErrSlotTaken.
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/almatopete/clinica-backend/libs/outbox"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
)

const EventBooked = "clinic.appointment.booked.v1"

// Store is the slice of the appointment store the engine needs. The pgx
// implementation lives in internal/storage.
type Store interface {
	GetSlot(ctx context.Context, slotID string) (model.Slot, error)

	// CreateScheduled inserts the appointment and the outbox event in one
	// transaction. It returns model.ErrSlotTaken when the active-slot
	// uniqueness constraint rejects the claim, model.ErrSlotNotFound when the
	// slot reference is invalid, and model.ErrUnavailable on transient
	// storage failure.
	CreateScheduled(ctx context.Context, appt model.Appointment, evt outbox.Event) (model.Appointment, error)
}

type Engine struct {
	store  Store
	logger *slog.Logger
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

type Request struct {
	SlotID       string
	UserID       string
	PatientName  string
	PatientEmail string
	PatientPhone string
	Reason       string
}

func (r *Request) validate() error {
	r.SlotID = strings.TrimSpace(r.SlotID)
	r.UserID = strings.TrimSpace(r.UserID)
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.PatientEmail = strings.TrimSpace(r.PatientEmail)
	r.PatientPhone = strings.TrimSpace(r.PatientPhone)
	r.Reason = strings.TrimSpace(r.Reason)
	switch {
	case r.SlotID == "":
		return fmt.Errorf("slot id required")
	case r.UserID == "":
		return fmt.Errorf("account required")
	case r.PatientName == "":
		return fmt.Errorf("patient name required")
	case r.PatientEmail == "":
		return fmt.Errorf("patient email required")
	case r.Reason == "":
		return fmt.Errorf("reason required")
	}
	return nil
}

// Book creates an appointment in SCHEDULED on the requested slot. The
// occurrence timestamp is copied from the slot so the record survives later
// slot changes. The confirmation email is requested through the outbox event
// written in the same transaction; delivery happens asynchronously and can
// never fail the booking.
func (e *Engine) Book(ctx context.Context, req Request) (model.Appointment, error) {
	if err := req.validate(); err != nil {
		return model.Appointment{}, err
	}

	slot, err := e.store.GetSlot(ctx, req.SlotID)
	if err != nil {
		return model.Appointment{}, err
	}

	appt := model.Appointment{
		ID:           uuid.NewString(),
		SlotID:       slot.ID,
		UserID:       req.UserID,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
		Reason:       req.Reason,
		Status:       model.StatusScheduled,
		OccursAt:     slot.StartsAt,
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"slot_id":        slot.ID,
		"doctor_id":      slot.DoctorID,
		"patient_name":   appt.PatientName,
		"recipient":      appt.PatientEmail,
		"reason":         appt.Reason,
		"occurs_at":      appt.OccursAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, err
	}

	created, err := e.store.CreateScheduled(ctx, appt, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     EventBooked,
		Payload:       payload,
	})
	if err != nil {
		return model.Appointment{}, err
	}

	e.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"slot_id", slot.ID,
		"occurs_at", created.OccursAt.UTC().Format(time.RFC3339),
	)
	return created, nil
}
