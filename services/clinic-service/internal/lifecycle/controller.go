// Package lifecycle applies appointment state transitions. Every mutating
// call consults the authorization gate first; a denial returns before any
// storage write. State and slot occupancy always change inside one storage
// transaction, so there is no observable window where an appointment shows
// cancelled while its slot still looks occupied.
package lifecycle

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/almatopete/clinica-backend/libs/outbox"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/authz"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
)

const (
	EventCancelled   = "clinic.appointment.cancelled.v1"
	EventRescheduled = "clinic.appointment.rescheduled.v1"
)

// Store is the transactional slice of the appointment store the controller
// needs. Each mutating method re-asserts the source state inside the
// transaction, so a concurrent transition surfaces as
// model.ErrInvalidTransition rather than a lost update.
type Store interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	GetSlot(ctx context.Context, slotID string) (model.Slot, error)

	// CancelScheduled moves the appointment to CANCELLED and clears the slot
	// back-reference in the same statement.
	CancelScheduled(ctx context.Context, id, reason string, evt outbox.Event) (model.Appointment, error)

	// Reassign relinks the appointment to slot, copies the slot's start time
	// into the occurrence timestamp and resets the state to SCHEDULED. A
	// claim already holding the target slot surfaces as model.ErrSlotTaken.
	Reassign(ctx context.Context, id string, slot model.Slot, evt outbox.Event) (model.Appointment, error)

	// SetStatus moves the appointment from one of the from states to the to
	// state without touching the slot linkage.
	SetStatus(ctx context.Context, id string, from []model.Status, to model.Status, evt outbox.Event) (model.Appointment, error)
}

type Controller struct {
	store  Store
	logger *slog.Logger
}

func NewController(store Store, logger *slog.Logger) *Controller {
	return &Controller{store: store, logger: logger}
}

// Cancel is legal from any non-terminal state. The freed slot becomes
// bookable again as soon as the transaction commits.
func (c *Controller) Cancel(ctx context.Context, caller authz.Identity, apptID, reason string) (model.Appointment, error) {
	appt, err := c.store.GetAppointment(ctx, apptID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !authz.Allow(caller, appt, "", authz.ActionCancel) {
		return model.Appointment{}, model.ErrForbidden
	}
	if appt.Status.Terminal() {
		return model.Appointment{}, model.ErrInvalidTransition
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"slot_id":        appt.SlotID,
		"patient_name":   appt.PatientName,
		"recipient":      appt.PatientEmail,
		"reason":         reason,
		"occurs_at":      appt.OccursAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, err
	}

	cancelled, err := c.store.CancelScheduled(ctx, appt.ID, reason, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     EventCancelled,
		Payload:       payload,
	})
	if err != nil {
		return model.Appointment{}, err
	}
	c.logger.Info("appointment cancelled", "appointment_id", appt.ID, "freed_slot_id", appt.SlotID)
	return cancelled, nil
}

// Reschedule moves the appointment onto a free slot. Legal only from
// SCHEDULED or CONFIRMED; the result is always SCHEDULED again. Losing the
// race for the target slot is the expected model.ErrSlotTaken outcome.
func (c *Controller) Reschedule(ctx context.Context, caller authz.Identity, apptID, newSlotID string) (model.Appointment, error) {
	appt, err := c.store.GetAppointment(ctx, apptID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !authz.Allow(caller, appt, "", authz.ActionReschedule) {
		return model.Appointment{}, model.ErrForbidden
	}
	if appt.Status != model.StatusScheduled && appt.Status != model.StatusConfirmed {
		return model.Appointment{}, model.ErrInvalidTransition
	}

	slot, err := c.store.GetSlot(ctx, newSlotID)
	if err != nil {
		return model.Appointment{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"old_slot_id":    appt.SlotID,
		"new_slot_id":    slot.ID,
		"patient_name":   appt.PatientName,
		"recipient":      appt.PatientEmail,
		"occurs_at":      slot.StartsAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, err
	}

	moved, err := c.store.Reassign(ctx, appt.ID, slot, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     EventRescheduled,
		Payload:       payload,
	})
	if err != nil {
		return model.Appointment{}, err
	}
	c.logger.Info("appointment rescheduled", "appointment_id", appt.ID, "old_slot_id", appt.SlotID, "new_slot_id", slot.ID)
	return moved, nil
}

// Confirm moves a SCHEDULED appointment to CONFIRMED. No slot change.
func (c *Controller) Confirm(ctx context.Context, caller authz.Identity, apptID string) (model.Appointment, error) {
	return c.setStatus(ctx, caller, apptID, authz.ActionConfirm,
		[]model.Status{model.StatusScheduled}, model.StatusConfirmed)
}

// MarkAttended is administrative-only: SCHEDULED/CONFIRMED to ATTENDED.
func (c *Controller) MarkAttended(ctx context.Context, caller authz.Identity, apptID string) (model.Appointment, error) {
	return c.setStatus(ctx, caller, apptID, authz.ActionMarkAttended,
		[]model.Status{model.StatusScheduled, model.StatusConfirmed}, model.StatusAttended)
}

// MarkNoShow is administrative-only: SCHEDULED/CONFIRMED to NO_SHOW.
func (c *Controller) MarkNoShow(ctx context.Context, caller authz.Identity, apptID string) (model.Appointment, error) {
	return c.setStatus(ctx, caller, apptID, authz.ActionMarkNoShow,
		[]model.Status{model.StatusScheduled, model.StatusConfirmed}, model.StatusNoShow)
}

func (c *Controller) setStatus(ctx context.Context, caller authz.Identity, apptID string, action authz.Action, from []model.Status, to model.Status) (model.Appointment, error) {
	appt, err := c.store.GetAppointment(ctx, apptID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !authz.Allow(caller, appt, "", action) {
		return model.Appointment{}, model.ErrForbidden
	}
	legal := false
	for _, s := range from {
		if appt.Status == s {
			legal = true
			break
		}
	}
	if !legal {
		return model.Appointment{}, model.ErrInvalidTransition
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"status":         string(to),
	})
	if err != nil {
		return model.Appointment{}, err
	}

	updated, err := c.store.SetStatus(ctx, appt.ID, from, to, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "clinic.appointment." + statusEventSuffix(to) + ".v1",
		Payload:       payload,
	})
	if err != nil {
		return model.Appointment{}, err
	}
	c.logger.Info("appointment transitioned", "appointment_id", appt.ID, "status", string(to))
	return updated, nil
}

func statusEventSuffix(s model.Status) string {
	switch s {
	case model.StatusConfirmed:
		return "confirmed"
	case model.StatusAttended:
		return "attended"
	case model.StatusNoShow:
		return "no_show"
	}
	return "updated"
}
