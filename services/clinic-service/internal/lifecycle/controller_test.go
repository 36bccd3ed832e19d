package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/almatopete/clinica-backend/libs/runtime"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/authz"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/booking"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/storage/memory"
)

var (
	owner = authz.Identity{UserID: "user-1", Role: authz.RolePatient}
	other = authz.Identity{UserID: "user-2", Role: authz.RolePatient}
	admin = authz.Identity{UserID: "admin-1", Role: authz.RoleAdmin}
)

func setup(t *testing.T) (*booking.Engine, *Controller, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	logger := runtime.NewLogger("test")
	return booking.NewEngine(store, logger), NewController(store, logger), store
}

func bookOn(t *testing.T, engine *booking.Engine, store *memory.Store, slotID, userID string, startsAt time.Time) model.Appointment {
	t.Helper()
	store.AddSlot(model.Slot{ID: slotID, DoctorID: "doc-1", StartsAt: startsAt})
	appt, err := engine.Book(context.Background(), booking.Request{
		SlotID:       slotID,
		UserID:       userID,
		PatientName:  "Maria Lopez",
		PatientEmail: "maria@example.com",
		Reason:       "general checkup",
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	return appt
}

func TestCancelReleasesSlot(t *testing.T) {
	engine, ctrl, store := setup(t)
	appt := bookOn(t, engine, store, "slot-1", owner.UserID, time.Now().Add(24*time.Hour))

	cancelled, err := ctrl.Cancel(context.Background(), owner, appt.ID, "cannot make it")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if cancelled.SlotID != "" {
		t.Fatalf("slot back-reference not cleared: %q", cancelled.SlotID)
	}
	if cancelled.CancelledAt == nil {
		t.Fatal("cancelled_at not set")
	}
	if n := store.ActiveCountForSlot("slot-1"); n != 0 {
		t.Fatalf("slot still occupied by %d active appointments", n)
	}

	// The freed slot must be immediately bookable.
	if _, err := engine.Book(context.Background(), booking.Request{
		SlotID:       "slot-1",
		UserID:       other.UserID,
		PatientName:  "Jose Perez",
		PatientEmail: "jose@example.com",
		Reason:       "skin check",
	}); err != nil {
		t.Fatalf("rebooking freed slot failed: %v", err)
	}
}

func TestCancelByNonOwnerForbidden(t *testing.T) {
	engine, ctrl, store := setup(t)
	appt := bookOn(t, engine, store, "slot-1", owner.UserID, time.Now().Add(24*time.Hour))

	_, err := ctrl.Cancel(context.Background(), other, appt.ID, "mine now")
	if !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// Denial must leave no trace: state unchanged, slot still occupied.
	got, err := store.GetAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("GetAppointment failed: %v", err)
	}
	if got.Status != model.StatusScheduled || got.SlotID != "slot-1" {
		t.Fatalf("state changed after denial: %+v", got)
	}
}

func TestCancelTerminalIsInvalid(t *testing.T) {
	engine, ctrl, store := setup(t)
	appt := bookOn(t, engine, store, "slot-1", owner.UserID, time.Now().Add(24*time.Hour))

	if _, err := ctrl.Cancel(context.Background(), owner, appt.ID, ""); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	_, err := ctrl.Cancel(context.Background(), owner, appt.ID, "again")
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRescheduleMovesSlotAndOccurrence(t *testing.T) {
	engine, ctrl, store := setup(t)
	appt := bookOn(t, engine, store, "slot-a", owner.UserID, time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC))

	newStart := time.Date(2026, 9, 11, 15, 0, 0, 0, time.UTC)
	store.AddSlot(model.Slot{ID: "slot-b", DoctorID: "doc-1", StartsAt: newStart})

	moved, err := ctrl.Reschedule(context.Background(), owner, appt.ID, "slot-b")
	if err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}
	if moved.SlotID != "slot-b" {
		t.Fatalf("expected slot-b, got %q", moved.SlotID)
	}
	if !moved.OccursAt.Equal(newStart) {
		t.Fatalf("occurrence not updated: got %s", moved.OccursAt)
	}
	if moved.Status != model.StatusScheduled {
		t.Fatalf("expected SCHEDULED after reschedule, got %s", moved.Status)
	}
	if n := store.ActiveCountForSlot("slot-a"); n != 0 {
		t.Fatal("old slot still occupied")
	}
	if n := store.ActiveCountForSlot("slot-b"); n != 1 {
		t.Fatalf("new slot has %d active appointments, want 1", n)
	}
}

func TestRescheduleOntoTakenSlotConflicts(t *testing.T) {
	engine, ctrl, store := setup(t)
	appt := bookOn(t, engine, store, "slot-a", owner.UserID, time.Now().Add(24*time.Hour))
	bookOn(t, engine, store, "slot-b", other.UserID, time.Now().Add(48*time.Hour))

	_, err := ctrl.Reschedule(context.Background(), owner, appt.ID, "slot-b")
	if !errors.Is(err, model.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestRescheduleFromTerminalInvalid(t *testing.T) {
	engine, ctrl, store := setup(t)
	appt := bookOn(t, engine, store, "slot-a", owner.UserID, time.Now().Add(24*time.Hour))
	store.AddSlot(model.Slot{ID: "slot-b", DoctorID: "doc-1", StartsAt: time.Now().Add(48 * time.Hour)})

	if _, err := ctrl.MarkAttended(context.Background(), admin, appt.ID); err != nil {
		t.Fatalf("MarkAttended failed: %v", err)
	}
	_, err := ctrl.Reschedule(context.Background(), owner, appt.ID, "slot-b")
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestConfirmThenMarkAttended(t *testing.T) {
	engine, ctrl, store := setup(t)
	appt := bookOn(t, engine, store, "slot-1", owner.UserID, time.Now().Add(24*time.Hour))

	confirmed, err := ctrl.Confirm(context.Background(), owner, appt.ID)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", confirmed.Status)
	}

	// Marking attendance is admin-only.
	if _, err := ctrl.MarkAttended(context.Background(), owner, appt.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for owner, got %v", err)
	}
	attended, err := ctrl.MarkAttended(context.Background(), admin, appt.ID)
	if err != nil {
		t.Fatalf("MarkAttended failed: %v", err)
	}
	if attended.Status != model.StatusAttended {
		t.Fatalf("expected ATTENDED, got %s", attended.Status)
	}
	// Attended keeps its slot; only cancellation releases it.
	if attended.SlotID != "slot-1" {
		t.Fatalf("slot link lost on attendance: %q", attended.SlotID)
	}
}

func TestMarkNoShowFromScheduled(t *testing.T) {
	engine, ctrl, store := setup(t)
	appt := bookOn(t, engine, store, "slot-1", owner.UserID, time.Now().Add(24*time.Hour))

	updated, err := ctrl.MarkNoShow(context.Background(), admin, appt.ID)
	if err != nil {
		t.Fatalf("MarkNoShow failed: %v", err)
	}
	if updated.Status != model.StatusNoShow {
		t.Fatalf("expected NO_SHOW, got %s", updated.Status)
	}
	_, err = ctrl.MarkNoShow(context.Background(), admin, appt.ID)
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on repeat, got %v", err)
	}
}

// End to end: A books S; B conflicts; A cancels; B books S successfully.
func TestBookConflictCancelRebook(t *testing.T) {
	engine, ctrl, store := setup(t)
	startsAt := time.Now().Add(72 * time.Hour)
	apptA := bookOn(t, engine, store, "slot-s", owner.UserID, startsAt)

	reqB := booking.Request{
		SlotID:       "slot-s",
		UserID:       other.UserID,
		PatientName:  "Jose Perez",
		PatientEmail: "jose@example.com",
		Reason:       "follow-up",
	}
	if _, err := engine.Book(context.Background(), reqB); !errors.Is(err, model.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken for B, got %v", err)
	}

	if _, err := ctrl.Cancel(context.Background(), owner, apptA.ID, "conflict"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	apptB, err := engine.Book(context.Background(), reqB)
	if err != nil {
		t.Fatalf("B's booking after cancel failed: %v", err)
	}
	if apptB.Status != model.StatusScheduled || !apptB.OccursAt.Equal(startsAt) {
		t.Fatalf("unexpected appointment for B: %+v", apptB)
	}
	if n := store.ActiveCountForSlot("slot-s"); n != 1 {
		t.Fatalf("slot holds %d active appointments, want 1", n)
	}
}
