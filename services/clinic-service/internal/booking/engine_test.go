package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/almatopete/clinica-backend/libs/runtime"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/storage/memory"
)

func testEngine() (*Engine, *memory.Store) {
	store := memory.NewStore()
	return NewEngine(store, runtime.NewLogger("test")), store
}

func request(slotID string) Request {
	return Request{
		SlotID:       slotID,
		UserID:       "user-1",
		PatientName:  "Maria Lopez",
		PatientEmail: "maria@example.com",
		PatientPhone: "5551234567",
		Reason:       "general checkup",
	}
}

func TestBookCopiesOccurrenceFromSlot(t *testing.T) {
	engine, store := testEngine()
	startsAt := time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC)
	store.AddSlot(model.Slot{ID: "slot-1", DoctorID: "doc-1", StartsAt: startsAt})

	appt, err := engine.Book(context.Background(), request("slot-1"))
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if appt.Status != model.StatusScheduled {
		t.Fatalf("expected SCHEDULED, got %s", appt.Status)
	}
	if !appt.OccursAt.Equal(startsAt) {
		t.Fatalf("occurrence not copied from slot: got %s", appt.OccursAt)
	}
	if appt.SlotID != "slot-1" {
		t.Fatalf("expected slot back-reference, got %q", appt.SlotID)
	}

	events := store.Events()
	if len(events) != 1 || events[0].EventType != EventBooked {
		t.Fatalf("expected one %s event, got %v", EventBooked, events)
	}
}

func TestBookUnknownSlot(t *testing.T) {
	engine, _ := testEngine()
	_, err := engine.Book(context.Background(), request("missing"))
	if !errors.Is(err, model.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestBookSecondClaimConflicts(t *testing.T) {
	engine, store := testEngine()
	store.AddSlot(model.Slot{ID: "slot-1", DoctorID: "doc-1", StartsAt: time.Now().Add(24 * time.Hour)})

	if _, err := engine.Book(context.Background(), request("slot-1")); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	_, err := engine.Book(context.Background(), request("slot-1"))
	if !errors.Is(err, model.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

// The core safety invariant: many concurrent claims on one free slot, exactly
// one winner, everyone else sees the expected conflict, and at no point does
// the slot hold more than one active appointment.
func TestBookConcurrentClaimsSingleWinner(t *testing.T) {
	engine, store := testEngine()
	store.AddSlot(model.Slot{ID: "slot-1", DoctorID: "doc-1", StartsAt: time.Now().Add(48 * time.Hour)})

	const claims = 32
	var wg sync.WaitGroup
	results := make([]error, claims)
	for i := 0; i < claims; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Book(context.Background(), request("slot-1"))
			results[i] = err
		}(i)
	}
	wg.Wait()

	winners, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, model.ErrSlotTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}
	if conflicts != claims-1 {
		t.Fatalf("expected %d conflicts, got %d", claims-1, conflicts)
	}
	if n := store.ActiveCountForSlot("slot-1"); n != 1 {
		t.Fatalf("slot holds %d active appointments, want 1", n)
	}
}

func TestBookValidation(t *testing.T) {
	engine, store := testEngine()
	store.AddSlot(model.Slot{ID: "slot-1", DoctorID: "doc-1", StartsAt: time.Now().Add(24 * time.Hour)})

	req := request("slot-1")
	req.UserID = "  "
	if _, err := engine.Book(context.Background(), req); err == nil {
		t.Fatal("expected validation error for missing account")
	}

	req = request("slot-1")
	req.PatientEmail = ""
	if _, err := engine.Book(context.Background(), req); err == nil {
		t.Fatal("expected validation error for missing email")
	}
}
