// Package memory is an in-memory appointment store for tests. It enforces
// the semantics the Postgres schema enforces (at most one active appointment
// per slot, conditional transitions, atomic event capture) so the booking
// engine and lifecycle controller can be exercised under real concurrency
// without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/almatopete/clinica-backend/libs/outbox"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
)

type Store struct {
	mu     sync.Mutex
	slots  map[string]model.Slot
	appts  map[string]model.Appointment
	events []outbox.Event
}

func NewStore() *Store {
	return &Store{
		slots: map[string]model.Slot{},
		appts: map[string]model.Appointment{},
	}
}

func (s *Store) AddSlot(slot model.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now()
	}
	s.slots[slot.ID] = slot
}

// Events returns a copy of every outbox event captured so far.
func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outbox.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) GetSlot(_ context.Context, slotID string) (model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return model.Slot{}, model.ErrSlotNotFound
	}
	return slot, nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrAppointmentNotFound
	}
	return appt, nil
}

func (s *Store) CreateScheduled(_ context.Context, appt model.Appointment, evt outbox.Event) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[appt.SlotID]; !ok {
		return model.Appointment{}, model.ErrSlotNotFound
	}
	if s.slotOccupiedLocked(appt.SlotID) {
		return model.Appointment{}, model.ErrSlotTaken
	}

	appt.CreatedAt = time.Now()
	s.appts[appt.ID] = appt
	s.events = append(s.events, evt)
	return appt, nil
}

func (s *Store) CancelScheduled(_ context.Context, id, reason string, evt outbox.Event) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrAppointmentNotFound
	}
	if appt.Status.Terminal() {
		return model.Appointment{}, model.ErrInvalidTransition
	}

	now := time.Now()
	appt.Status = model.StatusCancelled
	appt.SlotID = ""
	appt.CancelReason = reason
	appt.CancelledAt = &now
	s.appts[id] = appt
	s.events = append(s.events, evt)
	return appt, nil
}

func (s *Store) Reassign(_ context.Context, id string, slot model.Slot, evt outbox.Event) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrAppointmentNotFound
	}
	if appt.Status != model.StatusScheduled && appt.Status != model.StatusConfirmed {
		return model.Appointment{}, model.ErrInvalidTransition
	}
	if _, ok := s.slots[slot.ID]; !ok {
		return model.Appointment{}, model.ErrSlotNotFound
	}
	// The appointment's own current slot doesn't block the move.
	if appt.SlotID != slot.ID && s.slotOccupiedLocked(slot.ID) {
		return model.Appointment{}, model.ErrSlotTaken
	}

	appt.SlotID = slot.ID
	appt.OccursAt = slot.StartsAt
	appt.Status = model.StatusScheduled
	s.appts[id] = appt
	s.events = append(s.events, evt)
	return appt, nil
}

func (s *Store) SetStatus(_ context.Context, id string, from []model.Status, to model.Status, evt outbox.Event) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrAppointmentNotFound
	}
	legal := false
	for _, st := range from {
		if appt.Status == st {
			legal = true
			break
		}
	}
	if !legal {
		return model.Appointment{}, model.ErrInvalidTransition
	}

	appt.Status = to
	s.appts[id] = appt
	s.events = append(s.events, evt)
	return appt, nil
}

// ActiveCountForSlot reports how many non-cancelled appointments reference
// the slot. Tests assert this never exceeds one.
func (s *Store) ActiveCountForSlot(slotID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, appt := range s.appts {
		if appt.SlotID == slotID && appt.Status.Active() {
			n++
		}
	}
	return n
}

func (s *Store) slotOccupiedLocked(slotID string) bool {
	for _, appt := range s.appts {
		if appt.SlotID == slotID && appt.Status.Active() {
			return true
		}
	}
	return false
}
