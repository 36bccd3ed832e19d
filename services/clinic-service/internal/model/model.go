package model

import "time"

// Status is the appointment lifecycle state. CANCELLED, ATTENDED and NO_SHOW
// are terminal. Every state except CANCELLED counts toward slot occupancy.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusAttended  Status = "ATTENDED"
	StatusNoShow    Status = "NO_SHOW"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusAttended, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s != StatusCancelled
}

type Doctor struct {
	ID        string
	FullName  string
	Specialty string
	Bio       string
	PhotoURL  string
	Resume    string
}

// Slot is one bookable unit: a doctor and a start time. Duration is fixed at
// one hour. Slots are created in bulk by the external seeder and never
// mutated here; occupancy is derived from the appointments table.
type Slot struct {
	ID        string
	DoctorID  string
	StartsAt  time.Time
	CreatedAt time.Time
}

type Appointment struct {
	ID           string
	SlotID       string // empty once cancelled
	UserID       string
	PatientName  string
	PatientEmail string
	PatientPhone string
	Reason       string
	Status       Status
	// OccursAt is copied from the slot at booking/reschedule time so the
	// record keeps its history even if the slot link is cleared.
	OccursAt     time.Time
	CancelReason string
	CancelledAt  *time.Time
	CreatedAt    time.Time
}
