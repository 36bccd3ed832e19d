// Package storage is the scheduler's read-only view over appointments plus
// its outbox feed. It never mutates appointment rows.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/almatopete/clinica-backend/libs/db"
	"github.com/almatopete/clinica-backend/libs/outbox"
	"github.com/almatopete/clinica-backend/services/scheduler-service/internal/scanner"
)

type Repository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outboxRepo: outboxRepo}
}

// ListReminderCandidates returns SCHEDULED appointments occurring inside the
// inclusive [from, to] range, joined with the doctor's name for the template.
// Appointments without a slot link (already cancelled mid-scan) are excluded
// by the join.
func (r *Repository) ListReminderCandidates(ctx context.Context, from, to time.Time) ([]scanner.Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.patient_name, a.patient_email, a.patient_phone, d.full_name, a.reason, a.occurs_at
		FROM appointments a
		JOIN slots s ON s.id = a.slot_id
		JOIN doctors d ON d.id = s.doctor_id
		WHERE a.status = 'SCHEDULED'
			AND a.occurs_at >= $1
			AND a.occurs_at <= $2
		ORDER BY a.occurs_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []scanner.Candidate
	for rows.Next() {
		var c scanner.Candidate
		if err := rows.Scan(&c.AppointmentID, &c.PatientName, &c.Recipient, &c.Phone, &c.DoctorName, &c.Reason, &c.OccursAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// EnqueueReminder writes one reminder-due event to the outbox. The publisher
// goroutine picks it up and pushes it to Kafka.
func (r *Repository) EnqueueReminder(ctx context.Context, c scanner.Candidate, lead time.Duration) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": c.AppointmentID,
		"patient_name":   c.PatientName,
		"recipient":      c.Recipient,
		"phone":          c.Phone,
		"doctor_name":    c.DoctorName,
		"reason":         c.Reason,
		"occurs_at":      c.OccursAt.UTC().Format(time.RFC3339),
		"lead":           lead.String(),
	})
	if err != nil {
		return err
	}
	return r.outboxRepo.Insert(ctx, r.pool, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   c.AppointmentID,
		EventType:     scanner.EventReminderDue,
		Payload:       payload,
	})
}
