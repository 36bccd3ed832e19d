package storage

import (
	"context"
	"time"

	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
)

func (r *Repository) ListDoctors(ctx context.Context, specialty string) ([]model.Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, specialty, bio, photo_url, resume
		FROM doctors
		WHERE $1 = '' OR specialty ILIKE $1
		ORDER BY full_name
	`, specialty)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var doctors []model.Doctor
	for rows.Next() {
		var d model.Doctor
		if err := rows.Scan(&d.ID, &d.FullName, &d.Specialty, &d.Bio, &d.PhotoURL, &d.Resume); err != nil {
			return nil, classify(err)
		}
		doctors = append(doctors, d)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return doctors, nil
}

// ListFreeSlots returns slots in [from, to) with no active appointment.
// Occupancy is computed from the appointments table, never cached.
func (r *Repository) ListFreeSlots(ctx context.Context, doctorID string, from, to time.Time) ([]model.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.doctor_id, s.starts_at, s.created_at
		FROM slots s
		WHERE s.doctor_id = $1
			AND s.starts_at >= $2
			AND s.starts_at < $3
			AND NOT EXISTS (
				SELECT 1 FROM appointments a
				WHERE a.slot_id = s.id AND a.status <> 'CANCELLED'
			)
		ORDER BY s.starts_at
	`, doctorID, from, to)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		var s model.Slot
		if err := rows.Scan(&s.ID, &s.DoctorID, &s.StartsAt, &s.CreatedAt); err != nil {
			return nil, classify(err)
		}
		slots = append(slots, s)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return slots, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE user_id = $1
		ORDER BY occurs_at DESC
		LIMIT $2
	`, userID, normalizeLimit(limit))
}

// ListByDoctor covers the practitioner's read-only view: appointments
// currently sitting on that doctor's slots.
func (r *Repository) ListByDoctor(ctx context.Context, doctorID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE slot_id IN (SELECT id FROM slots WHERE doctor_id = $1)
		ORDER BY occurs_at DESC
		LIMIT $2
	`, doctorID, normalizeLimit(limit))
}

func (r *Repository) ListAll(ctx context.Context, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		ORDER BY occurs_at DESC
		LIMIT $1
	`, normalizeLimit(limit))
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, classify(err)
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return appts, nil
}

// Purge hard-deletes an appointment. This bypasses the state machine and is
// reachable only through the admin surface.
func (r *Repository) Purge(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAppointmentNotFound
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
