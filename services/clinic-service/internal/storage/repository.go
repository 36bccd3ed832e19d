package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/almatopete/clinica-backend/libs/db"
	"github.com/almatopete/clinica-backend/libs/outbox"
	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
)

const apptColumns = `id, COALESCE(slot_id::text, ''), COALESCE(user_id::text, ''),
	patient_name, patient_email, patient_phone, reason, status, occurs_at,
	cancel_reason, cancelled_at, created_at`

// Repository is the pgx-backed appointment store. Slot occupancy is never a
// flag here: it is the partial unique index appointments_active_slot_idx,
// and every claim-shaped write treats a violation of it as model.ErrSlotTaken.
type Repository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outboxRepo: outboxRepo}
}

func (r *Repository) GetSlot(ctx context.Context, slotID string) (model.Slot, error) {
	var s model.Slot
	err := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, starts_at, created_at
		FROM slots
		WHERE id = $1
	`, slotID).Scan(&s.ID, &s.DoctorID, &s.StartsAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Slot{}, model.ErrSlotNotFound
		}
		return model.Slot{}, classify(err)
	}
	return s, nil
}

func (r *Repository) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, model.ErrAppointmentNotFound
		}
		return model.Appointment{}, classify(err)
	}
	return appt, nil
}

// CreateScheduled races concurrent claims on the same slot: the insert and
// the outbox event commit together, and the partial unique index decides the
// winner. No lock is taken on the slot row.
func (r *Repository) CreateScheduled(ctx context.Context, appt model.Appointment, evt outbox.Event) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, slot_id, user_id, patient_name, patient_email, patient_phone, reason, status, occurs_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9)
		RETURNING `+apptColumns+`
	`, appt.ID, appt.SlotID, appt.UserID, appt.PatientName, appt.PatientEmail,
		appt.PatientPhone, appt.Reason, string(appt.Status), appt.OccursAt))
	if err != nil {
		return model.Appointment{}, classify(err)
	}

	if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, classify(err)
	}
	return created, nil
}

// CancelScheduled flips the state to CANCELLED and clears the slot
// back-reference in one UPDATE, inside one transaction with the event, so
// state and occupancy can never be observed out of step.
func (r *Repository) CancelScheduled(ctx context.Context, id, reason string, evt outbox.Event) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := r.lockAppointment(ctx, tx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if current.Status.Terminal() {
		return model.Appointment{}, model.ErrInvalidTransition
	}

	cancelled, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED',
			slot_id = NULL,
			cancel_reason = $2,
			cancelled_at = now()
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, reason))
	if err != nil {
		return model.Appointment{}, classify(err)
	}

	if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, classify(err)
	}
	return cancelled, nil
}

// Reassign relinks the appointment to the new slot. The same unique index
// that guards booking rejects a second active claim on the target slot, so a
// lost reschedule race is model.ErrSlotTaken, exactly like a lost booking.
func (r *Repository) Reassign(ctx context.Context, id string, slot model.Slot, evt outbox.Event) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := r.lockAppointment(ctx, tx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if current.Status != model.StatusScheduled && current.Status != model.StatusConfirmed {
		return model.Appointment{}, model.ErrInvalidTransition
	}

	moved, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET slot_id = $2,
			occurs_at = $3,
			status = 'SCHEDULED'
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, slot.ID, slot.StartsAt))
	if err != nil {
		return model.Appointment{}, classify(err)
	}

	if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, classify(err)
	}
	return moved, nil
}

func (r *Repository) SetStatus(ctx context.Context, id string, from []model.Status, to model.Status, evt outbox.Event) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := r.lockAppointment(ctx, tx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	legal := false
	for _, s := range from {
		if current.Status == s {
			legal = true
			break
		}
	}
	if !legal {
		return model.Appointment{}, model.ErrInvalidTransition
	}

	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, string(to)))
	if err != nil {
		return model.Appointment{}, classify(err)
	}

	if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, classify(err)
	}
	return updated, nil
}

func (r *Repository) lockAppointment(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	appt, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, model.ErrAppointmentNotFound
		}
		return model.Appointment{}, classify(err)
	}
	return appt, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanAppointment(r row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	var cancelledAt *time.Time
	err := r.Scan(
		&appt.ID,
		&appt.SlotID,
		&appt.UserID,
		&appt.PatientName,
		&appt.PatientEmail,
		&appt.PatientPhone,
		&appt.Reason,
		&status,
		&appt.OccursAt,
		&appt.CancelReason,
		&cancelledAt,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.CancelledAt = cancelledAt
	return appt, nil
}

// classify maps storage errors onto the domain taxonomy. A violation of the
// active-slot unique index is the normal lost-the-race outcome; a slot FK
// violation means the referenced slot does not exist; everything else that
// isn't already a domain error is treated as transient.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if pgErr.ConstraintName == "appointments_active_slot_idx" {
				return model.ErrSlotTaken
			}
		case "23503":
			if pgErr.ConstraintName == "appointments_slot_id_fkey" {
				return model.ErrSlotNotFound
			}
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(model.ErrUnavailable, err)
}
