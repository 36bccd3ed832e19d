package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/almatopete/clinica-backend/libs/db"
)

// Notification is one delivery attempt record. Kind is what was sent
// (booking_confirmation, cancellation, reminder); channel is how.
type Notification struct {
	AppointmentID string
	Kind          string
	Channel       string
	Recipient     string
	Payload       map[string]any
	Status        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, kind, channel, recipient, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.AppointmentID, n.Kind, n.Channel, n.Recipient, payload, n.Status)
	return err
}

// DoctorName resolves a doctor id to a display name for message templates.
// An unknown id is not an error; the template simply omits the doctor line.
func (r *Repository) DoctorName(ctx context.Context, doctorID string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT full_name FROM doctors WHERE id = $1`, doctorID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}
