// Package authz is the capability check consulted before every mutating
// lifecycle call. It is a pure function over (role, caller, appointment,
// action) so the policy stays independently testable, and it fails closed:
// anything not explicitly allowed is denied.
package authz

import "github.com/almatopete/clinica-backend/services/clinic-service/internal/model"

type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

type Action string

const (
	ActionRead         Action = "read"
	ActionConfirm      Action = "confirm"
	ActionCancel       Action = "cancel"
	ActionReschedule   Action = "reschedule"
	ActionMarkAttended Action = "mark_attended"
	ActionMarkNoShow   Action = "mark_no_show"
)

// Identity is the verified caller, supplied by the auth layer. The gate
// trusts it completely.
type Identity struct {
	UserID string
	Role   Role
}

// Allow decides whether the caller may perform action on the appointment.
// slotDoctorID is the owner of the slot the appointment sits on (empty when
// the appointment holds no slot); it only matters for the DOCTOR role.
func Allow(caller Identity, appt model.Appointment, slotDoctorID string, action Action) bool {
	switch caller.Role {
	case RoleAdmin:
		return true
	case RolePatient:
		if caller.UserID == "" || caller.UserID != appt.UserID {
			return false
		}
		switch action {
		case ActionRead, ActionConfirm, ActionCancel, ActionReschedule:
			return true
		}
		return false
	case RoleDoctor:
		// Doctors are read-only over appointments on their own slots.
		// Mutations go through the admin role.
		return action == ActionRead && slotDoctorID != "" && caller.UserID == slotDoctorID
	}
	return false
}
