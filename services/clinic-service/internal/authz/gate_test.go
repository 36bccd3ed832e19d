package authz

import (
	"testing"

	"github.com/almatopete/clinica-backend/services/clinic-service/internal/model"
)

func TestAllow(t *testing.T) {
	appt := model.Appointment{ID: "a1", UserID: "patient-1", Status: model.StatusScheduled}

	allActions := []Action{ActionRead, ActionConfirm, ActionCancel, ActionReschedule, ActionMarkAttended, ActionMarkNoShow}

	cases := []struct {
		name         string
		caller       Identity
		slotDoctorID string
		action       Action
		want         bool
	}{
		{"admin cancel", Identity{UserID: "admin-1", Role: RoleAdmin}, "doc-1", ActionCancel, true},
		{"admin mark attended", Identity{UserID: "admin-1", Role: RoleAdmin}, "doc-1", ActionMarkAttended, true},
		{"owner cancel", Identity{UserID: "patient-1", Role: RolePatient}, "doc-1", ActionCancel, true},
		{"owner reschedule", Identity{UserID: "patient-1", Role: RolePatient}, "doc-1", ActionReschedule, true},
		{"owner confirm", Identity{UserID: "patient-1", Role: RolePatient}, "doc-1", ActionConfirm, true},
		{"owner read", Identity{UserID: "patient-1", Role: RolePatient}, "doc-1", ActionRead, true},
		{"owner mark attended denied", Identity{UserID: "patient-1", Role: RolePatient}, "doc-1", ActionMarkAttended, false},
		{"owner mark no-show denied", Identity{UserID: "patient-1", Role: RolePatient}, "doc-1", ActionMarkNoShow, false},
		{"other patient cancel denied", Identity{UserID: "patient-2", Role: RolePatient}, "doc-1", ActionCancel, false},
		{"doctor read own slot", Identity{UserID: "doc-1", Role: RoleDoctor}, "doc-1", ActionRead, true},
		{"doctor read other slot denied", Identity{UserID: "doc-2", Role: RoleDoctor}, "doc-1", ActionRead, false},
		{"doctor cancel denied", Identity{UserID: "doc-1", Role: RoleDoctor}, "doc-1", ActionCancel, false},
		{"doctor mark attended denied", Identity{UserID: "doc-1", Role: RoleDoctor}, "doc-1", ActionMarkAttended, false},
		{"unknown role denied", Identity{UserID: "patient-1", Role: Role("OWNER")}, "doc-1", ActionCancel, false},
		{"empty role denied", Identity{UserID: "patient-1", Role: Role("")}, "doc-1", ActionRead, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Allow(tc.caller, appt, tc.slotDoctorID, tc.action)
			if got != tc.want {
				t.Fatalf("Allow(%v, %s) = %v, want %v", tc.caller, tc.action, got, tc.want)
			}
		})
	}

	// Unknown roles must be denied across the whole action set, not just the
	// cases above.
	for _, action := range allActions {
		if Allow(Identity{UserID: "patient-1", Role: Role("STAFF")}, appt, "doc-1", action) {
			t.Fatalf("unknown role allowed action %s", action)
		}
	}
}

func TestAllowNoOwnerMatchWithEmptyIDs(t *testing.T) {
	// An appointment with no owner must not match a caller with an empty id.
	appt := model.Appointment{ID: "a1", UserID: "", Status: model.StatusScheduled}
	if Allow(Identity{UserID: "", Role: RolePatient}, appt, "", ActionCancel) {
		t.Fatal("empty caller id matched ownerless appointment")
	}
}
