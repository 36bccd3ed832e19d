package email

import (
	"strings"
	"testing"
	"time"
)

func TestConfirmationBodyIncludesDetails(t *testing.T) {
	occurs := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	body := ConfirmationBody("Ana Gomez", occurs, "Dr. Ruiz", "annual checkup")

	for _, want := range []string{"Ana Gomez", "Friday, 6 March 2026 at 10:00 UTC", "Dr. Ruiz", "annual checkup"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBodiesOmitEmptyOptionalLines(t *testing.T) {
	occurs := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)

	if body := ConfirmationBody("Ana", occurs, "", ""); strings.Contains(body, "Doctor:") || strings.Contains(body, "Reason:") {
		t.Fatalf("unexpected optional lines:\n%s", body)
	}
	if body := CancellationBody("Ana", occurs, ""); strings.Contains(body, "Reason:") {
		t.Fatalf("unexpected reason line:\n%s", body)
	}
	if body := ReminderBody("Ana", occurs, "", ""); strings.Contains(body, "Doctor:") {
		t.Fatalf("unexpected doctor line:\n%s", body)
	}
}
