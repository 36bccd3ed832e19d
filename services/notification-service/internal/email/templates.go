package email

import (
	"fmt"
	"time"
)

// Plain-text message bodies for the three notification kinds. Timestamps are
// rendered in UTC; localization is the client's job.

func ConfirmationSubject() string { return "Your appointment is booked" }

func ConfirmationBody(patientName string, occursAt time.Time, doctorName, reason string) string {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour appointment has been booked for %s.",
		patientName, occursAt.UTC().Format("Monday, 2 January 2006 at 15:04 MST"),
	)
	if doctorName != "" {
		body += fmt.Sprintf("\nDoctor: %s", doctorName)
	}
	if reason != "" {
		body += fmt.Sprintf("\nReason: %s", reason)
	}
	return body + "\n\nIf you cannot attend, please cancel or reschedule in advance.\n"
}

func CancellationSubject() string { return "Your appointment was cancelled" }

func CancellationBody(patientName string, occursAt time.Time, reason string) string {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour appointment scheduled for %s has been cancelled.",
		patientName, occursAt.UTC().Format("Monday, 2 January 2006 at 15:04 MST"),
	)
	if reason != "" {
		body += fmt.Sprintf("\nReason: %s", reason)
	}
	return body + "\n\nThe slot is available again if you want to book a new time.\n"
}

func ReminderSubject() string { return "Appointment reminder" }

func ReminderBody(patientName string, occursAt time.Time, doctorName, reason string) string {
	body := fmt.Sprintf(
		"Hello %s,\n\nThis is a reminder of your upcoming appointment on %s.",
		patientName, occursAt.UTC().Format("Monday, 2 January 2006 at 15:04 MST"),
	)
	if doctorName != "" {
		body += fmt.Sprintf("\nDoctor: %s", doctorName)
	}
	if reason != "" {
		body += fmt.Sprintf("\nReason: %s", reason)
	}
	return body + "\n"
}
