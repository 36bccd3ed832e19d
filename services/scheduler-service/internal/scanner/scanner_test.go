package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeStore struct {
	candidates []Candidate
	listErr    error
	failFor    map[string]error
	enqueued   []Candidate
}

func (f *fakeStore) ListReminderCandidates(_ context.Context, from, to time.Time) ([]Candidate, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []Candidate
	for _, c := range f.candidates {
		if !c.OccursAt.Before(from) && !c.OccursAt.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) EnqueueReminder(_ context.Context, c Candidate, _ time.Duration) error {
	if err := f.failFor[c.AppointmentID]; err != nil {
		return err
	}
	f.enqueued = append(f.enqueued, c)
	return nil
}

func testScanner(store Store, leads []time.Duration, now time.Time) *Scanner {
	s := New(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Tolerance: 5 * time.Minute,
		Leads:     leads,
	})
	s.now = func() time.Time { return now }
	return s
}

func TestWindowBounds(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	w := Window{Lead: 24 * time.Hour, Tolerance: 5 * time.Minute}
	from, to := w.Bounds(now)

	if !from.Equal(now.Add(24*time.Hour - 5*time.Minute)) {
		t.Fatalf("unexpected from: %v", from)
	}
	if !to.Equal(now.Add(24*time.Hour + 5*time.Minute)) {
		t.Fatalf("unexpected to: %v", to)
	}
}

func TestSweepWindowInclusion(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		candidates: []Candidate{
			{AppointmentID: "inside", OccursAt: now.Add(23*time.Hour + 58*time.Minute)},
			{AppointmentID: "outside", OccursAt: now.Add(23*time.Hour + 40*time.Minute)},
		},
	}

	testScanner(store, []time.Duration{24 * time.Hour}, now).Sweep(context.Background())

	if len(store.enqueued) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(store.enqueued))
	}
	if store.enqueued[0].AppointmentID != "inside" {
		t.Fatalf("wrong candidate reminded: %s", store.enqueued[0].AppointmentID)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	occurs := now.Add(2 * time.Hour)
	store := &fakeStore{
		candidates: []Candidate{
			{AppointmentID: "a1", OccursAt: occurs},
			{AppointmentID: "a2", OccursAt: occurs},
			{AppointmentID: "a3", OccursAt: occurs},
		},
		failFor: map[string]error{"a2": errors.New("outbox down")},
	}

	testScanner(store, []time.Duration{2 * time.Hour}, now).Sweep(context.Background())

	if len(store.enqueued) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(store.enqueued))
	}
	for _, c := range store.enqueued {
		if c.AppointmentID == "a2" {
			t.Fatalf("failed candidate should not be recorded")
		}
	}
}

func TestParseLeads(t *testing.T) {
	leads := ParseLeads("24h, 2h,junk,-1h,")
	if len(leads) != 2 || leads[0] != 24*time.Hour || leads[1] != 2*time.Hour {
		t.Fatalf("unexpected leads: %v", leads)
	}
	if got := ParseLeads(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}
