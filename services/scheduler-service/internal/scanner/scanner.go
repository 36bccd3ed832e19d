// Package scanner periodically sweeps upcoming appointments and emits
// reminder events. The sweep is read-only with respect to appointments; it
// never marks anything as reminded, so overlapping windows or restarts can
// produce duplicate reminders. The notifier is expected to tolerate that.
package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/almatopete/clinica-backend/services/scheduler-service/internal/policy"
)

const EventReminderDue = "clinic.reminder.due.v1"

// Candidate is one appointment due a reminder, joined with the doctor's name
// for the notification template.
type Candidate struct {
	AppointmentID string
	PatientName   string
	Recipient     string
	Phone         string
	DoctorName    string
	Reason        string
	OccursAt      time.Time
}

type Store interface {
	// ListReminderCandidates returns SCHEDULED appointments whose occurrence
	// falls inside the inclusive [from, to] range.
	ListReminderCandidates(ctx context.Context, from, to time.Time) ([]Candidate, error)

	// EnqueueReminder writes one reminder-due outbox event.
	EnqueueReminder(ctx context.Context, c Candidate, lead time.Duration) error
}

type Config struct {
	Interval  time.Duration
	Tolerance time.Duration
	Leads     []time.Duration
}

type Scanner struct {
	store     Store
	policy    policy.Provider
	logger    *slog.Logger
	interval  time.Duration
	tolerance time.Duration
	leads     []time.Duration
	now       func() time.Time
}

func New(store Store, policyProvider policy.Provider, logger *slog.Logger, cfg Config) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 5 * time.Minute
	}
	if len(cfg.Leads) == 0 {
		cfg.Leads = []time.Duration{24 * time.Hour, 2 * time.Hour}
	}
	return &Scanner{
		store:     store,
		policy:    policyProvider,
		logger:    logger,
		interval:  cfg.Interval,
		tolerance: cfg.Tolerance,
		leads:     cfg.Leads,
		now:       time.Now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. Sweeps run
// synchronously on the ticker goroutine; a slow sweep delays the next tick
// instead of overlapping with it.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep checks every reminder window once. Failures on one candidate or one
// window are logged and skipped; the rest of the sweep continues.
func (s *Scanner) Sweep(ctx context.Context) {
	now := s.now().UTC()

	leads := s.leads
	if s.policy != nil {
		if policyLeads, err := s.policy.ReminderLeads(ctx); err == nil && len(policyLeads) > 0 {
			leads = policyLeads
		} else if err != nil {
			s.logger.Warn("reminder policy fetch failed, using defaults", "err", err)
		}
	}

	for _, lead := range leads {
		window := Window{Lead: lead, Tolerance: s.tolerance}
		from, to := window.Bounds(now)

		candidates, err := s.store.ListReminderCandidates(ctx, from, to)
		if err != nil {
			s.logger.Error("reminder candidate listing failed", "lead", lead.String(), "err", err)
			continue
		}

		for _, c := range candidates {
			if err := s.store.EnqueueReminder(ctx, c, lead); err != nil {
				s.logger.Error("reminder enqueue failed",
					"appointment_id", c.AppointmentID, "lead", lead.String(), "err", err)
				continue
			}
		}
		if len(candidates) > 0 {
			s.logger.Info("reminder sweep window done", "lead", lead.String(), "candidates", len(candidates))
		}
	}
}
