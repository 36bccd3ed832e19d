// Package policy resolves clinic-wide reminder lead times. The static
// provider reads them from configuration; deployments that centralize policy
// can swap in the gRPC-backed provider.
package policy

import (
	"context"
	"time"
)

type Provider interface {
	ReminderLeads(ctx context.Context) ([]time.Duration, error)
}

type staticProvider struct {
	leads []time.Duration
}

func NewStaticProvider(leads []time.Duration) Provider {
	return &staticProvider{leads: leads}
}

func (p *staticProvider) ReminderLeads(_ context.Context) ([]time.Duration, error) {
	return p.leads, nil
}
