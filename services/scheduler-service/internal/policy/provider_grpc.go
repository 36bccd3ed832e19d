//go:build protogen

package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/almatopete/clinica-backend/libs/grpcx"
	clinicv1 "github.com/almatopete/clinica-backend/protos/gen/clinic/v1"
)

type grpcProvider struct {
	client clinicv1.ClinicPolicyServiceClient
}

func NewClinicPolicyProvider(logger *slog.Logger, fallback []time.Duration, addr string) (Provider, error) {
	if addr == "" {
		return NewStaticProvider(fallback), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("grpc policy provider unavailable, using fallback", "err", err)
		return NewStaticProvider(fallback), nil
	}

	logger.Info("grpc policy provider enabled", "addr", addr)
	return &grpcProvider{client: clinicv1.NewClinicPolicyServiceClient(conn)}, nil
}

func (p *grpcProvider) ReminderLeads(ctx context.Context) ([]time.Duration, error) {
	resp, err := p.client.GetReminderPolicy(ctx, &clinicv1.ReminderPolicyRequest{})
	if err != nil {
		return nil, err
	}
	var leads []time.Duration
	for _, mins := range resp.GetLeadMinutes() {
		if mins <= 0 {
			continue
		}
		leads = append(leads, time.Duration(mins)*time.Minute)
	}
	return leads, nil
}
