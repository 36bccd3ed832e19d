//go:build !protogen

package policy

import (
	"log/slog"
	"time"
)

func NewClinicPolicyProvider(_ *slog.Logger, leads []time.Duration, _ string) (Provider, error) {
	return NewStaticProvider(leads), nil
}
